package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"goresearch/domain/core"
	"goresearch/domain/research"
	"goresearch/domain/stage"
)

func TestEventHubDeliversPerRun(t *testing.T) {
	hub := NewEventHub(nil)
	hub.clock = core.FixedClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))

	a, cancelA := hub.Subscribe("run-a")
	defer cancelA()
	b, cancelB := hub.Subscribe("run-b")
	defer cancelB()

	hub.Transition("run-a", stage.Transition{From: stage.StateIngesting, To: stage.StateModeling})

	select {
	case ev := <-a:
		assert.Equal(t, core.RunID("run-a"), ev.RunID)
		assert.Equal(t, stage.StateModeling, ev.To)
		assert.False(t, ev.Terminal)
		assert.Equal(t, 2024, ev.Timestamp.Year())
	default:
		t.Fatal("expected an event for run-a")
	}
	assert.Empty(t, b)
}

func TestEventHubDropsWhenClientIsFull(t *testing.T) {
	hub := NewEventHub(nil)
	hub.buffer = 1
	ch, cancel := hub.Subscribe("run")
	defer cancel()

	hub.Publish(RunEvent{RunID: "run", To: stage.StateModeling})
	hub.Publish(RunEvent{RunID: "run", To: stage.StateHypothesizing})

	assert.Len(t, ch, 1)
	assert.Equal(t, stage.StateModeling, (<-ch).To)
}

func TestEventHubCancelUnregisters(t *testing.T) {
	hub := NewEventHub(nil)
	ch, cancel := hub.Subscribe("run")
	assert.Equal(t, 1, hub.ClientCount("run"))

	cancel()
	assert.Equal(t, 0, hub.ClientCount("run"))
	_, open := <-ch
	assert.False(t, open)

	// publishing to a run nobody watches is a no-op
	hub.Publish(RunEvent{RunID: "run", To: stage.StateDone})
}

func TestStreamRequiresRunID(t *testing.T) {
	hub := NewEventHub(nil)
	r := gin.New()
	r.GET("/events", hub.Stream)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamEndsAtTerminalState(t *testing.T) {
	hub := NewEventHub(nil)
	srv := httptest.NewServer(NewRouter(&mockPipeline{}, hub, nil))
	defer srv.Close()

	done := make(chan []byte, 1)
	go func() {
		resp, err := http.Get(srv.URL + "/api/pipeline/events?run_id=streamed")
		if err != nil {
			done <- nil
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		done <- body
	}()

	require.Eventually(t, func() bool { return hub.ClientCount("streamed") == 1 }, 2*time.Second, 5*time.Millisecond)
	hub.Transition("streamed", stage.Transition{From: stage.StateValidating, To: stage.StateLearning})
	hub.Transition("streamed", stage.Transition{From: stage.StateLearning, To: stage.StateDone})

	var body []byte
	select {
	case body = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after the terminal event")
	}
	require.NotNil(t, body)

	var events []RunEvent
	for _, line := range strings.Split(string(body), "\n") {
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		var ev RunEvent
		require.NoError(t, json.NewDecoder(bytes.NewBufferString(payload)).Decode(&ev))
		events = append(events, ev)
	}
	require.Len(t, events, 2)
	assert.Equal(t, stage.StateLearning, events[0].To)
	assert.True(t, events[1].Terminal)
	assert.Eventually(t, func() bool { return hub.ClientCount("streamed") == 0 }, time.Second, 5*time.Millisecond)
}

func TestRunPipelineHonoursClientRunID(t *testing.T) {
	p := &mockPipeline{}
	p.On("Run", mock.MatchedBy(func(ctx context.Context) bool {
		id, ok := stage.RunIDFrom(ctx)
		return ok && id == "client-run"
	}), "catalyst", []research.DataSource{}).
		Return(&stage.Outcome{RunID: "client-run", State: stage.StateDone}, nil)

	w := do(t, p, http.MethodPost, "/api/pipeline/run", `{"topic":"catalyst","run_id":"client-run"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	p.AssertExpectations(t)

	w = do(t, p, http.MethodPost, "/api/pipeline/run", `{"topic":"catalyst","run_id":"../etc"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
