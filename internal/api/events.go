package api

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"goresearch/domain/core"
	"goresearch/domain/stage"
	"goresearch/internal/errors"
	"goresearch/internal/logging"
)

// RunEvent is one state change of a pipeline run, streamed to subscribers
type RunEvent struct {
	RunID     core.RunID  `json:"run_id"`
	From      stage.State `json:"from"`
	To        stage.State `json:"to"`
	Terminal  bool        `json:"terminal"`
	Timestamp time.Time   `json:"timestamp"`
}

// EventHub fans run transitions out to Server-Sent Events clients. A slow
// client loses events instead of stalling the pipeline.
type EventHub struct {
	mu      sync.RWMutex
	clients map[core.RunID]map[chan RunEvent]struct{}
	buffer  int
	ping    time.Duration
	clock   core.Clock
	logger  *zap.Logger
}

// NewEventHub creates a new event hub
func NewEventHub(logger *zap.Logger) *EventHub {
	return &EventHub{
		clients: make(map[core.RunID]map[chan RunEvent]struct{}),
		buffer:  16,
		ping:    30 * time.Second,
		clock:   core.SystemClock,
		logger:  logging.OrNop(logger),
	}
}

// Transition implements pipeline.Observer
func (h *EventHub) Transition(runID core.RunID, t stage.Transition) {
	h.Publish(RunEvent{
		RunID:     runID,
		From:      t.From,
		To:        t.To,
		Terminal:  t.To.Terminal(),
		Timestamp: h.clock().Time(),
	})
}

// Publish delivers ev to every subscriber of its run without blocking
func (h *EventHub) Publish(ev RunEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients[ev.RunID] {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("event client full, dropping event",
				zap.String("run_id", ev.RunID.String()),
				zap.String("to", string(ev.To)))
		}
	}
}

// Subscribe registers a client for one run. The returned cancel func must be
// called exactly once; it closes the channel.
func (h *EventHub) Subscribe(runID core.RunID) (<-chan RunEvent, func()) {
	ch := make(chan RunEvent, h.buffer)
	h.mu.Lock()
	if h.clients[runID] == nil {
		h.clients[runID] = make(map[chan RunEvent]struct{})
	}
	h.clients[runID][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if clients, ok := h.clients[runID]; ok {
			delete(clients, ch)
			if len(clients) == 0 {
				delete(h.clients, runID)
			}
		}
		close(ch)
	}
}

// ClientCount returns the number of subscribers of a run
func (h *EventHub) ClientCount(runID core.RunID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[runID])
}

// Stream serves GET /pipeline/events?run_id=... until the run reaches a
// terminal state or the client goes away.
func (h *EventHub) Stream(c *gin.Context) {
	runID, err := core.ParseRunID(c.Query("run_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(errors.CodeInvalidInput, err.Error(), ""))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	events, cancel := h.Subscribe(runID)
	defer cancel()

	ticker := time.NewTicker(h.ping)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev := <-events:
			payload, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("failed to marshal run event", zap.Error(err))
				return true
			}
			c.SSEvent("transition", string(payload))
			return !ev.Terminal
		case <-ticker.C:
			c.SSEvent("ping", `{"status":"alive"}`)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
