package stage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"goresearch/domain/core"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIngesting, StateModeling, true},
		{StateIngesting, StateSimulating, false},
		{StateGateCheck1, StateRejected, true},
		{StateGateCheck2, StateRejected, true},
		{StateValidating, StateRejected, true},
		{StateModeling, StateRejected, false},
		{StateLearning, StateDone, true},
		{StateSimulating, StateFailed, true},
		{StateDone, StateFailed, false},
		{StateRejected, StateIngesting, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestRunIDContext(t *testing.T) {
	_, ok := RunIDFrom(context.Background())
	assert.False(t, ok)

	ctx := WithRunID(context.Background(), core.RunID("run-1"))
	id, ok := RunIDFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, core.RunID("run-1"), id)
}
