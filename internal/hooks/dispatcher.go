package hooks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"goresearch/internal/logging"
)

// Dispatcher runs outbound hook calls in the background. Failures and panics
// are logged and counted; they never reach the caller.
type Dispatcher struct {
	logger   *zap.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
	failures atomic.Uint64
	calls    atomic.Uint64
}

// NewDispatcher creates a dispatcher. timeout bounds each call; zero means none.
func NewDispatcher(logger *zap.Logger, timeout time.Duration) *Dispatcher {
	return &Dispatcher{logger: logging.OrNop(logger), timeout: timeout}
}

// Go schedules fn. The call is detached from ctx cancellation so a finished
// or timed-out run does not abort its hooks, but keeps ctx values.
func (d *Dispatcher) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	d.calls.Add(1)
	d.wg.Add(1)

	hookCtx := context.WithoutCancel(ctx)
	go func() {
		defer d.wg.Done()

		callCtx := hookCtx
		if d.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(hookCtx, d.timeout)
			defer cancel()
		}

		if err := d.safeCall(callCtx, fn); err != nil {
			d.failures.Add(1)
			d.logger.Warn("hook failed", zap.String("hook", name), zap.Error(err))
		}
	}()
}

func (d *Dispatcher) safeCall(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Wait blocks until every scheduled call has returned
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Calls is the number of hook calls scheduled so far
func (d *Dispatcher) Calls() uint64 { return d.calls.Load() }

// Failures is the number of hook calls that errored or panicked
func (d *Dispatcher) Failures() uint64 { return d.failures.Load() }
