package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// PassFunc runs one reconciliation pass.
type PassFunc func(ctx context.Context)

// Trigger coalesces reconciliation requests onto a single worker. Any number
// of Trigger calls made while a pass is queued collapse into that one pass,
// so a burst of registry changes costs one pass, not one per change.
type Trigger struct {
	pending  chan string
	run      PassFunc
	interval time.Duration
	log      zerolog.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
	cancel   context.CancelFunc
}

// NewTrigger creates a Trigger. A positive interval also runs a pass on a
// ticker, independently of registry changes.
func NewTrigger(run PassFunc, interval time.Duration, log zerolog.Logger) *Trigger {
	return &Trigger{
		pending:  make(chan string, 1),
		run:      run,
		interval: interval,
		log:      log,
	}
}

// Start launches the worker. It stops when ctx is cancelled or Stop is called.
func (t *Trigger) Start(ctx context.Context) {
	ctx, t.cancel = context.WithCancel(ctx)
	t.wg.Add(1)
	go t.worker(ctx)
}

// Trigger requests a pass without blocking. If one is already queued the
// request is folded into it.
func (t *Trigger) Trigger(reason string) {
	select {
	case t.pending <- reason:
	default:
		t.log.Debug().Str("reason", reason).Msg("reconciliation already queued")
	}
}

// Stop cancels the worker and waits for an in-flight pass to return.
func (t *Trigger) Stop() {
	t.stopOnce.Do(func() {
		if t.cancel != nil {
			t.cancel()
		}
	})
	t.wg.Wait()
}

func (t *Trigger) worker(ctx context.Context) {
	defer t.wg.Done()

	var tick <-chan time.Time
	if t.interval > 0 {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-t.pending:
			t.log.Debug().Str("reason", reason).Msg("reconciliation triggered")
			t.run(ctx)
		case <-tick:
			t.run(ctx)
		}
	}
}
