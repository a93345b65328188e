package executor

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/h3ndrk/roomhost/internal/wire"
)

// Once spawns a background run of its container for every incoming
// message, coalescing concurrent triggers into a single slot: a
// trigger that arrives while a run is already in flight is a no-op
// (§4.2/§9 "single-slot, ignore-if-running" — the most recent revision
// of the original's inconsistent once-coalescing behavior).
type Once struct {
	base

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func (o *Once) Instantiate(ctx context.Context, volumeName string) error {
	o.volumeName = volumeName
	return nil
}

func (o *Once) HandleMessage(ctx context.Context, raw json.RawMessage) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		o.logger.Debug("ignoring trigger, a run is already in progress")
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	o.running = true
	o.cancel = cancel
	o.done = done
	o.mu.Unlock()

	go o.run(runCtx, done)
	return nil
}

func (o *Once) run(ctx context.Context, done chan struct{}) {
	defer func() {
		o.mu.Lock()
		o.running = false
		o.cancel = nil
		o.mu.Unlock()
		close(done)
	}()

	if err := o.send(ctx, wire.NewStarted()); err != nil {
		o.logger.Error("failed to send started message", "error", err)
	}

	if err := o.runOnce(ctx); err != nil {
		o.logger.Debug("run errored", "error", err)
		if serr := o.send(ctx, wire.NewErrored(encodeError(err))); serr != nil {
			o.logger.Error("failed to send errored message", "error", serr)
		}
		return
	}

	if err := o.send(ctx, wire.NewFinished()); err != nil {
		o.logger.Error("failed to send finished message", "error", err)
	}
}

func (o *Once) TearDown(ctx context.Context) error {
	o.mu.Lock()
	cancel := o.cancel
	done := o.done
	o.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	o.logger.Debug("waiting for run task")
	<-done
	return nil
}
