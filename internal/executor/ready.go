package executor

import (
	"context"
	"sync"
)

// readyEvent is a resettable, broadcastable gate, the Go analog of the
// original's asyncio.Event used as `stream_ready`.
type readyEvent struct {
	mu sync.Mutex
	ch chan struct{}
}

func newReadyEvent() *readyEvent {
	return &readyEvent{ch: make(chan struct{})}
}

func (e *readyEvent) Set() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.ch:
	default:
		close(e.ch)
	}
}

func (e *readyEvent) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.ch:
		e.ch = make(chan struct{})
	default:
	}
}

func (e *readyEvent) Wait(ctx context.Context) error {
	e.mu.Lock()
	ch := e.ch
	e.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
