package executor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/h3ndrk/roomhost/internal/dockerengine"
	"github.com/h3ndrk/roomhost/internal/wire"
)

// Always maintains a long-lived container with stdin attached (and,
// when configured, a TTY): starting -> ready -> running -> restarting.
// A supervisor goroutine loops forever, re-creating the container
// whenever it exits, until TearDown cancels it. Grounded on
// docker_always.py.
type Always struct {
	base

	mu        sync.Mutex
	container string
	stream    dockerengine.AttachedStream
	ttySize   *wire.TTYSize

	ready  *readyEvent
	cancel context.CancelFunc
	done   chan struct{}
}

func (a *Always) Instantiate(ctx context.Context, volumeName string) error {
	a.volumeName = volumeName
	a.ready = newReadyEvent()
	a.done = make(chan struct{})

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go a.supervise(runCtx)
	return nil
}

func (a *Always) supervise(ctx context.Context) {
	defer close(a.done)
	for ctx.Err() == nil {
		a.runCycle(ctx)
	}
}

func (a *Always) runCycle(ctx context.Context) {
	spec := a.containerSpec(true, a.cfg.EnableTTY)

	id, err := a.createReverting(ctx, spec)
	if err != nil {
		a.logger.Error("failed to create container", "error", err)
		return
	}

	defer func() {
		a.logger.Debug("stopping container")
		if serr := a.engine.StopContainer(context.Background(), id); serr != nil {
			a.logger.Error("failed to stop container", "error", serr)
		}
		a.logger.Debug("deleting container")
		if derr := a.engine.RemoveContainer(context.Background(), id, true); derr != nil {
			a.logger.Error("failed to delete container", "error", derr)
		}
	}()

	a.logger.Debug("attaching to container")
	stream, err := a.engine.AttachContainer(ctx, id, spec)
	if err != nil {
		a.logger.Error("failed to attach to container", "error", err)
		return
	}

	// The attach stream's read blocks on container I/O and doesn't
	// observe ctx on its own; closing it from here unblocks the pump
	// loop below as soon as tear-down cancels ctx.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			stream.Close()
		case <-watchDone:
		}
	}()
	defer close(watchDone)

	a.mu.Lock()
	a.container = id
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.container = ""
		a.mu.Unlock()
	}()

	a.logger.Debug("starting container")
	if err := a.engine.StartContainer(ctx, id); err != nil {
		a.logger.Error("failed to start container", "error", err)
		stream.Close()
		return
	}

	a.mu.Lock()
	size := a.ttySize
	a.mu.Unlock()
	if size != nil {
		a.logger.Debug("setting initial tty size")
		if err := a.engine.ResizeContainer(ctx, id, size.Rows, size.Cols); err != nil {
			a.logger.Error("failed to set initial tty size", "error", err)
		}
	}

	a.setStream(stream)
	defer a.setStream(nil)

	a.ready.Set()
	defer a.ready.Clear()

	if err := a.pump(ctx, stream); err != nil {
		a.logger.Debug("attach stream ended", "error", err)
	}
}

func (a *Always) setStream(s dockerengine.AttachedStream) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stream = s
}

func (a *Always) HandleMessage(ctx context.Context, raw json.RawMessage) error {
	var msg wire.AlwaysInbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		return err
	}

	timeout := a.cfg.HandleMessageTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := a.ready.Wait(waitCtx); err != nil {
		return fmt.Errorf("always executor not ready: %w", err)
	}

	a.mu.Lock()
	stream := a.stream
	container := a.container
	a.mu.Unlock()
	if stream == nil || container == "" {
		return fmt.Errorf("always executor not ready")
	}

	switch {
	case msg.Stdin != nil:
		data, err := base64.StdEncoding.DecodeString(*msg.Stdin)
		if err != nil {
			return err
		}
		return stream.WriteStdin(data)
	case msg.Size != nil:
		a.logger.Debug("setting tty size")
		a.mu.Lock()
		a.ttySize = msg.Size
		a.mu.Unlock()
		return a.engine.ResizeContainer(ctx, container, msg.Size.Rows, msg.Size.Cols)
	default:
		return fmt.Errorf("always executor: unsupported message")
	}
}

func (a *Always) TearDown(ctx context.Context) error {
	if a.cancel == nil {
		return nil
	}
	a.cancel()
	a.logger.Debug("waiting for supervisor task")

	timeout := a.cfg.TearDownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	case <-a.done:
		return nil
	case <-waitCtx.Done():
		return fmt.Errorf("always executor: tear down timed out after %s waiting for supervisor shutdown", timeout)
	}
}
