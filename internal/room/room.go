// Package room implements the room-lifecycle core (§4.1): a Room owns
// one shared data volume and a fixed map of executors, multiplexing
// however many sessions are currently attached to it.
package room

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/h3ndrk/roomhost/internal/dockerengine"
	"github.com/h3ndrk/roomhost/internal/executor"
	"github.com/h3ndrk/roomhost/internal/wire"
)

var tracer = otel.Tracer("github.com/h3ndrk/roomhost/internal/room")

// sendTimeout bounds how long fan-out waits on any one recipient before
// giving up on that message for that recipient (§9 "Fan-out
// back-pressure" open question — resolved here as a bounded
// per-recipient timeout rather than an unbounded per-session queue, so
// one slow client can never stall delivery to the others).
const sendTimeout = 5 * time.Second

// Session is a single attached duplex channel a Room fans output out
// to. Implemented by the Page's per-connection websocket wrapper.
type Session interface {
	Send(ctx context.Context, message wire.Outbound) error
}

// Config mirrors one page's room-level configuration (§6): the room
// variant type plus the fixed set of executor configurations.
type Config struct {
	Type                     string
	LoggerNameRoom           string
	LoggerNameRoomConnection string
	Executors                map[string]executor.Config
}

// Room owns one data volume and a fixed executor set, multiplexing
// however many sessions are currently attached. Grounded on
// docker_room.py / room.py.
type Room struct {
	name   string
	cfg    Config
	engine dockerengine.Engine
	logger *slog.Logger

	executors map[string]executor.Executor

	attachedMu sync.Mutex
	attached   []Session

	updateMu       sync.Mutex
	isInstantiated bool
	volumeName     string
}

func newRoom(engine dockerengine.Engine, cfg Config, name string, logger *slog.Logger) *Room {
	r := &Room{
		name:      name,
		cfg:       cfg,
		engine:    engine,
		logger:    logger.With("room", name),
		executors: make(map[string]executor.Executor, len(cfg.Executors)),
	}

	for executorName, executorCfg := range cfg.Executors {
		send := r.executorSender(executorName)
		ex, err := executor.New(engine, executorCfg, name, executorName, send, r.logger)
		if err != nil {
			// Configuration is validated at boot (§7 ConfigInvalid); an
			// unknown executor type reaching here is a programming error.
			panic(err)
		}
		r.executors[executorName] = ex
	}

	return r
}

func (r *Room) executorSender(executorName string) executor.Sender {
	return func(ctx context.Context, message any) error {
		r.broadcast(ctx, executorName, message)
		return nil
	}
}

func (r *Room) broadcast(ctx context.Context, executorName string, message any) {
	r.attachedMu.Lock()
	snapshot := append([]Session(nil), r.attached...)
	r.attachedMu.Unlock()

	out := wire.Outbound{Executor: executorName, Message: message}
	for _, session := range snapshot {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := session.Send(sendCtx, out)
		cancel()
		if err != nil {
			r.logger.Warn("dropping message for slow or failed recipient", "error", err)
		}
	}
}

// Attach registers a session as attached. Synchronous, never touches
// the backend.
func (r *Room) Attach(session Session) {
	r.attachedMu.Lock()
	defer r.attachedMu.Unlock()
	r.attached = append(r.attached, session)
}

// Detach unregisters a session. Synchronous, never touches the backend.
func (r *Room) Detach(session Session) {
	r.attachedMu.Lock()
	defer r.attachedMu.Unlock()
	for i, s := range r.attached {
		if s == session {
			r.attached = append(r.attached[:i], r.attached[i+1:]...)
			return
		}
	}
}

// IsEmpty reports whether no session is currently attached.
func (r *Room) IsEmpty() bool {
	r.attachedMu.Lock()
	defer r.attachedMu.Unlock()
	return len(r.attached) == 0
}

func (r *Room) attachedCount() int {
	r.attachedMu.Lock()
	defer r.attachedMu.Unlock()
	return len(r.attached)
}

// HandleMessage routes an inbound message to its named executor.
func (r *Room) HandleMessage(ctx context.Context, msg wire.Inbound) error {
	ex, ok := r.executors[msg.Executor]
	if !ok {
		return fmt.Errorf("unknown executor %q", msg.Executor)
	}
	return ex.HandleMessage(ctx, msg.Message)
}

// Update is the single place that may instantiate or tear down a room,
// serialized by the room's update lock so that instantiate and
// tear-down never interleave (§4.1, §9 "converged" design).
func (r *Room) Update(ctx context.Context) error {
	r.updateMu.Lock()
	defer r.updateMu.Unlock()

	attached := r.attachedCount()

	switch {
	case attached > 0 && !r.isInstantiated:
		if err := r.instantiate(ctx); err != nil {
			if tdErr := r.tearDown(context.Background()); tdErr != nil {
				r.logger.Error("tear down after failed instantiate also failed", "error", tdErr)
			}
			return err
		}
		r.isInstantiated = true
		return nil

	case attached == 0 && r.isInstantiated:
		defer func() { r.isInstantiated = false }()
		return r.tearDown(ctx)

	default:
		return nil
	}
}

func (r *Room) instantiate(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "room.instantiate")
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	r.logger.Debug("instantiating")

	volumeName := dockerengine.VolumeName(r.name)
	if err := r.engine.CreateVolume(ctx, volumeName); err != nil {
		return fmt.Errorf("create volume: %w", err)
	}
	r.volumeName = volumeName

	for name, ex := range r.executors {
		r.logger.Debug("instantiating executor", "executor", name)
		if err := ex.Instantiate(ctx, volumeName); err != nil {
			return fmt.Errorf("instantiate executor %q: %w", name, err)
		}
	}

	r.logger.Info("instantiated")
	return nil
}

// tearDown tears every executor down concurrently (§4.1, §5 — the one
// intra-room parallel section), collecting failures without
// short-circuiting, then always deletes the volume regardless of
// executor failures, leaving the room idempotent over already-absent
// sub-resources.
func (r *Room) tearDown(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "room.tear_down")
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	r.logger.Debug("tearing down")

	var (
		mu       sync.Mutex
		failures = map[string]error{}
		g        errgroup.Group
	)
	for name, ex := range r.executors {
		name, ex := name, ex
		g.Go(func() error {
			r.logger.Debug("tearing down executor", "executor", name)
			if err := ex.TearDown(ctx); err != nil {
				mu.Lock()
				failures[name] = err
				mu.Unlock()
				return err
			}
			return nil
		})
	}
	_ = g.Wait()

	if r.volumeName != "" {
		if err := r.engine.RemoveVolume(context.Background(), r.volumeName); err != nil && !dockerengine.IsNotFound(err) {
			r.logger.Error("failed to delete volume", "error", err)
		}
		r.volumeName = ""
	}

	if len(failures) > 0 {
		for name, err := range failures {
			r.logger.Error("executor tear down failed", "executor", name, "error", err)
		}
		return fmt.Errorf("tear down incomplete: %d executor(s) failed", len(failures))
	}

	r.logger.Info("torn down")
	return nil
}
