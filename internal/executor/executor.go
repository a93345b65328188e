// Package executor implements the room-host's executor taxonomy (§4.2):
// once, prologue, epilogue and always, each a different wiring of the
// shared container-run primitive ("_run_once" in the original) onto a
// room's lifecycle hooks.
package executor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/h3ndrk/roomhost/internal/dockerengine"
	"github.com/h3ndrk/roomhost/internal/shield"
	"github.com/h3ndrk/roomhost/internal/wire"
)

var tracer = otel.Tracer("github.com/h3ndrk/roomhost/internal/executor")

// Sender delivers one message to every session attached to the owning
// room. Executors never talk to sessions directly.
type Sender func(ctx context.Context, message any) error

// Config mirrors one entry of a room's "executors" configuration map
// (§6).
type Config struct {
	Type                 string
	Image                string
	Command              []string
	WorkingDirectory     string
	EnableTTY            bool
	MemoryLimitBytes     int64
	CPULimit             float64
	PidsLimit            int64
	HandleMessageTimeout time.Duration
	TearDownTimeout      time.Duration
	LoggerName           string
}

// Executor is the per-room, per-configuration-entry object the Room
// drives through its lifecycle (§4.1/§4.2).
type Executor interface {
	// Instantiate is called once the room's volume exists. volumeName is
	// the deterministic name of that volume.
	Instantiate(ctx context.Context, volumeName string) error
	HandleMessage(ctx context.Context, raw json.RawMessage) error
	TearDown(ctx context.Context) error
}

// base holds the fields and container-run primitive every docker.*
// variant shares, grounded on docker_executor.py's DockerExecutor.
type base struct {
	engine   dockerengine.Engine
	cfg      Config
	roomName string
	name     string
	send     Sender
	logger   *slog.Logger

	volumeName string
}

func newBase(engine dockerengine.Engine, cfg Config, roomName, name string, send Sender, logger *slog.Logger) base {
	return base{
		engine:   engine,
		cfg:      cfg,
		roomName: roomName,
		name:     name,
		send:     send,
		logger:   logger.With("executor", name, "room", roomName),
	}
}

func (b *base) containerSpec(attachStdin, tty bool) dockerengine.ContainerSpec {
	spec := dockerengine.ContainerSpec{
		Name:             dockerengine.ContainerName(b.roomName, b.name),
		Image:            b.cfg.Image,
		Command:          b.cfg.Command,
		WorkingDirectory: b.cfg.WorkingDirectory,
		VolumeName:       b.volumeName,
		NetworkDisabled:  !attachStdin,
		AttachStdin:      attachStdin,
		OpenStdin:        attachStdin,
		StdinOnce:        attachStdin,
		TTY:              tty,
	}
	// docker_always.py's container config carries no HostConfig resource
	// fields at all; only the one-shot variants (once/prologue/epilogue)
	// apply limits, and only when configured.
	if !attachStdin && (b.cfg.MemoryLimitBytes > 0 || b.cfg.CPULimit > 0 || b.cfg.PidsLimit > 0) {
		spec.Limits = &dockerengine.ResourceLimits{
			MemoryBytes: b.cfg.MemoryLimitBytes,
			CPULimit:    b.cfg.CPULimit,
			PidsLimit:   b.cfg.PidsLimit,
		}
	}
	return spec
}

// createReverting creates a container, and on failure reverts the
// deterministic name by deleting whatever partial resource the engine
// left behind (§4.2's create-failure revert path). Creation itself runs
// shielded so a racing cancellation can't abandon a created container.
func (b *base) createReverting(ctx context.Context, spec dockerengine.ContainerSpec) (string, error) {
	b.logger.Debug("creating container")
	id, err := shield.RunValue(ctx, func(ctx context.Context) (string, error) {
		return b.engine.CreateContainer(ctx, spec)
	})
	if err != nil {
		b.logger.Debug("reverting container creation")
		if rerr := b.engine.RemoveContainer(context.Background(), spec.Name, true); rerr != nil {
			if !dockerengine.IsNotFound(rerr) {
				return "", fmt.Errorf("revert container creation: %w (original error: %v)", rerr, err)
			}
			b.logger.Debug("container had not been created yet")
		}
		return "", err
	}
	return id, nil
}

// runOnce is the container-run primitive (§4.2 "_run_once"): create,
// attach, start, pump frames to the room as {"type":"output",...}
// messages, then always stop+delete on the way out, whether or not
// start/attach succeeded.
func (b *base) runOnce(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "executor.run_once")
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	spec := b.containerSpec(false, false)

	id, err := b.createReverting(ctx, spec)
	if err != nil {
		return err
	}

	defer func() {
		b.logger.Debug("stopping container")
		if serr := b.engine.StopContainer(context.Background(), id); serr != nil && !dockerengine.IsNotFound(serr) {
			b.logger.Error("failed to stop container", "error", serr)
		}
		b.logger.Debug("deleting container")
		if derr := b.engine.RemoveContainer(context.Background(), id, true); derr != nil && !dockerengine.IsNotFound(derr) {
			b.logger.Error("failed to delete container", "error", derr)
		}
	}()

	b.logger.Debug("attaching to container")
	stream, err := b.engine.AttachContainer(ctx, id, spec)
	if err != nil {
		return err
	}
	defer stream.Close()

	b.logger.Debug("starting container")
	if err := b.engine.StartContainer(ctx, id); err != nil {
		return err
	}

	return b.pump(ctx, stream)
}

func (b *base) pump(ctx context.Context, stream dockerengine.AttachedStream) error {
	for {
		frame, err := stream.ReadFrame()
		if err != nil {
			return err
		}
		if frame == nil {
			return nil
		}

		encoded := base64.StdEncoding.EncodeToString(frame.Data)
		var out wire.Output
		switch frame.Stream {
		case dockerengine.StreamStdout:
			out = wire.NewStdoutOutput(encoded)
		case dockerengine.StreamStderr:
			out = wire.NewStderrOutput(encoded)
		default:
			continue
		}
		if err := b.send(ctx, out); err != nil {
			return err
		}
	}
}
