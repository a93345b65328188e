// Package dockerengine wraps the container-engine operations used by
// the room-host (§6 "Container backend contract"): volume
// create/delete, container create/start/stop/remove/attach/resize, and
// the attached stream's frame-tagged demultiplexing.
//
// Engine is implemented against github.com/docker/docker's client, the
// same family of client jesseduffield-lazydocker depends on. Every
// operation is wrapped in a sony/gobreaker circuit breaker: after five
// consecutive failed calls the breaker opens and further calls fail
// fast as BackendUnavailable until it half-opens again. A call that
// hangs without returning is not bounded by the breaker.
package dockerengine

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/sony/gobreaker"
)

// StreamTag identifies which output stream a Frame was read from,
// matching Docker's multiplexed attach format (and, in turn, §4.2's
// "frame carries a stream tag (1=stdout, 2=stderr)").
type StreamTag byte

const (
	StreamStdout StreamTag = StreamTag(stdcopy.Stdout)
	StreamStderr StreamTag = StreamTag(stdcopy.Stderr)
)

// Frame is one demultiplexed chunk of container output.
type Frame struct {
	Stream StreamTag
	Data   []byte
}

// ResourceLimits mirrors §6's executor configuration fields; a nil
// *ResourceLimits on ContainerSpec means "apply no limits", matching
// docker_always.py's container config (no HostConfig resource fields).
type ResourceLimits struct {
	MemoryBytes int64
	CPULimit    float64
	PidsLimit   int64
}

// ContainerSpec describes a container to create.
type ContainerSpec struct {
	Name             string
	Image            string
	Command          []string
	WorkingDirectory string
	VolumeName       string
	TTY              bool
	AttachStdin      bool
	OpenStdin        bool
	StdinOnce        bool
	NetworkDisabled  bool
	Limits           *ResourceLimits
}

// AttachedStream is a live duplex connection to a running container's
// stdin/stdout/stderr.
type AttachedStream interface {
	// ReadFrame blocks for the next demultiplexed frame. It returns
	// (nil, nil) on clean stream EOF.
	ReadFrame() (*Frame, error)
	WriteStdin(p []byte) error
	Close() error
}

// Engine is the opaque container-backend contract (§6).
type Engine interface {
	CreateVolume(ctx context.Context, name string) error
	RemoveVolume(ctx context.Context, name string) error
	CreateContainer(ctx context.Context, spec ContainerSpec) (id string, err error)
	RemoveContainer(ctx context.Context, idOrName string, force bool) error
	AttachContainer(ctx context.Context, id string, spec ContainerSpec) (AttachedStream, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string) error
	ResizeContainer(ctx context.Context, id string, rows, cols uint) error
	Version(ctx context.Context) (string, error)
}

// IsNotFound reports whether err represents a 404-equivalent from the
// engine, used by the §4.2 create-failure revert path and by tear-down
// to treat missing sub-resources as already-absent.
func IsNotFound(err error) bool {
	return errdefs.IsNotFound(err)
}

// ErrNotFound is a reusable not-found error satisfying IsNotFound, for
// use by Engine implementations (including test fakes) whose underlying
// client has no resource to complain about.
var ErrNotFound = errdefs.NotFound(errors.New("resource not found"))

type dockerEngine struct {
	cli     *client.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// New wraps an already-constructed docker client with a circuit
// breaker. Constructing the client itself (the liveness probe via
// Version) is done by backendctx.DockerContext.
func New(cli *client.Client) Engine {
	return &dockerEngine{
		cli: cli,
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "docker-engine",
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// guard runs op through the circuit breaker. An open breaker is
// reported back as a BackendUnavailable-flavored error (§7).
func (e *dockerEngine) guard(op func() error) error {
	_, err := e.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, op()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("backend unavailable: %w", err)
	}
	return err
}

func (e *dockerEngine) CreateVolume(ctx context.Context, name string) error {
	return e.guard(func() error {
		_, err := e.cli.VolumeCreate(ctx, volume.CreateOptions{Name: name})
		return err
	})
}

func (e *dockerEngine) RemoveVolume(ctx context.Context, name string) error {
	return e.guard(func() error {
		return e.cli.VolumeRemove(ctx, name, true)
	})
}

func toContainerConfig(spec ContainerSpec) (*container.Config, *container.HostConfig) {
	cfg := &container.Config{
		Image:       spec.Image,
		Cmd:         spec.Command,
		WorkingDir:  spec.WorkingDirectory,
		Tty:         spec.TTY,
		AttachStdin: spec.AttachStdin,
		OpenStdin:   spec.OpenStdin,
		StdinOnce:   spec.StdinOnce,
	}
	if cfg.WorkingDir == "" {
		cfg.WorkingDir = "/"
	}

	host := &container.HostConfig{
		NetworkDisabled: spec.NetworkDisabled,
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeVolume,
				Source: spec.VolumeName,
				Target: "/data",
			},
		},
	}
	if spec.Limits != nil {
		pids := spec.Limits.PidsLimit
		host.Resources = container.Resources{
			Memory:       spec.Limits.MemoryBytes,
			MemorySwap:   spec.Limits.MemoryBytes,
			KernelMemory: spec.Limits.MemoryBytes,
			CPUQuota:     int64(spec.Limits.CPULimit * 100_000),
			PidsLimit:    &pids,
		}
		host.CapDrop = append(host.CapDrop, "ALL")
	}
	return cfg, host
}

func (e *dockerEngine) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	cfg, host := toContainerConfig(spec)
	var id string
	err := e.guard(func() error {
		resp, err := e.cli.ContainerCreate(ctx, cfg, host, nil, nil, spec.Name)
		if err != nil {
			return err
		}
		id = resp.ID
		return nil
	})
	return id, err
}

func (e *dockerEngine) RemoveContainer(ctx context.Context, idOrName string, force bool) error {
	return e.guard(func() error {
		return e.cli.ContainerRemove(ctx, idOrName, container.RemoveOptions{Force: force})
	})
}

func (e *dockerEngine) StartContainer(ctx context.Context, id string) error {
	return e.guard(func() error {
		return e.cli.ContainerStart(ctx, id, container.StartOptions{})
	})
}

func (e *dockerEngine) StopContainer(ctx context.Context, id string) error {
	return e.guard(func() error {
		return e.cli.ContainerStop(ctx, id, container.StopOptions{})
	})
}

func (e *dockerEngine) ResizeContainer(ctx context.Context, id string, rows, cols uint) error {
	return e.guard(func() error {
		return e.cli.ContainerResize(ctx, id, container.ResizeOptions{Height: rows, Width: cols})
	})
}

func (e *dockerEngine) Version(ctx context.Context) (string, error) {
	var version string
	err := e.guard(func() error {
		v, err := e.cli.ServerVersion(ctx)
		if err != nil {
			return err
		}
		version = v.Version
		return nil
	})
	return version, err
}

func (e *dockerEngine) AttachContainer(ctx context.Context, id string, spec ContainerSpec) (AttachedStream, error) {
	var stream AttachedStream
	err := e.guard(func() error {
		resp, err := e.cli.ContainerAttach(ctx, id, container.AttachOptions{
			Stream: true,
			Stdin:  spec.AttachStdin,
			Stdout: true,
			Stderr: true,
			Logs:   true,
		})
		if err != nil {
			return err
		}
		stream = &attachedStream{conn: resp.Conn, writer: resp.Conn, reader: resp.Reader}
		return nil
	})
	return stream, err
}

// attachedStream demultiplexes Docker's framed stdout/stderr format: an
// 8-byte header (byte 0 = stream type, bytes 4-7 = big-endian payload
// length) followed by that many payload bytes, repeated until EOF. This
// reimplements the header parsing github.com/docker/docker/pkg/stdcopy
// documents, one frame at a time, since the spec needs a callback per
// frame rather than stdcopy.StdCopy's merged io.Writer sink.
type attachedStream struct {
	conn   io.Closer
	writer io.Writer
	reader *bufio.Reader
}

func (s *attachedStream) ReadFrame() (*Frame, error) {
	header := make([]byte, stdcopy.StdWriterPrefixLen)
	if _, err := io.ReadFull(s.reader, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, nil
		}
		return nil, err
	}

	streamType := StreamTag(header[0])
	size := binary.BigEndian.Uint32(header[4:stdcopy.StdWriterPrefixLen])
	payload := make([]byte, size)
	if _, err := io.ReadFull(s.reader, payload); err != nil {
		return nil, err
	}

	return &Frame{Stream: streamType, Data: payload}, nil
}

func (s *attachedStream) WriteStdin(p []byte) error {
	_, err := s.writer.Write(p)
	return err
}

func (s *attachedStream) Close() error {
	return s.conn.Close()
}
