// Package dockerenginetest provides a fake dockerengine.Engine for unit
// tests of the executor and room packages, which must not talk to a
// real container engine.
package dockerenginetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/h3ndrk/roomhost/internal/dockerengine"
)

// Fake is an in-memory dockerengine.Engine that records calls and lets
// tests script failures.
type Fake struct {
	mu sync.Mutex

	Volumes    map[string]bool
	Containers map[string]dockerengine.ContainerSpec
	Calls      []string

	// Hooks let tests inject failures for specific operations, keyed by
	// the name/id passed in. A nil hook means "succeed".
	CreateContainerErr map[string]error
	CreateVolumeErr    map[string]error

	attachedStreams map[string]*FakeStream
}

func New() *Fake {
	return &Fake{
		Volumes:            make(map[string]bool),
		Containers:         make(map[string]dockerengine.ContainerSpec),
		CreateContainerErr: make(map[string]error),
		CreateVolumeErr:    make(map[string]error),
		attachedStreams:    make(map[string]*FakeStream),
	}
}

func (f *Fake) record(call string) {
	f.Calls = append(f.Calls, call)
}

func (f *Fake) CreateVolume(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateVolume:" + name)
	if err := f.CreateVolumeErr[name]; err != nil {
		return err
	}
	f.Volumes[name] = true
	return nil
}

func (f *Fake) RemoveVolume(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RemoveVolume:" + name)
	if !f.Volumes[name] {
		return dockerengine.ErrNotFound
	}
	delete(f.Volumes, name)
	return nil
}

func (f *Fake) CreateContainer(ctx context.Context, spec dockerengine.ContainerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateContainer:" + spec.Name)
	if err := f.CreateContainerErr[spec.Name]; err != nil {
		return "", err
	}
	f.Containers[spec.Name] = spec
	return spec.Name, nil
}

func (f *Fake) RemoveContainer(ctx context.Context, idOrName string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RemoveContainer:" + idOrName)
	if _, ok := f.Containers[idOrName]; !ok {
		return dockerengine.ErrNotFound
	}
	delete(f.Containers, idOrName)
	return nil
}

func (f *Fake) StartContainer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("StartContainer:" + id)
	if _, ok := f.Containers[id]; !ok {
		return fmt.Errorf("no such container: %s", id)
	}
	return nil
}

func (f *Fake) StopContainer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("StopContainer:" + id)
	return nil
}

func (f *Fake) ResizeContainer(ctx context.Context, id string, rows, cols uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("ResizeContainer:%s:%dx%d", id, rows, cols))
	if s, ok := f.attachedStreams[id]; ok {
		s.Resizes = append(s.Resizes, [2]uint{rows, cols})
	}
	return nil
}

func (f *Fake) Version(ctx context.Context) (string, error) {
	return "fake/1.0", nil
}

func (f *Fake) AttachContainer(ctx context.Context, id string, spec dockerengine.ContainerSpec) (dockerengine.AttachedStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AttachContainer:" + id)
	s := NewFakeStream()
	f.attachedStreams[id] = s
	return s, nil
}

// Stream returns the AttachedStream most recently handed out by
// AttachContainer for id, or nil if AttachContainer hasn't been called
// for it yet.
func (f *Fake) Stream(id string) *FakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attachedStreams[id]
}

// FakeStream is a controllable AttachedStream: tests push Frames in,
// read back what was written to stdin.
type FakeStream struct {
	mu      sync.Mutex
	frames  chan *dockerengine.Frame
	closed  bool
	Written [][]byte
	Resizes [][2]uint
}

func NewFakeStream() *FakeStream {
	return &FakeStream{frames: make(chan *dockerengine.Frame, 64)}
}

// PushOutput enqueues a frame to be returned by the next ReadFrame.
func (s *FakeStream) PushOutput(tag dockerengine.StreamTag, data []byte) {
	s.frames <- &dockerengine.Frame{Stream: tag, Data: data}
}

// PushEOF causes the next ReadFrame to return (nil, nil).
func (s *FakeStream) PushEOF() {
	s.frames <- nil
}

func (s *FakeStream) ReadFrame() (*dockerengine.Frame, error) {
	f, ok := <-s.frames
	if !ok {
		return nil, nil
	}
	return f, nil
}

func (s *FakeStream) WriteStdin(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]byte(nil), p...)
	s.Written = append(s.Written, cp)
	return nil
}

func (s *FakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	return nil
}
