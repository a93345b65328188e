package room

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/h3ndrk/roomhost/internal/dockerengine"
	"github.com/h3ndrk/roomhost/internal/dockerengine/dockerenginetest"
	"github.com/h3ndrk/roomhost/internal/executor"
	"github.com/h3ndrk/roomhost/internal/wire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSession records every message sent to it and can be scripted to
// fail or hang.
type fakeSession struct {
	mu       sync.Mutex
	received []wire.Outbound
	sendErr  error
	block    chan struct{}
}

func newFakeSession() *fakeSession { return &fakeSession{} }

func (s *fakeSession) Send(ctx context.Context, message wire.Outbound) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.sendErr != nil {
		return s.sendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, message)
	return nil
}

func (s *fakeSession) snapshot() []wire.Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wire.Outbound, len(s.received))
	copy(out, s.received)
	return out
}

func prologueOnlyConfig() Config {
	return Config{
		Type: "docker",
		Executors: map[string]executor.Config{
			"setup": {Type: "docker.prologue", Image: "setup:latest"},
		},
	}
}

func TestUpdateInstantiatesOnFirstAttachAndTearsDownOnLastDetach(t *testing.T) {
	engine := dockerenginetest.New()
	r, err := New(engine, prologueOnlyConfig(), "room-1", testLogger())
	if err != nil {
		t.Fatalf("New() = %v, want nil", err)
	}

	session := newFakeSession()
	r.Attach(session)

	errCh := make(chan error, 1)
	go func() { errCh <- r.Update(context.Background()) }()

	name := dockerengine.ContainerName("room-1", "setup")
	stream := waitForStreamRoom(t, engine, name)
	stream.PushEOF()

	if err := <-errCh; err != nil {
		t.Fatalf("Update() = %v, want nil", err)
	}
	if !engine.Volumes[dockerengine.VolumeName("room-1")] {
		t.Error("volume was not created on instantiate")
	}

	r.Detach(session)
	if err := r.Update(context.Background()); err != nil {
		t.Fatalf("Update() = %v, want nil", err)
	}
	if engine.Volumes[dockerengine.VolumeName("room-1")] {
		t.Error("volume was not deleted on tear down")
	}
}

func TestUpdateIsIdempotentWhenNoTransitionIsNeeded(t *testing.T) {
	engine := dockerenginetest.New()
	r, _ := New(engine, Config{Type: "docker", Executors: map[string]executor.Config{}}, "room-2", testLogger())

	if err := r.Update(context.Background()); err != nil {
		t.Fatalf("Update() on empty room = %v, want nil", err)
	}
	if len(engine.Calls) != 0 {
		t.Errorf("Update() on an already-empty room made engine calls %v, want none", engine.Calls)
	}
}

func TestUpdateLeavesRoomUninstantiatedWhenVolumeCreationFails(t *testing.T) {
	engine := dockerenginetest.New()
	engine.CreateVolumeErr[dockerengine.VolumeName("room-3")] = errors.New("volume backend unavailable")

	r, _ := New(engine, prologueOnlyConfig(), "room-3", testLogger())
	r.Attach(newFakeSession())

	if err := r.Update(context.Background()); err == nil {
		t.Fatal("Update() = nil, want the volume-creation error")
	}
	if r.isInstantiated {
		t.Error("room reports itself instantiated after a failed instantiate")
	}
}

func TestBroadcastFansOutToEveryAttachedSession(t *testing.T) {
	engine := dockerenginetest.New()
	r, _ := New(engine, Config{Type: "docker", Executors: map[string]executor.Config{}}, "room-4", testLogger())

	a, b := newFakeSession(), newFakeSession()
	r.Attach(a)
	r.Attach(b)

	r.broadcast(context.Background(), "setup", wire.NewStarted())

	for _, s := range []*fakeSession{a, b} {
		msgs := s.snapshot()
		if len(msgs) != 1 || msgs[0].Executor != "setup" {
			t.Errorf("session received %#v, want one message from executor %q", msgs, "setup")
		}
	}
}

func TestBroadcastDropsSlowRecipientWithoutBlockingOthers(t *testing.T) {
	engine := dockerenginetest.New()
	r, _ := New(engine, Config{Type: "docker", Executors: map[string]executor.Config{}}, "room-5", testLogger())

	slow := newFakeSession()
	slow.block = make(chan struct{}) // never closed: Send always times out
	fast := newFakeSession()

	r.Attach(slow)
	r.Attach(fast)

	// A parent deadline earlier than the package's per-recipient send
	// timeout still bounds each Send call (context.WithTimeout keeps the
	// earliest of the two deadlines), so this test doesn't have to wait
	// out the full send timeout to see the slow recipient dropped.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r.broadcast(ctx, "setup", wire.NewStarted())

	if len(fast.snapshot()) != 1 {
		t.Errorf("fast recipient got %d messages, want 1", len(fast.snapshot()))
	}
	if len(slow.snapshot()) != 0 {
		t.Errorf("slow recipient got %d messages, want 0 (dropped)", len(slow.snapshot()))
	}
}

func TestHandleMessageRoutesToNamedExecutorAndRejectsUnknown(t *testing.T) {
	engine := dockerenginetest.New()
	r, _ := New(engine, prologueOnlyConfig(), "room-6", testLogger())

	if err := r.HandleMessage(context.Background(), wire.Inbound{Executor: "missing"}); err == nil {
		t.Fatal("HandleMessage() with an unknown executor = nil, want an error")
	}
	// "setup" is a prologue executor; its HandleMessage is a no-op, so
	// routing to it successfully should return nil.
	if err := r.HandleMessage(context.Background(), wire.Inbound{Executor: "setup"}); err != nil {
		t.Errorf("HandleMessage() = %v, want nil", err)
	}
}

func waitForStreamRoom(t *testing.T, engine *dockerenginetest.Fake, id string) *dockerenginetest.FakeStream {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := engine.Stream(id); s != nil {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("no stream attached for %q within deadline", id)
	return nil
}
