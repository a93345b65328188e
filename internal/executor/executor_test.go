package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/h3ndrk/roomhost/internal/dockerengine/dockerenginetest"
)

var errBoom = errors.New("boom")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSender collects every message sent through it, for assertions.
type recordingSender struct {
	mu       sync.Mutex
	messages []any
}

func (s *recordingSender) Sender() Sender {
	return func(ctx context.Context, message any) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.messages = append(s.messages, message)
		return nil
	}
}

func (s *recordingSender) snapshot() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, len(s.messages))
	copy(out, s.messages)
	return out
}

func newTestBase(engine *dockerenginetest.Fake, cfg Config, send Sender) base {
	if cfg.Type == "" {
		cfg.Type = "docker.once"
	}
	return newBase(engine, cfg, "room-1", "exec-1", send, testLogger())
}

// waitForStream polls until the fake engine has attached a stream for
// id, failing the test if that doesn't happen within a short deadline.
func waitForStream(t *testing.T, engine *dockerenginetest.Fake, id string) *dockerenginetest.FakeStream {
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
