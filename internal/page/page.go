// Package page implements the per-URL-prefix room registry and the
// WebSocket upgrade handler that demultiplexes session traffic into
// room updates (§4.4).
package page

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/h3ndrk/roomhost/internal/dockerengine"
	"github.com/h3ndrk/roomhost/internal/room"
	"github.com/h3ndrk/roomhost/internal/wire"
)

// heartbeatInterval matches §6's "10 s heartbeat" on the WebSocket
// upgrade.
const heartbeatInterval = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Page is a URL-prefixed collection of rooms sharing one executor
// configuration schema (§4.4). Grounded on page.py.
type Page struct {
	prefix   string
	registry *room.Registry
	logger   *slog.Logger
}

// New builds a Page and mounts its routes onto router under prefix.
func New(router chi.Router, engine dockerengine.Engine, prefix string, cfg room.Config, logger *slog.Logger) *Page {
	p := &Page{
		prefix:   prefix,
		registry: room.NewRegistry(engine, cfg, logger.With("page", prefix)),
		logger:   logger.With("page", prefix),
	}

	router.Get(prefix+"/ws", p.handleWebSocket)
	return p
}

func (p *Page) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomName := r.URL.Query().Get("roomName")
	if roomName == "" {
		http.Error(w, "missing roomName", http.StatusBadRequest)
		return
	}
	p.logger.Debug("extracted room name", "room", roomName)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * heartbeatInterval))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(2 * heartbeatInterval))
		return nil
	})

	session := newWSSession(conn, p.logger)
	defer session.stopHeartbeat()

	p.logger.Info("got websocket", "remote", r.RemoteAddr)

	ctx := r.Context()
	rc, err := p.registry.Connect(ctx, roomName, session)
	if err != nil {
		p.logger.Error("failed to attach to room", "room", roomName, "error", err)
		return
	}
	defer rc.Close(context.Background())

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			p.logger.Warn("unexpected non-text frame, closing", "type", msgType)
			return
		}

		var inbound wire.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			p.logger.Warn("malformed inbound message", "error", err)
			return
		}
		p.logger.Debug("received message", "executor", inbound.Executor)

		if err := rc.Room().HandleMessage(ctx, inbound); err != nil {
			p.logger.Warn("message handling failed, closing", "room", roomName, "error", err)
			return
		}
	}
}

// wsSession is the room.Session adapter around one upgraded
// connection. gorilla/websocket forbids concurrent writers, so all
// writes (including ping control frames) go through writeMu.
type wsSession struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
	stop    chan struct{}
	stopOne sync.Once
}

func newWSSession(conn *websocket.Conn, logger *slog.Logger) *wsSession {
	s := &wsSession{conn: conn, logger: logger, stop: make(chan struct{})}
	go s.heartbeat()
	return s
}

func (s *wsSession) heartbeat() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(heartbeatInterval))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-s.stop:
			return
		}
	}
}

func (s *wsSession) stopHeartbeat() {
	s.stopOne.Do(func() { close(s.stop) })
}

func (s *wsSession) Send(ctx context.Context, message wire.Outbound) error {
	encoded, err := json.Marshal(message)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		done <- s.conn.WriteMessage(websocket.TextMessage, encoded)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
