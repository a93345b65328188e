package page

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/h3ndrk/roomhost/internal/dockerengine"
	"github.com/h3ndrk/roomhost/internal/dockerengine/dockerenginetest"
	"github.com/h3ndrk/roomhost/internal/room"
	"github.com/h3ndrk/roomhost/internal/wire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg room.Config) (*httptest.Server, *dockerenginetest.Fake) {
	t.Helper()
	engine := dockerenginetest.New()
	router := chi.NewRouter()
	New(router, engine, "/room", cfg, testLogger())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, engine
}

func dialWS(t *testing.T, srv *httptest.Server, roomName string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/room/ws?roomName=" + roomName
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%s) = %v, want nil", url, err)
	}
	return conn
}

func TestWebSocketUpgradeRequiresRoomName(t *testing.T) {
	srv, _ := newTestServer(t, room.Config{Type: "docker"})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/room/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial() without roomName = nil error, want a failure")
	}
	if resp == nil || resp.StatusCode != 400 {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Errorf("status = %d, want 400", status)
	}
}

func TestConnectInstantiatesRoomAndDisconnectTearsItDown(t *testing.T) {
	srv, engine := newTestServer(t, room.Config{Type: "docker"})

	conn := dialWS(t, srv, "my-room")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !engine.Volumes[dockerengine.VolumeName("my-room")] {
		time.Sleep(time.Millisecond)
	}
	if !engine.Volumes[dockerengine.VolumeName("my-room")] {
		t.Fatal("volume was never created after connecting")
	}

	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && engine.Volumes[dockerengine.VolumeName("my-room")] {
		time.Sleep(time.Millisecond)
	}
	if engine.Volumes[dockerengine.VolumeName("my-room")] {
		t.Error("volume was not deleted after the session disconnected")
	}
}

func TestHandleMessageErrorClosesConnection(t *testing.T) {
	srv, _ := newTestServer(t, room.Config{Type: "docker"})
	conn := dialWS(t, srv, "another-room")
	defer conn.Close()

	raw, _ := json.Marshal(wire.Inbound{Executor: "does-not-exist"})
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("WriteMessage() = %v, want nil", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("ReadMessage() after routing to an unknown executor = nil, want a close error")
	}
}
