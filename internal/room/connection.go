package room

import (
	"context"
	"log/slog"
	"sync"

	"github.com/h3ndrk/roomhost/internal/dockerengine"
	"github.com/h3ndrk/roomhost/internal/shield"
)

// Registry is a Page's room table: a mapping from client-supplied room
// name to live Room (§3 "Page registry"). The one mutex here is the
// deliberate divergence from the original's cooperative-scheduling
// argument (§5): Python's single-threaded asyncio model makes
// create-or-get atomic for free between two awaits, but Go goroutines
// can be preempted anywhere, so the same atomicity is recovered with a
// real mutex instead.
type Registry struct {
	engine dockerengine.Engine
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry(engine dockerengine.Engine, cfg Config, logger *slog.Logger) *Registry {
	return &Registry{
		engine: engine,
		cfg:    cfg,
		logger: logger,
		rooms:  make(map[string]*Room),
	}
}

// Connection is the scoped, per-session binding of one duplex channel
// to a Room (§4.3 RoomConnection): Connect drives the attach and the
// possible instantiate, Close drives the detach and the possible
// tear-down. Grounded on room_connection.py.
type Connection struct {
	registry *Registry
	roomName string
	session  Session
	room     *Room
}

// Connect attaches session to the (possibly newly created) room named
// roomName, instantiating it if this is the first attach. On failure
// the attach is unwound (shielded) before the error is returned.
func (reg *Registry) Connect(ctx context.Context, roomName string, session Session) (*Connection, error) {
	reg.mu.Lock()
	r, ok := reg.rooms[roomName]
	if !ok {
		reg.logger.Debug("creating room", "room", roomName)
		var err error
		r, err = New(reg.engine, reg.cfg, roomName, reg.logger)
		if err != nil {
			reg.mu.Unlock()
			return nil, err
		}
		reg.rooms[roomName] = r
	} else {
		reg.logger.Debug("using existing room", "room", roomName)
	}
	r.Attach(session)
	reg.mu.Unlock()

	conn := &Connection{registry: reg, roomName: roomName, session: session, room: r}

	if err := r.Update(ctx); err != nil {
		if cerr := shield.Run(ctx, func(sctx context.Context) error {
			return conn.detach(sctx)
		}); cerr != nil {
			reg.logger.Debug("unwinding failed attach observed cancellation", "room", roomName, "error", cerr)
		}
		return nil, err
	}

	return conn, nil
}

// Room returns the room this connection is attached to.
func (c *Connection) Room() *Room {
	return c.room
}

// Close detaches the session and tears the room down if this was the
// last attach. Runs shielded: a cancellation racing the tear-down is
// observed by the caller only after cleanup finishes (§4.3, §4.7).
func (c *Connection) Close(ctx context.Context) error {
	return shield.Run(ctx, func(sctx context.Context) error {
		return c.detach(sctx)
	})
}

func (c *Connection) detach(ctx context.Context) error {
	c.room.Detach(c.session)
	err := c.room.Update(ctx)

	c.registry.mu.Lock()
	if cur, ok := c.registry.rooms[c.roomName]; ok && cur == c.room && c.room.IsEmpty() {
		c.registry.logger.Debug("deleting room", "room", c.roomName)
		delete(c.registry.rooms, c.roomName)
	}
	c.registry.mu.Unlock()

	return err
}
