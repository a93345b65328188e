package room

import (
	"fmt"
	"log/slog"

	"github.com/h3ndrk/roomhost/internal/dockerengine"
)

// Factory builds a Room for a given configuration (§9 "variants over
// inheritance"). Only "docker" is registered; the indirection exists so
// a future backend can add a variant without touching RoomConnection.
type Factory func(engine dockerengine.Engine, cfg Config, name string, logger *slog.Logger) *Room

var factories = map[string]Factory{
	"docker": func(engine dockerengine.Engine, cfg Config, name string, logger *slog.Logger) *Room {
		return newRoom(engine, cfg, name, logger)
	},
}

// New builds the Room variant named by cfg.Type.
func New(engine dockerengine.Engine, cfg Config, name string, logger *slog.Logger) (*Room, error) {
	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("room: unknown type %q", cfg.Type)
	}
	return factory(engine, cfg, name, logger), nil
}
