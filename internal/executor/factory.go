package executor

import (
	"fmt"
	"log/slog"

	"github.com/h3ndrk/roomhost/internal/dockerengine"
)

// New builds the Executor variant named by cfg.Type (§9 "variants over
// inheritance" — a closed set of container-backed behaviors keyed by
// configuration string rather than a class hierarchy callers must know
// about).
func New(engine dockerengine.Engine, cfg Config, roomName, name string, send Sender, logger *slog.Logger) (Executor, error) {
	b := newBase(engine, cfg, roomName, name, send, logger)

	switch cfg.Type {
	case "docker.once":
		return &Once{base: b}, nil
	case "docker.prologue":
		return &Prologue{base: b}, nil
	case "docker.epilogue":
		return &Epilogue{base: b}, nil
	case "docker.always":
		return &Always{base: b}, nil
	default:
		return nil, fmt.Errorf("executor: unknown type %q", cfg.Type)
	}
}
