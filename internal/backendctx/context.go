// Package backendctx implements the room-host's top-level "Context" (§4.6):
// the object that owns a live connection to a backend engine for the
// lifetime of the server and is acquired once at boot, released once at
// shutdown.
package backendctx

import (
	"context"
	"fmt"
)

// Context is a live handle to a backend engine. Acquire opens the
// underlying connection (and, per §4.6, performs a liveness probe);
// Release tears it down. A Context is created once per "context"
// configuration block and shared by every Page/Room that references it.
type Context interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// Config is the configuration block backing a Context (§6 "context"
// schema): Type selects the variant, the remaining fields are
// variant-specific.
type Config struct {
	Type       string `mapstructure:"type"`
	URL        string `mapstructure:"url"`
	LoggerName string `mapstructure:"logger_name"`
}

// Factory builds a Context from its configuration. Variants register
// themselves by type name, mirroring the executor and room factories
// (§9 "Variants over inheritance").
type Factory func(cfg Config) (Context, error)

var factories = map[string]Factory{}

// Register adds a Context variant under the given configuration type
// name. Called from variant packages' init().
func Register(typ string, factory Factory) {
	factories[typ] = factory
}

// New builds the Context variant named by cfg.Type.
func New(cfg Config) (Context, error) {
	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("backendctx: unknown context type %q", cfg.Type)
	}
	return factory(cfg)
}
