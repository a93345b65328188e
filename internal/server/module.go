package server

import (
	"context"

	"go.uber.org/fx"
)

// Module wires Server into the application's fx.Lifecycle: OnStart
// acquires the Context and starts listening, OnStop shuts the listener
// down and releases the Context (§4.5).
var Module = fx.Module("server",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return s.Start(ctx)
			},
			OnStop: func(ctx context.Context) error {
				return s.Stop(ctx)
			},
		})
	}),
)
