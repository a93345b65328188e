package cmd

import (
	"go.uber.org/fx"

	"github.com/h3ndrk/roomhost/config"
	"github.com/h3ndrk/roomhost/internal/server"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
		),
		server.Module,
	)
}
