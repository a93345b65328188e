package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/h3ndrk/roomhost/config"
)

const ServiceName = "roomhost"

func Run() error {
	app := &cli.App{
		Name:  ServiceName,
		Usage: "Hosts interactive, sandboxed computing rooms behind widget-rich web pages",
		Commands: []*cli.Command{
			serverCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the room-host server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config_file",
				Usage:    "Path to the configuration file",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config_file"))
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("shutting down...")
			return app.Stop(context.Background())
		},
	}
}
