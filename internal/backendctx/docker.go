package backendctx

import (
	"context"
	"log/slog"

	"github.com/docker/docker/client"

	"github.com/h3ndrk/roomhost/internal/dockerengine"
)

func init() {
	Register("docker", NewDockerContext)
}

// DockerContext is the "docker" Context variant (§4.6), grounded on
// docker_context.py: it opens a client against the configured Docker
// host (empty URL meaning "use the environment default"), probes
// Version as a liveness check, and logs it at debug level the way the
// original logs `await self.docker.version()`.
type DockerContext struct {
	cfg    Config
	logger *slog.Logger

	cli    *client.Client
	Engine dockerengine.Engine
}

func NewDockerContext(cfg Config) (Context, error) {
	return &DockerContext{
		cfg:    cfg,
		logger: slog.Default().With("logger", cfg.LoggerName),
	}, nil
}

func (c *DockerContext) Acquire(ctx context.Context) error {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if c.cfg.URL != "" {
		opts = append(opts, client.WithHost(c.cfg.URL))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return err
	}

	version, err := cli.ServerVersion(ctx)
	if err != nil {
		cli.Close()
		return err
	}
	c.logger.Debug("docker engine version", "version", version.Version, "api_version", version.APIVersion)

	c.cli = cli
	c.Engine = dockerengine.New(cli)
	return nil
}

func (c *DockerContext) Release(ctx context.Context) error {
	if c.cli == nil {
		return nil
	}
	return c.cli.Close()
}
