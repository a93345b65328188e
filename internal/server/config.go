package server

import (
	"net"

	"github.com/h3ndrk/roomhost/config"
	"github.com/h3ndrk/roomhost/internal/executor"
)

func toExecutorConfigs(in map[string]config.ExecutorConfig) map[string]executor.Config {
	out := make(map[string]executor.Config, len(in))
	for name, e := range in {
		out[name] = executor.Config{
			Type:                 e.Type,
			Image:                e.Image,
			Command:              e.Command,
			WorkingDirectory:     e.WorkingDirectory,
			EnableTTY:            e.EnableTTY,
			MemoryLimitBytes:     e.MemoryLimitBytes,
			CPULimit:             e.CPULimit,
			PidsLimit:            e.PidsLimit,
			HandleMessageTimeout: e.HandleMessageTimeoutOrDefault(),
			TearDownTimeout:      e.TearDownTimeoutOrDefault(),
			LoggerName:           e.LoggerName,
		}
	}
	return out
}

func newListener(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}
