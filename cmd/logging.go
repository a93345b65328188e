package cmd

import (
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/h3ndrk/roomhost/config"
)

// ProvideLogger builds the application-wide *slog.Logger (§4 ambient
// logging). Records are fanned out to stderr as text (for local/CLI
// use) and bridged into the OTel log pipeline via otelslog, and an SDK
// tracer provider is installed as the global one for the spans the
// room/executor packages emit around instantiate/tear-down/run-once.
// No span processor or exporter is registered on it, so those spans are
// not exported anywhere.
func ProvideLogger(cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.LoggingLevel)

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	otelHandler := otelslog.NewHandler(cfg.LoggerName)

	logger := slog.New(fanOutHandler{handlers: []slog.Handler{textHandler, otelHandler}})
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
