package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() = %v, want nil", err)
	}
	return path
}

func TestLoadParsesAMinimalValidConfig(t *testing.T) {
	path := writeConfig(t, `{
		"context": {"type": "docker"},
		"pages": {
			"/terminal": {
				"type": "docker",
				"executors": {
					"shell": {"type": "docker.always", "image": "alpine:latest"}
				}
			}
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if cfg.Host != "0.0.0.0" || cfg.Port != 8080 || cfg.LoggingLevel != "info" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	page, ok := cfg.Pages["/terminal"]
	if !ok {
		t.Fatal(`Pages["/terminal"] missing`)
	}
	if page.Executors["shell"].Image != "alpine:latest" {
		t.Errorf("executor image = %q, want alpine:latest", page.Executors["shell"].Image)
	}
}

func TestLoadRejectsMissingContextType(t *testing.T) {
	path := writeConfig(t, `{"pages": {"/p": {"type": "docker"}}}`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load() = nil, want an error for a missing context.type")
	}
}

func TestLoadRejectsNoPages(t *testing.T) {
	path := writeConfig(t, `{"context": {"type": "docker"}}`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load() = nil, want an error for zero pages")
	}
}

func TestLoadRejectsUnknownExecutorType(t *testing.T) {
	path := writeConfig(t, `{
		"context": {"type": "docker"},
		"pages": {
			"/p": {
				"type": "docker",
				"executors": {"bad": {"type": "docker.nonexistent"}}
			}
		}
	}`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load() = nil, want an error for an unknown executor type")
	}
}

func TestExecutorConfigTimeoutDefaults(t *testing.T) {
	var e ExecutorConfig
	if got := e.HandleMessageTimeoutOrDefault(); got != 10*time.Second {
		t.Errorf("HandleMessageTimeoutOrDefault() = %v, want 10s", got)
	}
	if got := e.TearDownTimeoutOrDefault(); got != 10*time.Second {
		t.Errorf("TearDownTimeoutOrDefault() = %v, want 10s", got)
	}

	e.HandleMessageTimeout = 5
	e.TearDownTimeout = 30
	if got := e.HandleMessageTimeoutOrDefault(); got != 5*time.Second {
		t.Errorf("HandleMessageTimeoutOrDefault() = %v, want 5s", got)
	}
	if got := e.TearDownTimeoutOrDefault(); got != 30*time.Second {
		t.Errorf("TearDownTimeoutOrDefault() = %v, want 30s", got)
	}
}
