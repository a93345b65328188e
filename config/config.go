// Package config loads the room-host's boot-time configuration (§4.5,
// §6): host/port, logging, one Context block, and a map of Pages each
// carrying its own room and executor configuration. Grounded on the
// teacher's config.LoadConfig entry point (referenced by cmd/cmd.go but
// not itself present in the retrieved snapshot), rebuilt here with
// spf13/viper the way the rest of the pack's services load JSON
// configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ExecutorConfig is one entry of a page's "executors" map (§6).
type ExecutorConfig struct {
	Type                 string   `mapstructure:"type"`
	Image                string   `mapstructure:"image"`
	Command              []string `mapstructure:"command"`
	WorkingDirectory     string   `mapstructure:"working_directory"`
	EnableTTY            bool     `mapstructure:"enable_tty"`
	MemoryLimitBytes     int64    `mapstructure:"memory_limit_bytes"`
	CPULimit             float64  `mapstructure:"cpu_limit"`
	PidsLimit            int64    `mapstructure:"pids_limit"`
	HandleMessageTimeout int      `mapstructure:"handle_message_timeout"`
	TearDownTimeout      int      `mapstructure:"tear_down_timeout"`
	LoggerName           string   `mapstructure:"logger_name"`
}

// PageConfig is one entry of the top-level "pages" map (§6).
type PageConfig struct {
	Type                     string                    `mapstructure:"type"`
	LoggerNamePage           string                    `mapstructure:"logger_name_page"`
	LoggerNameRoom           string                    `mapstructure:"logger_name_room"`
	LoggerNameRoomConnection string                    `mapstructure:"logger_name_room_connection"`
	Executors                map[string]ExecutorConfig `mapstructure:"executors"`
}

// ContextConfig backs backendctx.Config (§4.6).
type ContextConfig struct {
	Type       string `mapstructure:"type"`
	URL        string `mapstructure:"url"`
	LoggerName string `mapstructure:"logger_name"`
}

// Config is the root configuration document (§6).
type Config struct {
	Host         string                `mapstructure:"host"`
	Port         int                   `mapstructure:"port"`
	LoggingLevel string                `mapstructure:"logging_level"`
	LoggerName   string                `mapstructure:"logger_name"`
	Context      ContextConfig         `mapstructure:"context"`
	Pages        map[string]PageConfig `mapstructure:"pages"`
}

// HandleMessageTimeoutOrDefault returns the configured timeout, falling
// back to the 10s default §4.2 specifies for always executors.
func (e ExecutorConfig) HandleMessageTimeoutOrDefault() time.Duration {
	if e.HandleMessageTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(e.HandleMessageTimeout) * time.Second
}

// TearDownTimeoutOrDefault returns the configured timeout, falling back
// to the 10s default §5 specifies for supervisor shutdown.
func (e ExecutorConfig) TearDownTimeoutOrDefault() time.Duration {
	if e.TearDownTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(e.TearDownTimeout) * time.Second
}

// Load reads the configuration file named by path (JSON) and validates
// the minimal set of fields required to boot (§7 ConfigInvalid is
// fatal).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("logging_level", "info")
	v.SetDefault("logger_name", "Server")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Context.Type == "" {
		return fmt.Errorf("context.type is required")
	}
	if len(c.Pages) == 0 {
		return fmt.Errorf("at least one page is required")
	}
	for url, page := range c.Pages {
		if page.Type == "" {
			return fmt.Errorf("page %q: type is required", url)
		}
		for name, ex := range page.Executors {
			switch ex.Type {
			case "docker.once", "docker.prologue", "docker.epilogue", "docker.always":
			default:
				return fmt.Errorf("page %q executor %q: unknown type %q", url, name, ex.Type)
			}
		}
	}
	return nil
}
