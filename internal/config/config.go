// Package config provides configuration loading for specula.
//
// Values come from hardcoded defaults, an optional YAML file and SPECULA_*
// environment variables, in increasing order of precedence. Command line
// flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fyrsmithlabs/specula/internal/generation"
	"github.com/fyrsmithlabs/specula/internal/storage"
)

// Config holds the complete specula configuration.
type Config struct {
	State         StateConfig         `koanf:"state"`
	Storage       StorageConfig       `koanf:"storage"`
	LLM           LLMConfig           `koanf:"llm"`
	Server        ServerConfig        `koanf:"server"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// StateConfig locates the project state file.
type StateConfig struct {
	File string `koanf:"file"`
}

// StorageConfig selects the persistent store.
type StorageConfig struct {
	// Driver is none, postgres or badger. Empty picks postgres when a
	// database URL is set.
	Driver           string `koanf:"driver"`
	DatabaseURL      Secret `koanf:"database_url"`
	BadgerPath       string `koanf:"badger_path"`
	BadgerSyncWrites bool   `koanf:"badger_sync_writes"`
}

// LLMConfig configures the optional assistant text backend. An empty
// provider disables it.
type LLMConfig struct {
	Provider       string   `koanf:"provider"`
	Model          string   `koanf:"model"`
	APIKeyEnv      string   `koanf:"api_key_env"`
	BaseURL        string   `koanf:"base_url"`
	BasePromptFile string   `koanf:"base_prompt_file"`
	Timeout        Duration `koanf:"timeout"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds the logger level and encoding.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	ServiceName     string  `koanf:"service_name"`
	Endpoint        string  `koanf:"otlp_endpoint"`
	Protocol        string  `koanf:"otlp_protocol"`
	Insecure        bool    `koanf:"otlp_insecure"`
	TLSSkipVerify   bool    `koanf:"otlp_tls_skip_verify"`
	SamplingRate    float64 `koanf:"sampling_rate"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.State.File == "" {
		cfg.State.File = ".specula_state.json"
	}

	if cfg.Storage.BadgerPath == "" {
		cfg.Storage.BadgerPath = ".specula_badger"
	}

	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = Duration(30 * time.Second)
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8088
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "specula"
	}
	if cfg.Observability.Endpoint == "" {
		cfg.Observability.Endpoint = "localhost:4317"
	}
	if cfg.Observability.Protocol == "" {
		cfg.Observability.Protocol = "grpc"
	}
	if cfg.Observability.SamplingRate == 0 {
		cfg.Observability.SamplingRate = 1.0
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.State.File == "" {
		return errors.New("state file is required")
	}

	switch strings.ToLower(c.Storage.Driver) {
	case "", storage.DriverNone, storage.DriverPostgres, storage.DriverBadger:
	default:
		return fmt.Errorf("invalid storage driver: %q (must be none, postgres or badger)", c.Storage.Driver)
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "", generation.ProviderOpenAI, generation.ProviderAnthropic:
	default:
		return fmt.Errorf("invalid llm provider: %q (must be openai or anthropic)", c.LLM.Provider)
	}
	if c.LLM.BaseURL != "" {
		if err := validateHTTPURL(c.LLM.BaseURL); err != nil {
			return fmt.Errorf("invalid llm base_url: %w", err)
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Observability.EnableTelemetry {
		if c.Observability.ServiceName == "" {
			return errors.New("service name required when telemetry is enabled")
		}
		switch c.Observability.Protocol {
		case "grpc", "http/protobuf":
		default:
			return fmt.Errorf("otlp protocol must be 'grpc' or 'http/protobuf', got %q", c.Observability.Protocol)
		}
	}
	if c.Observability.SamplingRate < 0 || c.Observability.SamplingRate > 1 {
		return fmt.Errorf("sampling rate must be between 0 and 1, got %v", c.Observability.SamplingRate)
	}

	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

// StorageOptions converts the storage section for storage.Open.
func (c *Config) StorageOptions() storage.Config {
	return storage.Config{
		Driver:      c.Storage.Driver,
		DatabaseURL: c.Storage.DatabaseURL.Value(),
		Badger: storage.BadgerConfig{
			Path:       c.Storage.BadgerPath,
			SyncWrites: c.Storage.BadgerSyncWrites,
		},
	}
}

// GenerationOptions converts the llm section for generation.NewBackend.
func (c *Config) GenerationOptions() generation.Config {
	return generation.Config{
		Provider:       c.LLM.Provider,
		Model:          c.LLM.Model,
		APIKeyEnv:      c.LLM.APIKeyEnv,
		BaseURL:        c.LLM.BaseURL,
		BasePromptFile: c.LLM.BasePromptFile,
		Timeout:        c.LLM.Timeout.Duration(),
	}
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
