package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ".specula_state.json", cfg.State.File)
	assert.Empty(t, cfg.Storage.Driver)
	assert.Empty(t, cfg.LLM.Provider)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout.Duration())
	assert.Equal(t, "127.0.0.1:8088", cfg.Server.Addr())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Observability.EnableTelemetry)
	assert.Equal(t, "grpc", cfg.Observability.Protocol)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty state file", func(c *Config) { c.State.File = "" }, "state file is required"},
		{"bad driver", func(c *Config) { c.Storage.Driver = "mysql" }, "invalid storage driver"},
		{"bad provider", func(c *Config) { c.LLM.Provider = "cohere" }, "invalid llm provider"},
		{"javascript base url", func(c *Config) { c.LLM.BaseURL = "javascript:alert(1)" }, "invalid llm base_url"},
		{"file base url", func(c *Config) { c.LLM.BaseURL = "file:///etc/passwd" }, "invalid llm base_url"},
		{"port too high", func(c *Config) { c.Server.Port = 99999 }, "invalid server port"},
		{"zero shutdown", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "shutdown timeout"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging format"},
		{"bad protocol", func(c *Config) {
			c.Observability.EnableTelemetry = true
			c.Observability.Protocol = "thrift"
		}, "otlp protocol"},
		{"bad sampling", func(c *Config) { c.Observability.SamplingRate = 2 }, "sampling rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateAcceptsKnownValues(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = "postgres"
	cfg.LLM.Provider = "openai"
	cfg.LLM.BaseURL = "http://localhost:8080"
	cfg.Observability.EnableTelemetry = true
	cfg.Observability.Protocol = "http/protobuf"
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Options(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = "badger"
	cfg.Storage.BadgerSyncWrites = true
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.Model = "claude-test"
	cfg.LLM.Timeout = Duration(5 * time.Second)

	st := cfg.StorageOptions()
	assert.Equal(t, "badger", st.Driver)
	assert.Equal(t, ".specula_badger", st.Badger.Path)
	assert.True(t, st.Badger.SyncWrites)

	gen := cfg.GenerationOptions()
	assert.Equal(t, "anthropic", gen.Provider)
	assert.Equal(t, "claude-test", gen.Model)
	assert.Equal(t, 5*time.Second, gen.Timeout)
}

func TestSecret(t *testing.T) {
	s := Secret("postgres://user:hunter2@db/specula")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.True(t, s.IsSet())
	assert.Equal(t, "postgres://user:hunter2@db/specula", s.Value())
	assert.Equal(t, 34, s.Len())

	text, err := s.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "[REDACTED]", string(text))

	data, err := json.Marshal(struct{ URL Secret }{s})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")

	var back Secret
	assert.Error(t, json.Unmarshal([]byte(`"[REDACTED]"`), &back))
	require.NoError(t, json.Unmarshal([]byte(`"raw"`), &back))
	assert.Equal(t, "raw", back.Value())

	var empty Secret
	assert.False(t, empty.IsSet())
	assert.Equal(t, "", empty.String())
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	require.NoError(t, d.UnmarshalText([]byte("20")))
	assert.Equal(t, 20*time.Second, d.Duration())
	assert.Error(t, d.UnmarshalText([]byte("-3")))

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"20s"`, string(data))
}
