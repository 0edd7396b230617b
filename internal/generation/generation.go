// Package generation provides the optional language-model backends that
// phrase the assistant text of a Specula turn.
//
// A backend only ever proposes text. The orchestrator validates every
// candidate and falls back to deterministic text on any failure, so a
// backend error is never fatal to a step.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fyrsmithlabs/specula/internal/phase"
	"github.com/fyrsmithlabs/specula/internal/secrets"
	"github.com/fyrsmithlabs/specula/internal/state"
)

// Provider identifiers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Default configuration values.
const (
	defaultOpenAIBaseURL    = "https://api.openai.com"
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultOpenAIKeyEnv     = "OPENAI_API_KEY"
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-sonnet-20241022"
	defaultAnthropicKeyEnv  = "ANTHROPIC_API_KEY"
	defaultTimeout          = 30 * time.Second
	temperature             = 0.2
	anthropicMaxTokens      = 400
)

// Rate limiter defaults: 50 requests per minute.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

// DefaultSystemPrompt is used when no base prompt file is configured.
const DefaultSystemPrompt = "You are SPECULA AI. Output must start with `MODE: <mode> | PHASE: <phase>`, " +
	"include max 6 lines before one single question, and avoid prescriptive language."

var (
	// ErrUnknownProvider is returned for provider identifiers other than
	// openai and anthropic.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrMissingAPIKey is returned when the configured key variable is unset.
	ErrMissingAPIKey = errors.New("missing API key")
)

// Request is everything a backend needs to phrase one turn.
type Request struct {
	Phase     phase.Phase
	Mode      phase.Mode
	UserInput string
	ProjectID string
	Context   state.ContextBundle
}

// Backend generates assistant text for a turn.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f BackendFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ProviderError reports a failed backend call.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Config selects and configures a backend.
type Config struct {
	Provider       string
	Model          string
	APIKeyEnv      string
	BaseURL        string
	BasePromptFile string
	Timeout        time.Duration
}

// NewBackend builds the backend named by cfg.Provider. Credentials are
// resolved here, so a missing key fails at construction rather than on the
// first call.
func NewBackend(cfg Config) (Backend, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))

	var keyEnv string
	switch provider {
	case ProviderOpenAI:
		keyEnv = defaultOpenAIKeyEnv
	case ProviderAnthropic:
		keyEnv = defaultAnthropicKeyEnv
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
	if cfg.APIKeyEnv != "" {
		keyEnv = cfg.APIKeyEnv
	}

	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%w in environment variable `%s`", ErrMissingAPIKey, keyEnv)
	}

	systemPrompt := DefaultSystemPrompt
	if cfg.BasePromptFile != "" {
		data, err := os.ReadFile(cfg.BasePromptFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read base prompt file: %w", err)
		}
		systemPrompt = string(data)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	switch provider {
	case ProviderOpenAI:
		return newOpenAIBackend(cfg.Model, apiKey, cfg.BaseURL, systemPrompt, timeout), nil
	default:
		return newAnthropicBackend(cfg.Model, apiKey, cfg.BaseURL, systemPrompt, timeout), nil
	}
}

// promptScrubber redacts credentials from user input.
var promptScrubber = secrets.MustNew(nil)

// userPrompt renders the per-turn instruction. User input is scrubbed of
// credentials before it leaves the process.
func userPrompt(req Request) (string, error) {
	bundle, err := json.Marshal(req.Context)
	if err != nil {
		return "", fmt.Errorf("failed to marshal context bundle: %w", err)
	}
	return "Generate only the assistant text for one Specula turn.\n" +
		"Project ID: " + req.ProjectID + "\n" +
		"Target phase: " + string(req.Phase) + "\n" +
		"Target mode: " + string(req.Mode) + "\n" +
		"Continuity context: " + string(bundle) + "\n" +
		"Latest user input: " + promptScrubber.Scrub(req.UserInput).Scrubbed + "\n" +
		"Constraints: one question only, no recommendations, no rankings, no decision language.", nil
}

func baseURLOr(url, def string) string {
	if url == "" {
		return def
	}
	return strings.TrimRight(url, "/")
}
