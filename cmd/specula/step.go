package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specula/internal/config"
	"github.com/fyrsmithlabs/specula/internal/generation"
	"github.com/fyrsmithlabs/specula/internal/workflow"
)

const defaultBasePromptFile = "prompts/specula_method_agent_base.md"

var (
	stepUserInput  string
	stepPhase      string
	stepMode       string
	stepOutputFile string

	llmProvider       string
	llmModel          string
	llmAPIKeyEnv      string
	llmBaseURL        string
	llmBasePromptFile string
)

func init() {
	rootCmd.AddCommand(stepCmd)

	f := stepCmd.Flags()
	f.StringVar(&stepUserInput, "user-input", "", "latest human input (required)")
	f.StringVar(&stepPhase, "phase", "", "override the current phase")
	f.StringVar(&stepMode, "mode", "", "override the phase's default mode")
	f.StringVar(&stepOutputFile, "output-file", "", "also write the step result as JSON to this file")
	f.StringVar(&llmProvider, "llm-provider", "", "assistant text provider: openai or anthropic (default deterministic text)")
	f.StringVar(&llmModel, "llm-model", "gpt-4o-mini", "model name")
	f.StringVar(&llmAPIKeyEnv, "llm-api-key-env", "OPENAI_API_KEY", "environment variable holding the API key")
	f.StringVar(&llmBaseURL, "llm-base-url", "", "provider API base URL")
	f.StringVar(&llmBasePromptFile, "base-prompt-file", defaultBasePromptFile, "system prompt file")
	_ = stepCmd.MarkFlagRequired("user-input")
}

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Generate one validated agent step",
	Long: `Generate one methodology step for the current (or given) phase.

The assistant text and the artifact JSON are printed to stdout and the
project state file is updated. Without --llm-provider the assistant text
is produced deterministically.

Examples:
  # Generate the next step
  specula step --user-input "We need a billing service"

  # Use OpenAI for the assistant text and keep a copy of the result
  specula step --user-input "..." --llm-provider openai --output-file step.json`,
	Args: cobra.NoArgs,
	RunE: runStep,
}

func runStep(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cfg *config.Config) (generation.Backend, error) {
		return stepBackend(cmd, cfg)
	}, func(ctx context.Context, a *app) error {
		resp, err := a.svc.Step(ctx, &workflow.StepRequest{
			UserInput:  stepUserInput,
			Phase:      stepPhase,
			Mode:       stepMode,
			OutputFile: stepOutputFile,
		})
		if err != nil {
			return err
		}

		artifactJSON, err := json.MarshalIndent(resp.Artifact, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode artifact: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, resp.AssistantText)
		fmt.Fprintln(out, string(artifactJSON))
		return nil
	})
}

// stepBackend builds the text backend from the llm config section and the
// explicitly set llm flags. It returns nil when no provider is selected.
func stepBackend(cmd *cobra.Command, cfg *config.Config) (generation.Backend, error) {
	opts := cfg.GenerationOptions()

	flags := cmd.Flags()
	if flags.Changed("llm-provider") {
		opts.Provider = llmProvider
	}
	if strings.TrimSpace(opts.Provider) == "" {
		return nil, nil
	}
	if flags.Changed("llm-model") {
		opts.Model = llmModel
	}
	if flags.Changed("llm-api-key-env") {
		opts.APIKeyEnv = llmAPIKeyEnv
	}
	if flags.Changed("llm-base-url") {
		opts.BaseURL = llmBaseURL
	}
	switch {
	case flags.Changed("base-prompt-file"):
		opts.BasePromptFile = llmBasePromptFile
	case opts.BasePromptFile == "":
		if _, err := os.Stat(defaultBasePromptFile); err == nil {
			opts.BasePromptFile = defaultBasePromptFile
		}
	}

	backend, err := generation.NewBackend(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to configure llm backend: %w", err)
	}
	return backend, nil
}
