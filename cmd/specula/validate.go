package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specula/internal/workflow"
)

var (
	validateArtifactFile string
	validateTextFile     string
	validateCurrentPhase string
	validateProjectID    string
)

func init() {
	rootCmd.AddCommand(validateCmd)

	f := validateCmd.Flags()
	f.StringVar(&validateArtifactFile, "artifact-file", "", "artifact JSON file (required)")
	f.StringVar(&validateTextFile, "text-file", "", "assistant text file (required)")
	f.StringVar(&validateCurrentPhase, "current-phase", "", "require the artifact to belong to this phase")
	f.StringVar(&validateProjectID, "project-id", workflow.DefaultValidationProjectID, "project the audit event is recorded under")
	_ = validateCmd.MarkFlagRequired("artifact-file")
	_ = validateCmd.MarkFlagRequired("text-file")
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate assistant text and an artifact against the contract",
	Long: `Check assistant text against the text policy and an artifact against
its phase schema. Every issue found is listed and the command exits
non-zero when there is any.

Examples:
  specula validate --artifact-file artifact.json --text-file reply.md --current-phase 1`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	artifactJSON, err := readFile(validateArtifactFile)
	if err != nil {
		return err
	}
	if !json.Valid(artifactJSON) {
		return fmt.Errorf("artifact file %s is not valid JSON", validateArtifactFile)
	}
	text, err := readFile(validateTextFile)
	if err != nil {
		return err
	}

	return withApp(cmd, nil, func(ctx context.Context, a *app) error {
		resp, err := a.svc.Validate(ctx, &workflow.ValidateRequest{
			ProjectID:     validateProjectID,
			CurrentPhase:  validateCurrentPhase,
			AssistantText: string(text),
			Artifact:      artifactJSON,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !resp.Valid {
			fmt.Fprintln(out, "validation failed:")
			for _, issue := range resp.Errors {
				fmt.Fprintf(out, "- %s\n", issue)
			}
			return errReported
		}
		fmt.Fprintln(out, "validation passed")
		return nil
	})
}
