package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specula/internal/workflow"
)

var (
	advancePhase         string
	advanceArtifactID    string
	advanceHuman         bool
	advanceValidatorID   string
	advanceValidatorRole string
	advanceDecision      string
)

func init() {
	rootCmd.AddCommand(advanceCmd)

	f := advanceCmd.Flags()
	f.StringVar(&advancePhase, "phase", "", "phase being validated; must be the current phase (required)")
	f.StringVar(&advanceArtifactID, "artifact-id", "", "artifact the decision applies to (required)")
	f.BoolVar(&advanceHuman, "validated-by-human", false, "the decision was made by a human (required to approve)")
	f.StringVar(&advanceValidatorID, "validator-id", workflow.DefaultValidatorID, "validator identity")
	f.StringVar(&advanceValidatorRole, "validator-role", "", "validator role, e.g. architect or product (required)")
	f.StringVar(&advanceDecision, "decision", "approve", "approve, reject or hold")
	_ = advanceCmd.MarkFlagRequired("phase")
	_ = advanceCmd.MarkFlagRequired("artifact-id")
	_ = advanceCmd.MarkFlagRequired("validator-role")
}

var advanceCmd = &cobra.Command{
	Use:   "advance",
	Short: "Record a validation and advance the phase when approved",
	Long: `Record one validator decision for an artifact of the current phase.

The project moves to the next phase once the artifact carries human
approvals from at least two distinct roles. Until then the decision is
recorded and the phase stays where it is.

Examples:
  specula advance --phase 1 --artifact-id <id> --validator-role architect --validated-by-human
  specula advance --phase 1 --artifact-id <id> --validator-role product --validator-id alice --validated-by-human
  specula advance --phase 1 --artifact-id <id> --validator-role ops --decision hold`,
	Args: cobra.NoArgs,
	RunE: runAdvance,
}

func runAdvance(cmd *cobra.Command, args []string) error {
	human := advanceHuman
	return withApp(cmd, nil, func(ctx context.Context, a *app) error {
		resp, err := a.svc.Advance(ctx, &workflow.AdvanceRequest{
			Phase:            advancePhase,
			ArtifactID:       advanceArtifactID,
			ValidatorID:      advanceValidatorID,
			ValidatorRole:    advanceValidatorRole,
			Decision:         advanceDecision,
			ValidatedByHuman: &human,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !resp.Advanced {
			fmt.Fprintf(out, "validation recorded; phase %s not advanced: %s\n", resp.Phase, resp.Reason)
			return nil
		}
		fmt.Fprintf(out, "advanced to phase %s\n", resp.Phase)
		return nil
	})
}
