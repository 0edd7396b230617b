package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

const maxAuditLimit = 1000

var auditLimit int

func init() {
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "number of most recent events to print")
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the project state",
	Long: `Print the project state file as JSON. A missing state file prints the
fresh project a first step would start from.`,
	Args: cobra.NoArgs,
	RunE: runState,
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Print the project's audit log",
	Long: `Print the most recent audit events of the project, oldest first.
Requires a storage driver; with none configured the log is empty.`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func runState(cmd *cobra.Command, args []string) error {
	return withApp(cmd, nil, func(ctx context.Context, a *app) error {
		ps, err := a.svc.State(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), ps)
	})
}

func runAudit(cmd *cobra.Command, args []string) error {
	if auditLimit < 1 || auditLimit > maxAuditLimit {
		return fmt.Errorf("--limit must be between 1 and %d", maxAuditLimit)
	}
	return withApp(cmd, nil, func(ctx context.Context, a *app) error {
		events, err := a.svc.Audit(ctx, auditLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, ev := range events {
			line, err := json.Marshal(ev)
			if err != nil {
				return fmt.Errorf("failed to encode audit event: %w", err)
			}
			fmt.Fprintln(out, string(line))
		}
		return nil
	})
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
