package main

import (
	"github.com/spf13/cobra"

	"uback/internal/orchestrator"
	"uback/internal/ubackerr"
)

func newPruneCommand(newOrchestrator func() (*orchestrator.Orchestrator, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune {snapshots|backups} <opts>",
		Short: "Apply the retention policy and delete the non-kept items",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]
			if kind != "snapshots" && kind != "backups" {
				return ubackerr.Userf("prune target must be \"snapshots\" or \"backups\", got %q", kind)
			}
			o, err := newOrchestrator()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return o.Prune(ctx, kind, args[1])
		},
	}
	return cmd
}
