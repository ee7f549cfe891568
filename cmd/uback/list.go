package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"uback/internal/orchestrator"
	"uback/internal/ubackerr"
)

func newListCommand(newOrchestrator func() (*orchestrator.Orchestrator, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list {snapshots|backups} <opts>",
		Short: "List snapshot or backup IDs, one per line, lexicographically ascending",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]
			if kind != "snapshots" && kind != "backups" {
				return ubackerr.Userf("list target must be \"snapshots\" or \"backups\", got %q", kind)
			}
			o, err := newOrchestrator()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			ids, err := o.List(ctx, kind, args[1])
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(os.Stdout, id)
			}
			return nil
		},
	}
	return cmd
}
