package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"uback/internal/orchestrator"
)

func newBackupCommand(newOrchestrator func() (*orchestrator.Orchestrator, error)) *cobra.Command {
	var noPrune, force bool
	cmd := &cobra.Command{
		Use:   "backup <src-opts> <dst-opts>",
		Short: "Take a snapshot (or reuse one) and upload it to a destination",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := newOrchestrator()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			id, err := o.Backup(ctx, args[0], args[1], force, noPrune)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&noPrune, "no-prune", "n", false, "skip automatic prune after a successful backup")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "force a full backup")
	return cmd
}
