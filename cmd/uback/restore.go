package main

import (
	"github.com/spf13/cobra"

	"uback/internal/orchestrator"
)

func newRestoreCommand(newOrchestrator func() (*orchestrator.Orchestrator, error)) *cobra.Command {
	var dir, override string
	cmd := &cobra.Command{
		Use:   "restore <dst-opts> [backup-id]",
		Short: "Restore a backup (and its ancestor chain) into a local directory",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := newOrchestrator()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			backupID := ""
			if len(args) == 2 {
				backupID = args[1]
			}
			return o.Restore(ctx, args[0], backupID, dir, override)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory to restore into")
	cmd.Flags().StringVarP(&override, "override", "o", "", "option string overriding the destination's own key-file for decoding")
	return cmd
}
