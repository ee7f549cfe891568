package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"uback/internal/clock"
	"uback/internal/config"
	"uback/internal/orchestrator"
)

// defaultPresetsDir mirrors most CLIs in the corpus that keep per-user
// state under $HOME/.config/<tool>; overridable with the global -p flag.
func defaultPresetsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".uback"
	}
	return filepath.Join(home, ".config", "uback")
}

func newRootCommand(log zerolog.Logger) *cobra.Command {
	var presetsDir string

	root := &cobra.Command{
		Use:           "uback",
		Short:         "Pluggable, encrypted backup engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&presetsDir, "presets-dir", "p", defaultPresetsDir(), "directory holding the presets file")

	newOrchestrator := func() (*orchestrator.Orchestrator, error) {
		if err := os.MkdirAll(presetsDir, 0755); err != nil {
			return nil, err
		}
		presets, err := config.LoadPresetStore(presetsDir)
		if err != nil {
			return nil, err
		}
		return orchestrator.New(presets, clock.New(), log), nil
	}

	root.AddCommand(
		newKeyCommand(),
		newContainerCommand(),
		newBackupCommand(newOrchestrator),
		newRestoreCommand(newOrchestrator),
		newListCommand(newOrchestrator),
		newPruneCommand(newOrchestrator),
		newPresetCommand(func() (*config.PresetStore, error) { return config.LoadPresetStore(presetsDir) }),
		newProxyCommand(),
	)
	return root
}

// signalContext returns a context canceled on SIGINT/SIGTERM, per spec
// §5's cancellation model: child processes and in-flight uploads should
// observe ctx.Done and unwind without leaving a partial destination
// object behind.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
