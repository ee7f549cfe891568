// Command uback is the CLI entry point: a thin cobra tree over
// internal/orchestrator, internal/config, internal/keys, and
// internal/container. Mirrors Hermes's main in spirit — wire the
// concrete collaborators once, then hand off — but fans out into
// subcommands instead of a single server loop, since spec §6 describes
// a command-line surface rather than a long-running listener.
package main

import (
	"os"

	"github.com/rs/zerolog"

	"uback/internal/ubackerr"

	_ "uback/internal/destination/btrfs"
	_ "uback/internal/destination/command"
	_ "uback/internal/destination/fs"
	_ "uback/internal/destination/ftp"
	_ "uback/internal/destination/objectstorage"
	_ "uback/internal/destination/proxydst"
	_ "uback/internal/destination/zfs"
	_ "uback/internal/source/btrfs"
	_ "uback/internal/source/command"
	_ "uback/internal/source/mariabackup"
	_ "uback/internal/source/proxysrc"
	_ "uback/internal/source/tar"
	_ "uback/internal/source/zfs"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false}).With().Timestamp().Logger()

	root := newRootCommand(log)
	if err := root.Execute(); err != nil {
		os.Exit(ubackerr.ExitCode(err))
	}
}
