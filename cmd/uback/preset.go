package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"uback/internal/config"
)

func newPresetCommand(openStore func() (*config.PresetStore, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Manage named, splice-able option lists",
	}
	cmd.AddCommand(
		newPresetSetCommand(openStore),
		newPresetRemoveCommand(openStore),
		newPresetListCommand(openStore),
		newPresetEvalCommand(openStore),
	)
	return cmd
}

func newPresetSetCommand(openStore func() (*config.PresetStore, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> <opts>",
		Short: "Store an option list under a name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := openStore()
			if err != nil {
				return err
			}
			pairs, err := config.ParsePairs(args[1])
			if err != nil {
				return err
			}
			ps.Set(args[0], pairs)
			return ps.Save()
		},
	}
}

func newPresetRemoveCommand(openStore func() (*config.PresetStore, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a stored preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := openStore()
			if err != nil {
				return err
			}
			ps.Remove(args[0])
			return ps.Save()
		},
	}
}

func newPresetListCommand(openStore func() (*config.PresetStore, error)) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored preset names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := openStore()
			if err != nil {
				return err
			}
			for _, name := range ps.Names() {
				if !verbose {
					fmt.Fprintln(os.Stdout, name)
					continue
				}
				pairs, _ := ps.Get(name)
				fmt.Fprintf(os.Stdout, "%s: %s\n", name, renderPairs(pairs))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "also print each preset's stored option list")
	return cmd
}

func newPresetEvalCommand(openStore func() (*config.PresetStore, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "eval <opts>",
		Short: "Resolve an option string (presets spliced, templates rendered) and print it in sorted Key: value form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := openStore()
			if err != nil {
				return err
			}
			r, err := config.Resolve(args[0], ps)
			if err != nil {
				return err
			}
			for _, line := range r.EvalLines() {
				fmt.Fprintln(os.Stdout, line)
			}
			return nil
		},
	}
}

func renderPairs(pairs []config.Pair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Key)
		if p.Value != "" {
			b.WriteByte('=')
			b.WriteString(strings.ReplaceAll(p.Value, ",", `\,`))
		}
	}
	return b.String()
}
