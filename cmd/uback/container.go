package main

import (
	"fmt"
	"io"
	"os"

	"filippo.io/age"
	"github.com/spf13/cobra"

	"uback/internal/container"
	"uback/internal/keys"
	"uback/internal/ubackerr"
)

func newContainerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "container",
		Short: "Inspect and hand-build uback containers",
	}
	cmd.AddCommand(newContainerCreateCommand(), newContainerTypeCommand(), newContainerExtractCommand())
	return cmd
}

func newContainerCreateCommand() *cobra.Command {
	var pubkeyFile string
	cmd := &cobra.Command{
		Use:   "create <type>",
		Short: "Wrap stdin in a container, writing it to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pubkeyFile == "" {
				return ubackerr.Userf("container create requires -k <pubkey>")
			}
			f, err := os.Open(pubkeyFile)
			if err != nil {
				return ubackerr.Wrap(ubackerr.KindUser, "opening public key", err)
			}
			defer f.Close()
			recipients, err := keys.ParseRecipients(f)
			if err != nil {
				return err
			}
			return container.Encode(os.Stdout, args[0], recipients, os.Stdin)
		},
	}
	cmd.Flags().StringVarP(&pubkeyFile, "key", "k", "", "public key file")
	return cmd
}

func newContainerTypeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "type <file>",
		Short: "Print a container's type tag without decrypting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return ubackerr.Wrap(ubackerr.KindUser, "opening container", err)
			}
			defer f.Close()
			typ, err := container.DecodeType(f)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, typ)
			return nil
		},
	}
}

func newContainerExtractCommand() *cobra.Command {
	var privkeyFile string
	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Decode a container's plaintext to stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = os.Stdin
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return ubackerr.Wrap(ubackerr.KindUser, "opening container", err)
				}
				defer f.Close()
				in = f
			}
			var ids []age.Identity
			if privkeyFile != "" {
				data, err := os.ReadFile(privkeyFile)
				if err != nil {
					return ubackerr.Wrap(ubackerr.KindUser, "opening private key", err)
				}
				id, err := keys.ParseIdentity(string(data))
				if err != nil {
					return err
				}
				ids = []age.Identity{id}
			}
			_, plain, err := container.Decode(in, ids)
			if err != nil {
				return err
			}
			_, err = io.Copy(os.Stdout, plain)
			return err
		},
	}
	cmd.Flags().StringVarP(&privkeyFile, "key", "k", "", "private key file")
	return cmd
}
