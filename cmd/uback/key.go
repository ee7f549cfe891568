package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"uback/internal/keys"
	"uback/internal/ubackerr"
)

func newKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Generate and derive age key pairs",
	}
	cmd.AddCommand(newKeyGenCommand(), newKeyPubCommand())
	return cmd
}

func newKeyGenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gen <priv-path> <pub-path>",
		Short: "Generate a fresh key pair and write it to two files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, err := keys.Generate()
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], []byte(pair.Private+"\n"), 0600); err != nil {
				return ubackerr.Wrap(ubackerr.KindUser, "writing private key", err)
			}
			if err := os.WriteFile(args[1], []byte(pair.Public+"\n"), 0644); err != nil {
				return ubackerr.Wrap(ubackerr.KindUser, "writing public key", err)
			}
			return nil
		},
	}
}

func newKeyPubCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pub",
		Short: "Derive a public key from a private key read on stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && err != io.EOF {
				return ubackerr.Wrap(ubackerr.KindUser, "reading private key", err)
			}
			pub, err := keys.DerivePublic(line)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, pub)
			return nil
		},
	}
}
