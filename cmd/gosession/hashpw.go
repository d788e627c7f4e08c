package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goSession/password"
)

// NewHashPasswordCmd creates the hash-password subcommand.
func NewHashPasswordCmd() *cobra.Command {
	var fromFlag string

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print an Argon2id hash for the user directory",
		Long: `Print an Argon2id PHC hash suitable for the password_hash field of the
user directory. The password is read from the first line of stdin unless
--password is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw := fromFlag
			if pw == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password on stdin")
				}
				pw = strings.TrimRight(line, "\r\n")
			}

			hasher, err := password.New(password.DefaultParams())
			if err != nil {
				return err
			}
			encoded, err := hasher.Hash(pw)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), encoded)
			return nil
		},
	}

	cmd.Flags().StringVar(&fromFlag, "password", "", "password to hash (visible in shell history; prefer stdin)")

	return cmd
}
