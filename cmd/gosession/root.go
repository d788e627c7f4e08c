package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the gosession CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gosession",
		Short: "goSession - JWT session lifecycle with Redis revocation",
		Long: `gosession runs a demo HTTP API over the goSession engine and provides
operator commands for issuing purpose tokens and hashing passwords.

Configuration is read from an optional YAML file (--config) and from
GOSESSION_* environment variables, e.g. GOSESSION_JWT_SIGNING_KEY.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewTokenCmd())
	cmd.AddCommand(NewHashPasswordCmd())

	return cmd
}
