package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/store"
)

// NewTokenCmd creates the token command group.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Work with purpose tokens",
	}
	cmd.AddCommand(newTokenIssueCmd())
	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	var (
		subject string
		purpose string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an activation or reset token",
		Long: `Issue an activation or reset token for a subject and print it.

Issuing only signs a token, so no Redis connection is made. The signing key
and TTLs come from the same configuration the server uses.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, ok := jwt.ParsePurpose(purpose)
			if !ok || p == jwt.PurposeAccess || p == jwt.PurposeRefresh {
				return fmt.Errorf("purpose must be activation or reset, got %q", purpose)
			}

			cfg, err := loadConfig(configFile, nil)
			if err != nil {
				return err
			}

			engineCfg := cfg.engineConfig()
			engineCfg.Audit.Enabled = false
			engineCfg.Metrics = goSession.MetricsConfig{}

			engine, err := goSession.New().
				WithConfig(engineCfg).
				WithStore(store.NewMemoryStore(nil)).
				Build()
			if err != nil {
				return fmt.Errorf("build engine: %w", err)
			}
			defer engine.Close()

			tok, err := engine.IssueToken(cmd.Context(), subject, p)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, tok.Token)
			fmt.Fprintf(out, "# subject=%s purpose=%s expires=%s\n", tok.Subject, tok.Purpose, tok.ExpiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "subject to issue the token for")
	cmd.Flags().StringVar(&purpose, "purpose", string(jwt.PurposeActivation), "token purpose (activation or reset)")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
