package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/fleet-ledger/internal/auth"
)

var (
	tokenActor string
	tokenTTL   time.Duration
)

// tokenCmd is a development helper; production tokens come from the
// identity provider sharing the secret.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a signed bearer token for an actor",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		verifier := auth.NewJWTVerifier(cfg.Security.JWTSecret, cfg.Security.JWTIssuer)
		if !verifier.Enabled() {
			return fmt.Errorf("security.jwt_secret is not configured")
		}

		token, err := verifier.Sign(tokenActor, tokenTTL)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Fprintln(os.Stdout, token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenActor, "actor", "", "actor id placed in the sub claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("actor")

	rootCmd.AddCommand(tokenCmd)
}
