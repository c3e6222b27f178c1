package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/studyrag/internal/adapters/driven/auth/jwt"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token",
	Long: `Issues a bearer token for the HTTP API, signed with server.jwt_secret.
The token's subject is the owner id (--owner, or the configured owner).`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

var tokenTTL time.Duration

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	if cfg.Server.JWTSecret == "" {
		return errors.New("server.jwt_secret is not set")
	}
	if owner() == "" {
		return errors.New("owner is required")
	}

	v, err := jwt.NewVerifier(cfg.Server.JWTSecret)
	if err != nil {
		return err
	}
	token, err := v.Issue(owner(), tokenTTL)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	cmd.Println(token)
	return nil
}
