package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gwi.com/support-chatbot/internal/auth"
	"gwi.com/support-chatbot/internal/domain"
)

func (c *cli) newTokenCmd() *cobra.Command {
	var (
		id  domain.Identity
		ttl time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if id.TenantID <= 0 {
				return fmt.Errorf("--tenant must be a positive id")
			}
			if err := c.cfg.RequireJWTSecret(); err != nil {
				return err
			}
			tokens, err := auth.NewTokenIssuer(c.cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			token, err := tokens.GenerateJWT(id)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().Int64Var(&id.TenantID, "tenant", 0, "tenant id carried by the token")
	cmd.Flags().Int64Var(&id.UserID, "user", 0, "user id carried by the token")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
