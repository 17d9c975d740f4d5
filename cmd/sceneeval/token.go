package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/inamate/genscene/internal/auth"
	"github.com/inamate/genscene/internal/config"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			subject, _ := cmd.Flags().GetString("subject")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			token, err := auth.NewService(cfg.JWTSecret).IssueToken(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().String("subject", "", "Token subject (the scene owner id)")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("subject")
	return cmd
}
