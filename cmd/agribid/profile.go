package main

import (
	"context"
	"fmt"

	"agribid-backend/config"
	"agribid-backend/internal/domain"

	"github.com/spf13/cobra"
)

func newProfileCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the profile of the signed-in user",
	}
	cmd.AddCommand(newProfileSaveCmd(e))
	return cmd
}

func newProfileSaveCmd(e *env) *cobra.Command {
	var userType, profileJSON string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Create or replace the profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := domain.ParseUserType(userType)
			if err != nil {
				return err
			}
			profile, err := domain.DecodeProfile(parsed, []byte(profileJSON))
			if err != nil {
				return fmt.Errorf("--profile: %w", err)
			}

			return e.withSession(cmd, func(ctx context.Context, _ *config.Config, s *clientSession) error {
				if err := failure(s.Manager.SaveProfile(ctx, parsed, profile)); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s.Manager.State().User)
			})
		},
	}
	cmd.Flags().StringVar(&userType, "user-type", "", "farmer, company or exporter")
	cmd.Flags().StringVar(&profileJSON, "profile", "", "profile as JSON")
	_ = cmd.MarkFlagRequired("user-type")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}
