package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"agribid-backend/config"
	"agribid-backend/internal/domain"

	"github.com/spf13/cobra"
)

// failure turns a failed result into the command error.
func failure(result domain.AuthResult) error {
	if result.Success {
		return nil
	}
	return errors.New(result.Error)
}

func newLoginCmd(e *env) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("AGRIBID_PASSWORD")
			}
			return e.withSession(cmd, func(ctx context.Context, _ *config.Config, s *clientSession) error {
				result := s.Manager.Login(ctx, email, password)
				if !result.Success {
					if result.NeedsConfirmation {
						fmt.Fprintf(cmd.ErrOrStderr(), "Run `agribid resend-confirmation --email %s` to get a new confirmation link.\n", email)
					}
					return failure(result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", describe(s.Manager.State()))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (default $AGRIBID_PASSWORD)")
	return cmd
}

func newRegisterCmd(e *env) *cobra.Command {
	var (
		input       domain.RegisterInput
		userType    string
		profileJSON string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account with its farmer or company profile",
		Example: `  agribid register --email abebe@example.com --password secret123 --confirm-password secret123 \
    --user-type farmer --profile '{"name":"Abebe","location":"Sidama","farmSize":"5 hectares"}'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := domain.ParseUserType(userType)
			if err != nil {
				return err
			}
			input.UserType = parsed
			profile, err := domain.DecodeProfile(parsed, []byte(profileJSON))
			if err != nil {
				return fmt.Errorf("--profile: %w", err)
			}
			input.Profile = profile

			return e.withSession(cmd, func(ctx context.Context, _ *config.Config, s *clientSession) error {
				result := s.Manager.Register(ctx, input)
				if err := failure(result); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case result.NeedsEmailConfirmation:
					fmt.Fprintln(out, "Registered. Check your email to confirm your account, then log in.")
				default:
					fmt.Fprintf(out, "Registered and logged in as %s\n", describe(s.Manager.State()))
				}
				if result.ProfilePending {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", result.Error)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&input.Email, "email", "", "account email")
	cmd.Flags().StringVar(&input.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&input.Password, "password", "", "password, at least 6 characters")
	cmd.Flags().StringVar(&input.PasswordConfirm, "confirm-password", "", "password again")
	cmd.Flags().StringVar(&userType, "user-type", string(domain.UserTypeFarmer), "farmer, company or exporter")
	cmd.Flags().StringVar(&profileJSON, "profile", "", "profile as JSON")
	return cmd
}

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withSession(cmd, func(ctx context.Context, _ *config.Config, s *clientSession) error {
				if err := failure(s.Manager.Logout(ctx)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func newResendConfirmationCmd(e *env) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resend-confirmation",
		Short: "Send the email confirmation link again",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withSession(cmd, func(ctx context.Context, _ *config.Config, s *clientSession) error {
				if err := failure(s.Manager.ResendConfirmation(ctx, email)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Confirmation email sent. Please check your inbox.")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newWhoamiCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withSession(cmd, func(_ context.Context, _ *config.Config, s *clientSession) error {
				state := s.Manager.State()
				if state.Session == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
					return nil
				}
				return printJSON(cmd.OutOrStdout(), state.User)
			})
		},
	}
}

func newWatchCmd(e *env) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the session refreshed and print every state change",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withSession(cmd, func(ctx context.Context, cfg *config.Config, s *clientSession) error {
				out := cmd.OutOrStdout()
				var mu sync.Mutex
				show := func(state domain.State) {
					mu.Lock()
					defer mu.Unlock()
					expires := "-"
					if state.Session != nil {
						expires = state.Session.ExpiresAt.Local().Format(time.RFC3339)
					}
					fmt.Fprintf(out, "%s user=%s loading=%t expires=%s\n",
						time.Now().Format(time.TimeOnly), describe(state), state.Loading, expires)
				}

				unsubscribe := s.Manager.Subscribe(show)
				defer unsubscribe()
				show(s.Manager.State())

				if interval <= 0 {
					interval = cfg.AutoRefreshInterval
				}
				stop := s.Refresher.StartAutoRefresh(ctx, interval)
				defer stop()

				<-ctx.Done()
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "refresh check interval (default SESSION_AUTO_REFRESH_SECONDS)")
	return cmd
}
