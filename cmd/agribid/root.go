package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/user"
	"time"

	"agribid-backend/config"
	"agribid-backend/internal/app"
	"agribid-backend/internal/domain"
	"agribid-backend/internal/repository/sessionstore"
	"agribid-backend/pkg/database"
	"agribid-backend/pkg/logger"

	"github.com/spf13/cobra"
)

// cliLogLevel applies when LOG_LEVEL is unset.
const cliLogLevel = "warn"

// redisSessionTTL matches the refresh token lifetime of the auth service.
const redisSessionTTL = 30 * 24 * time.Hour

type refresher interface {
	StartAutoRefresh(ctx context.Context, interval time.Duration) (stop func())
}

// clientSession is a session manager together with the auth client behind it.
type clientSession struct {
	Manager   domain.SessionManager
	Refresher refresher
	Close     func()
}

type migrator interface {
	Up() error
	Down(steps int) error
	Version() (uint, bool, error)
	Close() error
}

// env is everything the commands take from outside the process.
type env struct {
	loadConfig  func() (*config.Config, error)
	openSession func(ctx context.Context, cfg *config.Config) (*clientSession, error)
	newMigrator func(databaseURL string) (migrator, error)
}

func defaultEnv() *env {
	return &env{
		loadConfig:  config.LoadConfig,
		openSession: openSession,
		newMigrator: func(databaseURL string) (migrator, error) {
			return database.NewMigrator(databaseURL)
		},
	}
}

func openSession(ctx context.Context, cfg *config.Config) (*clientSession, error) {
	container, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	manager, authClient := container.NewSessionManager(sessionStore(container))
	return &clientSession{
		Manager:   manager,
		Refresher: authClient,
		Close: func() {
			manager.Dispose()
			container.Close()
		},
	}, nil
}

// sessionStore keeps the CLI session in redis when configured, otherwise in
// SESSION_FILE.
func sessionStore(c *app.Container) domain.SessionStore {
	if c.Redis != nil {
		name := "cli"
		if u, err := user.Current(); err == nil {
			name += ":" + u.Username
		}
		return sessionstore.NewRedisStore(c.Redis, name, redisSessionTTL)
	}
	return sessionstore.NewFileStore(c.Config.SessionFile)
}

// NewRootCmd creates the root command for the AgriBid CLI.
func NewRootCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agribid",
		Short: "AgriBid account and marketplace client",
		Long: `agribid signs in to AgriBid, keeps the session refreshed and manages
the farmer or company profile attached to the account.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newLoginCmd(e))
	cmd.AddCommand(newRegisterCmd(e))
	cmd.AddCommand(newLogoutCmd(e))
	cmd.AddCommand(newResendConfirmationCmd(e))
	cmd.AddCommand(newWhoamiCmd(e))
	cmd.AddCommand(newWatchCmd(e))
	cmd.AddCommand(newProfileCmd(e))
	cmd.AddCommand(newMigrateCmd(e))

	return cmd
}

// withSession loads the stored session and hands the initialized manager to fn.
func (e *env) withSession(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, s *clientSession) error) error {
	cfg, err := e.config(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := e.openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	s.Manager.Initialize(ctx)
	return fn(ctx, cfg, s)
}

// config loads the configuration and points the logger at stderr.
func (e *env) config(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.LogLevel
	if _, ok := os.LookupEnv("LOG_LEVEL"); !ok {
		level = cliLogLevel
	}
	logger.InitTo(cmd.ErrOrStderr(), level)
	return cfg, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// describe names the signed-in account for one-line messages.
func describe(state domain.State) string {
	switch {
	case state.User != nil:
		return fmt.Sprintf("%s (%s)", state.User.Email, state.User.UserType)
	case state.Session != nil:
		return state.Session.Identity.Email
	default:
		return "nobody"
	}
}
