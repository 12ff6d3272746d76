package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// newMigrateCmd creates the migrate subcommand.
func newMigrateCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply or roll back the embedded migrations against DATABASE_URL.`,
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withMigrator(cmd, func(m migrator) error {
				if err := m.Down(steps); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d migration(s)\n", max(steps, 1))
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withMigrator(cmd, func(m migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations completed successfully")
				return nil
			})
		},
	})
	cmd.AddCommand(down)
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withMigrator(cmd, func(m migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
				return nil
			})
		},
	})
	return cmd
}

func (e *env) withMigrator(cmd *cobra.Command, fn func(m migrator) error) error {
	cfg, err := e.config(cmd)
	if err != nil {
		return err
	}
	if cfg.DBUrl == "" {
		return errors.New("DATABASE_URL is required")
	}
	m, err := e.newMigrator(cfg.DBUrl)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}
