package main

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/dukerupert/hlin/internal"
)

func migrateCmd(load func() (*Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
		Long: `Apply, roll back or inspect the embedded SQL migrations.

Examples:
  hlinctl migrate up
  hlinctl migrate status
  DATABASE_URL=postgres://... hlinctl migrate down`,
	}

	actions := []struct {
		use, short string
		run        func(*sql.DB) error
	}{
		{"up", "Apply all pending migrations", internal.RunMigrations},
		{"down", "Roll back the most recent migration", internal.RollbackMigration},
		{"status", "Show which migrations are applied", internal.MigrationStatus},
	}

	for _, a := range actions {
		cmd.AddCommand(&cobra.Command{
			Use:   a.use,
			Short: a.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				db, err := openDB(cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer db.Close()

				return a.run(db)
			},
		})
	}

	return cmd
}

func openDB(url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
