package main

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KellyGutierrez/notifycar-sub000/internal/config"
	"github.com/KellyGutierrez/notifycar-sub000/internal/logger"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down",
		Short:     "Apply or roll back the database schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if args[0] == "down" {
				return migrateDown(cfg.Migrations.Path, cfg.Database.URL, log)
			}
			return migrateUp(cfg.Migrations.Path, cfg.Database.URL, log)
		},
	}
}

func migrateUp(source, dbURL string, log *zap.Logger) error {
	m, err := migrate.New(source, dbURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no new migrations, schema is up to date")
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info("migrations applied", zap.String("source", source))
	return nil
}

func migrateDown(source, dbURL string, log *zap.Logger) error {
	m, err := migrate.New(source, dbURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	log.Info("migrations rolled back", zap.String("source", source))
	return nil
}
