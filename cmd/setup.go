package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/watchx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}

	r.logger.Info("config file created", "path", r.configPath)
	r.writePlain("✓ Configuration written to %s\n", r.configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Add your TMDB api key and MyAnimeList client id under [credentials]\n")
	r.writePlain("2. Run 'watchx setup database' to prepare the backend database\n")
	return nil
}

// openDatabase opens the configured SQLite database with its pool settings applied.
func (r *Runner) openDatabase() (*sql.DB, error) {
	r.logger.Info("opening database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	return db, nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Info("running database migrations")
	applied, err := shared.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready at %s (%d migrations applied)\n", r.config.Database.Path, applied)
	return nil
}

// SetupRollback reverts the most recently applied migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}
	r.writePlain("✓ Rolled back the latest migration\n")
	return nil
}

// SetupStatus lists migrations and whether each has been applied.
func (r *Runner) SetupStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	states, err := shared.MigrationStatus(db)
	if err != nil {
		return err
	}

	r.writePlainHeader("Migrations")
	for _, s := range states {
		mark := " "
		if s.Applied {
			mark = "✓"
		}
		r.writePlain("[%s] %04d %s\n", mark, s.Version, s.Name)
	}
	return nil
}
