package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/gmsync/internal/players"
	"github.com/desertthunder/gmsync/internal/shared"
)

// SetupConfig writes the example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", r.configPath)
	return nil
}

// SetupDatabase initializes the mapping database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.openMappingDB(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return nil
}

// SetupRollback rolls back the latest mapping database migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RollbackMigration(ctx, db); err != nil {
		return err
	}
	r.logger.Info("rolled back latest migration", "path", r.config.Database.Path)
	return nil
}

// SetupLibrary creates the player's library schema for every selected integration.
func (r *Runner) SetupLibrary(ctx context.Context, cmd *cli.Command) error {
	all, err := r.integrations(cmd.String("integration"))
	if err != nil {
		return err
	}

	for _, in := range all {
		bundle, p, err := r.bundle(in)
		if err != nil {
			return err
		}

		initializer, ok := p.(players.Initializer)
		if !ok {
			return fmt.Errorf("%w: player %s cannot create its own library", shared.ErrNotImplemented, p.Name())
		}

		db, err := bundle.Connect()
		if err != nil {
			return fmt.Errorf("integration %s: %w", in.Name, err)
		}
		err = initializer.Init(ctx, db)
		db.Close()
		if err != nil {
			return fmt.Errorf("integration %s: %w", in.Name, err)
		}

		r.logger.Info("library ready", "integration", in.Name, "player", p.Name(), "path", in.LocalPath)
	}
	return nil
}
