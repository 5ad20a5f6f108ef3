package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/gmsync/internal/triggers"
	"github.com/desertthunder/gmsync/internal/ui"
)

// TriggersInstall installs the change log and triggers of every selected integration.
func (r *Runner) TriggersInstall(ctx context.Context, cmd *cli.Command) error {
	all, err := r.integrations(cmd.String("integration"))
	if err != nil {
		return err
	}

	for _, in := range all {
		bundle, _, err := r.bundle(in)
		if err != nil {
			return err
		}
		reg, err := bundle.Registry()
		if err != nil {
			return fmt.Errorf("integration %s: %w", in.Name, err)
		}

		db, err := bundle.Connect()
		if err != nil {
			return fmt.Errorf("integration %s: %w", in.Name, err)
		}
		err = reg.Install(ctx, db)
		db.Close()
		if err != nil {
			return fmt.Errorf("integration %s: %w", in.Name, err)
		}

		r.logger.Info("triggers installed", "integration", in.Name, "count", reg.Len())
	}
	return nil
}

// TriggersUninstall drops the triggers of every selected integration.
func (r *Runner) TriggersUninstall(ctx context.Context, cmd *cli.Command) error {
	all, err := r.integrations(cmd.String("integration"))
	if err != nil {
		return err
	}

	for _, in := range all {
		bundle, _, err := r.bundle(in)
		if err != nil {
			return err
		}
		reg, err := bundle.Registry()
		if err != nil {
			return fmt.Errorf("integration %s: %w", in.Name, err)
		}

		db, err := bundle.Connect()
		if err != nil {
			return fmt.Errorf("integration %s: %w", in.Name, err)
		}
		err = reg.Uninstall(ctx, db)
		db.Close()
		if err != nil {
			return fmt.Errorf("integration %s: %w", in.Name, err)
		}

		r.logger.Info("triggers removed", "integration", in.Name, "count", reg.Len())
	}
	return nil
}

// TriggersList prints every trigger definition with its installed state.
func (r *Runner) TriggersList(ctx context.Context, cmd *cli.Command) error {
	all, err := r.integrations(cmd.String("integration"))
	if err != nil {
		return err
	}

	for _, in := range all {
		bundle, _, err := r.bundle(in)
		if err != nil {
			return err
		}
		reg, err := bundle.Registry()
		if err != nil {
			return fmt.Errorf("integration %s: %w", in.Name, err)
		}

		db, err := bundle.Connect()
		if err != nil {
			return fmt.Errorf("integration %s: %w", in.Name, err)
		}
		installed, err := triggers.Installed(ctx, db)
		db.Close()
		if err != nil {
			return fmt.Errorf("integration %s: %w", in.Name, err)
		}

		rows := make([][]string, 0, reg.Len())
		for _, def := range reg.Definitions() {
			state := ui.Warn("missing")
			if slices.Contains(installed, triggers.TriggerName(def.Name)) {
				state = ui.Success("installed")
			}
			rows = append(rows, []string{def.Name, def.Table, string(def.When), def.IDText, state})
		}

		r.writePlainln(ui.Title(fmt.Sprintf("%s (%s)", in.Name, in.Player)))
		r.writePlainln(ui.Table([]string{"Trigger", "Table", "When", "Local ID", "State"}, rows))
	}
	return nil
}
