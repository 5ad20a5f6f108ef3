package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/gmsync/internal/formatter"
	"github.com/desertthunder/gmsync/internal/repositories"
	"github.com/desertthunder/gmsync/internal/shared"
	"github.com/desertthunder/gmsync/internal/ui"
)

// FailuresList prints recorded fatal failures, newest first.
func (r *Runner) FailuresList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openMappingDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{}
	if name := cmd.String("integration"); name != "" {
		criteria["player"] = name
	}

	failures, err := repositories.NewFailureRepository(db).List(ctx, criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(failures, true)
	}

	r.writePlainln(ui.Title(formatter.Count(len(failures), "failure")))
	if len(failures) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{
			f.ID,
			f.Player,
			strconv.FormatInt(f.Seq, 10),
			fmt.Sprintf("%s(%s)", f.Trigger, f.LocalID),
			strconv.Itoa(f.Attempts),
			ui.Error(f.Error),
		})
	}
	return r.writePlainln(ui.Table([]string{"ID", "Integration", "Seq", "Change", "Attempts", "Error"}, rows))
}

// FailuresRemove deletes a recorded failure.
func (r *Runner) FailuresRemove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}

	db, err := r.openMappingDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repositories.NewFailureRepository(db).Delete(ctx, id); err != nil {
		return err
	}
	r.logger.Info("failure removed", "id", id)
	return nil
}
