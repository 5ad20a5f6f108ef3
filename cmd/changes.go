package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/gmsync/internal/models"
	"github.com/desertthunder/gmsync/internal/repositories"
	"github.com/desertthunder/gmsync/internal/shared"
	"github.com/desertthunder/gmsync/internal/ui"
)

type changeList struct {
	Integration string                `json:"integration"`
	Changes     []*models.ChangeEvent `json:"changes"`
}

// ChangesList prints the unacknowledged changes of every selected integration.
func (r *Runner) ChangesList(ctx context.Context, cmd *cli.Command) error {
	all, err := r.integrations(cmd.String("integration"))
	if err != nil {
		return err
	}

	var lists []changeList
	for _, in := range all {
		bundle, _, err := r.bundle(in)
		if err != nil {
			return err
		}

		db, err := bundle.Connect()
		if err != nil {
			return fmt.Errorf("integration %s: %w", in.Name, err)
		}
		events, err := repositories.NewChangeLogRepository(db).List(ctx, cmd.Int("limit"))
		db.Close()
		if err != nil {
			return fmt.Errorf("integration %s: %w", in.Name, err)
		}
		lists = append(lists, changeList{Integration: in.Name, Changes: events})
	}

	if cmd.Bool("json") {
		return r.writeJSON(lists, true)
	}

	for _, l := range lists {
		r.writePlainln(ui.Title(fmt.Sprintf("%s: %d pending", l.Integration, len(l.Changes))))
		if len(l.Changes) == 0 {
			continue
		}

		rows := make([][]string, 0, len(l.Changes))
		for _, e := range l.Changes {
			rows = append(rows, []string{strconv.FormatInt(e.Seq, 10), e.Trigger, e.LocalID, e.CreatedAt.Format("2006-01-02 15:04:05")})
		}
		r.writePlainln(ui.Table([]string{"Seq", "Trigger", "Local ID", "Created"}, rows))
	}
	return nil
}

// ChangesSkip acknowledges a pending change without pushing it.
func (r *Runner) ChangesSkip(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.StringArg("seq")
	if raw == "" {
		return fmt.Errorf("%w: seq", shared.ErrMissingArgument)
	}
	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: seq %q is not a number", shared.ErrInvalidArgument, raw)
	}

	in, err := r.integration(cmd.String("integration"))
	if err != nil {
		return err
	}
	bundle, _, err := r.bundle(in)
	if err != nil {
		return err
	}

	db, err := bundle.Connect()
	if err != nil {
		return fmt.Errorf("integration %s: %w", in.Name, err)
	}
	defer db.Close()

	changes := repositories.NewChangeLogRepository(db)
	events, err := changes.List(ctx, 0)
	if err != nil {
		return err
	}

	for _, e := range events {
		if e.Seq != seq {
			continue
		}
		if err := changes.Ack(ctx, seq); err != nil {
			return err
		}
		r.logger.Warn("change skipped", "integration", in.Name, "seq", seq, "trigger", e.Trigger, "local_id", e.LocalID)
		return nil
	}

	return fmt.Errorf("%w: no pending change #%d in %s", shared.ErrInvalidArgument, seq, in.Name)
}
