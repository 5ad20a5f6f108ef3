package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/gmsync/internal/formatter"
	"github.com/desertthunder/gmsync/internal/models"
	"github.com/desertthunder/gmsync/internal/repositories"
	"github.com/desertthunder/gmsync/internal/shared"
	"github.com/desertthunder/gmsync/internal/ui"
)

// itemType reads --type, defaulting to song when fallback is set.
func itemType(cmd *cli.Command, fallback bool) (models.ItemType, error) {
	raw := cmd.String("type")
	if raw == "" {
		if fallback {
			return models.ItemSong, nil
		}
		return "", nil
	}
	return models.ParseItemType(raw)
}

// MappingList prints the mappings of an integration.
func (r *Runner) MappingList(ctx context.Context, cmd *cli.Command) error {
	in, err := r.integration(cmd.String("integration"))
	if err != nil {
		return err
	}
	t, err := itemType(cmd, false)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	db, err := r.openMappingDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{}
	if t != "" {
		criteria["item_type"] = t
	}

	entries, err := repositories.NewMappingRepository(db, in.Name).List(ctx, criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}

	r.writePlainln(ui.Title(fmt.Sprintf("%s: %s", in.Name, formatter.Count(len(entries), "mapping"))))
	if len(entries) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.LocalID, string(e.ItemType), e.RemoteID, e.CreatedAt.Format("2006-01-02 15:04:05")})
	}
	return r.writePlainln(ui.Table([]string{"Local ID", "Type", "Remote ID", "Created"}, rows))
}

// MappingGet prints the remote id mapped to a local id.
func (r *Runner) MappingGet(ctx context.Context, cmd *cli.Command) error {
	localID := cmd.StringArg("local-id")
	if localID == "" {
		return fmt.Errorf("%w: local-id", shared.ErrMissingArgument)
	}

	in, err := r.integration(cmd.String("integration"))
	if err != nil {
		return err
	}
	t, err := itemType(cmd, true)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	db, err := r.openMappingDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	remoteID, err := repositories.NewMappingRepository(db, in.Name).Resolve(ctx, localID, t)
	if err != nil {
		return err
	}
	return r.writePlainln(remoteID)
}

// MappingRemove forgets the mapping of a local id.
func (r *Runner) MappingRemove(ctx context.Context, cmd *cli.Command) error {
	localID := cmd.StringArg("local-id")
	if localID == "" {
		return fmt.Errorf("%w: local-id", shared.ErrMissingArgument)
	}

	in, err := r.integration(cmd.String("integration"))
	if err != nil {
		return err
	}
	t, err := itemType(cmd, true)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	db, err := r.openMappingDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	mappings := repositories.NewMappingRepository(db, in.Name)
	if _, err := mappings.Resolve(ctx, localID, t); err != nil {
		return err
	}
	if err := mappings.Remove(ctx, localID, t); err != nil {
		return err
	}

	r.logger.Info("mapping removed", "integration", in.Name, "local_id", localID, "item_type", t)
	return nil
}

// MappingExport writes the mappings and failures of an integration to a file.
func (r *Runner) MappingExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	in, err := r.integration(cmd.String("integration"))
	if err != nil {
		return err
	}

	db, err := r.openMappingDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := repositories.NewMappingRepository(db, in.Name).List(ctx, nil)
	if err != nil {
		return err
	}
	failures, err := repositories.NewFailureRepository(db).List(ctx, map[string]any{"player": in.Name})
	if err != nil {
		return err
	}

	export := &formatter.MappingExport{
		Integration: in.Name,
		GeneratedAt: time.Now(),
		Entries:     entries,
		Failures:    failures,
	}

	path, err := formatter.WriteExport(export, format, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("exported mappings", "integration", in.Name, "entries", len(entries), "failures", len(failures), "path", path)
	return nil
}
