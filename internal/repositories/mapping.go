package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/gmsync/internal/models"
	"github.com/desertthunder/gmsync/internal/shared"
)

// MappingRepository is the identifier mapping store for one media player.
//
// Several players may share a mapping database; every query is scoped to the player the repository was built for.
type MappingRepository struct {
	db     *sql.DB
	player string
}

// NewMappingRepository creates a MappingRepository scoped to player.
func NewMappingRepository(db *sql.DB, player string) *MappingRepository {
	return &MappingRepository{db: db, player: player}
}

// Player returns the player the repository is scoped to.
func (r *MappingRepository) Player() string {
	return r.player
}

// Resolve returns the remote id mapped to (localID, t).
//
// Fails with [shared.ErrUnmappedID] when no mapping exists.
func (r *MappingRepository) Resolve(ctx context.Context, localID string, t models.ItemType) (string, error) {
	var remoteID string
	err := r.db.QueryRowContext(ctx,
		"SELECT remote_id FROM mappings WHERE player = ? AND local_id = ? AND item_type = ?",
		r.player, localID, string(t),
	).Scan(&remoteID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s %s", shared.ErrUnmappedID, t, localID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s %s: %w", t, localID, err)
	}
	return remoteID, nil
}

// Get retrieves the full mapping entry for (localID, t).
func (r *MappingRepository) Get(ctx context.Context, localID string, t models.ItemType) (*models.MappingEntry, error) {
	query := `
		SELECT player, local_id, item_type, remote_id, created_at
		FROM mappings
		WHERE player = ? AND local_id = ? AND item_type = ?
	`

	entry, err := r.scanOne(r.db.QueryRowContext(ctx, query, r.player, localID, string(t)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", shared.ErrUnmappedID, t, localID)
	}
	return entry, err
}

// Insert stores a new mapping entry.
//
// The store never overwrites: if the key already has an entry the insert fails with [shared.ErrMappingConflict].
func (r *MappingRepository) Insert(ctx context.Context, localID string, t models.ItemType, remoteID string) error {
	return r.insert(ctx, r.db, localID, t, remoteID)
}

// Remove deletes the mapping entry for (localID, t). Removing an absent key succeeds.
func (r *MappingRepository) Remove(ctx context.Context, localID string, t models.ItemType) error {
	_, err := r.remove(ctx, r.db, localID, t)
	return err
}

// Apply commits the mapping delta carried by a handler result in a single transaction.
//
// A create inserts exactly one entry, a delete removes at most one.
func (r *MappingRepository) Apply(ctx context.Context, localID string, result *models.HandlerResult) error {
	if result == nil {
		return nil
	}
	if err := result.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return r.apply(ctx, tx, localID, result)
	})
}

// ApplyChange commits the mapping delta of change seq like [MappingRepository.Apply] and, in the
// same transaction, marks seq as applied. The mark stays until [MappingRepository.Forget] so a
// change whose acknowledgement failed is never pushed again.
func (r *MappingRepository) ApplyChange(ctx context.Context, seq int64, localID string, result *models.HandlerResult) error {
	if result != nil {
		if err := result.Validate(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if result != nil {
			if err := r.apply(ctx, tx, localID, result); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO applied_changes (player, seq, created_at) VALUES (?, ?, ?)",
			r.player, seq, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to mark change %d applied: %w", seq, err)
		}
		return nil
	})
}

// Applied reports whether change seq has a committed mapping delta that was never acknowledged.
func (r *MappingRepository) Applied(ctx context.Context, seq int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM applied_changes WHERE player = ? AND seq = ?)",
		r.player, seq,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check change %d: %w", seq, err)
	}
	return exists, nil
}

// Forget clears the applied mark of change seq.
func (r *MappingRepository) Forget(ctx context.Context, seq int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM applied_changes WHERE player = ? AND seq = ?", r.player, seq)
	if err != nil {
		return fmt.Errorf("failed to clear change %d: %w", seq, err)
	}
	return nil
}

func (r *MappingRepository) apply(ctx context.Context, ex execer, localID string, result *models.HandlerResult) error {
	switch result.Action {
	case models.ActionCreate:
		return r.insert(ctx, ex, localID, result.ItemType, result.RemoteID)
	default:
		_, err := r.remove(ctx, ex, localID, result.ItemType)
		return err
	}
}

// List retrieves mapping entries matching the given criteria.
//
// Supported criteria: "item_type" (string or [models.ItemType]) and "remote_id" (string).
func (r *MappingRepository) List(ctx context.Context, criteria map[string]any) ([]*models.MappingEntry, error) {
	query := `
		SELECT player, local_id, item_type, remote_id, created_at
		FROM mappings
		WHERE player = ?
	`
	args := []any{r.player}

	switch t := criteria["item_type"].(type) {
	case models.ItemType:
		query += " AND item_type = ?"
		args = append(args, string(t))
	case string:
		if t != "" {
			query += " AND item_type = ?"
			args = append(args, t)
		}
	}

	if remoteID, ok := criteria["remote_id"].(string); ok && remoteID != "" {
		query += " AND remote_id = ?"
		args = append(args, remoteID)
	}

	query += " ORDER BY item_type ASC, created_at ASC, local_id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer rows.Close()

	var entries []*models.MappingEntry
	for rows.Next() {
		entry, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mappings: %w", err)
	}

	return entries, nil
}

func (r *MappingRepository) insert(ctx context.Context, ex execer, localID string, t models.ItemType, remoteID string) error {
	entry := models.MappingEntry{Player: r.player, LocalID: localID, ItemType: t, RemoteID: remoteID}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	result, err := ex.ExecContext(ctx, `
		INSERT INTO mappings (player, local_id, item_type, remote_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (player, local_id, item_type) DO NOTHING
	`, r.player, localID, string(t), remoteID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert mapping: %w", err)
	}

	rows, err := affected(result)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s %s", shared.ErrMappingConflict, t, localID)
	}
	return nil
}

func (r *MappingRepository) remove(ctx context.Context, ex execer, localID string, t models.ItemType) (int64, error) {
	result, err := ex.ExecContext(ctx,
		"DELETE FROM mappings WHERE player = ? AND local_id = ? AND item_type = ?",
		r.player, localID, string(t),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to remove mapping: %w", err)
	}
	return affected(result)
}

func (r *MappingRepository) scanOne(row rowScanner) (*models.MappingEntry, error) {
	var (
		entry    models.MappingEntry
		itemType string
	)

	if err := row.Scan(&entry.Player, &entry.LocalID, &itemType, &entry.RemoteID, &entry.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan mapping: %w", err)
	}

	entry.ItemType = models.ItemType(itemType)
	return &entry, nil
}
