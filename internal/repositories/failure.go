package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/gmsync/internal/models"
	"github.com/desertthunder/gmsync/internal/shared"
)

// FailureRepository stores change events that failed fatally.
type FailureRepository struct {
	db *sql.DB
}

// NewFailureRepository creates a FailureRepository on the mapping database.
func NewFailureRepository(db *sql.DB) *FailureRepository {
	return &FailureRepository{db: db}
}

// Record inserts f, assigning its ID and CreatedAt.
func (r *FailureRepository) Record(ctx context.Context, f *models.Failure) error {
	f.ID = shared.GenerateID()
	f.CreatedAt = time.Now().UTC()
	if f.Attempts < 1 {
		f.Attempts = 1
	}

	query := `
		INSERT INTO failures (id, player, seq, trigger_name, local_id, attempts, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		f.ID,
		f.Player,
		f.Seq,
		f.Trigger,
		f.LocalID,
		f.Attempts,
		f.Error,
		f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return nil
}

// Delete removes a failure record by ID.
func (r *FailureRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM failures WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete failure: %w", err)
	}

	rows, err := affected(result)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("failure not found: %s", id)
	}
	return nil
}

// List retrieves failure records, newest first. Supported criteria: "player" (string).
func (r *FailureRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Failure, error) {
	query := `
		SELECT id, player, seq, trigger_name, local_id, attempts, error, created_at
		FROM failures
		WHERE 1 = 1
	`
	args := []any{}

	if player, ok := criteria["player"].(string); ok && player != "" {
		query += " AND player = ?"
		args = append(args, player)
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	var failures []*models.Failure
	for rows.Next() {
		var f models.Failure
		if err := rows.Scan(&f.ID, &f.Player, &f.Seq, &f.Trigger, &f.LocalID, &f.Attempts, &f.Error, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		failures = append(failures, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating failures: %w", err)
	}

	return failures, nil
}
