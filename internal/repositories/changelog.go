package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/gmsync/internal/models"
)

// ChangeLogSchema creates the table installed triggers append to.
//
// seq is AUTOINCREMENT so acknowledged (deleted) rows never have their sequence numbers reused.
const ChangeLogSchema = `CREATE TABLE IF NOT EXISTS ` + models.ChangeLogTable + ` (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	trigger_name TEXT NOT NULL,
	local_id     TEXT,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// ChangeLogRepository reads the change log of one local library database in arrival order.
type ChangeLogRepository struct {
	db *sql.DB
}

// NewChangeLogRepository creates a ChangeLogRepository for a local library database.
func NewChangeLogRepository(db *sql.DB) *ChangeLogRepository {
	return &ChangeLogRepository{db: db}
}

// Next returns the oldest unacknowledged change event, or nil when the log is empty.
func (r *ChangeLogRepository) Next(ctx context.Context) (*models.ChangeEvent, error) {
	query := `
		SELECT seq, trigger_name, local_id, created_at
		FROM ` + models.ChangeLogTable + `
		ORDER BY seq ASC
		LIMIT 1
	`

	event, err := r.scanOne(r.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return event, err
}

// Ack removes a processed event from the log.
func (r *ChangeLogRepository) Ack(ctx context.Context, seq int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM "+models.ChangeLogTable+" WHERE seq = ?", seq); err != nil {
		return fmt.Errorf("failed to acknowledge change %d: %w", seq, err)
	}
	return nil
}

// Pending counts the unacknowledged events.
func (r *ChangeLogRepository) Pending(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+models.ChangeLogTable).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending changes: %w", err)
	}
	return n, nil
}

// List returns up to limit unacknowledged events in arrival order. A limit of zero or less lists everything.
func (r *ChangeLogRepository) List(ctx context.Context, limit int) ([]*models.ChangeEvent, error) {
	query := `
		SELECT seq, trigger_name, local_id, created_at
		FROM ` + models.ChangeLogTable + `
		ORDER BY seq ASC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query changes: %w", err)
	}
	defer rows.Close()

	var events []*models.ChangeEvent
	for rows.Next() {
		event, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating changes: %w", err)
	}

	return events, nil
}

func (r *ChangeLogRepository) scanOne(row rowScanner) (*models.ChangeEvent, error) {
	var (
		event   models.ChangeEvent
		localID sql.NullString
	)

	if err := row.Scan(&event.Seq, &event.Trigger, &localID, &event.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan change: %w", err)
	}

	event.LocalID = localID.String
	return &event, nil
}
