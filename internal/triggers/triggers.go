// Package triggers installs declarative change rules as SQLite triggers on a local library database.
//
// Every installed trigger appends (trigger name, local id) to the change log table read by
// [repositories.ChangeLogRepository].
package triggers

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/gmsync/internal/models"
	"github.com/desertthunder/gmsync/internal/repositories"
	"github.com/desertthunder/gmsync/internal/shared"
)

// Registry holds an ordered set of uniquely named trigger definitions.
type Registry struct {
	defs  []models.TriggerDef
	index map[string]int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds def to the registry.
//
// A name that is already registered fails with [shared.ErrDuplicateTrigger]; an incomplete definition with [shared.ErrInvalidConfig].
// Both are configuration errors and are never retried.
func (r *Registry) Register(def models.TriggerDef) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}
	if _, ok := r.index[def.Name]; ok {
		return fmt.Errorf("%w: %s", shared.ErrDuplicateTrigger, def.Name)
	}
	for _, existing := range r.defs {
		if TriggerName(existing.Name) == TriggerName(def.Name) {
			return fmt.Errorf("%w: %s collides with %s", shared.ErrDuplicateTrigger, def.Name, existing.Name)
		}
	}

	r.index[def.Name] = len(r.defs)
	r.defs = append(r.defs, def)
	return nil
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (models.TriggerDef, bool) {
	i, ok := r.index[name]
	if !ok {
		return models.TriggerDef{}, false
	}
	return r.defs[i], true
}

// Definitions returns the registered definitions in registration order.
func (r *Registry) Definitions() []models.TriggerDef {
	out := make([]models.TriggerDef, len(r.defs))
	copy(out, r.defs)
	return out
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	return len(r.defs)
}

// Install creates the change log table and every registered trigger in one transaction.
// Triggers that already exist are left untouched.
func (r *Registry) Install(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, repositories.ChangeLogSchema); err != nil {
		return fmt.Errorf("failed to create change log: %w", err)
	}

	for _, def := range r.defs {
		if _, err := tx.ExecContext(ctx, TriggerDDL(def)); err != nil {
			return fmt.Errorf("failed to install trigger %s: %w", def.Name, err)
		}
	}

	return tx.Commit()
}

// Uninstall drops every registered trigger. The change log and its pending events are kept.
func (r *Registry) Uninstall(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, def := range r.defs {
		if _, err := tx.ExecContext(ctx, DropTriggerDDL(def)); err != nil {
			return fmt.Errorf("failed to drop trigger %s: %w", def.Name, err)
		}
	}

	return tx.Commit()
}

// Installed lists the names of the gmsync triggers present in db.
func Installed(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'trigger' AND name LIKE ? ESCAPE '\' ORDER BY name`,
		`gmsync\_%`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list triggers: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan trigger name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
