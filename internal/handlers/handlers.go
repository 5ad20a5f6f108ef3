// Package handlers defines the contract media player integrations implement to push one local change to the remote catalog.
//
// A [Bundle] binds trigger definitions to handler [Factory] functions. For every change event the dispatcher
// builds an [Env] and calls the bound handler's Push exactly once. Handlers never swallow failures: remote,
// storage, [shared.ErrUnmappedID] and [shared.ErrLocalOutdated] errors are returned as-is and classified by [Classify].
package handlers

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/gmsync/internal/models"
	"github.com/desertthunder/gmsync/internal/services"
	"github.com/desertthunder/gmsync/internal/shared"
	"github.com/desertthunder/gmsync/internal/triggers"
)

// Handler performs the remote effect of one change event.
//
// Push returns a result when a remote item was created or deleted, and nil for pure updates.
type Handler interface {
	Push(ctx context.Context) (*models.HandlerResult, error)
}

// HandlerFunc adapts a function to the [Handler] interface.
type HandlerFunc func(ctx context.Context) (*models.HandlerResult, error)

func (f HandlerFunc) Push(ctx context.Context) (*models.HandlerResult, error) {
	return f(ctx)
}

// Factory builds a handler for a single change event. Handlers hold no state beyond env.
type Factory func(env Env) Handler

// Resolver maps a local id to its remote id, failing with [shared.ErrUnmappedID] when no mapping exists.
type Resolver func(ctx context.Context, localID string, t models.ItemType) (string, error)

// Querier is the read access a handler gets to its local library database.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MappingReader is the read access a handler gets to the mapping store.
type MappingReader interface {
	Resolve(ctx context.Context, localID string, t models.ItemType) (string, error)
	Get(ctx context.Context, localID string, t models.ItemType) (*models.MappingEntry, error)
}

// Env is everything a handler may use while pushing one change.
type Env struct {
	LocalID string
	Client  services.Client
	Local   Querier
	Mapping MappingReader
	Resolve Resolver
	Logger  *log.Logger
}

// SongID resolves the handler's own local id to its remote song id.
//
// Every call queries the mapping store again; the value is never cached.
func (e Env) SongID(ctx context.Context) (string, error) {
	return e.own(ctx, models.ItemSong)
}

// PlaylistID resolves the handler's own local id to its remote playlist id.
//
// Every call queries the mapping store again; the value is never cached.
func (e Env) PlaylistID(ctx context.Context) (string, error) {
	return e.own(ctx, models.ItemPlaylist)
}

func (e Env) own(ctx context.Context, t models.ItemType) (string, error) {
	id, err := e.Resolve(ctx, e.LocalID, t)
	if err != nil {
		return "", err
	}
	if e.Logger != nil {
		e.Logger.Info("resolved own id", "item_type", t, "remote_id", id)
	}
	return id, nil
}

// ActionPair binds a trigger definition to the handler that processes its events.
//
// Deletes names the item type a delete-class handler removes. When such a handler reports that its local row
// is gone, or that its own mapping is missing, the delete is treated as already achieved.
type ActionPair struct {
	Trigger models.TriggerDef
	New     Factory
	Deletes models.ItemType
}

// Bundle is the configuration a media player integration supplies: ordered trigger/handler pairs
// and a factory for connections to its local library database.
type Bundle struct {
	Pairs   []ActionPair
	Connect func() (*sql.DB, error)
}

// Registry validates the bundle and returns its trigger definitions as a [triggers.Registry].
//
// Duplicate trigger names fail with [shared.ErrDuplicateTrigger].
func (b Bundle) Registry() (*triggers.Registry, error) {
	reg := triggers.NewRegistry()
	for i, pair := range b.Pairs {
		if pair.New == nil {
			return nil, fmt.Errorf("%w: pair %d (%s) has no handler", shared.ErrInvalidConfig, i, pair.Trigger.Name)
		}
		if pair.Deletes != "" && !pair.Deletes.Valid() {
			return nil, fmt.Errorf("%w: pair %s deletes unknown item type %q", shared.ErrInvalidConfig, pair.Trigger.Name, pair.Deletes)
		}
		if err := reg.Register(pair.Trigger); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Validate checks the bundle without building a registry.
func (b Bundle) Validate() error {
	if b.Connect == nil {
		return fmt.Errorf("%w: bundle has no local connection factory", shared.ErrInvalidConfig)
	}
	_, err := b.Registry()
	return err
}
