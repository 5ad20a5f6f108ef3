package tasks

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/gmsync/internal/handlers"
	"github.com/desertthunder/gmsync/internal/models"
	"github.com/desertthunder/gmsync/internal/repositories"
	"github.com/desertthunder/gmsync/internal/services"
	"github.com/desertthunder/gmsync/internal/shared"
)

// Dispatcher resolves change events to their bound handler and pushes them.
type Dispatcher struct {
	pairs    map[string]handlers.ActionPair
	client   services.Client
	local    *sql.DB
	mappings *repositories.MappingRepository
	logger   *log.Logger
}

// NewDispatcher indexes the bundle's pairs by trigger name.
//
// Duplicate trigger names fail with [shared.ErrDuplicateTrigger].
func NewDispatcher(bundle handlers.Bundle, client services.Client, local *sql.DB, mappings *repositories.MappingRepository, logger *log.Logger) (*Dispatcher, error) {
	if _, err := bundle.Registry(); err != nil {
		return nil, err
	}

	pairs := make(map[string]handlers.ActionPair, len(bundle.Pairs))
	for _, pair := range bundle.Pairs {
		pairs[pair.Trigger.Name] = pair
	}

	return &Dispatcher{
		pairs:    pairs,
		client:   client,
		local:    local,
		mappings: mappings,
		logger:   logger,
	}, nil
}

// Dispatch pushes event through its bound handler and classifies the result.
//
// An event whose trigger has no bound handler yields an [handlers.OutcomeConfig] outcome.
// The handler runs on a context that is never cancelled, so a started push always completes.
func (d *Dispatcher) Dispatch(ctx context.Context, event *models.ChangeEvent) (out handlers.Outcome) {
	pair, ok := d.pairs[event.Trigger]
	if !ok {
		return handlers.Outcome{Kind: handlers.OutcomeConfig, Err: fmt.Errorf("%w: %s", shared.ErrUnboundTrigger, event.Trigger)}
	}

	env := handlers.Env{
		LocalID: event.LocalID,
		Client:  d.client,
		Local:   d.local,
		Mapping: d.mappings,
		Resolve: d.mappings.Resolve,
		Logger:  shared.WithLogger(d.logger, "trigger", event.Trigger, "local_id", event.LocalID, "seq", event.Seq),
	}

	defer func() {
		if r := recover(); r != nil {
			out = handlers.Outcome{
				Kind:    handlers.OutcomeConfig,
				Err:     fmt.Errorf("%w: handler for %s panicked: %v", shared.ErrInvalidConfig, event.Trigger, r),
				Deletes: pair.Deletes,
			}
		}
	}()

	handler := pair.New(env)
	if handler == nil {
		return handlers.Outcome{Kind: handlers.OutcomeConfig, Err: fmt.Errorf("%w: factory for %s returned no handler", shared.ErrInvalidConfig, event.Trigger)}
	}

	out = handlers.Classify(handler.Push(context.WithoutCancel(ctx)))
	out.Deletes = pair.Deletes
	return out
}
