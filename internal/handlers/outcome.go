package handlers

import (
	"errors"
	"fmt"

	"github.com/desertthunder/gmsync/internal/models"
	"github.com/desertthunder/gmsync/internal/services"
	"github.com/desertthunder/gmsync/internal/shared"
)

// OutcomeKind classifies what happened when a handler was pushed.
type OutcomeKind int

const (
	OutcomeSucceeded OutcomeKind = iota
	OutcomeRemoteFailed
	OutcomeStorageFailed
	OutcomeUnmapped
	OutcomeLocalOutdated
	OutcomeConfig
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeRemoteFailed:
		return "remote_failed"
	case OutcomeStorageFailed:
		return "storage_failed"
	case OutcomeUnmapped:
		return "unmapped"
	case OutcomeLocalOutdated:
		return "local_outdated"
	case OutcomeConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Outcome is the explicit result of one push: a success with an optional mapping delta, or a classified failure.
type Outcome struct {
	Kind   OutcomeKind
	Result *models.HandlerResult
	Err    error

	// Deletes is copied from the [ActionPair] that produced the outcome.
	Deletes models.ItemType
}

// Classify turns the return values of [Handler.Push] into an [Outcome].
//
// Anything that is not a configuration error, a mapping error, a local outdated signal or a
// [*services.CallError] is treated as a storage failure.
func Classify(result *models.HandlerResult, err error) Outcome {
	if err == nil {
		if result != nil {
			if verr := result.Validate(); verr != nil {
				return Outcome{Kind: OutcomeConfig, Err: fmt.Errorf("%w: handler returned invalid result: %v", shared.ErrInvalidConfig, verr)}
			}
		}
		return Outcome{Kind: OutcomeSucceeded, Result: result}
	}

	var callErr *services.CallError
	switch {
	case errors.Is(err, shared.ErrUnboundTrigger),
		errors.Is(err, shared.ErrDuplicateTrigger),
		errors.Is(err, shared.ErrInvalidConfig):
		return Outcome{Kind: OutcomeConfig, Err: err}
	case errors.Is(err, shared.ErrLocalOutdated):
		return Outcome{Kind: OutcomeLocalOutdated, Err: err}
	case errors.Is(err, shared.ErrUnmappedID):
		return Outcome{Kind: OutcomeUnmapped, Err: err}
	case errors.As(err, &callErr):
		return Outcome{Kind: OutcomeRemoteFailed, Err: err}
	default:
		return Outcome{Kind: OutcomeStorageFailed, Err: err}
	}
}

// Transient reports whether a failed outcome may succeed when retried.
//
// Remote failures defer to [services.CallError.Temporary]; storage failures are transient only when
// the database was busy or locked.
func (o Outcome) Transient() bool {
	switch o.Kind {
	case OutcomeRemoteFailed:
		var callErr *services.CallError
		return errors.As(o.Err, &callErr) && callErr.Temporary()
	case OutcomeStorageFailed:
		return shared.IsTransientStorage(o.Err)
	}
	return false
}

// DeleteClass reports whether the outcome came from a handler that deletes remote items.
func (o Outcome) DeleteClass() bool {
	return o.Deletes != ""
}
