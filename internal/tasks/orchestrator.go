package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/gmsync/internal/handlers"
	"github.com/desertthunder/gmsync/internal/metrics"
	"github.com/desertthunder/gmsync/internal/models"
	"github.com/desertthunder/gmsync/internal/repositories"
	"github.com/desertthunder/gmsync/internal/services"
	"github.com/desertthunder/gmsync/internal/shared"
)

const defaultPollInterval = 2 * time.Second

// FatalError is returned when a change event reaches [FailedFatal] and the worker halts.
type FatalError struct {
	Integration string
	Event       models.ChangeEvent
	Err         error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: change #%d %s(%s) failed: %v", e.Integration, e.Event.Seq, e.Event.Trigger, e.Event.LocalID, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// OrchestratorOpts configures an [Orchestrator].
type OrchestratorOpts struct {
	Name          string
	Dispatcher    *Dispatcher
	Changes       *repositories.ChangeLogRepository
	Mappings      *repositories.MappingRepository
	Failures      *repositories.FailureRepository
	Policy        RetryPolicy
	RetryUnmapped bool          // Retry non-delete handlers that hit an unmapped id instead of failing
	PollInterval  time.Duration // Default: 2s
	Logger        *log.Logger
	Metrics       *metrics.Metrics // Optional
	Updates       chan<- Update    // Optional, never blocks
	Local         *sql.DB          // Closed by [Orchestrator.Close] when set
}

// Orchestrator is the sequential worker of one integration.
//
// It drains the change log in arrival order, dispatches each event, classifies the outcome
// and applies mapping deltas. Mapping writes happen only after a push returned successfully.
type Orchestrator struct {
	name          string
	dispatcher    *Dispatcher
	changes       *repositories.ChangeLogRepository
	mappings      *repositories.MappingRepository
	failures      *repositories.FailureRepository
	policy        RetryPolicy
	retryUnmapped bool
	pollInterval  time.Duration
	logger        *log.Logger
	metrics       *metrics.Metrics
	updates       chan<- Update
	local         *sql.DB

	mu    sync.Mutex
	stats WorkerStatus
}

// NewOrchestrator creates an Orchestrator from opts.
func NewOrchestrator(opts OrchestratorOpts) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Orchestrator{
		name:          opts.Name,
		dispatcher:    opts.Dispatcher,
		changes:       opts.Changes,
		mappings:      opts.Mappings,
		failures:      opts.Failures,
		policy:        opts.Policy,
		retryUnmapped: opts.RetryUnmapped,
		pollInterval:  opts.PollInterval,
		logger:        shared.WithLogger(opts.Logger, "integration", opts.Name),
		metrics:       opts.Metrics,
		updates:       opts.Updates,
		local:         opts.Local,
		stats:         WorkerStatus{Name: opts.Name, State: WorkerIdle},
	}
}

// Name returns the integration name.
func (o *Orchestrator) Name() string {
	return o.name
}

// verdict is what the orchestrator does with an outcome.
type verdict int

const (
	commit  verdict = iota // apply the result, if any
	vacuous                // the delete already happened: drop any mapping for the key
	retry
	fatal
)

func (o *Orchestrator) decide(out handlers.Outcome) verdict {
	switch out.Kind {
	case handlers.OutcomeSucceeded:
		return commit
	case handlers.OutcomeLocalOutdated:
		if out.DeleteClass() {
			return vacuous
		}
		return commit
	case handlers.OutcomeUnmapped:
		if out.DeleteClass() {
			return vacuous
		}
		if o.retryUnmapped {
			return retry
		}
		return fatal
	case handlers.OutcomeRemoteFailed:
		if out.DeleteClass() && services.IsNotFound(out.Err) {
			return vacuous
		}
		if out.Transient() {
			return retry
		}
		return fatal
	case handlers.OutcomeStorageFailed:
		if out.Transient() {
			return retry
		}
		return fatal
	default:
		return fatal
	}
}

// Process runs one change event to a terminal state.
//
// Transient push failures are retried per the retry policy; exhausting it is fatal. Once a push
// has succeeded, applying its mapping delta and acknowledging the event ignore cancellation of ctx
// and only the failing step is retried, never the push.
//
// Returns a [*FatalError] when the event failed fatally. When ctx is cancelled while waiting to
// retry a push, the event stays in the change log and ctx.Err() is returned.
//
// An event whose mapping delta was committed by an earlier run but never acknowledged is
// acknowledged without pushing it again.
func (o *Orchestrator) Process(ctx context.Context, event *models.ChangeEvent) error {
	logger := shared.WithLogger(o.logger, "seq", event.Seq, "trigger", event.Trigger, "local_id", event.LocalID)
	o.emit(event, Detected, 0, nil)

	applied, err := o.mappings.Applied(ctx, event.Seq)
	if err != nil {
		return err
	}
	if applied {
		logger.Warn("mapping already committed, acknowledging without a push")
		return o.acknowledge(context.WithoutCancel(ctx), logger, event, 0)
	}

	var (
		out      handlers.Outcome
		v        verdict
		attempts int
	)

	push := func() error {
		attempts++
		o.emit(event, Dispatched, attempts, nil)

		start := time.Now()
		out = o.dispatcher.Dispatch(ctx, event)
		o.metrics.ObservePush(o.name, event.Trigger, out.Kind.String(), time.Since(start))

		v = o.decide(out)
		switch v {
		case retry:
			return out.Err
		case fatal:
			return backoff.Permanent(out.Err)
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		o.metrics.Retry(o.name, "push")
		o.emit(event, FailedRetryable, attempts, err)
		logger.Warn("push failed, retrying", "attempt", attempts, "kind", out.Kind, "in", next, "err", err)
	}

	if err := backoff.RetryNotify(push, o.policy.BackOff(ctx), notify); err != nil {
		if v == retry && ctx.Err() != nil {
			logger.Info("stopped while waiting to retry, change stays queued", "attempts", attempts)
			return ctx.Err()
		}
		return o.fail(context.WithoutCancel(ctx), logger, event, attempts, err, false)
	}

	commitCtx := context.WithoutCancel(ctx)

	switch {
	case v == vacuous:
		logger.Info("delete already achieved, dropping mapping", "kind", out.Kind, "item_type", out.Deletes)
	case out.Kind == handlers.OutcomeLocalOutdated:
		logger.Warn("local row is gone, nothing to push", "err", out.Err)
	}

	apply := func() error {
		var err error
		if v == vacuous {
			err = o.mappings.Remove(commitCtx, event.LocalID, out.Deletes)
		} else {
			err = o.mappings.ApplyChange(commitCtx, event.Seq, event.LocalID, out.Result)
		}
		return permanentUnlessTransient(err)
	}
	if err := o.retry(commitCtx, logger, "apply", apply); err != nil {
		if out.Result != nil {
			err = fmt.Errorf("apply %s %s → %s: %w", out.Result.Action, out.Result.ItemType, out.Result.RemoteID, err)
		}
		return o.fail(commitCtx, logger, event, attempts, err, true)
	}

	if err := o.acknowledge(commitCtx, logger, event, attempts); err != nil {
		return err
	}

	if out.Result != nil {
		logger.Info("synced", "action", out.Result.Action, "item_type", out.Result.ItemType, "remote_id", out.Result.RemoteID)
	} else {
		logger.Debug("synced")
	}
	return nil
}

// acknowledge removes a committed event from the change log, then clears its applied mark.
//
// A failed ack halts the worker with the mark still set, so the next run acknowledges the
// event without replaying its push.
func (o *Orchestrator) acknowledge(ctx context.Context, logger *log.Logger, event *models.ChangeEvent, attempts int) error {
	ack := func() error {
		return permanentUnlessTransient(o.changes.Ack(ctx, event.Seq))
	}
	if err := o.retry(ctx, logger, "ack", ack); err != nil {
		return o.fail(ctx, logger, event, attempts, fmt.Errorf("acknowledge change: %w", err), false)
	}

	if err := o.mappings.Forget(ctx, event.Seq); err != nil {
		logger.Warn("failed to clear applied mark", "err", err)
	}

	o.emit(event, Succeeded, attempts, nil)
	o.record(func(s *WorkerStatus) {
		s.Processed++
		s.LastSeq = event.Seq
	})
	return nil
}

// retry runs a post-push step with the retry policy.
func (o *Orchestrator) retry(ctx context.Context, logger *log.Logger, step string, op backoff.Operation) error {
	return backoff.RetryNotify(op, o.policy.BackOff(ctx), func(err error, next time.Duration) {
		o.metrics.Retry(o.name, step)
		logger.Warn(step+" failed, retrying", "in", next, "err", err)
	})
}

func permanentUnlessTransient(err error) error {
	if err == nil || shared.IsTransientStorage(err) {
		return err
	}
	return backoff.Permanent(err)
}

// fail records a fatal failure. When ack is set the event is removed from the change log,
// so the push that already reached the remote side is not replayed on restart.
func (o *Orchestrator) fail(ctx context.Context, logger *log.Logger, event *models.ChangeEvent, attempts int, err error, ack bool) error {
	if o.failures != nil {
		failure := &models.Failure{
			Player:   o.name,
			Seq:      event.Seq,
			Trigger:  event.Trigger,
			LocalID:  event.LocalID,
			Attempts: attempts,
			Error:    err.Error(),
		}
		if rerr := o.failures.Record(ctx, failure); rerr != nil {
			logger.Error("failed to record failure", "err", rerr)
		}
	}

	if ack {
		if aerr := o.changes.Ack(ctx, event.Seq); aerr != nil {
			logger.Error("failed to acknowledge failed change", "err", aerr)
		}
	}

	o.emit(event, FailedFatal, attempts, err)
	logger.Error("change failed, halting worker", "attempts", attempts, "err", err)

	o.record(func(s *WorkerStatus) {
		s.Failed++
		s.LastSeq = event.Seq
		s.LastError = err.Error()
	})
	return &FatalError{Integration: o.name, Event: *event, Err: err}
}

// Drain processes change events until the log is empty and returns how many succeeded.
//
// ctx is checked between events, never during one.
func (o *Orchestrator) Drain(ctx context.Context) (int, error) {
	n := 0
	defer o.updatePending(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		event, err := o.changes.Next(ctx)
		if err != nil {
			return n, fmt.Errorf("read change log: %w", err)
		}
		if event == nil {
			return n, nil
		}

		if err := o.Process(ctx, event); err != nil {
			return n, err
		}
		n++
	}
}

// Run drains the change log every poll interval until ctx is cancelled or an event fails fatally.
//
// Cancellation is not an error. A busy local database is retried on the next poll.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.setState(WorkerRunning)
	o.logger.Info("worker started", "poll_interval", o.pollInterval)

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := o.Drain(ctx); err != nil {
			var fatalErr *FatalError
			switch {
			case ctx.Err() != nil:
				o.setState(WorkerStopped)
				return nil
			case !errors.As(err, &fatalErr) && shared.IsTransientStorage(err):
				o.logger.Warn("change log busy, retrying on next poll", "err", err)
			default:
				o.setState(WorkerHalted)
				o.record(func(s *WorkerStatus) { s.LastError = err.Error() })
				return err
			}
		}

		select {
		case <-ctx.Done():
			o.setState(WorkerStopped)
			o.logger.Info("worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Status returns a snapshot of the worker's counters.
func (o *Orchestrator) Status() WorkerStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// Close releases the local library connection.
func (o *Orchestrator) Close() error {
	if o.local == nil {
		return nil
	}
	return o.local.Close()
}

func (o *Orchestrator) emit(event *models.ChangeEvent, state State, attempt int, err error) {
	o.metrics.Event(o.name, event.Trigger, state.String())
	sendUpdate(o.updates, Update{
		Integration: o.name,
		Seq:         event.Seq,
		Trigger:     event.Trigger,
		LocalID:     event.LocalID,
		State:       state,
		Attempt:     attempt,
		Err:         err,
		Time:        time.Now(),
	})
}

func (o *Orchestrator) updatePending(ctx context.Context) {
	n, err := o.changes.Pending(context.WithoutCancel(ctx))
	if err != nil {
		return
	}
	o.metrics.SetPending(o.name, n)
	o.record(func(s *WorkerStatus) { s.Pending = n })
}

func (o *Orchestrator) setState(state WorkerState) {
	o.record(func(s *WorkerStatus) { s.State = state })
}

func (o *Orchestrator) record(fn func(s *WorkerStatus)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.stats)
}
