package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/gmsync/internal/handlers"
	"github.com/desertthunder/gmsync/internal/metrics"
	"github.com/desertthunder/gmsync/internal/repositories"
	"github.com/desertthunder/gmsync/internal/services"
	"github.com/desertthunder/gmsync/internal/shared"
)

// WorkerState is the lifecycle state of an integration worker.
type WorkerState int

const (
	WorkerIdle WorkerState = iota
	WorkerRunning
	WorkerHalted
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerRunning:
		return "running"
	case WorkerHalted:
		return "halted"
	case WorkerStopped:
		return "stopped"
	default:
		return ""
	}
}

// MarshalText renders the state by name in JSON status responses.
func (s WorkerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// WorkerStatus is a snapshot of one worker.
type WorkerStatus struct {
	Name      string      `json:"name"`
	State     WorkerState `json:"state"`
	Processed int         `json:"processed"`
	Failed    int         `json:"failed"`
	Pending   int         `json:"pending"`
	LastSeq   int64       `json:"last_seq"`
	LastError string      `json:"last_error,omitempty"`
}

// WorkerDeps are the process-wide collaborators shared by every worker.
type WorkerDeps struct {
	Client        services.Client
	MappingDB     *sql.DB
	Policy        RetryPolicy
	RetryUnmapped bool
	Logger        *log.Logger
	Metrics       *metrics.Metrics
	Updates       chan<- Update
}

// NewWorker opens the integration's local library, installs its triggers and builds its [Orchestrator].
//
// The orchestrator owns the local connection; call [Orchestrator.Close] when done.
func NewWorker(ctx context.Context, conf shared.IntegrationConfig, bundle handlers.Bundle, deps WorkerDeps) (*Orchestrator, error) {
	if err := bundle.Validate(); err != nil {
		return nil, fmt.Errorf("integration %s: %w", conf.Name, err)
	}

	reg, err := bundle.Registry()
	if err != nil {
		return nil, fmt.Errorf("integration %s: %w", conf.Name, err)
	}

	local, err := bundle.Connect()
	if err != nil {
		return nil, fmt.Errorf("integration %s: failed to open local library: %w", conf.Name, err)
	}

	if err := reg.Install(ctx, local); err != nil {
		local.Close()
		return nil, fmt.Errorf("integration %s: %w", conf.Name, err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	mappings := repositories.NewMappingRepository(deps.MappingDB, conf.Name)
	dispatcher, err := NewDispatcher(bundle, deps.Client, local, mappings, shared.WithLogger(logger, "integration", conf.Name))
	if err != nil {
		local.Close()
		return nil, fmt.Errorf("integration %s: %w", conf.Name, err)
	}

	return NewOrchestrator(OrchestratorOpts{
		Name:          conf.Name,
		Dispatcher:    dispatcher,
		Changes:       repositories.NewChangeLogRepository(local),
		Mappings:      mappings,
		Failures:      repositories.NewFailureRepository(deps.MappingDB),
		Policy:        deps.Policy,
		RetryUnmapped: deps.RetryUnmapped,
		PollInterval:  conf.PollInterval,
		Logger:        logger,
		Metrics:       deps.Metrics,
		Updates:       deps.Updates,
		Local:         local,
	}), nil
}

// Service runs one worker per integration concurrently.
//
// Workers share no mutable state. A fatal error halts only the worker it happened in.
type Service struct {
	logger  *log.Logger
	workers []*Orchestrator
}

// NewService creates a Service over workers.
func NewService(logger *log.Logger, workers ...*Orchestrator) *Service {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Service{logger: logger, workers: workers}
}

// Run starts every worker and blocks until all of them have stopped.
// The returned error joins the fatal errors of halted workers.
func (s *Service) Run(ctx context.Context) error {
	return s.each(func(o *Orchestrator) error {
		return o.Run(ctx)
	})
}

// Drain processes every pending change of every worker once and returns.
func (s *Service) Drain(ctx context.Context) error {
	return s.each(func(o *Orchestrator) error {
		n, err := o.Drain(ctx)
		s.logger.Info("drained", "integration", o.Name(), "synced", n)
		return err
	})
}

func (s *Service) each(fn func(o *Orchestrator) error) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)

	for _, o := range s.workers {
		g.Go(func() error {
			if err := fn(o); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()
	return errors.Join(errs...)
}

// Status returns a snapshot of every worker, in configuration order.
func (s *Service) Status() []WorkerStatus {
	out := make([]WorkerStatus, 0, len(s.workers))
	for _, o := range s.workers {
		out = append(out, o.Status())
	}
	return out
}

// Close releases every worker's local connection.
func (s *Service) Close() error {
	var errs []error
	for _, o := range s.workers {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
