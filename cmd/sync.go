package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/gmsync/internal/metrics"
	"github.com/desertthunder/gmsync/internal/server"
	"github.com/desertthunder/gmsync/internal/tasks"
	"github.com/desertthunder/gmsync/internal/ui"
)

const updateBuffer = 256

// buildService opens the mapping database and creates one worker per selected integration.
//
// Callers close the service, then the returned database.
func (r *Runner) buildService(ctx context.Context, name string, updates chan<- tasks.Update, m *metrics.Metrics) (*tasks.Service, *sql.DB, error) {
	if err := r.config.Validate(); err != nil {
		return nil, nil, err
	}

	all, err := r.integrations(name)
	if err != nil {
		return nil, nil, err
	}

	mappingDB, err := r.openMappingDB(ctx)
	if err != nil {
		return nil, nil, err
	}

	deps := tasks.WorkerDeps{
		Client:        r.remoteClient(ctx),
		MappingDB:     mappingDB,
		Policy:        tasks.NewRetryPolicy(r.config.Retry),
		RetryUnmapped: r.config.Retry.RetryUnmapped,
		Logger:        r.logger,
		Metrics:       m,
		Updates:       updates,
	}

	workers := make([]*tasks.Orchestrator, 0, len(all))
	cleanup := func() {
		for _, w := range workers {
			w.Close()
		}
		mappingDB.Close()
	}

	for _, in := range all {
		bundle, _, err := r.bundle(in)
		if err != nil {
			cleanup()
			return nil, nil, err
		}

		w, err := tasks.NewWorker(ctx, in, bundle, deps)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		workers = append(workers, w)
	}

	return tasks.NewService(r.logger, workers...), mappingDB, nil
}

// SyncRun runs the workers until interrupted, or drains pending changes once with --once.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	updates := make(chan tasks.Update, updateBuffer)
	svc, mappingDB, err := r.buildService(ctx, cmd.String("integration"), updates, m)
	if err != nil {
		return err
	}
	defer mappingDB.Close()
	defer svc.Close()

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for u := range updates {
			if cmd.Bool("quiet") || !(u.State.Terminal() || u.State == tasks.FailedRetryable) {
				continue
			}
			r.writePlainln(ui.RenderUpdate(u))
		}
	}()

	if cmd.Bool("once") {
		err = svc.Drain(ctx)
	} else {
		err = r.serve(ctx, svc, m, reg, cmd.Bool("serve"))
	}

	close(updates)
	<-printed

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// serve runs the workers, plus the status server when enabled, until ctx is cancelled
// or every worker has stopped.
func (r *Runner) serve(ctx context.Context, svc *tasks.Service, m *metrics.Metrics, reg *prometheus.Registry, force bool) error {
	var g errgroup.Group

	srvCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	if force || r.config.Server.Enabled {
		handler := server.New(server.Options{Logger: r.logger, Status: svc, Metrics: m, Gatherer: reg})
		g.Go(func() error {
			if err := server.Serve(srvCtx, r.config.Server.Addr(), handler, r.logger); err != nil {
				r.logger.Error("status server stopped", "err", err)
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		defer stopServer()
		return svc.Run(ctx)
	})

	return g.Wait()
}

// SyncUI runs the workers under the interactive monitor.
func (r *Runner) SyncUI(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan tasks.Update, updateBuffer)
	svc, mappingDB, err := r.buildService(ctx, cmd.String("integration"), updates, nil)
	if err != nil {
		return err
	}
	defer mappingDB.Close()
	defer svc.Close()

	r.logger.SetOutput(io.Discard)
	defer r.logger.SetOutput(os.Stderr)

	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		runErr = svc.Run(ctx)
	}()

	model := ui.NewModel(ui.Options{
		Source:  svc,
		Updates: updates,
		Done:    done,
		Result:  func() error { return runErr },
		Cancel:  cancel,
	})

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		cancel()
		<-done
		return err
	}

	cancel()
	return model.Wait()
}
