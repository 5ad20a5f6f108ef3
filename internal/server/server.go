// package server contains middleware & handlers for the status server
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/desertthunder/gmsync/internal/metrics"
	"github.com/desertthunder/gmsync/internal/tasks"
)

const shutdownTimeout = 5 * time.Second

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// StatusSource reports worker snapshots. Implemented by [tasks.Service].
type StatusSource interface {
	Status() []tasks.WorkerStatus
}

// Options configures [New].
type Options struct {
	Logger   *log.Logger
	Status   StatusSource
	Metrics  *metrics.Metrics    // Optional
	Gatherer prometheus.Gatherer // Optional; /metrics is not mounted without it
}

// New creates the status router.
func New(opts Options) http.Handler {
	mux := chi.NewRouter()

	mux.Use(RequestID)
	mux.Use(Logging(opts.Logger))
	mux.Use(Recovery(opts.Logger))
	mux.Use(opts.Metrics.Middleware)

	h := &statusHandler{source: opts.Status}
	mux.Get("/healthz", h.Health)
	mux.Get("/status", h.Status)

	if opts.Gatherer != nil {
		mux.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *log.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("status server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
