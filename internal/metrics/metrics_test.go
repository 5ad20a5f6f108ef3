package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	t.Run("Records Events", func(t *testing.T) {
		m := New(prometheus.NewRegistry())

		m.Event("library", "song_added", "succeeded")
		m.Event("library", "song_added", "succeeded")
		m.Event("library", "song_removed", "failed_fatal")
		m.Retry("library", "push")
		m.SetPending("library", 4)
		m.ObservePush("library", "song_added", "succeeded", 20*time.Millisecond)

		if got := testutil.ToFloat64(m.events.WithLabelValues("library", "song_added", "succeeded")); got != 2 {
			t.Errorf("expected 2 succeeded events, got %v", got)
		}
		if got := testutil.ToFloat64(m.retries.WithLabelValues("library", "push")); got != 1 {
			t.Errorf("expected 1 retry, got %v", got)
		}
		if got := testutil.ToFloat64(m.pending.WithLabelValues("library")); got != 4 {
			t.Errorf("expected 4 pending, got %v", got)
		}
		if got := testutil.ToFloat64(m.lastSuccess.WithLabelValues("library")); got == 0 {
			t.Error("expected last success timestamp to be set")
		}
	})

	t.Run("Nil Is A No-op", func(t *testing.T) {
		var m *Metrics
		m.Event("library", "song_added", "succeeded")
		m.Retry("library", "push")
		m.SetPending("library", 1)
		m.ObservePush("library", "song_added", "succeeded", time.Second)

		h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})

	t.Run("Middleware Uses Route Pattern", func(t *testing.T) {
		m := New(prometheus.NewRegistry())

		r := chi.NewRouter()
		r.Use(m.Middleware)
		r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})

		for range 2 {
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/7", nil))
		}

		if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues(http.MethodGet, "/items/{id}", "418")); got != 2 {
			t.Errorf("expected 2 requests for the route pattern, got %v", got)
		}
		if got := testutil.ToFloat64(m.requestsInFlight); got != 0 {
			t.Errorf("expected no requests in flight, got %v", got)
		}
	})
}
