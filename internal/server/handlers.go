package server

import (
	"encoding/json"
	"net/http"

	"github.com/desertthunder/gmsync/internal/tasks"
)

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string   `json:"status"`
	Halted []string `json:"halted,omitempty"`
}

type statusResponse struct {
	Workers []tasks.WorkerStatus `json:"workers"`
}

type statusHandler struct {
	source StatusSource
}

func (h *statusHandler) workers() []tasks.WorkerStatus {
	if h.source == nil {
		return []tasks.WorkerStatus{}
	}
	return h.source.Status()
}

// Health handles GET /healthz.
func (h *statusHandler) Health(w http.ResponseWriter, r *http.Request) {
	var halted []string
	for _, s := range h.workers() {
		if s.State == tasks.WorkerHalted {
			halted = append(halted, s.Name)
		}
	}

	if len(halted) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Halted: halted})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// Status handles GET /status.
func (h *statusHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Workers: h.workers()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
