package handle

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"ocs-worker/api/internal/store"
	"ocs-worker/api/internal/worker"
)

// Worker — управляемый воркер.
type Worker interface {
	ID() string
	Control() *worker.Control
	Snapshot() []worker.Result
}

// Runs — сохранённые прогоны. Может быть nil, тогда /v1/runs отдаёт 404.
type Runs interface {
	Find(ctx context.Context, runID string) (store.RunRow, error)
	ListRun(ctx context.Context, runID string) ([]worker.Summary, error)
}

type Handle struct {
	w    Worker
	runs Runs
	log  *zap.Logger
}

func New(w Worker, runs Runs, log *zap.Logger) *Handle {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handle{w: w, runs: runs, log: log}
}

// Register вешает ручки на mux.
func (h *Handle) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/worker/{signal}", h.Signal)
	mux.HandleFunc("GET /v1/worker/status", h.Status)
	mux.HandleFunc("GET /v1/worker/results", h.Results)
	mux.HandleFunc("GET /v1/runs/{id}", h.Run)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
