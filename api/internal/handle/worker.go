package handle

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"ocs-worker/api/internal/store"
	"ocs-worker/api/internal/worker"
)

var signals = map[string]worker.Signal{
	"start":      worker.SignalStart,
	"stop":       worker.SignalStop,
	"continue":   worker.SignalContinuate,
	"continuate": worker.SignalContinuate,
	"close":      worker.SignalClose,
}

type StatusResponse struct {
	ID       string `json:"id"`
	State    string `json:"state"`
	Finished int    `json:"finished"`
	Total    int    `json:"total"`
}

func (h *Handle) Signal(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("signal")
	sig, ok := signals[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown signal: " + name})
		return
	}
	ctl := h.w.Control()
	before := ctl.State()
	if !ctl.Send(sig) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": name + " is not allowed in state " + before.String(),
			"state": before.String(),
		})
		return
	}
	h.log.Info("worker signal", zap.String("signal", name), zap.Stringer("from", before), zap.Stringer("to", ctl.State()))
	writeJSON(w, http.StatusOK, map[string]string{"state": ctl.State().String()})
}

func (h *Handle) Status(w http.ResponseWriter, _ *http.Request) {
	finished, total := worker.Count(h.w.Snapshot())
	writeJSON(w, http.StatusOK, StatusResponse{
		ID:       h.w.ID(),
		State:    h.w.Control().State().String(),
		Finished: finished,
		Total:    total,
	})
}

func (h *Handle) Results(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, worker.Summarize(h.w.Snapshot()))
}

type RunResponse struct {
	store.RunRow
	Results []worker.Summary `json:"results"`
}

func (h *Handle) Run(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run storage disabled"})
		return
	}
	id := r.PathValue("id")
	row, err := h.runs.Find(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	if err != nil {
		h.log.Error("find run", zap.String("run_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	items, err := h.runs.ListRun(r.Context(), id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.log.Error("list run", zap.String("run_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if items == nil {
		items = []worker.Summary{}
	}
	writeJSON(w, http.StatusOK, RunResponse{RunRow: row, Results: items})
}
