// Package report serves the recorded run history as JSON.
package report

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/quizgrader/internal/model"
)

// Source is the read side of the history store.
type Source interface {
	ListRuns(limit int) ([]model.Run, error)
	GetRun(id int64) (model.Run, error)
	ExportRun(id int64) (model.RunExport, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	src Source
}

// New creates a new Handler.
func New(src Source) *Handler {
	return &Handler{src: src}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/runs", h.handleListRuns)
	r.Get("/runs/{runID}", h.handleRun)
	r.Get("/runs/{runID}/scores", h.handleScores)
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := h.src.ListRuns(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, runs)
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	run, err := h.src.GetRun(id)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, run)
}

func (h *Handler) handleScores(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	exp, err := h.src.ExportRun(id)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, exp)
}

func runID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "runID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid run ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("encode error", "error", err)
	}
}
