package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/carebridge/carelink/internal/reconciler"
)

// SweepHandler exposes the missed-dose sweep as an admin endpoint, so an
// external scheduler (or an operator) can trigger a cycle on demand. The
// reconciler itself is idempotent, so overlapping triggers are safe.
type SweepHandler struct {
	rec    *reconciler.Reconciler
	logger *zap.Logger
	now    func() time.Time
}

// NewSweepHandler creates the handler.
func NewSweepHandler(rec *reconciler.Reconciler, logger *zap.Logger) *SweepHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepHandler{rec: rec, logger: logger, now: time.Now}
}

// Routes returns the handler routes, mounted under /admin/missed-doses.
// Both verbs trigger a sweep; cron-style callers traditionally use GET.
func (h *SweepHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/sweep", h.Trigger)
	r.Post("/sweep", h.Trigger)
	return r
}

// Trigger runs one sweep cycle and returns its summary.
func (h *SweepHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	summary, err := h.rec.Run(r.Context(), h.now())
	if err != nil {
		h.logger.Error("sweep trigger failed", zap.Error(err))
		jsonError(w, "sweep failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
