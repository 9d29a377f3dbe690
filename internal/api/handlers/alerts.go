package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carebridge/carelink/internal/api/middleware"
	"github.com/carebridge/carelink/internal/domain/patient"
	"github.com/carebridge/carelink/internal/infrastructure/redpanda"
	"github.com/carebridge/carelink/internal/observability/metrics"
)

// AlertPublisher publishes alert events to the event bus.
type AlertPublisher interface {
	ProduceMessage(ctx context.Context, topic, key string, value []byte) error
}

// SOSEvent is the payload published for a patient SOS. The dispatcher triages
// it and notifies caregivers.
type SOSEvent struct {
	AlertID     string    `json:"alert_id"`
	PatientID   string    `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	PhoneNumber string    `json:"ph_number"`
	Message     string    `json:"message,omitempty"`
	RaisedAt    time.Time `json:"raised_at"`
}

// AlertHandler serves the patient SOS endpoint. The SOS path publishes
// directly to the bus instead of going through the outbox: the alert must
// reach the dispatcher now, and the patient document update is best-effort
// bookkeeping.
type AlertHandler struct {
	repo      Store
	publisher AlertPublisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewAlertHandler creates the handler. metrics may be nil.
func NewAlertHandler(repo Store, publisher AlertPublisher, m *metrics.Metrics, logger *zap.Logger) *AlertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertHandler{repo: repo, publisher: publisher, metrics: m, logger: logger, now: time.Now}
}

// Routes returns the handler routes, mounted under /alerts.
func (h *AlertHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/sos", h.RaiseSOS)
	return r
}

// SOSRequest is the request body for POST /alerts/sos.
type SOSRequest struct {
	Message string `json:"message,omitempty"`
}

// SOSResponse is the response for POST /alerts/sos.
type SOSResponse struct {
	AlertID  string    `json:"alert_id"`
	RaisedAt time.Time `json:"raised_at"`
}

// RaiseSOS handles POST /alerts/sos for the authenticated patient.
func (h *AlertHandler) RaiseSOS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID := middleware.GetPatientID(ctx)

	var req SOSRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	p, err := h.repo.FindByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			jsonError(w, "patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("load patient failed", zap.String("patient_id", patientID), zap.Error(err))
		jsonError(w, "failed to raise alert", http.StatusInternalServerError)
		return
	}

	event := SOSEvent{
		AlertID:     uuid.New().String(),
		PatientID:   p.ID,
		PatientName: p.Name,
		PhoneNumber: p.PhoneNumber,
		Message:     req.Message,
		RaisedAt:    h.now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		jsonError(w, "failed to raise alert", http.StatusInternalServerError)
		return
	}

	if err := h.publisher.ProduceMessage(ctx, redpanda.TopicAlertsSOS, p.ID, payload); err != nil {
		h.logger.Error("publish SOS failed",
			zap.String("patient_id", p.ID),
			zap.String("alert_id", event.AlertID),
			zap.Error(err))
		jsonError(w, "failed to raise alert", http.StatusInternalServerError)
		return
	}

	alerts := p.CurrentAlerts
	alerts.HasActiveSOS = true
	alerts.LatestAlertID = event.AlertID
	alerts.LatestAlertType = "sos"
	alerts.AlertCountLast7Days++
	if err := h.repo.SetAlertState(ctx, p.ID, alerts); err != nil {
		// The alert is already on the bus; the document flag is advisory.
		h.logger.Warn("failed to update alert state",
			zap.String("patient_id", p.ID),
			zap.Error(err))
	}

	if h.metrics != nil {
		h.metrics.AlertsCreated.WithLabelValues("sos").Inc()
	}
	h.logger.Info("SOS alert raised",
		zap.String("patient_id", p.ID),
		zap.String("alert_id", event.AlertID))

	writeJSON(w, http.StatusAccepted, SOSResponse{
		AlertID:  event.AlertID,
		RaisedAt: event.RaisedAt,
	})
}
