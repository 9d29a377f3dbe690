// Package handlers provides HTTP handlers for the patient API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/carebridge/carelink/internal/api/middleware"
	"github.com/carebridge/carelink/internal/domain/patient"
	"github.com/carebridge/carelink/internal/observability/metrics"
	"github.com/carebridge/carelink/internal/schedule"
)

// Store is the patient persistence the handlers use. *patient.Repository
// satisfies it; tests drive the handlers with an in-memory fake.
type Store interface {
	Create(ctx context.Context, p *patient.Patient) error
	FindByID(ctx context.Context, id string) (*patient.Patient, error)
	FindAll(ctx context.Context) ([]*patient.Patient, error)
	AppendIntakes(ctx context.Context, patientID string, recs []patient.IntakeRecord) error
	AppendMedicalHistory(ctx context.Context, patientID string, entry patient.MedicalHistoryEntry) error
	SetAlertState(ctx context.Context, patientID string, alerts patient.CurrentAlerts) error
}

// MedicineHandler serves the patient-facing medicine endpoints: today's
// schedule, intake recording, and adherence history.
type MedicineHandler struct {
	repo    Store
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewMedicineHandler creates the handler. metrics may be nil.
func NewMedicineHandler(repo Store, m *metrics.Metrics, logger *zap.Logger) *MedicineHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MedicineHandler{repo: repo, metrics: m, logger: logger, now: time.Now}
}

// Routes returns the handler routes, mounted under /medicines.
func (h *MedicineHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/schedule", h.Schedule)
	r.Post("/intake", h.RecordIntake)
	r.Get("/history", h.History)
	return r
}

// ScheduleResponse is the response for GET /medicines/schedule.
type ScheduleResponse struct {
	PatientID string          `json:"patient_id"`
	Date      string          `json:"date"`
	Slots     []schedule.Slot `json:"slots"`
}

// Schedule handles GET /medicines/schedule: the doses still due today for the
// authenticated patient.
func (h *MedicineHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("medicine-handler")
	ctx, span := tracer.Start(ctx, "get_schedule")
	defer span.End()

	patientID := middleware.GetPatientID(ctx)
	span.SetAttributes(attribute.String("patient_id", patientID))

	p, err := h.repo.FindByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			jsonError(w, "patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("load patient failed", zap.String("patient_id", patientID), zap.Error(err))
		jsonError(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}

	now := h.now()
	slots := schedule.Project(p.ActivePrescriptions(now), p.MedicineIntakes, now, h.logger)
	if slots == nil {
		slots = []schedule.Slot{}
	}
	if h.metrics != nil {
		h.metrics.ScheduleRequests.Inc()
	}

	writeJSON(w, http.StatusOK, ScheduleResponse{
		PatientID: patientID,
		Date:      now.Format("2006-01-02"),
		Slots:     slots,
	})
}

// IntakeRequest is the request body for POST /medicines/intake. scheduled_time
// is optional: a patient tapping "taken" records the dose as it happens, so it
// defaults to the current time; backfilling clients may override it.
type IntakeRequest struct {
	PrescriptionID string     `json:"prescription_id"`
	MedicineName   string     `json:"medicine_name"`
	ScheduledTime  time.Time  `json:"scheduled_time,omitempty"`
	TakenTime      *time.Time `json:"taken_time,omitempty"`
	Status         string     `json:"status"`
	Notes          string     `json:"notes,omitempty"`
}

// IntakeResponse is the response for POST /medicines/intake.
type IntakeResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordIntake handles POST /medicines/intake. Records are append-only; a dose
// already recorded today simply disappears from the schedule, it is never
// edited.
func (h *MedicineHandler) RecordIntake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("medicine-handler")
	ctx, span := tracer.Start(ctx, "record_intake")
	defer span.End()

	patientID := middleware.GetPatientID(ctx)

	var req IntakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PrescriptionID == "" || req.MedicineName == "" {
		jsonError(w, "prescription_id and medicine_name are required", http.StatusBadRequest)
		return
	}
	status := patient.IntakeStatus(req.Status)
	if !status.Valid() {
		jsonError(w, "status must be one of pending, taken, missed, skipped", http.StatusBadRequest)
		return
	}

	scheduledTime := req.ScheduledTime
	if scheduledTime.IsZero() {
		scheduledTime = h.now().UTC()
	}

	takenTime := req.TakenTime
	if status == patient.StatusTaken && takenTime == nil {
		t := h.now().UTC()
		takenTime = &t
	}

	rec := patient.IntakeRecord{
		ID:             uuid.New().String(),
		PrescriptionID: req.PrescriptionID,
		MedicineName:   req.MedicineName,
		ScheduledTime:  scheduledTime,
		TakenTime:      takenTime,
		Status:         status,
		Notes:          req.Notes,
		CreatedAt:      time.Now().UTC(),
	}

	if err := h.repo.AppendIntakes(ctx, patientID, []patient.IntakeRecord{rec}); err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			jsonError(w, "patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("record intake failed",
			zap.String("patient_id", patientID),
			zap.String("prescription_id", req.PrescriptionID),
			zap.Error(err))
		jsonError(w, "failed to record intake", http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.IntakesRecorded.WithLabelValues(string(status)).Inc()
	}
	h.logger.Info("intake recorded",
		zap.String("patient_id", patientID),
		zap.String("prescription_id", req.PrescriptionID),
		zap.String("status", string(status)),
		zap.String("request_id", middleware.GetRequestID(ctx)))

	writeJSON(w, http.StatusCreated, IntakeResponse{
		ID:        rec.ID,
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt,
	})
}

// HistoryResponse is the response for GET /medicines/history.
type HistoryResponse struct {
	PatientID string                 `json:"patient_id"`
	Days      int                    `json:"days"`
	Stats     schedule.Stats         `json:"stats"`
	History   []patient.IntakeRecord `json:"history"`
}

// History handles GET /medicines/history?days=7: the intake log and adherence
// stats over the lookback window.
func (h *MedicineHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	patientID := middleware.GetPatientID(ctx)

	days := schedule.DefaultLookbackDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			jsonError(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = n
	}

	p, err := h.repo.FindByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			jsonError(w, "patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("load patient failed", zap.String("patient_id", patientID), zap.Error(err))
		jsonError(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	history, stats := schedule.Summarize(p.MedicineIntakes, h.now(), days)

	writeJSON(w, http.StatusOK, HistoryResponse{
		PatientID: patientID,
		Days:      days,
		Stats:     stats,
		History:   history,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
