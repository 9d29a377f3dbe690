package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carebridge/carelink/internal/domain/patient"
)

// PatientHandler serves the admin patient endpoints used by hospital staff.
type PatientHandler struct {
	repo   Store
	logger *zap.Logger
	now    func() time.Time
}

// NewPatientHandler creates the handler.
func NewPatientHandler(repo Store, logger *zap.Logger) *PatientHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatientHandler{repo: repo, logger: logger, now: time.Now}
}

// Routes returns the handler routes, mounted under /admin/patients.
func (h *PatientHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/history", h.AddHistory)
	return r
}

// CreatePatientRequest is the request body for registering a patient.
type CreatePatientRequest struct {
	Name                     string                   `json:"name"`
	Sex                      string                   `json:"sex"`
	Age                      int                      `json:"age"`
	PhoneNumber              string                   `json:"ph_number"`
	Address                  string                   `json:"address,omitempty"`
	PreviousHospitalizations int                      `json:"previous_hospitalizations,omitempty"`
	ReminderSettings         patient.ReminderSettings `json:"reminder_settings,omitempty"`
}

// Create handles POST /admin/patients.
func (h *PatientHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.PhoneNumber == "" {
		jsonError(w, "name and ph_number are required", http.StatusBadRequest)
		return
	}

	p := &patient.Patient{
		ID:                       uuid.New().String(),
		Name:                     req.Name,
		Sex:                      req.Sex,
		Age:                      req.Age,
		PhoneNumber:              req.PhoneNumber,
		Address:                  req.Address,
		MedHistory:               []patient.MedicalHistoryEntry{},
		MedicineIntakes:          []patient.IntakeRecord{},
		ReminderSettings:         req.ReminderSettings,
		PreviousHospitalizations: req.PreviousHospitalizations,
	}

	if err := h.repo.Create(ctx, p); err != nil {
		h.logger.Error("create patient failed", zap.Error(err))
		jsonError(w, "failed to create patient", http.StatusInternalServerError)
		return
	}

	h.logger.Info("patient registered",
		zap.String("patient_id", p.ID),
		zap.String("name", p.Name))
	writeJSON(w, http.StatusCreated, p)
}

// List handles GET /admin/patients.
func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	patients, err := h.repo.FindAll(r.Context())
	if err != nil {
		h.logger.Error("list patients failed", zap.Error(err))
		jsonError(w, "failed to list patients", http.StatusInternalServerError)
		return
	}
	if patients == nil {
		patients = []*patient.Patient{}
	}
	writeJSON(w, http.StatusOK, patients)
}

// Get handles GET /admin/patients/{id}.
func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			jsonError(w, "patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("get patient failed", zap.String("patient_id", id), zap.Error(err))
		jsonError(w, "failed to load patient", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// AddHistoryRequest is the request body for recording a visit with its
// prescriptions.
type AddHistoryRequest struct {
	Dept          string                 `json:"dept"`
	DoctorName    string                 `json:"doctor_name,omitempty"`
	Problem       string                 `json:"problem,omitempty"`
	Followup      *time.Time             `json:"followup,omitempty"`
	Prescriptions []patient.Prescription `json:"prescription"`
}

// AddHistory handles POST /admin/patients/{id}/history. New prescriptions get
// generated IDs and a fixed end date; extending a course later means writing a
// new prescription, not moving the end date.
func (h *PatientHandler) AddHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req AddHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Dept == "" {
		jsonError(w, "dept is required", http.StatusBadRequest)
		return
	}

	now := h.now().UTC()
	entry := patient.MedicalHistoryEntry{
		ID:            uuid.New().String(),
		Dept:          req.Dept,
		DoctorName:    req.DoctorName,
		Problem:       req.Problem,
		Followup:      req.Followup,
		Prescriptions: req.Prescriptions,
		VisitDate:     now,
	}
	for i := range entry.Prescriptions {
		rx := &entry.Prescriptions[i]
		if rx.Name == "" {
			jsonError(w, "every prescription needs a name", http.StatusBadRequest)
			return
		}
		if rx.ID == "" {
			rx.ID = uuid.New().String()
		}
		if rx.StartDate.IsZero() {
			rx.StartDate = now
		}
		if rx.EndDate == nil && rx.DurationDays > 0 {
			end := rx.StartDate.AddDate(0, 0, rx.DurationDays)
			rx.EndDate = &end
		}
		rx.IsActive = true
	}

	if err := h.repo.AppendMedicalHistory(ctx, id, entry); err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			jsonError(w, "patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("add history failed", zap.String("patient_id", id), zap.Error(err))
		jsonError(w, "failed to add history", http.StatusInternalServerError)
		return
	}

	h.logger.Info("medical history added",
		zap.String("patient_id", id),
		zap.String("dept", req.Dept),
		zap.Int("prescriptions", len(entry.Prescriptions)))
	writeJSON(w, http.StatusCreated, entry)
}
