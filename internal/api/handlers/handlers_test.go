package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/carebridge/carelink/internal/api/middleware"
	"github.com/carebridge/carelink/internal/domain/patient"
)

// fakeStore is an in-memory Store with the repository's append semantics.
type fakeStore struct {
	patients map[string]*patient.Patient
	alerts   map[string]patient.CurrentAlerts
	err      error
}

func newFakeStore(patients ...*patient.Patient) *fakeStore {
	s := &fakeStore{
		patients: make(map[string]*patient.Patient),
		alerts:   make(map[string]patient.CurrentAlerts),
	}
	for _, p := range patients {
		s.patients[p.ID] = p
	}
	return s
}

func (s *fakeStore) Create(ctx context.Context, p *patient.Patient) error {
	if s.err != nil {
		return s.err
	}
	s.patients[p.ID] = p
	return nil
}

func (s *fakeStore) FindByID(ctx context.Context, id string) (*patient.Patient, error) {
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.patients[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) FindAll(ctx context.Context) ([]*patient.Patient, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*patient.Patient
	for _, p := range s.patients {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeStore) AppendIntakes(ctx context.Context, patientID string, recs []patient.IntakeRecord) error {
	if s.err != nil {
		return s.err
	}
	p, ok := s.patients[patientID]
	if !ok {
		return patient.ErrNotFound
	}
	p.MedicineIntakes = append(p.MedicineIntakes, recs...)
	return nil
}

func (s *fakeStore) AppendMedicalHistory(ctx context.Context, patientID string, entry patient.MedicalHistoryEntry) error {
	if s.err != nil {
		return s.err
	}
	p, ok := s.patients[patientID]
	if !ok {
		return patient.ErrNotFound
	}
	p.MedHistory = append(p.MedHistory, entry)
	return nil
}

func (s *fakeStore) SetAlertState(ctx context.Context, patientID string, alerts patient.CurrentAlerts) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.patients[patientID]; !ok {
		return patient.ErrNotFound
	}
	s.alerts[patientID] = alerts
	return nil
}

// asPatient attaches the authenticated patient id, as the auth middleware
// would.
func asPatient(req *http.Request, patientID string) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), middleware.PatientIDKey, patientID))
}

// storedPatient builds a registered patient with one active prescription.
func storedPatient(id, acceptedTime string) *patient.Patient {
	return &patient.Patient{
		ID:          id,
		Name:        "Asha Rao",
		PhoneNumber: "+91-98000-00000",
		MedHistory: []patient.MedicalHistoryEntry{
			{
				ID:   "visit-1",
				Dept: "Geriatrics",
				Prescriptions: []patient.Prescription{
					{
						ID:           "rx-" + id,
						Name:         "Metformin",
						AcceptedTime: acceptedTime,
						StartDate:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
						DurationDays: 60,
						IsActive:     true,
					},
				},
			},
		},
	}
}
