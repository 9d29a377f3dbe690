package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/carebridge/carelink/internal/domain/patient"
	"github.com/carebridge/carelink/internal/reconciler"
)

type sweepStore struct {
	patients []*patient.Patient
	err      error
}

func (s *sweepStore) FindWithActivePrescriptions(ctx context.Context) ([]*patient.Patient, error) {
	return s.patients, s.err
}

func (s *sweepStore) SaveMissedDoses(ctx context.Context, p *patient.Patient, recs []patient.IntakeRecord) error {
	p.MedicineIntakes = append(p.MedicineIntakes, recs...)
	return nil
}

func newSweepHandler(store reconciler.Store, now time.Time) *SweepHandler {
	rec := reconciler.New(store, reconciler.DefaultConfig(), nil, nil)
	h := NewSweepHandler(rec, nil)
	h.now = func() time.Time { return now }
	return h
}

func TestSweepTriggerReturnsSummary(t *testing.T) {
	// Window 8-20 at 23:00: one dose past its grace period.
	store := &sweepStore{patients: []*patient.Patient{storedPatient("p1", "8-20")}}
	h := newSweepHandler(store, time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC))

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		store.patients[0].MedicineIntakes = nil

		rr := httptest.NewRecorder()
		h.Routes().ServeHTTP(rr, httptest.NewRequest(method, "/sweep", nil))

		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", method, rr.Code)
		}
		var summary reconciler.Summary
		if err := json.NewDecoder(rr.Body).Decode(&summary); err != nil {
			t.Fatalf("%s: decode: %v", method, err)
		}
		if summary.PatientsChecked != 1 || summary.TotalMarkedMissed != 1 {
			t.Errorf("%s: summary = %+v, want 1 patient with 1 missed dose", method, summary)
		}
	}
}

func TestSweepTriggerFailure(t *testing.T) {
	h := newSweepHandler(&sweepStore{err: errors.New("db down")}, time.Now())

	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sweep", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}
