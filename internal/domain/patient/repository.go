// Package patient provides the patient document store.
package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/carebridge/carelink/internal/infrastructure/postgres"
	"github.com/carebridge/carelink/internal/infrastructure/redpanda"
)

// ErrNotFound is returned when a patient id does not resolve.
var ErrNotFound = errors.New("patient not found")

// Repository persists each patient as a single JSONB document. The embedded
// med_history and medicine_intakes arrays live inside the document, so a save
// is one row update and a delete removes everything the patient owns.
type Repository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: pool, logger: logger}
}

// Create inserts a new patient document.
func (r *Repository) Create(ctx context.Context, p *Patient) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal patient: %w", err)
	}

	query := `
		INSERT INTO patients (id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.pool.Exec(ctx, query, p.ID, doc, p.CreatedAt, p.UpdatedAt); err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

// FindByID loads one patient document.
func (r *Repository) FindByID(ctx context.Context, id string) (*Patient, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT doc FROM patients WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query patient: %w", err)
	}
	return unmarshalPatient(doc)
}

// FindAll returns every patient document. Used by the admin listing.
func (r *Repository) FindAll(ctx context.Context) ([]*Patient, error) {
	rows, err := r.pool.Query(ctx, `SELECT doc FROM patients ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()
	return scanPatients(rows)
}

// FindWithActivePrescriptions returns patients that have at least one
// prescription flagged active. The duration check still happens in
// ActivePrescriptions; this query only narrows the sweep's working set.
func (r *Repository) FindWithActivePrescriptions(ctx context.Context) ([]*Patient, error) {
	query := `
		SELECT doc FROM patients
		WHERE jsonb_path_exists(doc, '$.med_history[*].prescription[*] ? (@.is_active == true)')
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active patients: %w", err)
	}
	defer rows.Close()
	return scanPatients(rows)
}

// IntakeEvent is the payload published for each patient-recorded intake.
type IntakeEvent struct {
	PatientID      string     `json:"patient_id"`
	PrescriptionID string     `json:"prescription_id"`
	MedicineName   string     `json:"medicine_name"`
	Status         string     `json:"status"`
	ScheduledTime  time.Time  `json:"scheduled_time"`
	TakenTime      *time.Time `json:"taken_time,omitempty"`
	RecordedAt     time.Time  `json:"recorded_at"`
}

// AppendIntakes appends intake records to the patient's medicine_intakes array
// in place, without rewriting the rest of the document, and writes one
// IntakeRecorded outbox entry per record in the same transaction.
func (r *Repository) AppendIntakes(ctx context.Context, patientID string, recs []IntakeRecord) error {
	if len(recs) == 0 {
		return nil
	}
	payload, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("marshal intakes: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE patients
		SET doc = jsonb_set(doc, '{medicine_intakes}',
		          COALESCE(doc->'medicine_intakes', '[]'::jsonb) || $2::jsonb),
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query, patientID, payload)
	if err != nil {
		return fmt.Errorf("append intakes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	for _, rec := range recs {
		event := IntakeEvent{
			PatientID:      patientID,
			PrescriptionID: rec.PrescriptionID,
			MedicineName:   rec.MedicineName,
			Status:         string(rec.Status),
			ScheduledTime:  rec.ScheduledTime,
			TakenTime:      rec.TakenTime,
			RecordedAt:     rec.CreatedAt,
		}
		eventPayload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal intake event: %w", err)
		}
		entry := &postgres.OutboxEntry{
			AggregateID:   patientID,
			AggregateType: "Patient",
			EventType:     "IntakeRecorded",
			Payload:       eventPayload,
			Topic:         redpanda.TopicAdherenceEvents,
			Key:           patientID,
		}
		if err := postgres.WriteEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// AppendMedicalHistory appends a visit entry to the patient's med_history.
func (r *Repository) AppendMedicalHistory(ctx context.Context, patientID string, entry MedicalHistoryEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	query := `
		UPDATE patients
		SET doc = jsonb_set(doc, '{med_history}',
		          COALESCE(doc->'med_history', '[]'::jsonb) || jsonb_build_array($2::jsonb)),
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, patientID, payload)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAlertState updates the patient's current_alerts block.
func (r *Repository) SetAlertState(ctx context.Context, patientID string, alerts CurrentAlerts) error {
	payload, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("marshal alert state: %w", err)
	}

	query := `
		UPDATE patients
		SET doc = jsonb_set(doc, '{current_alerts}', $2::jsonb),
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, patientID, payload)
	if err != nil {
		return fmt.Errorf("set alert state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MissedDoseEvent is the payload published for each synthesized missed record.
type MissedDoseEvent struct {
	PatientID      string    `json:"patient_id"`
	PatientName    string    `json:"patient_name"`
	PrescriptionID string    `json:"prescription_id"`
	MedicineName   string    `json:"medicine_name"`
	ScheduledTime  time.Time `json:"scheduled_time"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// SaveMissedDoses appends the reconciler's synthesized records and writes one
// outbox entry per record in the same transaction, so the missed-dose events
// are published iff the records were persisted.
func (r *Repository) SaveMissedDoses(ctx context.Context, p *Patient, recs []IntakeRecord) error {
	if len(recs) == 0 {
		return nil
	}
	payload, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("marshal intakes: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE patients
		SET doc = jsonb_set(doc, '{medicine_intakes}',
		          COALESCE(doc->'medicine_intakes', '[]'::jsonb) || $2::jsonb),
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query, p.ID, payload)
	if err != nil {
		return fmt.Errorf("append missed doses: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	for _, rec := range recs {
		event := MissedDoseEvent{
			PatientID:      p.ID,
			PatientName:    p.Name,
			PrescriptionID: rec.PrescriptionID,
			MedicineName:   rec.MedicineName,
			ScheduledTime:  rec.ScheduledTime,
			RecordedAt:     rec.CreatedAt,
		}
		eventPayload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal missed-dose event: %w", err)
		}
		entry := &postgres.OutboxEntry{
			AggregateID:   p.ID,
			AggregateType: "Patient",
			EventType:     "DoseMissed",
			Payload:       eventPayload,
			Topic:         redpanda.TopicAdherenceMissed,
			Key:           p.ID,
		}
		if err := postgres.WriteEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	p.MedicineIntakes = append(p.MedicineIntakes, recs...)
	return nil
}

func unmarshalPatient(doc []byte) (*Patient, error) {
	var p Patient
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("unmarshal patient: %w", err)
	}
	return &p, nil
}

func scanPatients(rows pgx.Rows) ([]*Patient, error) {
	var patients []*Patient
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		p, err := unmarshalPatient(doc)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}
