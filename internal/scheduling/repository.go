package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Querier is satisfied by both DB and pgx.Tx, so repository methods run
// inside or outside a transaction as the caller decides.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for patients, appointments and follow-ups.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by a pgx pool (or mock).
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("scheduling: db required")
	}
	return &Repository{db: db}
}

// Begin opens a transaction on the underlying pool.
func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, storageErr("begin", err)
	}
	return tx, nil
}

// Pool exposes the underlying DB for read-only queries outside a transaction.
func (r *Repository) Pool() Querier { return r.db }

// UpsertPatient resolves a patient by canonical phone, inserting on first
// contact. The id is stable across calls; a non-empty email refreshes the
// stored contact email.
func (r *Repository) UpsertPatient(ctx context.Context, q Querier, name, phone, email string) (*Patient, error) {
	const query = `
		INSERT INTO patients (id, name, phone_number, email)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (phone_number) DO UPDATE SET
			email = COALESCE(NULLIF(EXCLUDED.email, ''), patients.email),
			updated_at = now()
		RETURNING id, name, phone_number, COALESCE(email, ''), created_at, updated_at
	`
	var p Patient
	err := q.QueryRow(ctx, query, uuid.New(), name, phone, email).Scan(
		&p.ID, &p.Name, &p.PhoneNumber, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, storageErr("upsert patient", err)
	}
	return &p, nil
}

// GetPatientByPhone returns the patient for a canonical phone number, or
// ErrNotFound.
func (r *Repository) GetPatientByPhone(ctx context.Context, q Querier, phone string) (*Patient, error) {
	const query = `
		SELECT id, name, phone_number, COALESCE(email, ''), created_at, updated_at
		FROM patients WHERE phone_number = $1
	`
	var p Patient
	err := q.QueryRow(ctx, query, phone).Scan(
		&p.ID, &p.Name, &p.PhoneNumber, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get patient", err)
	}
	return &p, nil
}

// SlotTaken reports whether a scheduled appointment already holds the exact
// date/time. Used for the in-transaction re-check before insert; the partial
// unique index remains the authority under concurrency.
func (r *Repository) SlotTaken(ctx context.Context, q Querier, at time.Time) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM appointments WHERE scheduled_at = $1 AND status = 'scheduled'
		)
	`
	var taken bool
	if err := q.QueryRow(ctx, query, at).Scan(&taken); err != nil {
		return false, storageErr("slot check", err)
	}
	return taken, nil
}

// InsertAppointment persists a new scheduled appointment. A unique-violation
// on the slot index maps to ErrSlotUnavailable.
func (r *Repository) InsertAppointment(ctx context.Context, q Querier, a *Appointment) error {
	const query = `
		INSERT INTO appointments (
			id, patient_id, patient_name, phone_number,
			service_type, scheduled_at, status, revenue_cents, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := q.QueryRow(ctx, query,
		a.ID, a.PatientID, a.PatientName, a.PhoneNumber,
		a.ServiceType, a.ScheduledAt, a.Status, a.RevenueCents, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSlotUnavailable
		}
		return storageErr("insert appointment", err)
	}
	return nil
}

// GetAppointment loads an appointment by id.
func (r *Repository) GetAppointment(ctx context.Context, q Querier, id uuid.UUID) (*Appointment, error) {
	return r.getAppointment(ctx, q, id, false)
}

// LockAppointment loads an appointment by id with a row lock, for status
// transitions inside a transaction.
func (r *Repository) LockAppointment(ctx context.Context, q Querier, id uuid.UUID) (*Appointment, error) {
	return r.getAppointment(ctx, q, id, true)
}

func (r *Repository) getAppointment(ctx context.Context, q Querier, id uuid.UUID, forUpdate bool) (*Appointment, error) {
	query := `
		SELECT id, patient_id, patient_name, phone_number, service_type,
		       scheduled_at, status, revenue_cents, notes, created_at, updated_at
		FROM appointments WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var a Appointment
	err := q.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.PatientID, &a.PatientName, &a.PhoneNumber, &a.ServiceType,
		&a.ScheduledAt, &a.Status, &a.RevenueCents, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get appointment", err)
	}
	return &a, nil
}

// SetAppointmentStatus updates the status column. Transition legality is the
// service's responsibility; the repository just writes.
func (r *Repository) SetAppointmentStatus(ctx context.Context, q Querier, id uuid.UUID, status AppointmentStatus) error {
	const query = `
		UPDATE appointments SET status = $2, updated_at = now() WHERE id = $1
	`
	tag, err := q.Exec(ctx, query, id, status)
	if err != nil {
		return storageErr("update appointment status", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// BookedTimes returns the scheduled_at values of live bookings in
// [from, to), ordered ascending.
func (r *Repository) BookedTimes(ctx context.Context, q Querier, from, to time.Time) ([]time.Time, error) {
	const query = `
		SELECT scheduled_at FROM appointments
		WHERE scheduled_at >= $1 AND scheduled_at < $2 AND status = 'scheduled'
		ORDER BY scheduled_at
	`
	rows, err := q.Query(ctx, query, from, to)
	if err != nil {
		return nil, storageErr("booked times", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, storageErr("booked times scan", err)
		}
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("booked times rows", err)
	}
	return times, nil
}

// InsertFollowUp persists a new pending follow-up.
func (r *Repository) InsertFollowUp(ctx context.Context, q Querier, f *FollowUp) error {
	const query = `
		INSERT INTO follow_ups (id, patient_name, phone_number, preferred_time, reason, status, scheduled_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := q.QueryRow(ctx, query,
		f.ID, f.PatientName, f.PhoneNumber, f.PreferredTime, f.Reason, f.Status, f.ScheduledBy,
	).Scan(&f.CreatedAt)
	if err != nil {
		return storageErr("insert follow-up", err)
	}
	return nil
}

// LockFollowUp loads a follow-up by id with a row lock.
func (r *Repository) LockFollowUp(ctx context.Context, q Querier, id uuid.UUID) (*FollowUp, error) {
	const query = `
		SELECT id, patient_name, phone_number, preferred_time, reason, status,
		       scheduled_by, created_at, completed_at
		FROM follow_ups WHERE id = $1 FOR UPDATE
	`
	var f FollowUp
	err := q.QueryRow(ctx, query, id).Scan(
		&f.ID, &f.PatientName, &f.PhoneNumber, &f.PreferredTime, &f.Reason,
		&f.Status, &f.ScheduledBy, &f.CreatedAt, &f.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get follow-up", err)
	}
	return &f, nil
}

// SetFollowUpStatus stamps the terminal status and completion time.
func (r *Repository) SetFollowUpStatus(ctx context.Context, q Querier, id uuid.UUID, status FollowUpStatus, completedAt time.Time) error {
	const query = `
		UPDATE follow_ups SET status = $2, completed_at = $3 WHERE id = $1
	`
	tag, err := q.Exec(ctx, query, id, status, completedAt)
	if err != nil {
		return storageErr("update follow-up status", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PendingFollowUps lists follow-ups awaiting a callback, oldest first.
func (r *Repository) PendingFollowUps(ctx context.Context, q Querier) ([]FollowUp, error) {
	const query = `
		SELECT id, patient_name, phone_number, preferred_time, reason, status,
		       scheduled_by, created_at, completed_at
		FROM follow_ups WHERE status = 'pending' ORDER BY created_at
	`
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, storageErr("pending follow-ups", err)
	}
	defer rows.Close()

	var out []FollowUp
	for rows.Next() {
		var f FollowUp
		if err := rows.Scan(
			&f.ID, &f.PatientName, &f.PhoneNumber, &f.PreferredTime, &f.Reason,
			&f.Status, &f.ScheduledBy, &f.CreatedAt, &f.CompletedAt); err != nil {
			return nil, storageErr("pending follow-ups scan", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("pending follow-ups rows", err)
	}
	return out, nil
}
