package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/romidental/voice-platform/internal/analytics"
	"github.com/romidental/voice-platform/internal/clinic"
	"github.com/romidental/voice-platform/pkg/logging"
)

var schedulingTracer = otel.Tracer("romidental.internal.scheduling")

// Service executes the scheduling operations. Each operation is one
// transaction; every failure leaves prior state unchanged. Inputs are
// assumed validated and normalized by the validation layer; only structural
// re-checks needed for transactional integrity happen here.
type Service struct {
	repo      *Repository
	analytics *analytics.Repository
	cfg       *clinic.Config
	logger    *logging.Logger
	campaign  string
	timeout   time.Duration
	now       func() time.Time
}

// Option configures optional service behavior.
type Option func(*Service)

// WithClock pins the service clock for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCampaign scopes analytics rows to a campaign.
func WithCampaign(campaign string) Option {
	return func(s *Service) { s.campaign = campaign }
}

// WithQueryTimeout bounds every database operation.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// NewService constructs the scheduling engine.
func NewService(repo *Repository, analyticsRepo *analytics.Repository, cfg *clinic.Config, logger *logging.Logger, opts ...Option) *Service {
	if repo == nil {
		panic("scheduling: repository required")
	}
	if analyticsRepo == nil {
		analyticsRepo = analytics.NewRepository()
	}
	if cfg == nil {
		cfg = clinic.DefaultConfig("")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		repo:      repo,
		analytics: analyticsRepo,
		cfg:       cfg,
		logger:    logger,
		campaign:  analytics.DefaultCampaign,
		timeout:   5 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// FindOrCreatePatient resolves a patient by canonical phone, creating one on
// first contact. Idempotent: the same phone always yields the same identity.
func (s *Service) FindOrCreatePatient(ctx context.Context, name, phone, email string) (*Patient, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.find_or_create_patient")
	defer span.End()

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	patient, err := s.repo.UpsertPatient(ctx, s.repo.Pool(), name, phone, email)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return patient, nil
}

// CheckAvailableSlots returns the open slot start times for a date, in the
// clinic timezone, ordered ascending. Slots in the past are excluded; a
// closed or fully booked day yields an empty slice. Read-only: the result is
// advisory and is re-verified inside the booking transaction.
func (s *Service) CheckAvailableSlots(ctx context.Context, date time.Time) ([]time.Time, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.check_available_slots")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.date", date.Format("2006-01-02")))

	slots := s.cfg.SlotTimes(date)
	if len(slots) == 0 {
		return nil, nil
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	local := date.In(s.cfg.Loc())
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.cfg.Loc())
	dayEnd := dayStart.AddDate(0, 0, 1)

	booked, err := s.repo.BookedTimes(ctx, s.repo.Pool(), dayStart, dayEnd)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	taken := make(map[int64]struct{}, len(booked))
	for _, t := range booked {
		taken[t.Unix()] = struct{}{}
	}

	now := s.now()
	available := make([]time.Time, 0, len(slots))
	for _, slot := range slots {
		if !slot.After(now) {
			continue
		}
		if _, ok := taken[slot.Unix()]; ok {
			continue
		}
		available = append(available, slot)
	}
	return available, nil
}

// ScheduleAppointment books a slot in one transaction: resolve or create the
// patient, re-verify the slot, insert the appointment, bump the day's
// booking counter. Two concurrent calls for the same slot yield exactly one
// success; the loser gets ErrSlotUnavailable.
func (s *Service) ScheduleAppointment(ctx context.Context, req AppointmentRequest) (*Appointment, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.schedule_appointment")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.service_type", req.ServiceType),
		attribute.String("clinic.scheduled_at", req.ScheduledAt.Format(time.RFC3339)),
	)

	if !req.ScheduledAt.After(s.now()) {
		return nil, NewValidationError("appointment_date", "appointment date cannot be in the past")
	}
	if !s.cfg.IsOpenAt(req.ScheduledAt) {
		return nil, NewValidationError("appointment_date", "requested time is outside clinic hours")
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.bookInTx(ctx, tx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, storageErr("commit booking", err)
	}

	s.logger.Info("appointment scheduled",
		"appointment_id", appt.ID,
		"service_type", appt.ServiceType,
		"scheduled_at", appt.ScheduledAt.Format(time.RFC3339),
	)
	return appt, nil
}

// bookInTx runs the booking steps against an open transaction. Shared by
// ScheduleAppointment and follow-up promotion.
func (s *Service) bookInTx(ctx context.Context, tx pgx.Tx, req AppointmentRequest) (*Appointment, error) {
	patient, err := s.repo.UpsertPatient(ctx, tx, req.PatientName, req.PhoneNumber, req.Email)
	if err != nil {
		return nil, err
	}

	// Advisory re-check; the partial unique index is the authority when two
	// transactions race past this point.
	taken, err := s.repo.SlotTaken(ctx, tx, req.ScheduledAt)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlotUnavailable
	}

	appt := &Appointment{
		ID:           uuid.New(),
		PatientID:    &patient.ID,
		PatientName:  req.PatientName,
		PhoneNumber:  req.PhoneNumber,
		ServiceType:  req.ServiceType,
		ScheduledAt:  req.ScheduledAt,
		Status:       StatusScheduled,
		RevenueCents: req.RevenueCents,
		Notes:        req.Notes,
	}
	if err := s.repo.InsertAppointment(ctx, tx, appt); err != nil {
		return nil, err
	}

	day := s.now().In(s.cfg.Loc())
	if err := s.analytics.RecordBooking(ctx, tx, day, s.campaign, 0); err != nil {
		return nil, err
	}
	return appt, nil
}

// GetAppointment loads an appointment by id.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.repo.GetAppointment(ctx, s.repo.Pool(), id)
}

// UpdateAppointmentStatus applies a forward-only status transition. Moving
// to completed realizes the appointment's revenue into the day's snapshot.
func (s *Service) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, newStatus AppointmentStatus) (*Appointment, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.update_appointment_status")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.new_status", string(newStatus)))

	if !newStatus.Valid() {
		return nil, NewValidationError("status", "unknown appointment status")
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.repo.LockAppointment(ctx, tx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if !appt.Status.CanTransitionTo(newStatus) {
		err := &InvalidTransitionError{Entity: "appointment", From: string(appt.Status), To: string(newStatus)}
		s.logger.Warn("invalid appointment transition attempted",
			"appointment_id", id, "from", appt.Status, "to", newStatus)
		return nil, err
	}

	if err := s.repo.SetAppointmentStatus(ctx, tx, id, newStatus); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if newStatus == StatusCompleted && appt.RevenueCents > 0 {
		day := s.now().In(s.cfg.Loc())
		if err := s.analytics.RecordRevenue(ctx, tx, day, s.campaign, appt.RevenueCents); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, storageErr("commit status update", err)
	}

	appt.Status = newStatus
	s.logger.Info("appointment status updated", "appointment_id", id, "status", newStatus)
	return appt, nil
}

// ScheduleFollowUp records a callback request. No availability check:
// follow-ups are not slot reservations.
func (s *Service) ScheduleFollowUp(ctx context.Context, req FollowUpRequest) (*FollowUp, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.schedule_follow_up")
	defer span.End()

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	scheduledBy := req.ScheduledBy
	if scheduledBy == "" {
		scheduledBy = s.cfg.AssistantName
	}

	f := &FollowUp{
		ID:            uuid.New(),
		PatientName:   req.PatientName,
		PhoneNumber:   req.PhoneNumber,
		PreferredTime: req.PreferredTime,
		Reason:        req.Reason,
		Status:        FollowUpPending,
		ScheduledBy:   scheduledBy,
	}
	if err := s.repo.InsertFollowUp(ctx, s.repo.Pool(), f); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info("follow-up scheduled", "follow_up_id", f.ID, "preferred_time", f.PreferredTime)
	return f, nil
}

// CompleteFollowUp closes a pending follow-up. A booking outcome promotes it
// into an appointment in the same transaction, subject to the normal
// slot-conflict rule.
func (s *Service) CompleteFollowUp(ctx context.Context, id uuid.UUID, outcome FollowUpOutcome) (*FollowUp, *Appointment, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.complete_follow_up")
	defer span.End()

	if outcome.Booking != nil {
		if !outcome.Booking.ScheduledAt.After(s.now()) {
			return nil, nil, NewValidationError("appointment_date", "appointment date cannot be in the past")
		}
		if !s.cfg.IsOpenAt(outcome.Booking.ScheduledAt) {
			return nil, nil, NewValidationError("appointment_date", "requested time is outside clinic hours")
		}
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	f, err := s.repo.LockFollowUp(ctx, tx, id)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	if f.Status != FollowUpPending {
		err := &InvalidTransitionError{Entity: "follow_up", From: string(f.Status), To: string(FollowUpCompleted)}
		s.logger.Warn("follow-up already closed", "follow_up_id", id, "status", f.Status)
		return nil, nil, err
	}

	status := FollowUpCompleted
	if outcome.Cancelled {
		status = FollowUpCancelled
	}
	completedAt := s.now()
	if err := s.repo.SetFollowUpStatus(ctx, tx, id, status, completedAt); err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	var appt *Appointment
	if outcome.Booking != nil && !outcome.Cancelled {
		appt, err = s.bookInTx(ctx, tx, *outcome.Booking)
		if err != nil {
			span.RecordError(err)
			return nil, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, nil, storageErr("commit follow-up", err)
	}

	f.Status = status
	f.CompletedAt = &completedAt
	s.logger.Info("follow-up closed", "follow_up_id", id, "status", status, "booked", appt != nil)
	return f, appt, nil
}

// PendingFollowUps lists callbacks awaiting action, oldest first.
func (s *Service) PendingFollowUps(ctx context.Context) ([]FollowUp, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.repo.PendingFollowUps(ctx, s.repo.Pool())
}

// RecordCallOutcome rolls a finished call into the day's snapshot: +1 total
// calls, plus booking and revenue counters when the call converted outside
// ScheduleAppointment. The conversion rate is recomputed in the same
// statement.
func (s *Service) RecordCallOutcome(ctx context.Context, booked bool, revenueCents int64) error {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.record_call_outcome")
	defer span.End()
	span.SetAttributes(attribute.Bool("clinic.booked", booked))

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	day := s.now().In(s.cfg.Loc())
	if err := s.analytics.RecordCall(ctx, s.repo.Pool(), day, s.campaign, booked, revenueCents); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Clinic exposes the read-only clinic configuration backing the engine.
func (s *Service) Clinic() *clinic.Config { return s.cfg }
