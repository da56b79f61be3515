package analytics

import (
	"context"
	"time"

	"github.com/romidental/voice-platform/pkg/logging"
)

// Rollup aggregates committed snapshot rows over a date range. Reporting
// sums snapshots; it never rescans the appointments table on the hot path.
type Rollup struct {
	From               time.Time `json:"from"`
	To                 time.Time `json:"to"`
	Campaign           string    `json:"campaign,omitempty"`
	TotalCalls         int64     `json:"total_calls"`
	AppointmentsBooked int64     `json:"appointments_booked"`
	RevenueCents       int64     `json:"revenue_cents"`
	ConversionRate     float64   `json:"conversion_rate"`
	Days               int       `json:"days"`
}

// ClinicStats is the all-time summary behind the get_clinic_stats tool.
type ClinicStats struct {
	TotalAppointments     int64 `json:"total_appointments"`
	CompletedAppointments int64 `json:"completed_appointments"`
	TotalRevenueCents     int64 `json:"total_revenue_cents"`
	UniquePatients        int64 `json:"unique_patients"`
	TodayAppointments     int64 `json:"today_appointments"`
	TodayRevenueCents     int64 `json:"today_revenue_cents"`
	PendingFollowUps      int64 `json:"pending_follow_ups"`
}

// Service is the read path of the aggregator.
type Service struct {
	db     Querier
	repo   *Repository
	logger *logging.Logger
}

// NewService constructs the analytics read service.
func NewService(db Querier, repo *Repository, logger *logging.Logger) *Service {
	if db == nil {
		panic("analytics: db required")
	}
	if repo == nil {
		repo = NewRepository()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{db: db, repo: repo, logger: logger}
}

// Rollup sums committed snapshots for [from, to], optionally filtered by
// campaign. A range with zero calls reports a conversion rate of 0.
func (s *Service) Rollup(ctx context.Context, from, to time.Time, campaign string) (*Rollup, error) {
	snapshots, err := s.repo.Range(ctx, s.db, from, to, campaign)
	if err != nil {
		return nil, err
	}

	out := &Rollup{From: dateOnly(from), To: dateOnly(to), Campaign: campaign}
	dates := make(map[time.Time]struct{}, len(snapshots))
	for _, snap := range snapshots {
		dates[dateOnly(snap.Date)] = struct{}{}
		out.TotalCalls += snap.TotalCalls
		out.AppointmentsBooked += snap.AppointmentsBooked
		out.RevenueCents += snap.RevenueCents
	}
	// Days counts distinct dates, not rows: a multi-campaign day is one day.
	out.Days = len(dates)
	if out.TotalCalls > 0 {
		out.ConversionRate = float64(out.AppointmentsBooked) / float64(out.TotalCalls)
	}
	return out, nil
}

// Snapshot returns one day's counters.
func (s *Service) Snapshot(ctx context.Context, day time.Time, campaign string) (*Snapshot, error) {
	return s.repo.Get(ctx, s.db, day, campaign)
}

// Rebuild recomputes a day's booking counters from the appointments table.
func (s *Service) Rebuild(ctx context.Context, day time.Time, campaign string) error {
	if err := s.repo.Rebuild(ctx, s.db, day, campaign); err != nil {
		return err
	}
	s.logger.Info("analytics snapshot rebuilt", "date", dateOnly(day).Format("2006-01-02"), "campaign", normalizeCampaign(campaign))
	return nil
}

// ClinicStats summarizes appointments and follow-ups for reporting. Not on
// the per-call hot path; runs aggregate queries directly.
func (s *Service) ClinicStats(ctx context.Context, now time.Time) (*ClinicStats, error) {
	stats := &ClinicStats{}

	const totals = `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COALESCE(SUM(revenue_cents), 0),
		       COUNT(DISTINCT phone_number)
		FROM appointments
	`
	if err := s.db.QueryRow(ctx, totals).Scan(
		&stats.TotalAppointments, &stats.CompletedAppointments,
		&stats.TotalRevenueCents, &stats.UniquePatients); err != nil {
		return nil, wrap("clinic stats totals", err)
	}

	const today = `
		SELECT COUNT(*), COALESCE(SUM(revenue_cents), 0)
		FROM appointments
		WHERE scheduled_at >= $1 AND scheduled_at < $1 + INTERVAL '1 day'
	`
	if err := s.db.QueryRow(ctx, today, dateOnly(now)).Scan(
		&stats.TodayAppointments, &stats.TodayRevenueCents); err != nil {
		return nil, wrap("clinic stats today", err)
	}

	const pending = `SELECT COUNT(*) FROM follow_ups WHERE status = 'pending'`
	if err := s.db.QueryRow(ctx, pending).Scan(&stats.PendingFollowUps); err != nil {
		return nil, wrap("clinic stats follow-ups", err)
	}

	return stats, nil
}
