// Package analytics maintains the per-day call/booking counters. Writes are
// strictly incremental and happen inside the scheduling engine's
// transactions so an event and its counter commit or fail together.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultCampaign scopes snapshots when no campaign segmentation is in play.
const DefaultCampaign = "default"

// Querier is satisfied by pgxpool.Pool, pgx.Tx and pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Snapshot is one day's (per-campaign) rollup of call and booking counters.
type Snapshot struct {
	ID                 uuid.UUID
	Date               time.Time
	Campaign           string
	TotalCalls         int64
	AppointmentsBooked int64
	RevenueCents       int64
	ConversionRate     float64
	CreatedAt          time.Time
}

// Repository reads and incrementally updates call_analytics rows.
type Repository struct{}

// NewRepository creates an analytics repository. It carries no connection:
// every method takes the Querier of the enclosing transaction.
func NewRepository() *Repository {
	return &Repository{}
}

// RecordBooking bumps appointments_booked (and expected revenue) for the
// day. Called inside the booking transaction.
func (r *Repository) RecordBooking(ctx context.Context, q Querier, day time.Time, campaign string, revenueCents int64) error {
	const query = `
		INSERT INTO call_analytics (id, date, campaign, total_calls, appointments_booked, revenue_cents, conversion_rate)
		VALUES ($1, $2, $3, 0, 1, $4, 0)
		ON CONFLICT (date, campaign) DO UPDATE SET
			appointments_booked = call_analytics.appointments_booked + 1,
			revenue_cents = call_analytics.revenue_cents + $4,
			conversion_rate = CASE
				WHEN call_analytics.total_calls = 0 THEN 0
				ELSE (call_analytics.appointments_booked + 1)::double precision / call_analytics.total_calls
			END
	`
	if _, err := q.Exec(ctx, query, uuid.New(), dateOnly(day), normalizeCampaign(campaign), revenueCents); err != nil {
		return wrap("record booking", err)
	}
	return nil
}

// RecordCall bumps total_calls, and booked/revenue when the call produced a
// booking that was not persisted through the engine.
func (r *Repository) RecordCall(ctx context.Context, q Querier, day time.Time, campaign string, booked bool, revenueCents int64) error {
	bookedDelta := int64(0)
	if booked {
		bookedDelta = 1
	}
	const query = `
		INSERT INTO call_analytics (id, date, campaign, total_calls, appointments_booked, revenue_cents, conversion_rate)
		VALUES ($1, $2, $3, 1, $4, $5, $4::double precision)
		ON CONFLICT (date, campaign) DO UPDATE SET
			total_calls = call_analytics.total_calls + 1,
			appointments_booked = call_analytics.appointments_booked + $4,
			revenue_cents = call_analytics.revenue_cents + $5,
			conversion_rate = (call_analytics.appointments_booked + $4)::double precision
				/ (call_analytics.total_calls + 1)
	`
	if _, err := q.Exec(ctx, query, uuid.New(), dateOnly(day), normalizeCampaign(campaign), bookedDelta, revenueCents); err != nil {
		return wrap("record call", err)
	}
	return nil
}

// RecordRevenue adds realized revenue to the day's snapshot, e.g. when an
// appointment completes.
func (r *Repository) RecordRevenue(ctx context.Context, q Querier, day time.Time, campaign string, revenueCents int64) error {
	if revenueCents == 0 {
		return nil
	}
	const query = `
		INSERT INTO call_analytics (id, date, campaign, total_calls, appointments_booked, revenue_cents, conversion_rate)
		VALUES ($1, $2, $3, 0, 0, $4, 0)
		ON CONFLICT (date, campaign) DO UPDATE SET
			revenue_cents = call_analytics.revenue_cents + $4
	`
	if _, err := q.Exec(ctx, query, uuid.New(), dateOnly(day), normalizeCampaign(campaign), revenueCents); err != nil {
		return wrap("record revenue", err)
	}
	return nil
}

// Get returns the snapshot for a day/campaign. A missing row yields zero
// counters, not an error.
func (r *Repository) Get(ctx context.Context, q Querier, day time.Time, campaign string) (*Snapshot, error) {
	const query = `
		SELECT id, date, campaign, total_calls, appointments_booked, revenue_cents, conversion_rate, created_at
		FROM call_analytics WHERE date = $1 AND campaign = $2
	`
	var s Snapshot
	err := q.QueryRow(ctx, query, dateOnly(day), normalizeCampaign(campaign)).Scan(
		&s.ID, &s.Date, &s.Campaign, &s.TotalCalls, &s.AppointmentsBooked,
		&s.RevenueCents, &s.ConversionRate, &s.CreatedAt)
	if err == pgx.ErrNoRows {
		return &Snapshot{Date: dateOnly(day), Campaign: normalizeCampaign(campaign)}, nil
	}
	if err != nil {
		return nil, wrap("get snapshot", err)
	}
	return &s, nil
}

// Range returns committed snapshots for [from, to] ordered by date.
func (r *Repository) Range(ctx context.Context, q Querier, from, to time.Time, campaign string) ([]Snapshot, error) {
	query := `
		SELECT id, date, campaign, total_calls, appointments_booked, revenue_cents, conversion_rate, created_at
		FROM call_analytics WHERE date >= $1 AND date <= $2
	`
	args := []any{dateOnly(from), dateOnly(to)}
	if campaign != "" {
		query += ` AND campaign = $3`
		args = append(args, campaign)
	}
	query += ` ORDER BY date, campaign`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap("range snapshots", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(
			&s.ID, &s.Date, &s.Campaign, &s.TotalCalls, &s.AppointmentsBooked,
			&s.RevenueCents, &s.ConversionRate, &s.CreatedAt); err != nil {
			return nil, wrap("range scan", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("range rows", err)
	}
	return out, nil
}

// Rebuild recomputes a day's booking counters from the appointments table.
// total_calls is preserved: calls are not re-derivable from appointments.
// This is the only non-incremental write path and must be requested
// explicitly.
func (r *Repository) Rebuild(ctx context.Context, q Querier, day time.Time, campaign string) error {
	const query = `
		INSERT INTO call_analytics (id, date, campaign, total_calls, appointments_booked, revenue_cents, conversion_rate)
		SELECT $1, $2, $3, 0, counts.booked, counts.revenue, 0
		FROM (
			SELECT COUNT(*) AS booked, COALESCE(SUM(revenue_cents), 0) AS revenue
			FROM appointments
			WHERE created_at >= $2::date AND created_at < $2::date + INTERVAL '1 day'
			  AND status <> 'cancelled'
		) AS counts
		ON CONFLICT (date, campaign) DO UPDATE SET
			appointments_booked = EXCLUDED.appointments_booked,
			revenue_cents = EXCLUDED.revenue_cents,
			conversion_rate = CASE
				WHEN call_analytics.total_calls = 0 THEN 0
				ELSE EXCLUDED.appointments_booked::double precision / call_analytics.total_calls
			END
	`
	if _, err := q.Exec(ctx, query, uuid.New(), dateOnly(day), normalizeCampaign(campaign)); err != nil {
		return wrap("rebuild snapshot", err)
	}
	return nil
}

func wrap(op string, err error) error {
	return fmt.Errorf("analytics: %s: %w", op, err)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func normalizeCampaign(c string) string {
	if c == "" {
		return DefaultCampaign
	}
	return c
}
