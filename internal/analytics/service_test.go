package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/romidental/voice-platform/pkg/logging"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func snapshotColumns() []string {
	return []string{"id", "date", "campaign", "total_calls", "appointments_booked", "revenue_cents", "conversion_rate", "created_at"}
}

func TestRecordBookingUpsertsCounter(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository()
	day := time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO call_analytics").
		WithArgs(pgxmock.AnyArg(), time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), "default", int64(5000)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.RecordBooking(context.Background(), mock, day, "", 5000); err != nil {
		t.Fatalf("RecordBooking: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecordRevenueZeroIsNoop(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository()

	if err := repo.RecordRevenue(context.Background(), mock, time.Now(), "default", 0); err != nil {
		t.Fatalf("RecordRevenue: %v", err)
	}
	// No expectations set: a zero amount must not hit the store.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("store touched for zero revenue: %v", err)
	}
}

func TestGetMissingDayYieldsZeroSnapshot(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository()
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, date, campaign").
		WithArgs(day, "default").
		WillReturnRows(pgxmock.NewRows(snapshotColumns()))

	snap, err := repo.Get(context.Background(), mock, day, "default")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.TotalCalls != 0 || snap.AppointmentsBooked != 0 || snap.RevenueCents != 0 {
		t.Errorf("expected zero counters, got %+v", snap)
	}
	if snap.ConversionRate != 0 {
		t.Errorf("expected conversion rate 0 for an empty day, got %f", snap.ConversionRate)
	}
	if !snap.Date.Equal(day) {
		t.Errorf("expected date %v, got %v", day, snap.Date)
	}
}

func TestRollupSumsRange(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, NewRepository(), logging.New("error"))
	from := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(snapshotColumns()).
		AddRow(uuid.New(), from, "default", int64(10), int64(3), int64(15000), 0.3, from).
		AddRow(uuid.New(), from.AddDate(0, 0, 1), "default", int64(5), int64(1), int64(5000), 0.2, from).
		AddRow(uuid.New(), to, "default", int64(5), int64(2), int64(10000), 0.4, from)
	mock.ExpectQuery("SELECT id, date, campaign").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(rows)

	got, err := svc.Rollup(context.Background(), from, to, "")
	if err != nil {
		t.Fatalf("Rollup: %v", err)
	}
	if got.TotalCalls != 20 {
		t.Errorf("total calls: want 20, got %d", got.TotalCalls)
	}
	if got.AppointmentsBooked != 6 {
		t.Errorf("booked: want 6, got %d", got.AppointmentsBooked)
	}
	if got.RevenueCents != 30000 {
		t.Errorf("revenue: want 30000, got %d", got.RevenueCents)
	}
	if got.ConversionRate != 0.3 {
		t.Errorf("conversion rate: want 0.3, got %f", got.ConversionRate)
	}
	if got.Days != 3 {
		t.Errorf("days: want 3, got %d", got.Days)
	}
}

func TestRollupDaysCountsDistinctDates(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, NewRepository(), logging.New("error"))
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	// Two campaigns rolled up on the same date are one day, not two.
	rows := pgxmock.NewRows(snapshotColumns()).
		AddRow(uuid.New(), day, "default", int64(10), int64(2), int64(10000), 0.2, day).
		AddRow(uuid.New(), day, "recall-august", int64(4), int64(1), int64(5000), 0.25, day)
	mock.ExpectQuery("SELECT id, date, campaign").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(rows)

	got, err := svc.Rollup(context.Background(), day, day, "")
	if err != nil {
		t.Fatalf("Rollup: %v", err)
	}
	if got.Days != 1 {
		t.Errorf("days: want 1, got %d", got.Days)
	}
	if got.TotalCalls != 14 {
		t.Errorf("total calls: want 14, got %d", got.TotalCalls)
	}
}

func TestRollupZeroCallsHasZeroRate(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, NewRepository(), logging.New("error"))
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(snapshotColumns()).
		AddRow(uuid.New(), day, "default", int64(0), int64(2), int64(10000), 0.0, day)
	mock.ExpectQuery("SELECT id, date, campaign").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(rows)

	got, err := svc.Rollup(context.Background(), day, day, "")
	if err != nil {
		t.Fatalf("Rollup: %v", err)
	}
	if got.ConversionRate != 0 {
		t.Errorf("expected rate 0 with no calls, got %f", got.ConversionRate)
	}
}

func TestRebuildUpserts(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, NewRepository(), logging.New("error"))
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO call_analytics").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := svc.Rebuild(context.Background(), day, "default"); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestClinicStats(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, NewRepository(), logging.New("error"))
	now := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count", "completed", "revenue", "patients"}).
			AddRow(int64(42), int64(30), int64(210000), int64(35)))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(pgxmock.NewRows([]string{"count", "revenue"}).AddRow(int64(4), int64(20000)))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	stats, err := svc.ClinicStats(context.Background(), now)
	if err != nil {
		t.Fatalf("ClinicStats: %v", err)
	}
	if stats.TotalAppointments != 42 || stats.CompletedAppointments != 30 {
		t.Errorf("unexpected totals: %+v", stats)
	}
	if stats.TodayAppointments != 4 || stats.TodayRevenueCents != 20000 {
		t.Errorf("unexpected today counters: %+v", stats)
	}
	if stats.PendingFollowUps != 7 {
		t.Errorf("unexpected pending follow-ups: %d", stats.PendingFollowUps)
	}
}
