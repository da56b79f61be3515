package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/romidental/voice-platform/internal/analytics"
	"github.com/romidental/voice-platform/internal/api/handlers"
	"github.com/romidental/voice-platform/internal/clinic"
	"github.com/romidental/voice-platform/internal/scheduling"
	"github.com/romidental/voice-platform/internal/tools"
	"github.com/romidental/voice-platform/pkg/logging"
)

const testSecret = "test-admin-secret"

func newTestServer(t *testing.T) (http.Handler, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)

	logger := logging.New("error")
	cfg := clinic.DefaultConfig("romi-dental")
	sched := scheduling.NewService(scheduling.NewRepository(mock), analytics.NewRepository(), cfg, logger)
	stats := analytics.NewService(mock, analytics.NewRepository(), logger)
	dispatcher := tools.NewDispatcher(sched, stats, logger)

	h := New(&Config{
		Logger:         logger,
		Tools:          handlers.NewToolsHandler(dispatcher, logger),
		Admin:          handlers.NewAdminHandler(stats, sched, logger),
		AdminJWTSecret: testSecret,
	})
	return h, mock
}

func adminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestToolInvokeUnknownToolIs404(t *testing.T) {
	h, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tools/open_vault", strings.NewReader("{}")))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestToolInvokeReturnsSpokenResponse(t *testing.T) {
	h, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tools/get_clinic_info", strings.NewReader("{}")))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !strings.Contains(body.Response, "Romi Dental Clinic") {
		t.Errorf("unexpected response %q", body.Response)
	}
}

func TestToolList(t *testing.T) {
	h, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Tools []string `json:"tools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Tools) != 8 {
		t.Errorf("expected 8 tools, got %v", body.Tools)
	}
}

func TestAdminRequiresToken(t *testing.T) {
	h, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/analytics", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminRollup(t *testing.T) {
	h, mock := newTestServer(t)

	mock.ExpectQuery("SELECT id, date, campaign").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "date", "campaign", "total_calls", "appointments_booked",
			"revenue_cents", "conversion_rate", "created_at",
		}))

	req := httptest.NewRequest(http.MethodGet, "/admin/analytics?from=2026-08-01&to=2026-08-31", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var rollup analytics.Rollup
	if err := json.Unmarshal(rec.Body.Bytes(), &rollup); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if rollup.TotalCalls != 0 || rollup.ConversionRate != 0 {
		t.Errorf("expected empty rollup, got %+v", rollup)
	}
}

func TestAdminRollupBadDate(t *testing.T) {
	h, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/analytics?from=yesterday", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAdminAppointmentStatusInvalidID(t *testing.T) {
	h, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/admin/appointments/not-a-uuid/status",
		strings.NewReader(`{"status":"completed"}`))
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
