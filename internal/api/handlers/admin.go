package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/romidental/voice-platform/internal/analytics"
	"github.com/romidental/voice-platform/internal/scheduling"
	"github.com/romidental/voice-platform/pkg/logging"
)

// AdminHandler exposes the analytics read path and back-office scheduling
// operations. Everything here sits behind the admin JWT middleware.
type AdminHandler struct {
	analytics *analytics.Service
	sched     *scheduling.Service
	logger    *logging.Logger
	now       func() time.Time
}

// NewAdminHandler creates the admin API handler.
func NewAdminHandler(analyticsSvc *analytics.Service, sched *scheduling.Service, logger *logging.Logger) *AdminHandler {
	if analyticsSvc == nil {
		panic("handlers: analytics service required")
	}
	if sched == nil {
		panic("handlers: scheduling service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{analytics: analyticsSvc, sched: sched, logger: logger, now: time.Now}
}

// Rollup handles GET /admin/analytics?from=&to=&campaign=. Dates are
// YYYY-MM-DD; the default window is the last 30 days.
func (h *AdminHandler) Rollup(w http.ResponseWriter, r *http.Request) {
	to := h.now()
	from := to.AddDate(0, 0, -30)

	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse("2006-01-02", raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date")
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse("2006-01-02", raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date")
			return
		}
	}

	rollup, err := h.analytics.Rollup(r.Context(), from, to, r.URL.Query().Get("campaign"))
	if err != nil {
		h.logger.Error("analytics rollup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rollup)
}

// Snapshot handles GET /admin/analytics/snapshot?date=&campaign=.
func (h *AdminHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	day := h.now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
		day = parsed
	}

	snap, err := h.analytics.Snapshot(r.Context(), day, r.URL.Query().Get("campaign"))
	if err != nil {
		h.logger.Error("analytics snapshot failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type rebuildRequest struct {
	Date     string `json:"date"`
	Campaign string `json:"campaign,omitempty"`
}

// Rebuild handles POST /admin/analytics/rebuild. It recomputes one day's
// booking counters from the appointments table.
func (h *AdminHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	var req rebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	day, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	if err := h.analytics.Rebuild(r.Context(), day, req.Campaign); err != nil {
		h.logger.Error("analytics rebuild failed", "date", req.Date, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rebuilt", "date": req.Date})
}

// ClinicStats handles GET /admin/stats.
func (h *AdminHandler) ClinicStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.ClinicStats(r.Context(), h.now())
	if err != nil {
		h.logger.Error("clinic stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// PendingFollowUps handles GET /admin/follow-ups.
func (h *AdminHandler) PendingFollowUps(w http.ResponseWriter, r *http.Request) {
	followUps, err := h.sched.PendingFollowUps(r.Context())
	if err != nil {
		h.logger.Error("pending follow-ups failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if followUps == nil {
		followUps = []scheduling.FollowUp{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"follow_ups": followUps})
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateAppointmentStatus handles POST /admin/appointments/{id}/status.
func (h *AdminHandler) UpdateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	appt, err := h.sched.UpdateAppointmentStatus(r.Context(), id, scheduling.AppointmentStatus(req.Status))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{
			"id":     appt.ID.String(),
			"status": string(appt.Status),
		})
	case errors.Is(err, scheduling.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
	default:
		var verr *scheduling.ValidationError
		var terr *scheduling.InvalidTransitionError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Reason)
			return
		}
		if errors.As(err, &terr) {
			writeError(w, http.StatusConflict, "appointment status is final")
			return
		}
		h.logger.Error("status update failed", "appointment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
