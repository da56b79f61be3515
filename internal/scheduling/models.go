// Package scheduling implements the transactional core of the clinic
// assistant: patients, appointments, follow-ups and the analytics counters
// they feed. All writes go through one pgx transaction per operation.
package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus enumerates the appointment lifecycle. Transitions are
// forward-only: scheduled may move to any terminal status, terminal statuses
// never change. Rows are never deleted; a status transition substitutes for
// deletion.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Valid reports whether s is a known appointment status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// CanTransitionTo reports whether s may move to next.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	return s == StatusScheduled && next.Valid() && next != StatusScheduled
}

// FollowUpStatus enumerates the follow-up lifecycle.
type FollowUpStatus string

const (
	FollowUpPending   FollowUpStatus = "pending"
	FollowUpCompleted FollowUpStatus = "completed"
	FollowUpCancelled FollowUpStatus = "cancelled"
)

// Patient is created on the first successful booking or follow-up for an
// unseen phone number, and looked up by phone thereafter. Identity is
// immutable once created; contact fields may change.
type Patient struct {
	ID          uuid.UUID
	Name        string
	PhoneNumber string
	Email       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Appointment carries denormalized patient name and phone so the record is
// self-describing even if patient linkage changes later.
type Appointment struct {
	ID           uuid.UUID
	PatientID    *uuid.UUID
	PatientName  string
	PhoneNumber  string
	ServiceType  string
	ScheduledAt  time.Time
	Status       AppointmentStatus
	RevenueCents int64
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ConfirmationCode returns a short opaque reference safe to read back to a
// caller. Internal ids never cross the tool boundary in full.
func (a *Appointment) ConfirmationCode() string {
	return a.ID.String()[:8]
}

// FollowUp is a callback request, not a slot reservation. It may later be
// promoted into an appointment, subject to the normal slot-conflict rule.
type FollowUp struct {
	ID            uuid.UUID
	PatientName   string
	PhoneNumber   string
	PreferredTime string
	Reason        string
	Status        FollowUpStatus
	ScheduledBy   string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// AppointmentRequest is a fully validated booking request. Construction goes
// through the validation layer; the engine assumes fields are normalized.
type AppointmentRequest struct {
	PatientName  string
	PhoneNumber  string
	Email        string
	ServiceType  string
	ScheduledAt  time.Time
	Notes        string
	RevenueCents int64
}

// FollowUpRequest is a validated follow-up request.
type FollowUpRequest struct {
	PatientName   string
	PhoneNumber   string
	PreferredTime string
	Reason        string
	ScheduledBy   string
}

// FollowUpOutcome describes how a follow-up call ended.
type FollowUpOutcome struct {
	// Cancelled marks the follow-up cancelled instead of completed.
	Cancelled bool
	// Booking, when non-nil, promotes the follow-up into an appointment in
	// the same call.
	Booking *AppointmentRequest
}
