// Package validation normalizes and checks caller-supplied fields before
// anything is persisted. Nothing from the conversational layer is trusted
// without passing through here first.
package validation

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/romidental/voice-platform/internal/clinic"
	"github.com/romidental/voice-platform/internal/scheduling"
)

const (
	maxNameLen  = 100
	maxEmailLen = 254
	// MaxNotesLen bounds free-text notes stored with an appointment.
	MaxNotesLen = 1000
	// MaxPreferredTimeLen bounds the free-form follow-up time window.
	MaxPreferredTimeLen = 200
)

var (
	mobilePrefixes   = []string{"67", "68", "69"}
	landlinePrefixes = []string{"2", "3", "4"}

	nonPhoneChars = regexp.MustCompile(`[^\d+]`)
	multiSpace    = regexp.MustCompile(`\s+`)
	nameChars     = regexp.MustCompile(`^[a-zA-Z\s\-'.]+$`)
	emailPattern  = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// Markup and script fragments rejected in names: stored values may later
	// be rendered in a dashboard.
	markupPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<[^>]+>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)vbscript:`),
		regexp.MustCompile(`(?i)on\w+=`),
		regexp.MustCompile(`(?i)data:`),
	}
)

// Phone validates an Albanian phone number and returns the canonical
// +355XXXXXXXXX form. Mobile numbers carry prefixes 67/68/69 and nine local
// digits; landlines start with 2/3/4 and carry eight.
func Phone(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", scheduling.NewValidationError("phone_number", "phone number is required")
	}

	cleaned := nonPhoneChars.ReplaceAllString(strings.TrimSpace(raw), "")
	if strings.HasPrefix(cleaned, "+") {
		if !strings.HasPrefix(cleaned, "+355") {
			return "", scheduling.NewValidationError("phone_number", "only Albanian phone numbers are supported")
		}
		cleaned = cleaned[1:]
	}
	cleaned = strings.TrimPrefix(cleaned, "355")

	if len(cleaned) < 8 || len(cleaned) > 9 {
		return "", scheduling.NewValidationError("phone_number", "invalid phone number length")
	}

	if len(cleaned) == 9 {
		for _, p := range mobilePrefixes {
			if strings.HasPrefix(cleaned, p) {
				return "+355" + cleaned, nil
			}
		}
	}
	if len(cleaned) == 8 {
		for _, p := range landlinePrefixes {
			if strings.HasPrefix(cleaned, p) {
				return "+355" + cleaned, nil
			}
		}
	}

	return "", scheduling.NewValidationError("phone_number", "invalid Albanian phone number format")
}

// Name validates and normalizes a person name: NFKC normalization, whitespace
// collapse, title casing, markup rejection.
func Name(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", scheduling.NewValidationError("name", "name is required")
	}
	if len(name) < 2 {
		return "", scheduling.NewValidationError("name", "name must be at least 2 characters")
	}
	if len(name) > maxNameLen {
		return "", scheduling.NewValidationError("name", "name too long")
	}

	for _, p := range markupPatterns {
		if p.MatchString(name) {
			return "", scheduling.NewValidationError("name", "invalid characters in name")
		}
	}

	name = norm.NFKC.String(name)
	name = multiSpace.ReplaceAllString(name, " ")

	if !nameChars.MatchString(name) {
		return "", scheduling.NewValidationError("name", "name contains invalid characters")
	}

	words := strings.Fields(strings.ToLower(name))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " "), nil
}

// Email validates an optional email address. Empty input is not an error and
// yields an empty normalized value.
func Email(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", nil
	}
	if len(email) > maxEmailLen {
		return "", scheduling.NewValidationError("email", "email address too long")
	}
	if !emailPattern.MatchString(email) {
		return "", scheduling.NewValidationError("email", "invalid email format")
	}
	return email, nil
}

// Text sanitizes bounded free text: control characters stripped, whitespace
// collapsed, hard-truncated to maxLen runes.
func Text(raw string, maxLen int) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= 32 || r == '\t' || r == '\n' || r == '\r' {
			b.WriteRune(r)
		}
	}
	text := multiSpace.ReplaceAllString(strings.TrimSpace(b.String()), " ")
	if maxLen <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// Validator checks fields that depend on clinic configuration: appointment
// dates against operating days and the booking horizon, service types
// against the whitelist.
type Validator struct {
	cfg *clinic.Config
	now func() time.Time
}

// New creates a validator bound to the clinic configuration.
func New(cfg *clinic.Config) *Validator {
	return &Validator{cfg: cfg, now: time.Now}
}

// NewWithClock allows tests to pin "now".
func NewWithClock(cfg *clinic.Config, now func() time.Time) *Validator {
	return &Validator{cfg: cfg, now: now}
}

// AppointmentDate parses an RFC 3339 (or date-time without zone) timestamp
// and checks it is strictly in the future, within the booking horizon, and
// on a day the clinic opens.
func (v *Validator) AppointmentDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, scheduling.NewValidationError("appointment_date", "date is required")
	}

	ts, err := parseTimestamp(s, v.cfg.Loc())
	if err != nil {
		return time.Time{}, scheduling.NewValidationError("appointment_date", "invalid date format")
	}

	now := v.now()
	if !ts.After(now) {
		return time.Time{}, scheduling.NewValidationError("appointment_date", "appointment date cannot be in the past")
	}

	horizon := v.cfg.MaxBookingHorizonDays
	if horizon <= 0 {
		horizon = 365
	}
	if ts.After(now.AddDate(0, 0, horizon)) {
		return time.Time{}, scheduling.NewValidationError("appointment_date", "appointment date too far in the future")
	}

	if !v.cfg.IsOpenOn(ts.In(v.cfg.Loc())) {
		return time.Time{}, scheduling.NewValidationError("appointment_date", "clinic is closed on that day")
	}

	return ts, nil
}

// Day parses a bare date for availability checks. Past days are rejected;
// today is allowed.
func (v *Validator) Day(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, scheduling.NewValidationError("date", "date is required")
	}
	day, err := time.ParseInLocation("2006-01-02", s, v.cfg.Loc())
	if err != nil {
		ts, tsErr := parseTimestamp(s, v.cfg.Loc())
		if tsErr != nil {
			return time.Time{}, scheduling.NewValidationError("date", "invalid date format")
		}
		day = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, v.cfg.Loc())
	}

	today := v.now().In(v.cfg.Loc())
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, v.cfg.Loc())
	if day.Before(today) {
		return time.Time{}, scheduling.NewValidationError("date", "date cannot be in the past")
	}
	return day, nil
}

// ServiceType resolves a caller-supplied service description against the
// configured whitelist. Unknown values fail rather than being accepted.
func (v *Validator) ServiceType(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", scheduling.NewValidationError("service_type", "service type is required")
	}
	if matched := v.cfg.MatchService(s); matched != "" {
		return matched, nil
	}
	return "", scheduling.NewValidationError("service_type", "unknown service type")
}

// PreferredTime validates a follow-up's free-form time window.
func (v *Validator) PreferredTime(raw string) (string, error) {
	s := Text(raw, MaxPreferredTimeLen)
	if s == "" {
		return "", scheduling.NewValidationError("preferred_time", "preferred time is required")
	}
	return s, nil
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04"} {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, &time.ParseError{Layout: time.RFC3339, Value: s}
}
