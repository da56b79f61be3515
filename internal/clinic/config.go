// Package clinic provides clinic-specific configuration and business logic.
package clinic

import (
	"sort"
	"strings"
	"time"
)

// DayHours represents the opening hours for a single day.
// Nil means the clinic is closed that day.
type DayHours struct {
	Open  string `json:"open"`  // "09:00" in 24-hour format
	Close string `json:"close"` // "18:00" in 24-hour format
}

// BusinessHours maps day names to their hours.
type BusinessHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// ForWeekday returns the hours for the given weekday, nil when closed.
func (b BusinessHours) ForWeekday(day time.Weekday) *DayHours {
	switch day {
	case time.Monday:
		return b.Monday
	case time.Tuesday:
		return b.Tuesday
	case time.Wednesday:
		return b.Wednesday
	case time.Thursday:
		return b.Thursday
	case time.Friday:
		return b.Friday
	case time.Saturday:
		return b.Saturday
	case time.Sunday:
		return b.Sunday
	}
	return nil
}

// Config holds clinic-specific configuration. It is constructed once at
// startup (or loaded from the store) and passed by reference into the
// scheduling and validation layers.
type Config struct {
	ClinicID      string   `json:"clinic_id"`
	Name          string   `json:"name"`
	Location      string   `json:"location,omitempty"`
	AssistantName string   `json:"assistant_name,omitempty"`
	Timezone      string   `json:"timezone"` // e.g., "Europe/Tirane"
	Services      []string `json:"services,omitempty"`
	// PaymentMethods accepted at the clinic. Payments are never taken over
	// the phone; this list is informational only.
	PaymentMethods []string      `json:"payment_methods,omitempty"`
	Currency       string        `json:"currency,omitempty"`
	BusinessHours  BusinessHours `json:"business_hours"`
	// SlotInterval is the spacing between bookable appointment starts.
	SlotInterval time.Duration `json:"slot_interval_ns,omitempty"`
	// ConsultationFeeCents is recorded as expected revenue on new bookings.
	ConsultationFeeCents int `json:"consultation_fee_cents,omitempty"`
	// MaxBookingHorizonDays bounds how far out an appointment may be booked.
	MaxBookingHorizonDays int `json:"max_booking_horizon_days,omitempty"`
}

// DefaultConfig returns the Romi Dental defaults: Mon-Fri 9-18, Sat 9-14,
// closed Sunday, 90-minute slots.
func DefaultConfig(clinicID string) *Config {
	weekday := &DayHours{Open: "09:00", Close: "18:00"}
	return &Config{
		ClinicID:      clinicID,
		Name:          "Romi Dental Clinic",
		Location:      "Albania",
		AssistantName: "Elo",
		Timezone:      "Europe/Tirane",
		Services: []string{
			"regular check-ups and cleanings",
			"cosmetic dentistry and whitening",
			"emergency dental care",
			"children's dentistry",
			"dental implants and prosthetics",
			"root canal treatment",
			"dental crowns",
			"teeth whitening",
			"dental fillings",
			"orthodontics",
		},
		PaymentMethods: []string{
			"Cash (Euro)",
			"Credit Cards",
			"Debit Cards",
			"Bank Transfers",
		},
		Currency: "EUR",
		BusinessHours: BusinessHours{
			Monday:    weekday,
			Tuesday:   weekday,
			Wednesday: weekday,
			Thursday:  weekday,
			Friday:    weekday,
			Saturday:  &DayHours{Open: "09:00", Close: "14:00"},
		},
		SlotInterval:          90 * time.Minute,
		ConsultationFeeCents:  5000,
		MaxBookingHorizonDays: 365,
	}
}

// Loc resolves the clinic timezone, falling back to UTC.
func (c *Config) Loc() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsOpenOn reports whether the clinic opens at all on the given date.
func (c *Config) IsOpenOn(date time.Time) bool {
	return c.BusinessHours.ForWeekday(date.Weekday()) != nil
}

// IsOpenAt reports whether the clinic is open at the given instant.
func (c *Config) IsOpenAt(t time.Time) bool {
	local := t.In(c.Loc())
	hours := c.BusinessHours.ForWeekday(local.Weekday())
	if hours == nil {
		return false
	}
	open, okOpen := parseClock(hours.Open)
	close, okClose := parseClock(hours.Close)
	if !okOpen || !okClose {
		return false
	}
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= open && minutes < close
}

// SlotTimes returns the bookable start times for the given date, in the
// clinic timezone, spaced SlotInterval apart. A closed day yields nil.
func (c *Config) SlotTimes(date time.Time) []time.Time {
	local := date.In(c.Loc())
	hours := c.BusinessHours.ForWeekday(local.Weekday())
	if hours == nil {
		return nil
	}
	open, okOpen := parseClock(hours.Open)
	close, okClose := parseClock(hours.Close)
	if !okOpen || !okClose || close <= open {
		return nil
	}
	interval := c.SlotInterval
	if interval <= 0 {
		interval = 90 * time.Minute
	}

	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.Loc())
	start := day.Add(time.Duration(open) * time.Minute)
	end := day.Add(time.Duration(close) * time.Minute)

	var slots []time.Time
	for t := start; !t.Add(interval).After(end); t = t.Add(interval) {
		slots = append(slots, t)
	}
	return slots
}

// HasService reports whether the (normalized) service type is offered.
func (c *Config) HasService(service string) bool {
	needle := strings.ToLower(strings.TrimSpace(service))
	for _, s := range c.Services {
		if strings.ToLower(s) == needle {
			return true
		}
	}
	return false
}

// MatchService resolves a caller-supplied description to a whitelisted
// service. Matching is case-insensitive substring in either direction, the
// same leniency callers get over the phone. Returns "" when nothing matches.
func (c *Config) MatchService(service string) string {
	needle := strings.ToLower(strings.TrimSpace(service))
	if needle == "" {
		return ""
	}
	// Prefer the most specific (longest) match so "teeth whitening" does not
	// resolve to "cosmetic dentistry and whitening" when both match.
	candidates := make([]string, len(c.Services))
	copy(candidates, c.Services)
	sort.Slice(candidates, func(i, j int) bool { return len(candidates[i]) > len(candidates[j]) })
	for _, s := range candidates {
		lower := strings.ToLower(s)
		if strings.Contains(lower, needle) || strings.Contains(needle, lower) {
			return s
		}
	}
	return ""
}

func parseClock(s string) (minutes int, ok bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
