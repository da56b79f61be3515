package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/romidental/voice-platform/internal/scheduling"
	"github.com/romidental/voice-platform/internal/validation"
)

const spokenDateFormat = "Monday, January 2 at 3:04 PM"

func decodeArgs(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return scheduling.NewValidationError("arguments", "I didn't catch that correctly")
	}
	return nil
}

// onDNC short-circuits scheduling tools for numbers on the do-not-call
// list. A nil list or a redis fault fails open: a lookup hiccup must not
// block a consenting caller.
func (d *Dispatcher) onDNC(ctx context.Context, phone string) bool {
	if d.dnc == nil {
		return false
	}
	listed, err := d.dnc.Contains(ctx, phone)
	if err != nil {
		d.logger.Warn("do-not-call lookup failed", "error", err)
		return false
	}
	return listed
}

const dncRefusal = "Of course, I completely understand. I won't schedule anything, and we'll make sure not to call this number again. Thank you for your time, and have a great day!"

type assessArgs struct {
	ClientInterest   string `json:"client_interest"`
	DentalConcerns   string `json:"dental_concerns"`
	TimeAvailability string `json:"time_availability"`
}

// assessClientNeeds applies the conversation triage heuristic: urgent
// dental concerns outrank interest, and a busy caller gets a follow-up
// recommendation instead of a hard sell.
func (d *Dispatcher) assessClientNeeds(ctx context.Context, raw json.RawMessage) (string, error) {
	var args assessArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}

	concerns := strings.ToLower(args.DentalConcerns)
	interest := strings.ToLower(args.ClientInterest)
	availability := strings.ToLower(args.TimeAvailability)

	var recommendation, urgency string
	switch {
	case containsAny(concerns, "pain", "emergency", "urgent", "hurt"):
		recommendation, urgency = "emergency consultation", "high"
	case strings.Contains(interest, "interested") && strings.Contains(availability, "available"):
		recommendation, urgency = "detailed consultation", "medium"
	case containsAny(availability, "busy", "later"):
		recommendation, urgency = "follow-up call", "low"
	default:
		recommendation, urgency = "general consultation", "medium"
	}

	// The assessment marks a live conversation; a counter hiccup should not
	// derail the call.
	if err := d.sched.RecordCallOutcome(ctx, false, 0); err != nil {
		d.logger.Warn("call counter update failed", "error", err)
	}

	d.logger.Info("client needs assessed", "recommendation", recommendation, "urgency", urgency)
	return fmt.Sprintf("Based on your needs, I recommend a %s. This would be the best way to help you with your dental health goals. The urgency level is %s.", recommendation, urgency), nil
}

type followUpArgs struct {
	ClientName    string `json:"client_name"`
	PhoneNumber   string `json:"phone_number"`
	PreferredTime string `json:"preferred_time"`
}

func (d *Dispatcher) scheduleFollowUp(ctx context.Context, raw json.RawMessage) (string, error) {
	var args followUpArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}

	name, err := validation.Name(args.ClientName)
	if err != nil {
		return "", err
	}
	phone, err := validation.Phone(args.PhoneNumber)
	if err != nil {
		return "", err
	}
	preferred, err := d.validator.PreferredTime(args.PreferredTime)
	if err != nil {
		return "", err
	}

	if d.onDNC(ctx, phone) {
		return dncRefusal, nil
	}

	_, err = d.sched.ScheduleFollowUp(ctx, scheduling.FollowUpRequest{
		PatientName:   name,
		PhoneNumber:   phone,
		PreferredTime: preferred,
		Reason:        "Follow-up from initial call",
	})
	if err != nil {
		return "I'm having trouble with our scheduling system. I'll make sure to call you back at a better time.", err
	}

	return fmt.Sprintf("Perfect! I've scheduled a follow-up call for %s. I'll call you back then to discuss your dental health needs. Thank you for your time!", preferred), nil
}

type appointmentArgs struct {
	PatientName   string `json:"patient_name"`
	PreferredDate string `json:"preferred_date"`
	ServiceType   string `json:"service_type"`
	PhoneNumber   string `json:"phone_number"`
}

func (d *Dispatcher) scheduleAppointment(ctx context.Context, raw json.RawMessage) (string, error) {
	var args appointmentArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}

	name, err := validation.Name(args.PatientName)
	if err != nil {
		return "", err
	}
	phone, err := validation.Phone(args.PhoneNumber)
	if err != nil {
		return "", err
	}
	service, err := d.validator.ServiceType(args.ServiceType)
	if err != nil {
		return "", err
	}
	when, err := d.validator.AppointmentDate(args.PreferredDate)
	if err != nil {
		return "", err
	}

	if d.onDNC(ctx, phone) {
		return dncRefusal, nil
	}

	appt, err := d.sched.ScheduleAppointment(ctx, scheduling.AppointmentRequest{
		PatientName:  name,
		PhoneNumber:  phone,
		ServiceType:  service,
		ScheduledAt:  when,
		RevenueCents: int64(d.cfg.ConsultationFeeCents),
	})
	if errors.Is(err, scheduling.ErrSlotUnavailable) {
		d.metrics.ObserveSlotConflict()
		return d.offerAlternatives(ctx, when), nil
	}
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Excellent! I've scheduled your %s appointment for %s. Your confirmation code is %s. All payments are made at our clinic in Euro for your security. Thank you for choosing %s!",
		service, when.In(d.cfg.Loc()).Format(spokenDateFormat), appt.ConfirmationCode(), d.cfg.Name), nil
}

// offerAlternatives turns a slot conflict into a counter-offer with the
// day's remaining openings.
func (d *Dispatcher) offerAlternatives(ctx context.Context, requested time.Time) string {
	day := requested.In(d.cfg.Loc()).Format("Monday, January 2")
	slots, err := d.sched.CheckAvailableSlots(ctx, requested)
	if err != nil || len(slots) == 0 {
		return fmt.Sprintf("I'm sorry, that time is already booked and %s is filling up. Would you like to check another date?", day)
	}
	return fmt.Sprintf("I'm sorry, that time is already booked. On %s we still have %s available. Would one of those work for you?",
		day, spokenTimes(slots, d.cfg.Loc()))
}

func (d *Dispatcher) getClinicInfo(ctx context.Context, raw json.RawMessage) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s offers comprehensive dental services with experienced professionals. I'm %s, your assistant.\n\n",
		d.cfg.Name, d.cfg.AssistantName)

	b.WriteString("Our services include:\n")
	for _, service := range d.cfg.Services {
		fmt.Fprintf(&b, "- %s\n", service)
	}

	b.WriteString("\nHours:\n")
	for day := time.Monday; ; day = (day + 1) % 7 {
		hours := d.cfg.BusinessHours.ForWeekday(day)
		if hours == nil {
			fmt.Fprintf(&b, "- %s: closed\n", day)
		} else {
			fmt.Fprintf(&b, "- %s: %s to %s\n", day, hours.Open, hours.Close)
		}
		if day == time.Sunday {
			break
		}
	}

	b.WriteString("\nPayment methods:\n")
	for _, method := range d.cfg.PaymentMethods {
		fmt.Fprintf(&b, "- %s\n", method)
	}
	b.WriteString("\nSpecial offers available for new patients!")
	return b.String(), nil
}

type slotsArgs struct {
	PreferredDate string `json:"preferred_date"`
}

func (d *Dispatcher) checkAvailableSlots(ctx context.Context, raw json.RawMessage) (string, error) {
	var args slotsArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}

	day, err := d.validator.Day(args.PreferredDate)
	if err != nil {
		return "", err
	}
	if !d.cfg.IsOpenOn(day) {
		return "Sorry, that date is not available for appointments. Would you like to try another day?", nil
	}

	slots, err := d.sched.CheckAvailableSlots(ctx, day)
	if err != nil {
		return "", err
	}

	spoken := day.Format("Monday, January 2")
	if len(slots) == 0 {
		return fmt.Sprintf("Sorry, all slots are booked for %s. Would you like to check another date?", spoken), nil
	}
	return fmt.Sprintf("For %s, we have slots available at: %s. These are filling up quickly! Would you like me to book one of these times?",
		spoken, spokenTimes(slots, d.cfg.Loc())), nil
}

func (d *Dispatcher) getPaymentInfo(ctx context.Context, raw json.RawMessage) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "At %s, all payments are processed at our clinic for your security and convenience. We never take payments over the phone.\n\nWe accept:\n", d.cfg.Name)
	for _, method := range d.cfg.PaymentMethods {
		fmt.Fprintf(&b, "- %s\n", method)
	}
	b.WriteString("\nConsultation fees vary by service and are payable when you visit. We work with most dental insurance providers and offer payment plans for major procedures. Plus, we have special offers for new patients!")
	return b.String(), nil
}

type searchArgs struct {
	Query string `json:"query"`
}

const searchFallback = "I'm having trouble finding that information right now. Please consult with our dental professionals for specific medical advice."

func (d *Dispatcher) searchWeb(ctx context.Context, raw json.RawMessage) (string, error) {
	var args searchArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}

	query := validation.Text(args.Query, validation.MaxPreferredTimeLen)
	if query == "" {
		return "", scheduling.NewValidationError("query", "I need to know what to search for")
	}
	if d.search == nil {
		return searchFallback, nil
	}

	results, err := d.search.Search(ctx, query, 3)
	if err != nil {
		return searchFallback, fmt.Errorf("tools: search_web: %w", err)
	}
	if len(results) == 0 {
		return searchFallback, nil
	}

	var b strings.Builder
	b.WriteString("Here's what I found: ")
	for i, r := range results {
		if i > 0 {
			b.WriteString(" ")
		}
		if r.Snippet != "" {
			b.WriteString(r.Snippet)
		} else {
			b.WriteString(r.Title)
		}
	}
	return b.String(), nil
}

func (d *Dispatcher) getClinicStats(ctx context.Context, raw json.RawMessage) (string, error) {
	if d.stats == nil {
		return "", fmt.Errorf("tools: get_clinic_stats: analytics not configured")
	}

	stats, err := d.stats.ClinicStats(ctx, d.now())
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s statistics: %d total appointments, %d completed. Total revenue %s. %d unique patients. Today: %d appointments, %s in revenue. %d pending follow-ups. These numbers help us improve our service and patient care.",
		d.cfg.Name,
		stats.TotalAppointments, stats.CompletedAppointments,
		formatMoney(stats.TotalRevenueCents, d.cfg.Currency),
		stats.UniquePatients,
		stats.TodayAppointments,
		formatMoney(stats.TodayRevenueCents, d.cfg.Currency),
		stats.PendingFollowUps), nil
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func spokenTimes(slots []time.Time, loc *time.Location) string {
	parts := make([]string, len(slots))
	for i, s := range slots {
		parts[i] = s.In(loc).Format("3:04 PM")
	}
	return strings.Join(parts, ", ")
}

func formatMoney(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
}
