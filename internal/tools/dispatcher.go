// Package tools is the seam between the voice pipeline and the scheduling
// core. Each tool is a named handler with a typed JSON argument contract;
// every response is a short string safe to read aloud. Internal errors never
// surface verbatim: they are logged and replaced with a spoken fallback.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/romidental/voice-platform/internal/analytics"
	"github.com/romidental/voice-platform/internal/clinic"
	"github.com/romidental/voice-platform/internal/observability/metrics"
	"github.com/romidental/voice-platform/internal/scheduling"
	"github.com/romidental/voice-platform/internal/validation"
	"github.com/romidental/voice-platform/internal/websearch"
	"github.com/romidental/voice-platform/pkg/logging"
)

var toolsTracer = otel.Tracer("romidental.internal.tools")

// ErrUnknownTool signals a dispatch request for a name not in the registry.
var ErrUnknownTool = errors.New("tools: unknown tool")

// Handler executes one named tool. A non-empty response returned alongside
// an error is a degraded spoken fallback; the dispatcher uses it instead of
// the generic one.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Searcher is the web-search dependency of the search_web tool.
type Searcher interface {
	Search(ctx context.Context, query string, max int) ([]websearch.Result, error)
}

// Dispatcher routes named tool calls to their handlers. The registry is
// static: tools are bound at construction and never change at runtime.
type Dispatcher struct {
	sched     *scheduling.Service
	stats     *analytics.Service
	search    Searcher
	dnc       *clinic.DNCList
	validator *validation.Validator
	cfg       *clinic.Config
	logger    *logging.Logger
	metrics   *metrics.ToolMetrics
	retryMax  int
	retryBase time.Duration
	now       func() time.Time
	handlers  map[string]Handler
}

// Option configures optional dispatcher behavior.
type Option func(*Dispatcher)

// WithSearch wires the web-search client. Without it, search_web degrades
// to a spoken apology.
func WithSearch(s Searcher) Option {
	return func(d *Dispatcher) { d.search = s }
}

// WithDNC wires the do-not-call list. Numbers on it short-circuit the
// scheduling tools with a polite refusal.
func WithDNC(dnc *clinic.DNCList) Option {
	return func(d *Dispatcher) { d.dnc = dnc }
}

// WithMetrics wires tool metrics. Nil-safe by default.
func WithMetrics(m *metrics.ToolMetrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithRetry bounds retries of retryable storage failures.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(d *Dispatcher) {
		if maxAttempts > 0 {
			d.retryMax = maxAttempts
		}
		if baseDelay > 0 {
			d.retryBase = baseDelay
		}
	}
}

// WithClock pins the dispatcher clock for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher builds the static tool registry around the scheduling
// engine and analytics read path.
func NewDispatcher(sched *scheduling.Service, stats *analytics.Service, logger *logging.Logger, opts ...Option) *Dispatcher {
	if sched == nil {
		panic("tools: scheduling service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		sched:     sched,
		stats:     stats,
		cfg:       sched.Clinic(),
		logger:    logger,
		retryMax:  3,
		retryBase: 200 * time.Millisecond,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.validator = validation.NewWithClock(d.cfg, d.now)
	d.handlers = map[string]Handler{
		"assess_client_needs":   d.assessClientNeeds,
		"schedule_follow_up":    d.scheduleFollowUp,
		"schedule_appointment":  d.scheduleAppointment,
		"get_clinic_info":       d.getClinicInfo,
		"check_available_slots": d.checkAvailableSlots,
		"get_payment_info":      d.getPaymentInfo,
		"search_web":            d.searchWeb,
		"get_clinic_stats":      d.getClinicStats,
	}
	return d
}

// Names lists the registered tool names, sorted.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the named tool. Unknown names return ErrUnknownTool; every
// other failure is converted into a spoken fallback so the caller always
// has something to say.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args json.RawMessage) (string, error) {
	handler, ok := d.handlers[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	ctx, span := toolsTracer.Start(ctx, "tools.dispatch",
		trace.WithAttributes(attribute.String("tool.name", name)))
	defer span.End()

	start := time.Now()
	resp, err := d.runWithRetry(ctx, name, handler, args)
	d.metrics.ObserveDuration(name, time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		d.metrics.ObserveInvocation(name, "error")
		d.logger.Error("tool failed", "tool", name, "error", err)
		if resp == "" {
			resp = speakFailure(err)
		}
		return resp, nil
	}

	d.metrics.ObserveInvocation(name, "ok")
	return resp, nil
}

// runWithRetry re-runs the handler on retryable storage faults with
// exponential backoff. Business errors and validation failures never retry.
func (d *Dispatcher) runWithRetry(ctx context.Context, name string, handler Handler, args json.RawMessage) (string, error) {
	var resp string
	var err error
	for attempt := 1; ; attempt++ {
		resp, err = handler(ctx, args)
		if err == nil || !scheduling.IsRetryable(err) || attempt >= d.retryMax {
			return resp, err
		}
		d.metrics.ObserveRetry(name)
		d.logger.Warn("retrying tool after storage fault", "tool", name, "attempt", attempt, "error", err)

		delay := d.retryBase << (attempt - 1)
		select {
		case <-ctx.Done():
			return resp, err
		case <-time.After(delay):
		}
	}
}

// speakFailure maps an internal error to a spoken fallback. Nothing about
// the store or the failure detail leaks into the response.
func speakFailure(err error) string {
	var verr *scheduling.ValidationError
	if errors.As(err, &verr) {
		return fmt.Sprintf("I apologize, but %s. Could you repeat that for me?", verr.Reason)
	}
	if errors.Is(err, scheduling.ErrSlotUnavailable) {
		return "I'm sorry, that time is already booked. Would another time work for you?"
	}
	var terr *scheduling.InvalidTransitionError
	if errors.As(err, &terr) {
		return "That appointment has already been finalized and cannot be changed."
	}
	return "I apologize, but I'm having trouble with our system right now. Please try again in a moment, or call our clinic directly."
}
