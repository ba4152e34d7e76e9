package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bpsr-logs/livemeter/internal/capture"
)

// Event represents a captured packet routed by opcode.
type Event struct {
	Opcode    capture.Opcode
	Payload   []byte
	Timestamp time.Time
}

// HandlerFunc processes an event.
type HandlerFunc func(context.Context, Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	logged bool
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers. Handlers run on the
// caller's goroutine so events are applied in the order they are dispatched.
type Dispatcher struct {
	handlers map[capture.Opcode]HandlerFunc
	logger   Logger

	// OTEL metrics
	processed metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[capture.Opcode]HandlerFunc),
		logger:   logger,
	}

	// Get meter from global OTel provider (returns no-op if not configured)
	m := meter()

	var err error

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.events.failed",
		metric.WithDescription("Total events whose handler returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	d.duration, err = m.Float64Histogram(
		"dispatcher.event.duration",
		metric.WithDescription("Handler duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given opcode with optional configuration.
func (d *Dispatcher) Register(op capture.Opcode, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := d.withMetrics(op, h)

	if cfg.logged {
		handler = d.withLogging(op, handler)
	}

	d.handlers[op] = handler
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) error {
	h, ok := d.handlers[e.Opcode]
	if !ok {
		return fmt.Errorf("unknown opcode: %s", e.Opcode)
	}
	return h(ctx, e)
}

// HasHandler returns true if a handler is registered for the opcode.
func (d *Dispatcher) HasHandler(op capture.Opcode) bool {
	_, ok := d.handlers[op]
	return ok
}

func (d *Dispatcher) withMetrics(op capture.Opcode, h HandlerFunc) HandlerFunc {
	opAttr := metric.WithAttributes(attribute.String("opcode", op.String()))

	return func(ctx context.Context, e Event) error {
		start := time.Now()
		err := h(ctx, e)
		d.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, opAttr)
		d.processed.Add(ctx, 1, opAttr)
		if err != nil {
			d.failed.Add(ctx, 1, opAttr)
		}
		return err
	}
}

func (d *Dispatcher) withLogging(op capture.Opcode, h HandlerFunc) HandlerFunc {
	return func(ctx context.Context, e Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "opcode", op.String(), "bytes", len(e.Payload))

		err := h(ctx, e)

		if err != nil {
			d.logger.Error("event failed", "opcode", op.String(), "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "opcode", op.String(), "duration", time.Since(start))
		}

		return err
	}
}
