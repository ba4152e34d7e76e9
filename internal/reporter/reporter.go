// Package reporter delivers HP reports to the crowdsource backend off the
// decode path, with a bounded queue, bounded concurrency and a rate limit.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/remeh/sizedwaitgroup"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/bpsr-logs/livemeter/internal/model"
)

const instrumentationName = "github.com/bpsr-logs/livemeter/internal/reporter"

// ErrAlreadyRunning is returned by Run when another Run is active.
var ErrAlreadyRunning = errors.New("reporter already running")

// Poster sends one report to the backend.
type Poster interface {
	CreateHPReport(ctx context.Context, report model.HPReport) error
}

// Observer is notified of every delivery attempt.
type Observer interface {
	ObserveReport(report model.HPReport, err error)
}

// Config controls queueing and delivery.
type Config struct {
	Workers       int
	QueueSize     int
	RatePerSecond float64
}

// DefaultConfig is used for zero fields.
var DefaultConfig = Config{Workers: 4, QueueSize: 256, RatePerSecond: 10}

// Reporter queues reports and sends them asynchronously. Delivery is best
// effort: failures are logged and dropped.
type Reporter struct {
	poster   Poster
	observer Observer
	logger   *slog.Logger
	queue    chan model.HPReport
	limiter  *rate.Limiter
	workers  int
	running  atomic.Bool

	queued  metric.Int64Counter
	sent    metric.Int64Counter
	failed  metric.Int64Counter
	dropped metric.Int64Counter
}

// New creates a Reporter. observer may be nil.
func New(poster Poster, observer Observer, logger *slog.Logger, cfg Config) (*Reporter, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig.QueueSize
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Reporter{
		poster:   poster,
		observer: observer,
		logger:   logger,
		queue:    make(chan model.HPReport, cfg.QueueSize),
		limiter:  rate.NewLimiter(limit, cfg.Workers),
		workers:  cfg.Workers,
	}

	m := otel.Meter(instrumentationName)
	var err error
	if r.queued, err = m.Int64Counter("reporter.reports.queued", metric.WithDescription("Reports accepted into the queue")); err != nil {
		return nil, fmt.Errorf("creating queued counter: %w", err)
	}
	if r.sent, err = m.Int64Counter("reporter.reports.sent", metric.WithDescription("Reports accepted by the backend")); err != nil {
		return nil, fmt.Errorf("creating sent counter: %w", err)
	}
	if r.failed, err = m.Int64Counter("reporter.reports.failed", metric.WithDescription("Reports that failed to send")); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	if r.dropped, err = m.Int64Counter("reporter.reports.dropped", metric.WithDescription("Reports dropped due to full queue")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	queueSize, err := m.Int64ObservableGauge("reporter.queue.size", metric.WithDescription("Current number of queued reports"))
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	if _, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(queueSize, int64(len(r.queue)))
		return nil
	}, queueSize); err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	return r, nil
}

// Submit queues a report without blocking. It returns false when the queue
// is full and the report was dropped.
func (r *Reporter) Submit(report model.HPReport) bool {
	select {
	case r.queue <- report:
		r.queued.Add(context.Background(), 1)
		return true
	default:
		r.dropped.Add(context.Background(), 1)
		r.logger.Warn("HP report queue full, dropping report",
			"monsterId", report.MonsterID,
			"hpPct", report.HPPct)
		return false
	}
}

// Pending returns the number of queued reports.
func (r *Reporter) Pending() int {
	return len(r.queue)
}

// Run delivers queued reports until ctx is done, then waits for in-flight
// sends. Reports still queued at that point are discarded.
func (r *Reporter) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer r.running.Store(false)

	swg := sizedwaitgroup.New(r.workers)
	defer swg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case report := <-r.queue:
			if err := r.limiter.Wait(ctx); err != nil {
				return nil
			}
			if err := swg.AddWithContext(ctx); err != nil {
				return nil
			}
			go func() {
				defer swg.Done()
				r.send(context.WithoutCancel(ctx), report)
			}()
		}
	}
}

func (r *Reporter) send(ctx context.Context, report model.HPReport) {
	err := r.poster.CreateHPReport(ctx, report)
	if r.observer != nil {
		r.observer.ObserveReport(report, err)
	}
	if err != nil {
		r.failed.Add(ctx, 1)
		r.logger.Warn("Failed to send HP report",
			"monsterId", report.MonsterID,
			"hpPct", report.HPPct,
			"line", report.Line,
			"error", err)
		return
	}
	r.sent.Add(ctx, 1)
	r.logger.Debug("Sent HP report",
		"monsterId", report.MonsterID,
		"hpPct", report.HPPct,
		"line", report.Line)
}
