package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/weather-station-sim/internal/domain"
	"github.com/couchcryptid/weather-station-sim/internal/observability"
	"github.com/jonboulle/clockwork"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second

	// pendingBatches bounds how many unpublished batches are buffered while
	// the sink is down before the oldest snapshots are dropped.
	pendingBatches = 10

	finalFlushTimeout = 5 * time.Second
)

// BatchPublisher writes snapshots to an outbound sink.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, snapshots []domain.Snapshot) error
}

// Runner drives a Station step by step, pacing the steps and streaming
// snapshots to an optional publisher.
type Runner struct {
	station   *domain.Station
	publisher BatchPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock

	steps     int
	delay     time.Duration
	batchSize int
	onStep    func(domain.Snapshot)

	ready       atomic.Bool
	pending     []domain.Snapshot
	backoff     time.Duration
	nextAttempt time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithSteps sets the number of steps to run. Zero runs until the context is cancelled.
func WithSteps(n int) Option { return func(r *Runner) { r.steps = n } }

// WithDelay sets the pause between consecutive steps.
func WithDelay(d time.Duration) Option { return func(r *Runner) { r.delay = d } }

// WithBatchSize sets how many snapshots are buffered before a publish.
func WithBatchSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithClock replaces the real clock used for pacing and retry timing.
func WithClock(c clockwork.Clock) Option { return func(r *Runner) { r.clock = c } }

// WithStepHook registers a callback invoked synchronously after every step.
func WithStepHook(fn func(domain.Snapshot)) Option { return func(r *Runner) { r.onStep = fn } }

// New creates a Runner. A nil publisher disables streaming.
func New(station *domain.Station, publisher BatchPublisher, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Runner {
	r := &Runner{
		station:   station,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		clock:     clockwork.NewRealClock(),
		batchSize: 50,
		backoff:   initialBackoff,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CheckReadiness returns nil once the simulation has advanced at least one step.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("simulation has not advanced yet")
	}
	return nil
}

// Ready reports whether at least one step has run.
func (r *Runner) Ready() bool { return r.ready.Load() }

// Run advances the station until the configured step count is reached or
// the context is cancelled. Buffered snapshots are flushed before returning.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("simulation started",
		"location", r.station.Location(),
		"steps", r.steps,
		"delay", r.delay,
		"batch_size", r.batchSize,
		"streaming", r.publisher != nil,
	)
	r.metrics.SimulationRunning.Set(1)
	defer r.metrics.SimulationRunning.Set(0)
	defer r.finalFlush(ctx)

	for i := 0; r.steps == 0 || i < r.steps; i++ {
		if ctx.Err() != nil {
			r.logger.Info("simulation stopping", "reason", ctx.Err(), "completed_steps", i)
			return nil
		}
		if i > 0 && !sleepWithContext(ctx, r.clock, r.delay) {
			r.logger.Info("simulation stopping", "reason", ctx.Err(), "completed_steps", i)
			return nil
		}
		r.step(ctx)
	}

	r.logger.Info("simulation complete", "steps", r.station.Len())
	return nil
}

func (r *Runner) step(ctx context.Context) {
	snap := r.station.Advance()

	r.metrics.StepsTotal.Inc()
	for _, v := range domain.Variables {
		r.metrics.Conditions.WithLabelValues(v.String()).Set(snap.Value(v))
	}
	if snap.Event.IsEvent() {
		r.metrics.EventsTotal.WithLabelValues(snap.Event.String()).Inc()
		r.logger.Info("extreme event", "event", snap.Event.String(), "step", snap.Step)
	}
	r.ready.Store(true)

	if r.onStep != nil {
		r.onStep(snap)
	}

	if r.publisher == nil {
		return
	}
	r.pending = append(r.pending, snap)
	if len(r.pending) >= r.batchSize {
		r.flush(ctx)
	}
}

// flush publishes pending snapshots unless a previous failure put the sink
// in backoff. Failures keep the batch buffered so the simulation never stalls
// on the sink.
func (r *Runner) flush(ctx context.Context) {
	if len(r.pending) == 0 || r.clock.Now().Before(r.nextAttempt) {
		r.trimPending()
		return
	}

	start := time.Now()
	batch := r.pending
	if err := r.publisher.PublishBatch(ctx, batch); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.metrics.PublishErrors.Inc()
		r.logger.Error("publish batch failed", "error", err, "batch_size", len(batch), "retry_in", r.backoff)
		r.nextAttempt = r.clock.Now().Add(r.backoff)
		r.backoff = retry.NextBackoff(r.backoff, maxBackoff)
		r.trimPending()
		return
	}

	r.metrics.SnapshotsPublished.Add(float64(len(batch)))
	r.metrics.PublishBatchSize.Observe(float64(len(batch)))
	r.metrics.PublishDuration.Observe(time.Since(start).Seconds())
	r.pending = nil
	r.backoff = initialBackoff
	r.nextAttempt = time.Time{}
}

func (r *Runner) trimPending() {
	limit := r.batchSize * pendingBatches
	if len(r.pending) <= limit {
		return
	}
	dropped := len(r.pending) - limit
	r.pending = append([]domain.Snapshot(nil), r.pending[dropped:]...)
	r.logger.Warn("dropping unpublished snapshots", "dropped", dropped)
}

// finalFlush makes one last publish attempt that outlives cancellation of
// the run context.
func (r *Runner) finalFlush(ctx context.Context) {
	if r.publisher == nil || len(r.pending) == 0 {
		return
	}
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
	defer cancel()

	r.nextAttempt = time.Time{}
	r.flush(flushCtx)
	if len(r.pending) > 0 {
		r.logger.Warn("unpublished snapshots discarded at shutdown", "count", len(r.pending))
	}
}

// sleepWithContext is retry.SleepWithContext on an injectable clock.
func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
