package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/weather-station-sim/internal/domain"
	"github.com/couchcryptid/weather-station-sim/internal/observability"
	"github.com/couchcryptid/weather-station-sim/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockPublisher struct {
	mu        sync.Mutex
	batches   [][]domain.Snapshot
	failCalls int // number of leading calls that fail
	calls     int
}

func (m *mockPublisher) PublishBatch(_ context.Context, snaps []domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failCalls {
		return errors.New("broker unavailable")
	}
	m.batches = append(m.batches, append([]domain.Snapshot(nil), snaps...))
	return nil
}

func (m *mockPublisher) published() []domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Snapshot
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStation(seed uint64) *domain.Station {
	return domain.NewStation("London", domain.NewRand(seed))
}

// --- tests ---

func TestRunner_Run_FixedSteps(t *testing.T) {
	station := newStation(1)
	var seen []int

	r := pipeline.New(station, nil, discardLogger(), observability.NewMetricsForTesting(),
		pipeline.WithSteps(20),
		pipeline.WithStepHook(func(s domain.Snapshot) { seen = append(seen, s.Step) }),
	)

	require.Error(t, r.CheckReadiness(context.Background()))
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, 20, station.Len())
	assert.Len(t, seen, 20)
	assert.Equal(t, 1, seen[0])
	assert.Equal(t, 20, seen[19])
	assert.True(t, r.Ready())
	assert.NoError(t, r.CheckReadiness(context.Background()))
}

func TestRunner_Run_ContextCancellation(t *testing.T) {
	station := newStation(2)
	r := pipeline.New(station, nil, discardLogger(), observability.NewMetricsForTesting(), pipeline.WithSteps(10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	require.NoError(t, r.Run(ctx))
	assert.Equal(t, 0, station.Len())
	assert.False(t, r.Ready())
}

func TestRunner_Run_UnboundedUntilCancelled(t *testing.T) {
	station := newStation(3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := pipeline.New(station, nil, discardLogger(), observability.NewMetricsForTesting(),
		pipeline.WithSteps(0),
		pipeline.WithStepHook(func(s domain.Snapshot) {
			if s.Step == 5 {
				cancel()
			}
		}),
	)

	require.NoError(t, r.Run(ctx))
	assert.Equal(t, 5, station.Len())
}

func TestRunner_Run_PublishesInBatches(t *testing.T) {
	station := newStation(4)
	pub := &mockPublisher{}
	metrics := observability.NewMetricsForTesting()

	r := pipeline.New(station, pub, discardLogger(), metrics,
		pipeline.WithSteps(7),
		pipeline.WithBatchSize(3),
	)
	require.NoError(t, r.Run(context.Background()))

	require.Len(t, pub.batches, 3)
	assert.Len(t, pub.batches[0], 3)
	assert.Len(t, pub.batches[1], 3)
	assert.Len(t, pub.batches[2], 1, "remainder flushed at the end")

	if diff := cmp.Diff(station.History(), pub.published()); diff != "" {
		t.Fatalf("published snapshots differ from history (-history +published):\n%s", diff)
	}
	assert.Equal(t, 7.0, testutil.ToFloat64(metrics.SnapshotsPublished))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PublishErrors))
}

func TestRunner_Run_PublishFailureKeepsSimulating(t *testing.T) {
	station := newStation(5)
	pub := &mockPublisher{failCalls: 1}
	metrics := observability.NewMetricsForTesting()

	r := pipeline.New(station, pub, discardLogger(), metrics,
		pipeline.WithSteps(6),
		pipeline.WithBatchSize(2),
		pipeline.WithClock(clockwork.NewFakeClock()),
	)
	require.NoError(t, r.Run(context.Background()))

	// The frozen clock keeps the sink in backoff until the final flush,
	// which delivers everything that was buffered.
	assert.Equal(t, 6, station.Len())
	assert.Equal(t, 2, pub.calls)
	if diff := cmp.Diff(station.History(), pub.published()); diff != "" {
		t.Fatalf("published snapshots differ from history (-history +published):\n%s", diff)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PublishErrors))
	assert.Equal(t, 6.0, testutil.ToFloat64(metrics.SnapshotsPublished))
}

func TestRunner_Run_BackoffDoublesUpToCap(t *testing.T) {
	station := newStation(8)
	pub := &mockPublisher{failCalls: 1000}
	fc := clockwork.NewFakeClock()

	// Each step moves the clock 100ms before its flush, so attempts land on
	// steps 1, 3, 7, 15 and 31 (backoff 200ms, 400ms, 800ms, 1.6s, 3.2s),
	// then the 5s cap pushes the next one past step 40.
	r := pipeline.New(station, pub, discardLogger(), observability.NewMetricsForTesting(),
		pipeline.WithSteps(40),
		pipeline.WithBatchSize(1),
		pipeline.WithClock(fc),
		pipeline.WithStepHook(func(domain.Snapshot) { fc.Advance(100 * time.Millisecond) }),
	)
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, 40, station.Len())
	// Five attempts while running plus the final flush.
	assert.Equal(t, 6, pub.calls)
}

func TestRunner_Run_DropsOldestWhenSinkStaysDown(t *testing.T) {
	station := newStation(6)
	pub := &mockPublisher{failCalls: 1000}

	r := pipeline.New(station, pub, discardLogger(), observability.NewMetricsForTesting(),
		pipeline.WithSteps(100),
		pipeline.WithBatchSize(2),
		pipeline.WithClock(clockwork.NewFakeClock()),
	)
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, 100, station.Len())
	assert.Empty(t, pub.published())
}

func TestRunner_Run_WaitsBetweenSteps(t *testing.T) {
	station := newStation(7)
	fc := clockwork.NewFakeClock()

	r := pipeline.New(station, nil, discardLogger(), observability.NewMetricsForTesting(),
		pipeline.WithSteps(3),
		pipeline.WithDelay(time.Second),
		pipeline.WithClock(fc),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	for want := 1; want <= 2; want++ {
		require.NoError(t, fc.BlockUntilContext(ctx, 1))
		assert.Equal(t, want, station.Len())
		fc.Advance(time.Second)
	}

	require.NoError(t, <-errCh)
	assert.Equal(t, 3, station.Len())
}

func TestRunner_Run_CancelDuringDelay(t *testing.T) {
	station := newStation(8)
	fc := clockwork.NewFakeClock()

	r := pipeline.New(station, nil, discardLogger(), observability.NewMetricsForTesting(),
		pipeline.WithSteps(10),
		pipeline.WithDelay(time.Minute),
		pipeline.WithClock(fc),
	)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, fc.BlockUntilContext(waitCtx, 1))
	cancel()

	require.NoError(t, <-errCh)
	assert.Equal(t, 1, station.Len())
}

func TestRunner_Run_Metrics(t *testing.T) {
	station := newStation(9)
	metrics := observability.NewMetricsForTesting()

	r := pipeline.New(station, nil, discardLogger(), metrics, pipeline.WithSteps(2000))
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, 2000.0, testutil.ToFloat64(metrics.StepsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.SimulationRunning))

	last, ok := station.Latest()
	require.True(t, ok)
	assert.Equal(t, last.Temperature, testutil.ToFloat64(metrics.Conditions.WithLabelValues("temperature")))
	assert.Equal(t, last.WindDirection, testutil.ToFloat64(metrics.Conditions.WithLabelValues("wind_direction")))

	counts := map[string]float64{}
	for _, s := range station.History() {
		if s.Event.IsEvent() {
			counts[s.Event.String()]++
		}
	}
	for _, kind := range []string{"storm", "heatwave", "cold_snap"} {
		assert.Equal(t, counts[kind], testutil.ToFloat64(metrics.EventsTotal.WithLabelValues(kind)), kind)
	}
}
