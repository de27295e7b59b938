package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/weather-station-sim/internal/config"
	"github.com/couchcryptid/weather-station-sim/internal/domain"
	"github.com/couchcryptid/weather-station-sim/internal/observability"
	"github.com/couchcryptid/weather-station-sim/internal/pipeline"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient records publishes; unimplemented paho.Client methods panic.
type fakeClient struct {
	paho.Client
	connected  bool
	publishErr error
	hang       bool
	messages   []published
}

func (c *fakeClient) IsConnected() bool      { return c.connected }
func (c *fakeClient) IsConnectionOpen() bool { return c.connected }

func (c *fakeClient) Connect() paho.Token {
	c.connected = true
	return completedToken(nil)
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload any) paho.Token {
	if c.hang {
		return &fakeToken{done: make(chan struct{})}
	}
	c.messages = append(c.messages, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return completedToken(c.publishErr)
}

func (c *fakeClient) Disconnect(uint) { c.connected = false }

func testPublisher(client *fakeClient) *Publisher {
	return &Publisher{
		client:         client,
		topic:          TelemetryTopic("stations", "Bergen"),
		station:        domain.StationInfo{Location: "Bergen", GeoSource: "none"},
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		publishTimeout: defaultPublishTimeout,
	}
}

func snapshots() []domain.Snapshot {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []domain.Snapshot{
		{Step: 1, RecordedAt: at, Conditions: domain.DefaultConditions},
		{Step: 2, RecordedAt: at.Add(time.Second), Conditions: domain.DefaultConditions, Event: domain.EventStorm},
	}
}

func TestTelemetryTopic(t *testing.T) {
	assert.Equal(t, "stations/london/telemetry", TelemetryTopic("stations", "London"))
	assert.Equal(t, "wx/new-york/telemetry", TelemetryTopic("wx", "  New York "))
	assert.Equal(t, "stations/ab/telemetry", TelemetryTopic("stations", "a/+#b"))
	assert.Equal(t, "stations/unnamed/telemetry", TelemetryTopic("stations", ""))
}

func TestPublishBatch(t *testing.T) {
	client := &fakeClient{connected: true}
	p := testPublisher(client)

	require.NoError(t, p.PublishBatch(context.Background(), snapshots()))
	require.Len(t, client.messages, 2)

	for _, m := range client.messages {
		assert.Equal(t, "stations/bergen/telemetry", m.topic)
		assert.Equal(t, byte(qos), m.qos)
	}

	var got map[string]any
	require.NoError(t, json.Unmarshal(client.messages[1].payload, &got))
	assert.Equal(t, "Bergen", got["station_id"])
	assert.InDelta(t, 2, got["step"], 0)
	assert.Equal(t, "storm", got["event"])
	assert.InDelta(t, 1013.25, got["pressure_hpa"], 1e-9)
	assert.Equal(t, "2026-03-01T12:00:01Z", got["timestamp"])
}

func TestPublishBatch_StopsAtFirstError(t *testing.T) {
	client := &fakeClient{connected: true, publishErr: errors.New("not connected")}
	p := testPublisher(client)

	err := p.PublishBatch(context.Background(), snapshots())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish step 1")
	assert.Len(t, client.messages, 1)
}

func TestPublishBatch_ContextCancelled(t *testing.T) {
	p := testPublisher(&fakeClient{connected: true, hang: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.PublishBatch(ctx, snapshots())

	require.ErrorIs(t, err, context.Canceled)
}

func TestPublishBatch_NotConnectedFailsFast(t *testing.T) {
	client := &fakeClient{}
	p := testPublisher(client)

	err := p.PublishBatch(context.Background(), snapshots())

	require.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, client.messages)
}

func TestPublishBatch_EmptyBatchSkipsConnectionCheck(t *testing.T) {
	assert.NoError(t, testPublisher(&fakeClient{}).PublishBatch(context.Background(), nil))
}

func TestPublishBatch_TimesOutOnStuckToken(t *testing.T) {
	p := testPublisher(&fakeClient{connected: true, hang: true})
	p.publishTimeout = 20 * time.Millisecond

	start := time.Now()
	err := p.PublishBatch(context.Background(), snapshots())

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

// TestRunnerKeepsSteppingWhileBrokerUnreachable points a real paho client at
// a closed port. Paho keeps retrying in the background and reports
// IsConnected, yet every step must still run promptly.
func TestRunnerKeepsSteppingWhileBrokerUnreachable(t *testing.T) {
	cfg := &config.Config{MQTTBroker: "tcp://127.0.0.1:1", MQTTClientID: "unreachable-test", MQTTTopicPrefix: "stations"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewPublisher(cfg, domain.StationInfo{Location: "Oslo", GeoSource: "none"}, logger)
	t.Cleanup(p.Close)

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancelConnect()
	require.Error(t, p.Connect(connectCtx))

	station := domain.NewStation("Oslo", domain.NewRand(5))
	metrics := observability.NewMetricsForTesting()
	r := pipeline.New(station, p, logger, metrics,
		pipeline.WithSteps(100),
		pipeline.WithBatchSize(1),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, r.Run(ctx))

	assert.Equal(t, 100, station.Len())
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Positive(t, testutil.ToFloat64(metrics.PublishErrors))
}

func TestConnectAndClose(t *testing.T) {
	client := &fakeClient{}
	p := testPublisher(client)

	require.NoError(t, p.Connect(context.Background()))
	assert.True(t, client.connected)

	p.Close()
	assert.False(t, client.connected)
}

func TestNewPublisher_UsesConfiguredTopic(t *testing.T) {
	cfg := &config.Config{MQTTBroker: "tcp://localhost:1883", MQTTClientID: "test", MQTTTopicPrefix: "wx"}
	p := NewPublisher(cfg, domain.StationInfo{Location: "Oslo"}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Equal(t, "wx/oslo/telemetry", p.topic)
	assert.False(t, p.client.IsConnectionOpen())
}
