// Package mqtt publishes station snapshots as telemetry messages to an MQTT
// broker, one message per snapshot on stations/<station>/telemetry.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/weather-station-sim/internal/config"
	"github.com/couchcryptid/weather-station-sim/internal/domain"
	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	qos            = 1
	disconnectWait = 250 // milliseconds

	defaultPublishTimeout = 2 * time.Second
)

// ErrNotConnected is returned by PublishBatch while the broker connection is
// down. Paho keeps reconnecting in the background; the caller retries later.
var ErrNotConnected = errors.New("mqtt connection not open")

// Publisher implements pipeline.BatchPublisher on top of a paho client.
type Publisher struct {
	client         paho.Client
	topic          string
	station        domain.StationInfo
	logger         *slog.Logger
	publishTimeout time.Duration
}

// telemetry is the JSON payload of one snapshot.
type telemetry struct {
	StationID string             `json:"station_id"`
	Station   domain.StationInfo `json:"station"`
	Step      int                `json:"step"`
	Timestamp time.Time          `json:"timestamp"`
	domain.Conditions
	Event domain.EventKind `json:"event"`
}

// NewPublisher configures a client for MQTT_BROKER. It does not connect;
// call Connect before the first publish.
func NewPublisher(cfg *config.Config, station domain.StationInfo, logger *slog.Logger) *Publisher {
	p := &Publisher{
		topic:          TelemetryTopic(cfg.MQTTTopicPrefix, station.Location),
		station:        station,
		logger:         logger,
		publishTimeout: defaultPublishTimeout,
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ paho.Client) {
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "topic", p.topic)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = paho.NewClient(opts)
	return p
}

// Connect starts the connection and waits until it is established or ctx
// ends. The client keeps retrying in the background after ctx ends.
func (p *Publisher) Connect(ctx context.Context) error {
	if p.client.IsConnectionOpen() {
		return nil
	}
	if err := wait(ctx, p.client.Connect()); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// PublishBatch publishes each snapshot in order and stops at the first failure.
// It never blocks on a broker that is down: with auto-reconnect paho reports
// IsConnected while it retries and would hold QoS 1 tokens until it is back,
// so the open connection is checked first and each publish is bounded by
// publishTimeout.
func (p *Publisher) PublishBatch(ctx context.Context, snapshots []domain.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	if !p.client.IsConnectionOpen() {
		return fmt.Errorf("publish to %s: %w", p.topic, ErrNotConnected)
	}
	for i := range snapshots {
		if err := p.publish(ctx, snapshots[i]); err != nil {
			return fmt.Errorf("publish step %d to %s: %w", snapshots[i].Step, p.topic, err)
		}
	}
	p.logger.Debug("published telemetry", "topic", p.topic, "count", len(snapshots))
	return nil
}

func (p *Publisher) publish(ctx context.Context, snap domain.Snapshot) error {
	data, err := encodeTelemetry(p.station, snap)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()
	return wait(ctx, p.client.Publish(p.topic, qos, false, data))
}

// Close disconnects, letting in-flight messages drain briefly.
func (p *Publisher) Close() {
	p.client.Disconnect(disconnectWait)
	p.logger.Info("mqtt disconnected")
}

// TelemetryTopic builds <prefix>/<station>/telemetry. The station segment is
// lowercased with spaces turned into dashes and MQTT wildcards removed.
func TelemetryTopic(prefix, location string) string {
	id := strings.Map(func(r rune) rune {
		switch r {
		case '+', '#', '/':
			return -1
		case ' ':
			return '-'
		}
		return r
	}, strings.ToLower(strings.TrimSpace(location)))
	if id == "" {
		id = "unnamed"
	}
	return prefix + "/" + id + "/telemetry"
}

func encodeTelemetry(station domain.StationInfo, snap domain.Snapshot) ([]byte, error) {
	data, err := json.Marshal(telemetry{
		StationID:  station.Location,
		Station:    station,
		Step:       snap.Step,
		Timestamp:  snap.RecordedAt,
		Conditions: snap.Conditions,
		Event:      snap.Event,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal telemetry: %w", err)
	}
	return data, nil
}

func wait(ctx context.Context, t paho.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return errors.Join(errors.New("mqtt token not completed"), ctx.Err())
	}
}
