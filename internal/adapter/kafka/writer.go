package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/weather-station-sim/internal/config"
	"github.com/couchcryptid/weather-station-sim/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces snapshot messages to a Kafka topic.
// It implements pipeline.BatchPublisher.
type Writer struct {
	writer  *kafkago.Writer
	station domain.StationInfo
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the configured snapshot topic.
func NewWriter(cfg *config.Config, station domain.StationInfo, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, station: station, logger: logger}
}

// message is the JSON value written for each snapshot.
type message struct {
	Station  domain.StationInfo `json:"station"`
	Snapshot domain.Snapshot    `json:"snapshot"`
}

// PublishBatch serializes and publishes snapshots in a single WriteMessages
// call. All snapshots of a station share a key so they land on one partition
// in step order.
func (w *Writer) PublishBatch(ctx context.Context, snapshots []domain.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(snapshots))
	for i := range snapshots {
		msg, err := serializeToMessage(w.station, snapshots[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write snapshots: %w", err)
	}
	w.logger.Debug("published snapshots", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a snapshot into a Kafka message.
func serializeToMessage(station domain.StationInfo, snap domain.Snapshot) (kafkago.Message, error) {
	data, err := json.Marshal(message{Station: station, Snapshot: snap})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(station.Location),
		Value: data,
		Time:  snap.RecordedAt,
		Headers: []kafkago.Header{
			{Key: "step", Value: []byte(strconv.Itoa(snap.Step))},
			{Key: "event", Value: []byte(snap.Event.String())},
			{Key: "recorded_at", Value: []byte(snap.RecordedAt.Format(time.RFC3339Nano))},
		},
	}, nil
}
