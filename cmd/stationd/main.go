// Command stationd runs the weather station simulation as a long-lived
// service. It advances the station on a fixed delay, streams snapshots to
// Kafka when enabled and serves the current state over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/weather-station-sim/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/weather-station-sim/internal/adapter/kafka"
	"github.com/couchcryptid/weather-station-sim/internal/adapter/mapbox"
	mqttadapter "github.com/couchcryptid/weather-station-sim/internal/adapter/mqtt"
	"github.com/couchcryptid/weather-station-sim/internal/config"
	"github.com/couchcryptid/weather-station-sim/internal/domain"
	"github.com/couchcryptid/weather-station-sim/internal/export"
	"github.com/couchcryptid/weather-station-sim/internal/observability"
	"github.com/couchcryptid/weather-station-sim/internal/pipeline"
)

const mqttConnectTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Geocoding is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	info, err := domain.ResolveStation(ctx, cfg.StationLocation, geocoder)
	if err != nil {
		logger.Warn("station geocoding failed", "location", cfg.StationLocation, "error", err)
	}
	logger.Info("station resolved",
		"location", info.Location,
		"lat", info.Lat,
		"lon", info.Lon,
		"geo_source", info.GeoSource,
	)

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	station := domain.NewStation(cfg.StationLocation, domain.NewRand(seed))

	var (
		sinks  []pipeline.BatchPublisher
		writer *kafkaadapter.Writer
		broker *mqttadapter.Publisher
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, info, logger)
		sinks = append(sinks, writer)
	}
	if cfg.MQTTEnabled {
		broker = mqttadapter.NewPublisher(cfg, info, logger)
		connectCtx, cancelConnect := context.WithTimeout(ctx, mqttConnectTimeout)
		if err := broker.Connect(connectCtx); err != nil {
			logger.Warn("mqtt broker not reachable yet, retrying in background", "broker", cfg.MQTTBroker, "error", err)
		}
		cancelConnect()
		sinks = append(sinks, broker)
	}

	runner := pipeline.New(station, pipeline.NewFanout(sinks...), logger, metrics,
		pipeline.WithSteps(cfg.Steps),
		pipeline.WithDelay(cfg.Delay),
		pipeline.WithBatchSize(cfg.BatchSize),
	)

	srv := httpadapter.NewServer(cfg.HTTPAddr, runner, station, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start simulation. A bounded run keeps serving its final state until shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := runner.Run(ctx); err != nil {
			logger.Error("simulation error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down", "seed", seed)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("simulation did not stop before shutdown timeout")
	}

	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if broker != nil {
		broker.Close()
	}

	exitCode := 0
	if err := saveExports(cfg, station, logger); err != nil {
		logger.Error("export failed", "error", err)
		exitCode = 1
	}

	logger.Info("shutdown complete", "steps", station.Len())
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func saveExports(cfg *config.Config, station *domain.Station, logger *slog.Logger) error {
	history := station.History()
	if cfg.CSVPath != "" {
		if err := export.SaveCSV(cfg.CSVPath, history); err != nil {
			return err
		}
		logger.Info("wrote csv", "path", cfg.CSVPath, "rows", len(history))
	}
	if cfg.PlotPath != "" {
		if err := export.SavePlot(cfg.PlotPath, station.Location(), history); err != nil {
			return err
		}
		logger.Info("wrote plot", "path", cfg.PlotPath)
	}
	return nil
}
