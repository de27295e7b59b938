// Command simulate runs an interactive weather station simulation in the
// terminal, printing a report after every step and a one-step-ahead trend
// forecast at the end.
//
// Usage:
//
//	go run ./cmd/simulate -seed 42 -csv out/run.csv -plot out/run.png
//
// With -non-interactive the location, step count and delay come from
// STATION_LOCATION, SIM_STEPS and SIM_DELAY instead of prompts.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	kafkaadapter "github.com/couchcryptid/weather-station-sim/internal/adapter/kafka"
	mqttadapter "github.com/couchcryptid/weather-station-sim/internal/adapter/mqtt"
	"github.com/couchcryptid/weather-station-sim/internal/config"
	"github.com/couchcryptid/weather-station-sim/internal/domain"
	"github.com/couchcryptid/weather-station-sim/internal/export"
	"github.com/couchcryptid/weather-station-sim/internal/observability"
	"github.com/couchcryptid/weather-station-sim/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	separatorWidth     = 40
	mqttConnectTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	seed := flag.Uint64("seed", cfg.Seed, "random seed (0 picks one from the clock)")
	csvPath := flag.String("csv", cfg.CSVPath, "write the snapshot history as CSV to this path")
	plotPath := flag.String("plot", cfg.PlotPath, "write temperature/humidity/pressure charts as PNG to this path")
	nonInteractive := flag.Bool("non-interactive", false, "take location, steps and delay from the environment")
	flag.Parse()

	if _, ok := os.LookupEnv("LOG_FORMAT"); !ok {
		cfg.LogFormat = "text"
	}
	logger := observability.NewConsoleLogger(cfg)

	input := runInput{Location: cfg.StationLocation, Steps: cfg.Steps, Delay: cfg.Delay}
	if !*nonInteractive {
		input = newPrompter(os.Stdin, os.Stdout).collect()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := runOptions{
		input:    input,
		seed:     *seed,
		csvPath:  *csvPath,
		plotPath: *plotPath,
	}
	if err := run(ctx, cfg, opts, os.Stdout, logger); err != nil {
		logger.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

type runOptions struct {
	input    runInput
	seed     uint64
	csvPath  string
	plotPath string
}

func run(ctx context.Context, cfg *config.Config, opts runOptions, out io.Writer, logger *slog.Logger) error {
	seed := opts.seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	logger.Info("simulation configured",
		"location", opts.input.Location,
		"steps", opts.input.Steps,
		"delay", opts.input.Delay,
		"seed", seed,
	)

	station := domain.NewStation(opts.input.Location, domain.NewRand(seed))

	info := domain.StationInfo{Location: station.Location(), GeoSource: "none"}
	var sinks []pipeline.BatchPublisher
	if cfg.KafkaEnabled {
		w := kafkaadapter.NewWriter(cfg, info, logger)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sinks = append(sinks, w)
	}
	if cfg.MQTTEnabled {
		p := mqttadapter.NewPublisher(cfg, info, logger)
		connectCtx, cancelConnect := context.WithTimeout(ctx, mqttConnectTimeout)
		err := p.Connect(connectCtx)
		cancelConnect()
		if err != nil {
			logger.Warn("mqtt broker not reachable yet, retrying in background", "broker", cfg.MQTTBroker, "error", err)
		}
		defer p.Close()
		sinks = append(sinks, p)
	}
	publisher := pipeline.NewFanout(sinks...)

	fmt.Fprintf(out, "Weather simulation for %s\n", station.Location())
	fmt.Fprintln(out, strings.Repeat("=", separatorWidth))

	runner := pipeline.New(station, publisher, logger, observability.NewMetricsWithRegistry(prometheus.NewRegistry()),
		pipeline.WithSteps(opts.input.Steps),
		pipeline.WithDelay(opts.input.Delay),
		pipeline.WithBatchSize(cfg.BatchSize),
		pipeline.WithStepHook(func(s domain.Snapshot) {
			fmt.Fprintf(out, "Step %d:\n", s.Step)
			fmt.Fprint(out, domain.Report(station.Location(), s))
			fmt.Fprintln(out, strings.Repeat("-", separatorWidth))
		}),
	)
	if err := runner.Run(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Simulation Complete.")

	printForecast(out, station.ForecastAll())
	return writeExports(station, opts, logger)
}

func printForecast(out io.Writer, p domain.Projection) {
	fmt.Fprintf(out, "\nTrend forecast for step %d:\n", p.Step)
	fmt.Fprintf(out, "Temperature: %.1f°C\n", p.Temperature)
	fmt.Fprintf(out, "Humidity: %.0f%%\n", p.Humidity)
	fmt.Fprintf(out, "Pressure: %.2f hPa\n", p.Pressure)
	fmt.Fprintf(out, "Wind: %.1f m/s @ %.0f°\n", p.WindSpeed, p.WindDirection)
}

func writeExports(station *domain.Station, opts runOptions, logger *slog.Logger) error {
	history := station.History()
	if opts.csvPath != "" {
		if err := export.SaveCSV(opts.csvPath, history); err != nil {
			return fmt.Errorf("csv export: %w", err)
		}
		logger.Info("wrote csv", "path", opts.csvPath, "rows", len(history))
	}
	if opts.plotPath != "" {
		if err := export.SavePlot(opts.plotPath, station.Location(), history); err != nil {
			return fmt.Errorf("plot export: %w", err)
		}
		logger.Info("wrote plot", "path", opts.plotPath)
	}
	return nil
}
