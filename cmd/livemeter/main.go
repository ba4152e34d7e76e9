package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bpsr-logs/livemeter/internal/api"
	"github.com/bpsr-logs/livemeter/internal/capture"
	"github.com/bpsr-logs/livemeter/internal/config"
	"github.com/bpsr-logs/livemeter/internal/crowdsource"
	"github.com/bpsr-logs/livemeter/internal/encounter"
	"github.com/bpsr-logs/livemeter/internal/influx"
	"github.com/bpsr-logs/livemeter/internal/live"
	"github.com/bpsr-logs/livemeter/internal/logging"
	"github.com/bpsr-logs/livemeter/internal/monitor"
	intOtel "github.com/bpsr-logs/livemeter/internal/otel"
	"github.com/bpsr-logs/livemeter/internal/reporter"
	"github.com/bpsr-logs/livemeter/internal/storage"
	"github.com/bpsr-logs/livemeter/internal/tables"
)

// BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

const appName = "livemeter"

const shutdownTimeout = 5 * time.Second

func main() {
	configDir := pflag.StringP("config", "c", ".", "directory containing "+config.FileName)
	replayFile := pflag.StringP("replay", "r", "", "packet dump to replay (overrides capture.replayFile)")
	showVersion := pflag.BoolP("version", "v", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (built %s)\n", appName, Version, BuildDate)
		return
	}

	if err := run(*configDir, *replayFile); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func run(configDir, replayFile string) error {
	sessionStart := time.Now()

	if err := config.Load(configDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config, using defaults: %v\n", err)
	}
	if replayFile == "" {
		replayFile = config.GetString("capture.replayFile")
	}

	// logging
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}
	logPath := logging.LogFilePath(logsDir, appName, sessionStart)
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	otelCfg := intOtel.FromConfig(config.GetOTelConfig(), logFile)
	otelCfg.ServiceVersion = Version
	otelCfg.Scope = config.GetString("appScope")
	otelProvider, err := intOtel.New(otelCfg)
	if err != nil {
		return fmt.Errorf("initializing otel: %w", err)
	}

	slogManager := logging.NewSlogManager()
	slogManager.Setup(logFile, config.GetString("logLevel"), otelProvider.LoggerProvider())
	logger := slogManager.Logger()
	logger.Info("Starting live meter",
		"version", Version,
		"buildDate", BuildDate,
		"logFile", logPath,
		"otel", otelProvider.Enabled())

	// reference tables
	tbl, err := tables.Load(config.GetString("tablesDir"))
	if err != nil {
		return fmt.Errorf("loading monster tables: %w", err)
	}

	store := encounter.NewStore(crowdsource.NewDetector(tbl, logger), encounter.WithLogger(logger))
	slogManager.WithContext(live.SessionAttrs(store))
	logger = slogManager.Logger()

	// snapshot storage
	backend, err := storage.NewBackend(config.GetStorageConfig(), logger)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing %s storage: %w", config.GetStorageConfig().Type, err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("Failed to close storage", "error", err)
		}
	}()

	// outbound reports
	apiCfg := config.GetAPIConfig()
	client := api.New(apiCfg.BaseURL, apiCfg.HPReportPath, apiCfg.APIKey, apiCfg.Timeout)

	var observer reporter.Observer
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		sink := influx.NewManager(influxCfg, logger, filepath.Join(logsDir, "influx_backup.log.gz"))
		if err := sink.Connect(context.Background()); err != nil {
			logger.Warn("InfluxDB report telemetry unavailable", "error", err)
		} else {
			observer = sink
		}
		defer func() {
			if err := sink.Close(); err != nil {
				logger.Warn("Failed to close InfluxDB sink", "error", err)
			}
		}()
	}

	rcfg := config.GetReporterConfig()
	rep, err := reporter.New(client, observer, logger, reporter.Config{
		Workers:       rcfg.Workers,
		QueueSize:     rcfg.QueueSize,
		RatePerSecond: rcfg.RatePerSecond,
	})
	if err != nil {
		return fmt.Errorf("creating reporter: %w", err)
	}

	// packet source
	if replayFile == "" {
		return errors.New("no packet source: pass --replay or set capture.replayFile")
	}
	source := capture.NewReplaySource(replayFile, logger)

	var recorder live.Recorder
	if recordFile := config.GetString("capture.recordFile"); recordFile != "" {
		dump, err := capture.NewDumpWriter(recordFile)
		if err != nil {
			return fmt.Errorf("opening packet recording: %w", err)
		}
		defer func() {
			if err := dump.Close(); err != nil {
				logger.Warn("Failed to close packet recording", "error", err)
			}
		}()
		recorder = dump
	}

	svc, err := live.New(live.Dependencies{
		Store:     store,
		Tables:    tbl,
		Reports:   rep,
		Poster:    client,
		Snapshots: backend,
		Source:    source,
		Recorder:  recorder,
		Scope:     config.GetString("appScope"),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the reporter outlives the live loop until its queue drains
	repCtx, stopReporter := context.WithCancel(context.Background())
	defer stopReporter()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rep.Run(repCtx)
	})
	g.Go(func() error {
		return source.Run(gctx)
	})
	g.Go(func() error {
		defer stopReporter()
		err := svc.Run(gctx)
		drainReports(gctx, rep, shutdownTimeout)
		return err
	})

	if mcfg := config.GetMonitorConfig(); mcfg.Enabled {
		statusPath := mcfg.StatusFile
		if !filepath.IsAbs(statusPath) {
			statusPath = filepath.Join(logsDir, statusPath)
		}
		mon := monitor.NewService(monitor.Dependencies{
			Store:      store,
			Meter:      svc,
			Reports:    rep,
			StatusPath: statusPath,
			Interval:   mcfg.Interval,
			Logger:     logger,
		})
		g.Go(func() error {
			return mon.Run(repCtx)
		})
	}

	logger.Info("Live meter running",
		"replay", replayFile,
		"scope", config.GetString("appScope"),
		"endpoint", client.Endpoint())

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	svc.LogSummary()
	logger.Info("Shutting down",
		"pendingReports", rep.Pending(),
		"uptime", time.Since(sessionStart).Round(time.Second).String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := slogManager.Flush(shutdownCtx); err != nil {
		slog.Warn("Failed to flush logs", "error", err)
	}
	if err := otelProvider.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Failed to shut down otel", "error", err)
	}

	return runErr
}

// drainReports waits until the reporter queue is empty, ctx is done or
// timeout passes.
func drainReports(ctx context.Context, rep *reporter.Reporter, timeout time.Duration) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(timeout)

	for rep.Pending() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-ticker.C:
		}
	}
}
