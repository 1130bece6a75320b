package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kv-migrator/internal/api"
	"kv-migrator/internal/config"
	"kv-migrator/internal/endpoints"
	"kv-migrator/internal/health"
	"kv-migrator/internal/kv"
	"kv-migrator/internal/logs"
	"kv-migrator/internal/metrics"
	"kv-migrator/internal/migrate"
	"kv-migrator/internal/progress"
	"kv-migrator/internal/redisstore"
	"kv-migrator/internal/store"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

const sweepInterval = 30 * time.Second

// loadConfig reads --config, when given, and applies explicitly set flags
// on top of it.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String(configFlag.Name); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if c.IsSet(sourceFlag.Name) {
		cfg.Source.URL, cfg.Source.Host = splitTarget(c.String(sourceFlag.Name))
	}
	if c.IsSet(sourcePortFlag.Name) {
		cfg.Source.Port = c.Int(sourcePortFlag.Name)
	}
	if c.IsSet(sourceDBFlag.Name) {
		cfg.Source.DB = c.Int(sourceDBFlag.Name)
	}
	if c.IsSet(targetFlag.Name) {
		cfg.Target.URL, cfg.Target.Host = splitTarget(c.String(targetFlag.Name))
	}
	if c.IsSet(targetPortFlag.Name) {
		cfg.Target.Port = c.Int(targetPortFlag.Name)
	}
	if c.IsSet(targetDBFlag.Name) {
		cfg.Target.DB = c.Int(targetDBFlag.Name)
	}
	if c.IsSet(workersFlag.Name) {
		cfg.Workers = c.Int(workersFlag.Name)
	}
	if c.IsSet(enumerationFlag.Name) {
		cfg.Enumeration = c.String(enumerationFlag.Name)
	}
	if c.IsSet(scanCountFlag.Name) {
		cfg.ScanCount = c.Int64(scanCountFlag.Name)
	}
	if c.IsSet(retriesFlag.Name) {
		cfg.Retry.MaxRetries = c.Int(retriesFlag.Name)
	}
	if c.IsSet(rateFlag.Name) {
		cfg.Rate = c.Float64(rateFlag.Name)
	}
	if c.IsSet(maxFailuresFlag.Name) {
		cfg.MaxFailures = c.Int(maxFailuresFlag.Name)
	}
	if c.IsSet(dryRunFlag.Name) {
		cfg.DryRun = c.Bool(dryRunFlag.Name)
	}
	if c.IsSet(adminAddrFlag.Name) {
		cfg.AdminAddr = c.String(adminAddrFlag.Name)
	}
	if c.IsSet(logLevelFlag.Name) {
		cfg.Log.Level = c.String(logLevelFlag.Name)
	}
	if c.IsSet(logJSONFlag.Name) {
		cfg.Log.JSON = c.Bool(logJSONFlag.Name)
	}

	return cfg, cfg.Validate()
}

// splitTarget routes a --source/--target value to the URL or Host field.
func splitTarget(v string) (url, host string) {
	if redisstore.IsURI(v) {
		return v, ""
	}
	return "", v
}

func newLogger(cfg config.Log, w io.Writer) *logs.Logger {
	level, _ := logs.ParseLevel(cfg.Level)
	out := w
	if !cfg.JSON {
		out = logs.ConsoleWriter(w)
	}
	return logs.NewLoggerWithOutput(1000, level, out).With("run_id", uuid.NewString())
}

func migrateAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitFatal)
	}

	logger := newLogger(cfg.Log, c.App.ErrWriter)
	reg := metrics.NewRegistry()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	enumeration, _ := redisstore.ParseEnumeration(cfg.Enumeration)
	source, err := redisstore.Dial(ctx, cfg.Source.RedisEndpoint("kv-migrator-source"),
		redisstore.WithEnumeration(enumeration),
		redisstore.WithScanCount(cfg.ScanCount),
	)
	if err != nil {
		logger.Error("source unavailable", "error", err)
		return cli.Exit(err.Error(), exitFatal)
	}
	defer source.Close()

	pingers := map[string]endpoints.Pinger{"source": source}

	var target kv.Handle
	if cfg.DryRun {
		logger.Info("dry run, writes go to memory")
		mem := store.NewStore(nil)
		sweepCtx, stopSweep := context.WithCancel(ctx)
		defer stopSweep()
		go store.NewSweeper(mem, sweepInterval, nil, logger, reg).Start(sweepCtx)
		target = mem
	} else {
		rt, err := redisstore.Dial(ctx, cfg.Target.RedisEndpoint("kv-migrator-target"))
		if err != nil {
			logger.Error("target unavailable", "error", err)
			return cli.Exit(err.Error(), exitFatal)
		}
		defer rt.Close()
		target = rt
		pingers["target"] = rt
	}

	tracker := endpoints.NewTracker(endpoints.DefaultPolicy(), reg)
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go endpoints.NewHeartbeat(tracker, pingers, endpoints.DefaultPolicy(), nil, logger, reg).Start(hbCtx)

	out := c.App.Writer
	reporter := progress.Multi(
		progress.NewLogReporter(logger),
		progress.NewConsoleReporter(out, out == os.Stdout && !color.NoColor, logger, reg, nil),
	)
	driver := migrate.NewDriver(source, target, cfg.DriverOptions(), reporter, logger, reg)

	if cfg.AdminAddr != "" {
		srv, err := api.Listen(cfg.AdminAddr, api.NewHandler(driver, reg, logger, tracker), logger)
		if err != nil {
			return cli.Exit(err.Error(), exitFatal)
		}
		go srv.Serve()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("migrating",
		"source", cfg.Source.RedisEndpoint("").String(),
		"target", targetName(cfg),
		"workers", cfg.Workers,
		"enumeration", string(enumeration),
	)

	summary, err := driver.Run(ctx)

	report := health.NewAnalyzer(reg, logger).WithEndpoints(tracker).Analyze()
	logger.Info("migration health", "status", string(report.OverallStatus), "signals", report.Signals)

	if err != nil {
		logger.Error("migration aborted", "error", err)
		return cli.Exit(err.Error(), exitFatal)
	}
	if !summary.Clean() {
		return cli.Exit("", exitFailed)
	}
	return nil
}

func targetName(cfg config.Config) string {
	if cfg.DryRun {
		return "memory"
	}
	return cfg.Target.RedisEndpoint("").String()
}
