// Copyright 2025 Takhin Data, Inc.

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/streamcap/throttle/pkg/adminapi"
	"github.com/streamcap/throttle/pkg/audit"
	"github.com/streamcap/throttle/pkg/config"
	"github.com/streamcap/throttle/pkg/governor"
	"github.com/streamcap/throttle/pkg/health"
	"github.com/streamcap/throttle/pkg/logger"
	"github.com/streamcap/throttle/pkg/metrics"
	"github.com/streamcap/throttle/pkg/profiler"
	"github.com/streamcap/throttle/pkg/throttle"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/streamcapd.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("streamcapd version %s (commit: %s, built: %s)\n", version, commit, buildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logger.SetDefault(log)

	log.Info("starting streamcapd",
		"version", version,
		"commit", commit,
		"build_time", buildTime,
	)

	auditLogger, err := audit.NewLogger(cfg.Audit)
	if err != nil {
		log.Fatal("failed to create audit logger", "error", err)
	}
	auditLogger.LogSystemEvent(audit.EventTypeSystemStartup, "streamcapd starting up", nil)

	group, err := throttle.NewGroup(throttle.Config{
		BytesPerSecond:             cfg.Group.BytesPerSecond,
		IsThrottled:                cfg.Group.IsThrottled,
		TicksPerSecond:             cfg.Group.TicksPerSecond,
		MaxBufferSize:              cfg.Group.MaxBufferSize,
		ThroughputSampleIntervalMs: cfg.Group.ThroughputSampleIntervalMs,
		ThroughputSampleSize:       cfg.Group.ThroughputSampleSize,
	})
	if err != nil {
		log.Fatal("failed to create throttle group", "error", err)
	}
	log.Info("initialized throttle group",
		"bytes_per_second", cfg.Group.BytesPerSecond,
		"is_throttled", cfg.Group.IsThrottled,
		"ticks_per_second", cfg.Group.TicksPerSecond,
	)

	var gov *governor.Governor
	if cfg.Governor.Enabled {
		gov = governor.New(governor.Config{
			Enabled:           cfg.Governor.Enabled,
			CheckInterval:     time.Duration(cfg.Governor.CheckIntervalMs) * time.Millisecond,
			MinRate:           cfg.Governor.MinRate,
			MaxRate:           cfg.Governor.MaxRate,
			TargetUtilization: cfg.Governor.TargetUtilization,
			AdjustmentStep:    cfg.Governor.AdjustmentStep,
		}, group, log)
		gov.Start()
		log.Info("started governor",
			"min_rate", cfg.Governor.MinRate,
			"max_rate", cfg.Governor.MaxRate,
			"target_utilization", cfg.Governor.TargetUtilization,
		)
	} else {
		log.Info("governor is disabled")
	}

	metricsServer := metrics.New(cfg)
	if err := metricsServer.Start(); err != nil {
		log.Fatal("failed to start metrics server", "error", err)
	}

	collector := metrics.NewCollector(group, gov, 15*time.Second)
	collector.Start()

	profilerServer := profiler.NewServer(cfg)
	if err := profilerServer.Start(); err != nil {
		log.Fatal("failed to start profiler server", "error", err)
	}

	healthChecker := health.NewChecker(version, group)
	healthServer := health.NewServer(":9092", healthChecker)
	if err := healthServer.Start(); err != nil {
		log.Fatal("failed to start health check server", "error", err)
	}
	log.Info("started health check server", "address", ":9092")

	adminCfg := adminapi.Config{
		Addr:           cfg.AdminAPI.Addr,
		GroupID:        cfg.AdminAPI.GroupID,
		OperatorSecret: cfg.AdminAPI.OperatorSecret,
		JWTKey:         cfg.AdminAPI.JWTKey,
		TokenTTL:       time.Duration(cfg.AdminAPI.TokenTTLSec) * time.Second,
		AllowedOrigins: cfg.AdminAPI.AllowedOrigins,
	}
	adminServer, err := adminapi.NewServer(adminCfg, group, gov, auditLogger, log)
	if err != nil {
		log.Fatal("failed to create admin API server", "error", err)
	}
	if err := adminServer.Start(); err != nil {
		log.Fatal("failed to start admin API server", "error", err)
	}

	log.Info("streamcapd started successfully",
		"admin_addr", cfg.AdminAPI.Addr,
		"metrics_port", cfg.Metrics.Port,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down streamcapd")
	auditLogger.LogSystemEvent(audit.EventTypeSystemShutdown, "streamcapd shutting down", nil)

	adminServer.Shutdown()

	if err := healthServer.Stop(); err != nil {
		log.Error("failed to stop health check server", "error", err)
	}

	collector.Stop()
	if gov != nil {
		gov.Stop()
	}

	group.Destroy()

	if err := metricsServer.Stop(); err != nil {
		log.Error("failed to stop metrics server", "error", err)
	}

	if err := profilerServer.Stop(); err != nil {
		log.Error("failed to stop profiler server", "error", err)
	}

	if err := auditLogger.Close(); err != nil {
		log.Error("failed to close audit logger", "error", err)
	}

	log.Info("streamcapd stopped")
}
