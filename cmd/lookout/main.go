package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jiin/lookout/internal/alerter"
	"github.com/jiin/lookout/internal/api"
	"github.com/jiin/lookout/internal/config"
	"github.com/jiin/lookout/internal/healer"
	"github.com/jiin/lookout/internal/logger"
	"github.com/jiin/lookout/internal/monitor"
	"github.com/jiin/lookout/internal/retention"
	"github.com/jiin/lookout/internal/scheduler"
	"github.com/jiin/lookout/internal/storage"
	"github.com/jiin/lookout/internal/tracker"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to configuration file (YAML)")
	)
	flag.Parse()

	cfgMgr, err := config.NewManager(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	defer cfgMgr.Stop()

	cfg := cfgMgr.Get()

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("Starting Lookout", "targets", len(cfg.Targets), "config", *configPath)

	store := tracker.NewStore(cfg.Storage.StatusPath)
	store.SetMaxEventAge(cfg.Retention.GetMaxAge())

	alertLog, err := storage.NewSQLiteAlertLog(cfg.Storage.AlertDBPath)
	if err != nil {
		logger.Error("Failed to open alert log", "error", err)
		os.Exit(1)
	}
	defer alertLog.Close()

	alerts := alerter.NewManager(cfg.Notifications, alertLog)
	alerts.SetMaintenanceFunc(cfgMgr.InMaintenance)

	heal := healer.NewManager(cfg.Healing)
	heal.SetMaintenanceFunc(cfgMgr.InMaintenance)

	sched := scheduler.NewManager(cfg.Monitoring)
	heal.SetSchedulerHooks(sched.Boost, sched.CheckNow)

	mon := monitor.New(sched, store, alerts, heal)
	mon.ApplyConfig(cfg)

	cfgMgr.OnReload(func(next *config.Config) {
		logger.Info("Configuration reloaded", "targets", len(next.Targets))
		mon.ApplyConfig(next)
	})

	ret := retention.NewManager(store, alertLog, &cfg.Retention)
	ret.Start(cfg.Retention.GetCleanupInterval())
	defer ret.Stop()

	mon.Start()
	defer mon.Stop()

	hub := api.NewHub()
	defer hub.Close()
	mon.OnDisplay(hub.BroadcastStatus)
	mon.OnSummary(hub.BroadcastSummary)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.Server.IsEnabled() {
		logger.Info("API server disabled, running headless")
		<-ctx.Done()
		logger.Info("Shutting down")
		return
	}

	router := api.NewRouter(cfgMgr, mon, store, alerts, heal, alertLog, hub)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown", "error", err)
		}
	}()

	logger.Info("API server listening", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutting down")
}
