// Command ptld boots the Periodic Task Layer engine with the
// demonstration task set and the configured introspection surfaces
// (HTTP admin API, MCP stdio server, optional sqlite archive, optional
// Bark alerting).
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ptl/internal/api"
	"ptl/internal/burn"
	"ptl/internal/config"
	"ptl/internal/core"
	"ptl/internal/diag"
	"ptl/internal/logging"
	"ptl/internal/mcp"
	"ptl/internal/notify"
	"ptl/internal/serial"
	"ptl/internal/store"
	"ptl/internal/trace"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.JSON)
	logger.Info("========================================")
	logger.Info("   PTL REAL-TIME SCHEDULER DEMO v1.0    ")
	logger.Info("========================================")

	defaultPolicy, err := core.ParsePolicy(cfg.Scheduler.DefaultPolicy)
	if err != nil {
		logger.Error("invalid default policy", "err", err)
		os.Exit(1)
	}

	clock := core.NewRealClock(cfg.Scheduler.TickDuration)

	logger.Info("calibrating cpu burner")
	loops := burn.Calibrate(clock, 100)
	logger.Info("calibration complete", "loops_per_ms", loops)

	engine := core.NewEngine(clock, trace.NewRing(), logger)
	console := serial.Stdout()

	global := core.GlobalConfig{
		DefaultPolicy:  defaultPolicy,
		TracingEnabled: cfg.Scheduler.TracingEnabled,
		MaxTasks:       cfg.Scheduler.MaxTasks,
	}
	tasks := defaultTasks(logger)
	if err := engine.Init(global, tasks); err != nil {
		logger.Error("ptl init failed", "err", err)
		os.Exit(1)
	}
	logger.Info("system initialized, starting scheduler", "tasks", len(tasks))

	baseCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := engine.Start(baseCtx); err != nil {
			logger.Error("engine start failed", "err", err)
		}
	}()

	notifier := buildNotifier(cfg, logger)
	bridge := notify.NewBridge(engine.Trace(), notifier, logger)
	go bridge.Run(baseCtx)

	heartbeat, err := diag.NewHeartbeat(engine, logger, cfg.Diag.CronExpr)
	if err != nil {
		logger.Error("invalid diagnostics cron expression", "err", err)
		os.Exit(1)
	}
	if err := heartbeat.Start(baseCtx); err != nil {
		logger.Error("diagnostics heartbeat failed to start", "err", err)
		os.Exit(1)
	}

	var archiveStore *store.Store
	if cfg.StateDir != "" {
		archiveStore, err = store.Open(baseCtx, cfg.StateDir)
		if err != nil {
			logger.Error("open archive store", "err", err)
		} else {
			defer archiveStore.DB.Close()
			archiver := store.NewArchiver(archiveStore, engine, logger, time.Minute)
			go archiver.Run(baseCtx)
		}
	}

	switch cfg.Mode {
	case config.RunModeHTTP:
		runHTTP(cfg, engine, logger, cancel)
	case config.RunModeMCP:
		runMCP(engine, logger, baseCtx, cancel)
	case config.RunModeBoth:
		runBoth(cfg, engine, logger, baseCtx, cancel)
	}

	if engine.IsTracingEnabled() {
		if _, err := console.Write([]byte("=== final trace statistics ===\n")); err != nil {
			logger.Warn("console write failed", "err", err)
		}
		engine.Trace().PrintStatistics(console)
	}
}

func buildNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	if !cfg.Notification.Bark.Enabled || cfg.Notification.Bark.URL == "" {
		return &notify.NoOpNotifier{}
	}
	bark, err := notify.NewBarkNotifier(cfg.Notification.Bark.URL)
	if err != nil {
		logger.Warn("bark notifier disabled", "err", err)
		return &notify.NoOpNotifier{}
	}
	return notify.NewMultiNotifier(bark)
}

func runHTTP(cfg *config.Config, engine *core.Engine, logger *slog.Logger, cancel context.CancelFunc) {
	server := api.NewServer(cfg.Server.Addr, cfg.Server.AuthToken, engine, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
	cancel()
}

func runMCP(engine *core.Engine, logger *slog.Logger, ctx context.Context, cancel context.CancelFunc) {
	mcpServer := mcp.NewServer(engine, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Info("received signal, shutting down")
		cancel()
	}()

	if err := mcpServer.Run(); err != nil {
		logger.Error("mcp server error", "err", err)
		os.Exit(1)
	}
}

func runBoth(cfg *config.Config, engine *core.Engine, logger *slog.Logger, ctx context.Context, cancel context.CancelFunc) {
	mcpServer := mcp.NewServer(engine, logger)
	mcpErr := make(chan error, 1)
	go func() {
		if err := mcpServer.Run(); err != nil {
			mcpErr <- err
		}
	}()

	server := api.NewServer(cfg.Server.Addr, cfg.Server.AuthToken, engine, logger)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	case err := <-mcpErr:
		logger.Error("mcp server error", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
	cancel()
	logger.Info("shutdown complete")
}
