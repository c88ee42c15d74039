// Command bot runs the timetable refresh scheduler, the reminder scanner,
// and the ops HTTP endpoint as one process.
//
// Usage:
//
//	bot
//	BOT_TOKEN=... DATABASE_URL=postgres://... bot
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/militrik/MKRschedule-bot/internal/clock"
	"github.com/militrik/MKRschedule-bot/internal/config"
	"github.com/militrik/MKRschedule-bot/internal/db"
	"github.com/militrik/MKRschedule-bot/internal/notify"
	"github.com/militrik/MKRschedule-bot/internal/ops"
	"github.com/militrik/MKRschedule-bot/internal/scheduler"
	"github.com/militrik/MKRschedule-bot/internal/source"
	"github.com/militrik/MKRschedule-bot/internal/store"
	"github.com/militrik/MKRschedule-bot/internal/telegram"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.BotToken == "" {
		logger.Error("BOT_TOKEN is required")
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	clk, err := clock.New(cfg.TZ)
	if err != nil {
		logger.Error("Failed to load timezone", "tz", cfg.TZ, "error", err)
		os.Exit(1)
	}

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Migrate(ctx); err != nil {
		logger.Error("Failed to apply schema", "error", err)
		os.Exit(1)
	}

	st := store.New(pool.Pool)

	sender, err := telegram.NewSender(cfg.BotToken, logger)
	if err != nil {
		logger.Error("Failed to create Telegram client", "error", err)
		os.Exit(1)
	}
	if name, err := sender.Me(ctx); err == nil {
		logger.Info("Telegram client ready", "bot", name)
	}

	src := source.NewClient(
		cfg.BaseURL,
		cfg.OfflineFixturesDir,
		cfg.SourceRequestsPerMinute,
		cfg.FetchTimeout,
		source.NewIntermediateExtractor(),
		logger,
	)

	scanner := notify.NewScanner(st, sender, clk, cfg.ScanInterval, cfg.DedupTolerance, cfg.DefaultNotifyOffsetMin, logger)

	refreshers := []scheduler.Refresher{
		scheduler.NewGroupRefresher(st, src, clk),
		scheduler.NewTeacherRefresher(st, src, clk),
	}
	svc := scheduler.New(st, refreshers, scanner, clk, scheduler.Options{
		RefreshInterval:           cfg.RefreshInterval,
		ReconcileInterval:         cfg.ReconcileInterval,
		RefreshJitter:             cfg.RefreshJitter,
		ScanInterval:              cfg.ScanInterval,
		RefreshTimeout:            cfg.FetchTimeout + time.Minute,
		EventRetentionDays:        cfg.EventRetentionDays,
		NotificationRetentionDays: cfg.NotificationRetentionDays,
		CleanupHour:               cfg.CleanupHour,
		CleanupMinute:             cfg.CleanupMinute,
	}, logger)

	if err := svc.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	logger.Info("Scheduler started",
		"refresh_interval", cfg.RefreshInterval,
		"scan_interval", cfg.ScanInterval,
		"tz", cfg.TZ)

	srv := ops.NewServer(cfg.OpsAddr, pool, svc, cfg.CORSAllowOrigins, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("Ops server failed", "error", err)
			cancel()
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ops server shutdown error", "error", err)
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		logger.Error("Scheduler shutdown error", "error", err)
	}
	logger.Info("Stopped")
}
