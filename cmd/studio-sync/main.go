package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"studio/backend/internal/calendar"
	"studio/backend/internal/config"
	"studio/backend/internal/service/sync"
	"studio/backend/internal/store/postgres"
)

// studio-sync runs one reconciliation pass against the external calendar and
// exits, or keeps running on an interval when STUDIO_SYNC_FREQUENCY is set.
// Scheduling cadence belongs to the operator (cron/systemd), not the core.
func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "studio-sync"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "studio-sync"),
	)
	slog.SetDefault(log)

	loc, err := time.LoadLocation(cfg.BookingTimezone)
	if err != nil {
		log.Error("invalid booking timezone", slog.Any("err", err), slog.String("timezone", cfg.BookingTimezone))
		os.Exit(1)
	}

	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		log.Error("database connection failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	cal, err := calendar.NewGoogleClient(calendar.GoogleConfig{
		CalendarID:      cfg.CalendarID,
		CredentialsPath: cfg.CalendarCredentialsPath,
		BaseURL:         cfg.CalendarBaseURL,
		Timeout:         cfg.CalendarTimeout,
		Location:        loc,
	})
	if err != nil {
		log.Error("calendar client init failed", slog.Any("err", err))
		os.Exit(1)
	}

	rec := sync.NewReconciler(postgres.NewBookingRepo(db), cal, loc, cfg.SyncMonthsAhead, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := rec.Run(ctx); err != nil {
		if cfg.SyncFrequency <= 0 {
			os.Exit(1)
		}
	}
	if cfg.SyncFrequency <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.SyncFrequency)
	defer ticker.Stop()

	log.Info("sync loop started", slog.Duration("frequency", cfg.SyncFrequency))
	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			// A failed pass is retried on the next tick.
			_, _ = rec.Run(ctx)
		}
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
