package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sumibot/internal/bot"
	"sumibot/internal/config"
	"sumibot/internal/database"
	"sumibot/internal/health"
	"sumibot/internal/scheduler"
	"sumibot/internal/summarizer"
)

const healthShutdownTimeout = 5 * time.Second

func main() {
	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load("")
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	summaryClient, err := summarizer.NewHTTPSummarizer(cfg.SummaryEndpoint, cfg.SummaryTimeout, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize summarizer",
			"error", err,
			"endpoint", cfg.SummaryEndpoint)

		return
	}
	log.InfoContext(ctx, "Summarizer is initialized",
		"endpoint", summaryClient.Endpoint(),
		"timeout", cfg.SummaryTimeout.String())

	botInst, err := bot.New(cfg.Token, summaryClient, db, cfg.AllowedUsers, cfg.MaxFileSize, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize bot",
			"error", err,
			"allowedUsersCount", len(cfg.AllowedUsers))

		return
	}
	log.InfoContext(ctx, "Bot is initialized",
		"allowedUsersCount", len(cfg.AllowedUsers),
		"maxFileSize", cfg.MaxFileSize)

	sched := scheduler.New(ctx, botInst.Sessions(), db, cfg.SessionIdleTTL, cfg.HistoryRetention, log)

	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"sweepSpec", scheduler.SweepSessionsSpec,
			"pruneSpec", scheduler.PruneHistorySpec)

		return
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"sweepSpec", scheduler.SweepSessionsSpec,
		"pruneSpec", scheduler.PruneHistorySpec,
		"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String())

	var healthServer *health.Server
	if cfg.HealthAddr != "" {
		healthServer = health.New(cfg.HealthAddr, botInst.Sessions(), start, log)

		go func() {
			if err := healthServer.Start(ctx); err != nil {
				log.ErrorContext(ctx, "Health server is stopped",
					"error", err,
					"addr", cfg.HealthAddr)
			}
		}()
	}

	go func() {
		botInst.Start(ctx)
	}()
	log.InfoContext(ctx, "Bot is started",
		"updateTimeoutSeconds", bot.BotUpdateTimeout)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	log.InfoContext(ctx, "Shutdown signal is received",
		"signal", sig.String())
	cancel()

	log.InfoContext(ctx, "Exiting...",
		"signal", sig.String(),
		"uptimeSeconds", time.Since(start).Seconds())

	if healthServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), healthShutdownTimeout)
		if err = healthServer.Shutdown(shutdownCtx); err != nil {
			log.ErrorContext(ctx, "Failed to shutdown health server",
				"error", err)
		}
		shutdownCancel()
	}

	botInst.Stop()
	log.InfoContext(ctx, "Bot is stopped",
		"uptimeSeconds", time.Since(start).Seconds())
}
