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

	"feedrelay/internal/config"
	"feedrelay/internal/database"
	"feedrelay/internal/discord"
	"feedrelay/internal/dispatcher"
	"feedrelay/internal/feed"
	"feedrelay/internal/ratelimiter"
	"feedrelay/internal/scheduler"
	"feedrelay/internal/store"
	"feedrelay/internal/webhook"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsReadHeaderTimeout = 5 * time.Second

func main() {
	dotenvErr := godotenv.Load()

	settings, err := config.LoadSettings()
	if err != nil {
		slog.Error("Failed to load settings",
			"error", err)

		return
	}

	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if dotenvErr != nil {
		log.Debug("No .env file is loaded",
			"error", dotenvErr)
	}

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, settings.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", settings.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", settings.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", settings.DBPath)

	client := discord.NewClient(settings.Token, log)

	botUser, err := client.CurrentUser(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to look up bot user",
			"error", err)

		return
	}
	log.InfoContext(ctx, "Bot user is resolved",
		"userID", botUser.ID,
		"username", botUser.Username)

	fingerprints := store.NewFingerprints(db, log)
	fingerprints.Load(ctx)

	hooks := store.NewHooks(db, log)
	hooks.Load(ctx)

	registry := webhook.NewRegistry(client, hooks, botUser, log)
	loader := config.NewLoader(settings.FeedsPath, log)
	fetcher := feed.NewFetcher(log)
	limiter := ratelimiter.New()

	disp := dispatcher.New(loader, fetcher, registry, client, fingerprints, limiter, log)
	sched := scheduler.New(ctx, disp, settings.PollInterval, log)

	if settings.MetricsAddr != "" {
		go serveMetrics(ctx, settings.MetricsAddr, log)
	}

	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"pollInterval", settings.PollInterval.String())

		return
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"pollInterval", settings.PollInterval.String(),
		"feedsPath", settings.FeedsPath)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	log.InfoContext(ctx, "Shutdown signal is received",
		"signal", sig.String())
	cancel()

	log.InfoContext(ctx, "Exiting...",
		"signal", sig.String(),
		"uptimeSeconds", time.Since(start).Seconds())
}

func serveMetrics(ctx context.Context, addr string, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	log.InfoContext(ctx, "Metrics listener is started",
		"addr", addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.ErrorContext(ctx, "Metrics listener failed",
			"error", err,
			"addr", addr)
	}
}
