package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nelrik/waypost/internal/api"
	"github.com/nelrik/waypost/internal/cache"
	"github.com/nelrik/waypost/internal/config"
	"github.com/nelrik/waypost/internal/gateway"
	"github.com/nelrik/waypost/internal/media"
	"github.com/nelrik/waypost/internal/reminder"
	pgstore "github.com/nelrik/waypost/internal/store"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting waypost...")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/waypost.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	ctx := context.Background()

	// Persistence
	store, err := pgstore.New(ctx, cfg.Database.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("postgres unavailable", zap.Error(err))
	}
	if err := store.Migrate(ctx, "migrations"); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	// Optional fingerprint hot cache
	var fpCache *cache.FingerprintCache
	if cfg.Database.Redis.URL != "" {
		fc, cErr := cache.New(cfg.Database.Redis.URL, logger)
		if cErr != nil {
			logger.Warn("redis unavailable, running without fingerprint cache", zap.Error(cErr))
		} else {
			fpCache = fc
		}
	}

	// Media dedup store + ingestor
	mediaRoot := cfg.Media.Root
	if mediaRoot == "" {
		mediaRoot = "data/media"
	}
	cas, err := media.NewCAS(mediaRoot)
	if err != nil {
		logger.Fatal("media store init failed", zap.Error(err))
	}
	var seenCache media.SeenCache
	if fpCache != nil {
		seenCache = fpCache
	}
	mediaStore := media.NewService(store, cas, seenCache, logger)
	ingestor := media.NewIngestor(mediaStore, nil, logger)

	// Notification gateway
	gw := gateway.NewGateway(logger)
	gw.Register(gateway.NewLogAdapter(logger))
	if cfg.Notify.Slack.Enabled && cfg.Notify.Slack.BotToken != "" {
		gw.Register(gateway.NewSlackAdapter(cfg.Notify.Slack.BotToken, logger))
	}
	if cfg.Notify.Discord.Enabled && cfg.Notify.Discord.BotToken != "" {
		gw.Register(gateway.NewDiscordAdapter(cfg.Notify.Discord.BotToken, logger))
	}
	if err := gw.ConnectAll(ctx); err != nil {
		logger.Warn("some notification adapters failed to connect", zap.Error(err))
	}

	// Reminder scheduler
	interval := time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second
	scheduler := reminder.NewScheduler(store, gw, interval, logger)
	scheduler.Start()

	// HTTP server
	handler := api.NewHandler(mediaStore, ingestor, scheduler, store, logger)
	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("waypost listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down waypost...")
	scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	if fpCache != nil {
		fpCache.Close()
	}
	gw.Close()
	store.Close()
}
