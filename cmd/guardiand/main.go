package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"campus-guardian-backend/config"
	"campus-guardian-backend/internal/api"
	"campus-guardian-backend/internal/campus"
	"campus-guardian-backend/internal/db"
	"campus-guardian-backend/internal/directory"
	"campus-guardian-backend/internal/guardian"
	"campus-guardian-backend/internal/notify"
	"campus-guardian-backend/internal/sos"
	"campus-guardian-backend/internal/store"
	"campus-guardian-backend/internal/sweep"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.String("path", configPath), zap.Error(err))
	}
	logger.Info("configuration loaded", zap.String("path", configPath))

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Warn("VAPID keys not configured, web push delivery disabled")
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	logger.Info("database initialized", zap.String("driver", cfg.Database.Driver))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := campus.NewRegistry(gormDB)
	if err := registry.Seed(ctx, cfg.Campuses); err != nil {
		logger.Fatal("failed to seed campus registry", zap.Error(err))
	}
	if err := directory.Seed(ctx, gormDB, cfg.Directory); err != nil {
		logger.Fatal("failed to seed directory", zap.Error(err))
	}

	appStore := store.NewGormStore(gormDB)
	dir := directory.NewGorm(gormDB)

	pool := notify.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, appStore, webpushOptions, logger)
	pool.Start(ctx)

	fanout := notify.NewFanout(appStore, pool, logger)
	sessions := guardian.NewManager(appStore, dir, registry, fanout, logger)
	incidents := sos.NewManager(appStore, dir, fanout, logger)

	var sweeper *sweep.Sweeper
	if cfg.Sweep.Enabled {
		sweeper = sweep.New(sessions, cfg.Sweep, logger)
		if err := sweeper.Start(ctx, cfg.Sweep.Interval); err != nil {
			logger.Fatal("failed to start overdue sweep", zap.Error(err))
		}
		logger.Info("overdue sweep started", zap.Duration("interval", cfg.Sweep.Interval))
	}

	handler := api.NewHandler(sessions, incidents, fanout, registry, appStore, webpushOptions)
	router := api.NewRouter(handler, cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown signal received, stopping services")

	if sweeper != nil {
		sweeper.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("HTTP server shutdown failed", zap.Error(err))
	}

	logger.Info("server gracefully stopped")
}
