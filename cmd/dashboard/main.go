package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/fleet-loads/internal/accept"
	"github.com/example/fleet-loads/internal/backend"
	"github.com/example/fleet-loads/internal/config"
	"github.com/example/fleet-loads/internal/dispatch"
	"github.com/example/fleet-loads/internal/events"
	"github.com/example/fleet-loads/internal/guard"
	httpapi "github.com/example/fleet-loads/internal/http"
	"github.com/example/fleet-loads/internal/logging"
	"github.com/example/fleet-loads/internal/models"
	"github.com/example/fleet-loads/internal/notify"
	"github.com/example/fleet-loads/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	store := storage.NewLoadStore(client, logger)
	notifier := notify.New(notify.WithLogger(logger))

	svc := &accept.Service{
		Backend:   client,
		Store:     store,
		Notifier:  notifier,
		VehicleID: cfg.VehicleID,
		Logger:    logger,
	}
	if cfg.RedisAddr != "" {
		svc.Guard = guard.NewRedisGuard(cfg.RedisAddr, cfg.RedisPassword, cfg.AcceptLockTTL)
		logger.Info("accept guard enabled", "redis_addr", cfg.RedisAddr)
	}
	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer pub.Close()
		svc.Events = pub
		logger.Info("load events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	var srv *httpapi.Server
	hub := dispatch.NewHub(func() any { return srv.Snapshot() }, logger)
	srv = httpapi.NewServer(store, notifier, svc, hub, logger)
	store.Subscribe(func([]models.Load) { hub.Notify() })
	notifier.Subscribe(func(*models.Notification) { hub.Notify() })
	go hub.Run(ctx)

	if err := store.Refresh(ctx); err != nil {
		logger.Warn("backend unreachable at startup, serving fallback loads", "backend_url", cfg.BackendURL)
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", "error", err)
		}
	}()

	logger.Info("fleet dashboard listening", "addr", cfg.HTTPAddr, "backend_url", cfg.BackendURL, "vehicle_id", cfg.VehicleID)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server stopped", "error", err)
		os.Exit(1)
	}
}
