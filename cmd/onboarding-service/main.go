package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/medimart/platform/internal/onboarding"
	"github.com/medimart/platform/pkg/config"
	"github.com/medimart/platform/pkg/database"
	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/monitoring"
	"github.com/medimart/platform/pkg/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.WithService("onboarding-service").Info("Starting onboarding service")

	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(db, &cfg.Database, log); err != nil {
		log.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer redisClient.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		log.WithError(err).Error("Failed to connect to redis")
		os.Exit(1)
	}
	cancelPing()

	metrics := monitoring.NewMetricsCollector("onboarding-service")

	sessionTTL := time.Duration(cfg.Onboarding.SessionTTLHours) * time.Hour
	store := onboarding.NewRedisSessionStore(redisClient, sessionTTL)
	kycClient := onboarding.NewHTTPKYCClient(&cfg.KYC, log)
	submitter := onboarding.NewHTTPSubmitter(cfg.Onboarding.SubmissionURL, log)
	wizardService := onboarding.NewService(store, kycClient, submitter, &cfg.Onboarding, log, metrics)

	objectStore, err := storage.NewObjectStore(&cfg.Storage, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize object storage")
		os.Exit(1)
	}

	var ackGen onboarding.AcknowledgmentGenerator
	if gen, err := onboarding.NewChromePDFGenerator(log); err != nil {
		log.WithError(err).Warn("Acknowledgment PDF generation unavailable")
	} else {
		ackGen = gen
	}

	notifier := onboarding.NewHTTPNotifier(cfg.Gateway.NotificationURL, log)
	appRepo := onboarding.NewPostgresApplicationRepository(db)
	registry := onboarding.NewRegistryService(appRepo, objectStore, ackGen, notifier, log)

	handlers := onboarding.NewHandlers(wizardService, registry, log)

	router := mux.NewRouter()
	handlers.RegisterRoutes(router)

	health := monitoring.NewHealthManager("onboarding-service", "1.0.0")
	health.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(db.DB))
	health.RegisterChecker("redis", monitoring.NewRedisHealthChecker(redisClient))
	router.HandleFunc("/health", health.HTTPHandler()).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")
	router.Use(metrics.HTTPMiddleware)

	var tracing *monitoring.TracingManager
	if cfg.Monitoring.JaegerEndpoint != "" {
		tracing, err = monitoring.NewTracingManager(&monitoring.TracingConfig{
			ServiceName:    "onboarding-service",
			ServiceVersion: "1.0.0",
			JaegerEndpoint: cfg.Monitoring.JaegerEndpoint,
			SamplingRate:   cfg.Monitoring.SamplingRate,
		})
		if err != nil {
			log.WithError(err).Warn("Tracing disabled")
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.WithField("address", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down onboarding service")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	if tracing != nil {
		if err := tracing.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Tracer shutdown failed")
		}
	}
	log.Info("Onboarding service stopped")
}
