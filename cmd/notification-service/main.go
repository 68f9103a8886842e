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
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medimart/platform/internal/notification"
	"github.com/medimart/platform/pkg/config"
	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/monitoring"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.WithService("notification-service").Info("Starting notification service")

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	mongoClient, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	cancelConnect()
	if err != nil {
		log.WithError(err).Error("Failed to connect to mongo")
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(ctx)
	}()

	metrics := monitoring.NewMetricsCollector("notification-service")

	repo := notification.NewMongoRepository(mongoClient.Database(cfg.Mongo.Database))
	fcmClient := notification.NewFCMClient(&cfg.FCM, log)
	service := notification.NewService(repo, fcmClient, notification.DefaultDedupWindow, log, metrics)
	handlers := notification.NewHandlers(service, log)

	router := mux.NewRouter()
	handlers.RegisterRoutes(router)

	health := monitoring.NewHealthManager("notification-service", "1.0.0")
	health.RegisterChecker("mongo", monitoring.NewMongoHealthChecker(mongoClient))
	router.HandleFunc("/health", health.HTTPHandler()).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")
	router.Use(metrics.HTTPMiddleware)

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

	log.Info("Shutting down notification service")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	log.Info("Notification service stopped")
}
