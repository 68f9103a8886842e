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

	"github.com/medimart/platform/internal/gateway"
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
	log.WithService("api-gateway").Info("Starting API gateway")

	metrics := monitoring.NewMetricsCollector("api-gateway")

	service, err := gateway.NewService(&cfg.Gateway, &cfg.RateLimit, log, metrics)
	if err != nil {
		log.WithError(err).Error("Failed to build gateway")
		os.Exit(1)
	}

	stop := make(chan struct{})
	defer close(stop)
	cleanupInterval := time.Duration(cfg.RateLimit.CleanupInterval) * time.Minute
	if cleanupInterval <= 0 {
		cleanupInterval = time.Hour
	}
	service.StartCleanup(cleanupInterval, stop)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      service.Handler(),
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

	log.Info("Shutting down API gateway")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	log.Info("API gateway stopped")
}
