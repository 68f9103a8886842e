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

	"github.com/medimart/platform/internal/settings"
	"github.com/medimart/platform/pkg/config"
	"github.com/medimart/platform/pkg/database"
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
	log.WithService("settings-service").Info("Starting settings service")

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

	metrics := monitoring.NewMetricsCollector("settings-service")

	repo := settings.NewPostgresRepository(db)
	tester := settings.NewGomailTester(log)
	service := settings.NewService(repo, tester, log)

	warmCtx, cancelWarm := context.WithTimeout(context.Background(), 10*time.Second)
	if err := service.Warm(warmCtx); err != nil {
		log.WithError(err).Warn("Failed to warm settings cache")
	}
	cancelWarm()

	handlers := settings.NewHandlers(service, log)

	router := mux.NewRouter()
	handlers.RegisterRoutes(router)

	health := monitoring.NewHealthManager("settings-service", "1.0.0")
	health.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(db.DB))
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

	log.Info("Shutting down settings service")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	log.Info("Settings service stopped")
}
