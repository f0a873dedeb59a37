package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claimtrack/platform/pkg/analytics/dashboard"
	"github.com/claimtrack/platform/pkg/claims"
	"github.com/claimtrack/platform/pkg/common/config"
	"github.com/claimtrack/platform/pkg/common/database"
	"github.com/claimtrack/platform/pkg/common/kafka"
	"github.com/claimtrack/platform/pkg/common/logger"
	"github.com/claimtrack/platform/pkg/gateway/middleware"
	"github.com/claimtrack/platform/pkg/observability/metrics"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init("claims-service")
	cfg := config.Load()

	var store claims.Store
	switch cfg.DatastoreDriver {
	case "memory":
		logger.Log.Warn("using in-memory datastore, data is not persisted")
		store = claims.NewMemoryStore()
	default:
		db, err := database.GetPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to connect to postgres")
		}
		repo := claims.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate claim tables")
		}
		store = repo
	}

	rules, err := claims.LoadStatusRules(cfg.StatusRulesPath)
	if err != nil {
		logger.Log.WithError(err).WithField("path", cfg.StatusRulesPath).
			Warn("falling back to default status rules")
		rules = claims.DefaultStatusRules()
	}
	validator := claims.NewValidator(rules)

	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.ImportEventTopic)
		defer producer.Close()
	}

	importer := claims.NewImporter(store, producer, cfg.ImportBatchSize)
	claimsHandler := claims.NewHTTPHandler(validator, importer, store, cfg.MaxUploadBytes)

	cache := database.GetRedis(cfg)
	dashboardService := dashboard.NewService(store, cache, cfg.SnapshotTTL, cfg.RecentActivityLimit)
	dashboardHandler := dashboard.NewHTTPHandler(dashboardService)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	claimsHandler.Register(api)
	dashboardHandler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Claims Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Claims Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	if err := database.ClosePostgres(); err != nil {
		logger.Log.WithError(err).Warn("failed to close postgres connection")
	}
	if err := database.CloseRedis(); err != nil {
		logger.Log.WithError(err).Warn("failed to close redis connection")
	}

	logger.Log.Info("Claims Service stopped")
}
