package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/facturo/facturo-backend/internal/report/consumers"
	"github.com/facturo/facturo-backend/internal/report/events"
	"github.com/facturo/facturo-backend/internal/report/handler"
	"github.com/facturo/facturo-backend/internal/report/repository"
	"github.com/facturo/facturo-backend/internal/report/service"
	"github.com/facturo/facturo-backend/pkg/config"
	"github.com/facturo/facturo-backend/pkg/database"
	"github.com/facturo/facturo-backend/pkg/httputil"
	"github.com/facturo/facturo-backend/pkg/i18n"
	"github.com/facturo/facturo-backend/pkg/logger"
	"github.com/facturo/facturo-backend/pkg/messaging"
	"github.com/facturo/facturo-backend/pkg/metrics"
	"github.com/facturo/facturo-backend/pkg/resilience"
)

const serviceName = "report-service"

func main() {
	// Load configuration
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Report Service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.New(ctx, &cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	m := metrics.New()

	// Connect to RabbitMQ. Without a URL the service runs without events.
	var (
		rmq       *messaging.RabbitMQ
		publisher *events.ReportEventPublisher
	)
	if cfg.RabbitMQ.URL != "" {
		rmq, err = messaging.New(ctx, &cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		publisher, err = events.NewReportEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
	} else {
		log.Warn().Msg("rabbitmq.url not set, events disabled")
	}

	// Initialize repositories
	breaker := resilience.NewBreaker("document-store", cfg.Breaker, log, m)
	stores := repository.NewBreakerProvider(repository.NewDocumentRepository(db), breaker, m)
	settings := repository.NewSettingsRepository(db)

	// Initialize service
	reportService := service.NewReportService(service.Dependencies{
		Stores:    stores,
		Settings:  settings,
		Publisher: publisher,
		Metrics:   m,
		Logger:    log,
	}, cfg.Report)

	// Start consumers
	if rmq != nil {
		importConsumer, err := consumers.NewImportConsumer(rmq, reportService, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create import consumer")
		}
		if err := importConsumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start import consumer")
		}
	}

	// Create router
	r := chi.NewRouter()

	// Global middleware (no tenant required)
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log, m))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Tenant-ID", "Accept-Language"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(i18n.Middleware)

	// Health check (no tenant required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
			"breaker":  breaker.State().String(),
		}
		if rmq != nil {
			status["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, status)
	})
	r.Handle("/metrics", m.Handler())

	// Protected API endpoints (tenant required)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httputil.TenantMiddleware)
		handler.Routes(r, reportService, log)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
