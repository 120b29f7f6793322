package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/consult-api/internal/config"
	"github.com/jwalitptl/consult-api/internal/email"
	"github.com/jwalitptl/consult-api/internal/handler"
	auditHandler "github.com/jwalitptl/consult-api/internal/handler/audit"
	consultationHandler "github.com/jwalitptl/consult-api/internal/handler/consultation"
	documentHandler "github.com/jwalitptl/consult-api/internal/handler/document"
	patientHandler "github.com/jwalitptl/consult-api/internal/handler/patient"
	"github.com/jwalitptl/consult-api/internal/middleware"
	"github.com/jwalitptl/consult-api/internal/pipeline"
	"github.com/jwalitptl/consult-api/internal/repository/postgres"
	"github.com/jwalitptl/consult-api/internal/router"
	auditService "github.com/jwalitptl/consult-api/internal/service/audit"
	consultationService "github.com/jwalitptl/consult-api/internal/service/consultation"
	documentService "github.com/jwalitptl/consult-api/internal/service/document"
	patientService "github.com/jwalitptl/consult-api/internal/service/patient"
	"github.com/jwalitptl/consult-api/internal/storage"
	"github.com/jwalitptl/consult-api/pkg/logger"
	redisbroker "github.com/jwalitptl/consult-api/pkg/messaging/redis"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	lg := logger.FromZerolog(log.Logger)

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Initialize Redis message broker
	broker, err := redisbroker.NewRedisBroker(cfg.Redis.ToBrokerConfig(), &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	// Initialize repositories
	baseRepo := postgres.NewBaseRepository(db)
	consultationRepo := postgres.NewConsultationRepository(baseRepo)
	transcriptRepo := postgres.NewTranscriptRepository(baseRepo)
	documentRepo := postgres.NewDocumentRepository(baseRepo)
	patientRepo := postgres.NewPatientRepository(baseRepo)
	auditRepo := postgres.NewAuditRepository(baseRepo)

	// Initialize audio storage
	store, err := storage.NewLocalStore(cfg.Storage.UploadsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize audio storage")
	}

	// The API only enqueues the first pipeline stage; the worker binary
	// consumes the channel.
	orchestrator := pipeline.NewOrchestrator(broker, cfg.Pipeline.Channel, lg)

	// Initialize services
	auditSvc := auditService.NewService(auditRepo, lg)
	mailer := email.NewSMTPService(cfg.SMTP, lg)
	consultationSvc := consultationService.NewService(
		consultationRepo,
		transcriptRepo,
		documentRepo,
		store,
		orchestrator,
		auditSvc,
		cfg.Storage.MaxSizeBytes,
		lg,
	)
	documentSvc := documentService.NewService(documentRepo, consultationRepo, mailer, auditSvc, lg)
	patientSvc := patientService.NewService(patientRepo, auditSvc)

	// Initialize handlers
	h := handler.NewHandler()
	consultationH := consultationHandler.NewHandler(consultationSvc)
	documentH := documentHandler.NewHandler(documentSvc)
	patientH := patientHandler.NewHandler(patientSvc)
	auditH := auditHandler.NewHandler(auditSvc)

	routerCfg := router.RouterConfig{
		CORSConfig:    middleware.DefaultCORSConfig(),
		MetricsPrefix: "consult_api",
	}
	if cfg.RateLimit.Enabled {
		routerCfg.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerCfg.RateBurst = cfg.RateLimit.Burst
	}

	// Setup router
	r := router.NewRouter(h, consultationH, documentH, patientH, auditH, routerCfg)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
