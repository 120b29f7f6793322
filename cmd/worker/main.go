package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/consult-api/internal/ai"
	"github.com/jwalitptl/consult-api/internal/config"
	"github.com/jwalitptl/consult-api/internal/pipeline"
	"github.com/jwalitptl/consult-api/internal/repository/postgres"
	auditService "github.com/jwalitptl/consult-api/internal/service/audit"
	"github.com/jwalitptl/consult-api/internal/storage"
	auditworker "github.com/jwalitptl/consult-api/internal/worker"
	"github.com/jwalitptl/consult-api/pkg/logger"
	redisbroker "github.com/jwalitptl/consult-api/pkg/messaging/redis"
	"github.com/jwalitptl/consult-api/pkg/metrics"
	"github.com/jwalitptl/consult-api/pkg/worker"
)

func setupHealthCheck(lg *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			lg.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	lg := logger.FromZerolog(log.Logger)

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		lg.ZL.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Initialize Redis broker
	broker, err := redisbroker.NewRedisBroker(cfg.Redis.ToBrokerConfig(), &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Redis broker")
	}
	defer broker.Close()

	// Initialize repositories
	baseRepo := postgres.NewBaseRepository(db)
	consultationRepo := postgres.NewConsultationRepository(baseRepo)
	transcriptRepo := postgres.NewTranscriptRepository(baseRepo)
	documentRepo := postgres.NewDocumentRepository(baseRepo)
	patientRepo := postgres.NewPatientRepository(baseRepo)
	auditRepo := postgres.NewAuditRepository(baseRepo)

	store, err := storage.NewLocalStore(cfg.Storage.UploadsDir)
	if err != nil {
		lg.ZL.Fatal().Err(err).Msg("Failed to initialize audio storage")
	}

	m := metrics.New("consult_worker")
	auditSvc := auditService.NewService(auditRepo, lg)
	aiClient := ai.NewClient(cfg.AI, lg, m)
	orchestrator := pipeline.NewOrchestrator(broker, cfg.Pipeline.Channel, lg)

	// Pipeline state changes are audited against a fixed system actor.
	actorID := uuid.Nil
	if cfg.Pipeline.SystemActorID != "" {
		actorID, err = uuid.Parse(cfg.Pipeline.SystemActorID)
		if err != nil {
			lg.ZL.Fatal().Err(err).Msg("Invalid pipeline.system_actor_id")
		}
	}

	runner := worker.NewRunner(broker, cfg.Pipeline.ToRunnerConfig(), lg, m)
	runner.Register(pipeline.StageTranscription, pipeline.NewTranscriptionTask(
		consultationRepo, transcriptRepo, store, aiClient, orchestrator, auditSvc, actorID, lg,
	))
	runner.Register(pipeline.StageExtraction, pipeline.NewExtractionTask(
		consultationRepo, transcriptRepo, patientRepo, aiClient, orchestrator, auditSvc, actorID, lg,
	))
	runner.Register(pipeline.StageDocumentGeneration, pipeline.NewGenerationTask(
		consultationRepo, transcriptRepo, patientRepo, documentRepo, aiClient, auditSvc, m, actorID, lg,
	))

	// Setup health check endpoints
	setupHealthCheck(lg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Audit.RetentionDays > 0 && cfg.Audit.CleanupInterval > 0 {
		cleanup := auditworker.NewAuditCleanupWorker(auditSvc, cfg.Audit.RetentionDays, cfg.Audit.CleanupInterval, lg)
		go cleanup.Start(ctx)
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		lg.ZL.Info().Msg("Shutting down...")
		cancel()
	}()

	if err := runner.Start(ctx); err != nil {
		lg.ZL.Fatal().Err(err).Msg("Task runner exited")
	}
}
