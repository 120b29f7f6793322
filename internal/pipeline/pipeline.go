package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/consult-api/internal/ai"
	"github.com/jwalitptl/consult-api/pkg/logger"
	"github.com/jwalitptl/consult-api/pkg/messaging"
	"github.com/jwalitptl/consult-api/pkg/worker"
)

// Task names as they travel over the broker. Each stage enqueues its
// successor on success; a failed stage halts the chain.
const (
	StageTranscription      = "transcription"
	StageExtraction         = "extraction"
	StageDocumentGeneration = "document_generation"
)

// Transcriber is the speech-to-text surface the transcription stage
// needs. *ai.Client satisfies it.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (*ai.Transcription, error)
}

// Generator is the text-generation surface the extraction and document
// generation stages need. *ai.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Orchestrator publishes task messages onto the pipeline channel. The
// API uses it to start the chain after an audio upload; tasks use it to
// enqueue their successor.
type Orchestrator struct {
	publisher messaging.Publisher
	channel   string
	logger    *logger.Logger
}

func NewOrchestrator(publisher messaging.Publisher, channel string, logger *logger.Logger) *Orchestrator {
	return &Orchestrator{
		publisher: publisher,
		channel:   channel,
		logger:    logger,
	}
}

func (o *Orchestrator) Enqueue(ctx context.Context, stage string, consultationID uuid.UUID) error {
	msg := worker.TaskMessage{
		Task:           stage,
		ConsultationID: consultationID,
		EnqueuedAt:     time.Now(),
	}
	if err := o.publisher.Publish(ctx, o.channel, msg); err != nil {
		return fmt.Errorf("failed to enqueue %s task: %w", stage, err)
	}

	o.logger.Info("Enqueued pipeline task",
		"task", stage,
		"consultation_id", consultationID.String())
	return nil
}
