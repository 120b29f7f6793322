package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/jwalitptl/consult-api/internal/model"
	"github.com/jwalitptl/consult-api/internal/repository"
	"github.com/jwalitptl/consult-api/internal/service/audit"
	"github.com/jwalitptl/consult-api/internal/storage"
	apperrors "github.com/jwalitptl/consult-api/pkg/errors"
	"github.com/jwalitptl/consult-api/pkg/logger"
)

// TranscriptionTask turns a consultation's uploaded recording into a
// raw transcript with segment timestamps, then enqueues extraction.
type TranscriptionTask struct {
	consultations repository.ConsultationRepository
	transcripts   repository.TranscriptRepository
	store         storage.AudioStore
	transcriber   Transcriber
	orchestrator  *Orchestrator
	audit         *audit.Service
	actorID       uuid.UUID
	logger        *logger.Logger
}

func NewTranscriptionTask(
	consultations repository.ConsultationRepository,
	transcripts repository.TranscriptRepository,
	store storage.AudioStore,
	transcriber Transcriber,
	orchestrator *Orchestrator,
	audit *audit.Service,
	actorID uuid.UUID,
	logger *logger.Logger,
) *TranscriptionTask {
	return &TranscriptionTask{
		consultations: consultations,
		transcripts:   transcripts,
		store:         store,
		transcriber:   transcriber,
		orchestrator:  orchestrator,
		audit:         audit,
		actorID:       actorID,
		logger:        logger,
	}
}

func (t *TranscriptionTask) Run(ctx context.Context, consultationID uuid.UUID) error {
	consultation, err := t.consultations.Get(ctx, consultationID)
	if err != nil {
		return err
	}

	if err := t.consultations.UpdateProcessingStatus(ctx, consultationID, model.ProcessingTranscribing); err != nil {
		return err
	}

	if consultation.RecordingURL == nil || *consultation.RecordingURL == "" {
		return apperrors.NewMissingInput(fmt.Sprintf("no recording for consultation %s", consultationID))
	}

	audio, err := t.store.Read(ctx, *consultation.RecordingURL)
	if err != nil {
		return apperrors.NewMissingInput(fmt.Sprintf("audio file not found: %s", *consultation.RecordingURL))
	}

	t.logger.Info("Starting transcription",
		"consultation_id", consultationID.String(),
		"audio_bytes", len(audio))

	result, err := t.transcriber.Transcribe(ctx, audio, filepath.Base(*consultation.RecordingURL))
	if err != nil {
		return err
	}

	segments, err := json.Marshal(result.Segments)
	if err != nil {
		return fmt.Errorf("failed to encode segments: %w", err)
	}

	transcript, err := getOrCreateTranscript(ctx, t.transcripts, consultationID)
	if err != nil {
		return err
	}

	transcript.RawTranscript = &result.Text
	transcript.SpeakerSegments = segments
	transcript.Status = model.TranscriptStatusCompleted
	transcript.ErrorMessage = nil
	if err := t.transcripts.Update(ctx, transcript); err != nil {
		return err
	}

	if err := t.consultations.UpdateProcessingStatus(ctx, consultationID, model.ProcessingExtracting); err != nil {
		return err
	}

	t.logger.Info("Transcription completed",
		"consultation_id", consultationID.String(),
		"transcript_chars", len(result.Text),
		"segments", len(result.Segments))

	t.audit.Log(ctx, t.actorID, model.AuditActionTranscriptionCompleted, model.AuditEntityConsultation, consultationID, &audit.LogOptions{
		Changes: map[string]interface{}{
			"transcript_chars": len(result.Text),
			"segments":         len(result.Segments),
		},
	})

	return t.orchestrator.Enqueue(ctx, StageExtraction, consultationID)
}

func (t *TranscriptionTask) OnFailure(ctx context.Context, consultationID uuid.UUID, taskErr error) {
	markTranscriptFailed(ctx, t.transcripts, consultationID, taskErr, t.logger)
	markConsultationFailed(ctx, t.consultations, consultationID, t.logger)

	t.audit.Log(ctx, t.actorID, model.AuditActionPipelineFailed, model.AuditEntityConsultation, consultationID, &audit.LogOptions{
		Changes: map[string]interface{}{
			"stage": StageTranscription,
			"error": taskErr.Error(),
		},
	})
}
