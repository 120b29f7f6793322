package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/consult-api/internal/model"
	"github.com/jwalitptl/consult-api/internal/repository"
	apperrors "github.com/jwalitptl/consult-api/pkg/errors"
	"github.com/jwalitptl/consult-api/pkg/logger"
)

// getOrCreateTranscript returns the consultation's transcript, creating
// an empty pending row on first pipeline entry.
func getOrCreateTranscript(ctx context.Context, repo repository.TranscriptRepository, consultationID uuid.UUID) (*model.Transcript, error) {
	transcript, err := repo.GetByConsultation(ctx, consultationID)
	if err == nil {
		return transcript, nil
	}
	if apperrors.Code(err) != apperrors.ErrNotFound {
		return nil, err
	}

	now := time.Now()
	transcript = &model.Transcript{
		Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		ConsultationID: consultationID,
		Status:         model.TranscriptStatusPending,
	}
	if err := repo.Create(ctx, transcript); err != nil {
		return nil, err
	}
	return transcript, nil
}

// markConsultationFailed moves the consultation to the terminal failed
// state. The transition is rejected if the pipeline never reached an
// active stage; that is logged and ignored.
func markConsultationFailed(ctx context.Context, repo repository.ConsultationRepository, consultationID uuid.UUID, log *logger.Logger) {
	if err := repo.UpdateProcessingStatus(ctx, consultationID, model.ProcessingFailed); err != nil {
		log.Error(err, "Failed to mark consultation as failed",
			"consultation_id", consultationID.String())
	}
}

// markTranscriptFailed records the terminal error message on the
// transcript so the failure is visible alongside the consultation.
func markTranscriptFailed(ctx context.Context, repo repository.TranscriptRepository, consultationID uuid.UUID, taskErr error, log *logger.Logger) {
	transcript, err := getOrCreateTranscript(ctx, repo, consultationID)
	if err != nil {
		log.Error(err, "Failed to load transcript for failure record",
			"consultation_id", consultationID.String())
		return
	}

	msg := taskErr.Error()
	transcript.Status = model.TranscriptStatusFailed
	transcript.ErrorMessage = &msg
	if err := repo.Update(ctx, transcript); err != nil {
		log.Error(err, "Failed to record transcript failure",
			"consultation_id", consultationID.String())
	}
}
