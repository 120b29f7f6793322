package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/consult-api/internal/model"
	"github.com/jwalitptl/consult-api/internal/repository"
	apperrors "github.com/jwalitptl/consult-api/pkg/errors"
)

type transcriptRepository struct {
	BaseRepository
}

func NewTranscriptRepository(base BaseRepository) repository.TranscriptRepository {
	return &transcriptRepository{base}
}

func (r *transcriptRepository) Create(ctx context.Context, transcript *model.Transcript) error {
	query := `
		INSERT INTO transcripts (
			id, consultation_id, raw_transcript, speaker_segments,
			structured_data, processing_status, error_message,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		transcript.ID,
		transcript.ConsultationID,
		transcript.RawTranscript,
		transcript.SpeakerSegments,
		transcript.StructuredData,
		transcript.Status,
		transcript.ErrorMessage,
		transcript.CreatedAt,
		transcript.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transcript: %w", err)
	}
	return nil
}

func (r *transcriptRepository) GetByConsultation(ctx context.Context, consultationID uuid.UUID) (*model.Transcript, error) {
	query := `SELECT * FROM transcripts WHERE consultation_id = $1`

	var transcript model.Transcript
	if err := r.GetDB().GetContext(ctx, &transcript, query, consultationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("transcript", err)
		}
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}
	return &transcript, nil
}

func (r *transcriptRepository) Update(ctx context.Context, transcript *model.Transcript) error {
	transcript.UpdatedAt = time.Now()

	query := `
		UPDATE transcripts SET
			raw_transcript = $1,
			speaker_segments = $2,
			structured_data = $3,
			processing_status = $4,
			error_message = $5,
			updated_at = $6
		WHERE id = $7
	`
	result, err := r.GetDB().ExecContext(ctx, query,
		transcript.RawTranscript,
		transcript.SpeakerSegments,
		transcript.StructuredData,
		transcript.Status,
		transcript.ErrorMessage,
		transcript.UpdatedAt,
		transcript.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transcript: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("transcript", nil)
	}
	return nil
}
