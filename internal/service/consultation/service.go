package consultation

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/consult-api/internal/model"
	"github.com/jwalitptl/consult-api/internal/pipeline"
	"github.com/jwalitptl/consult-api/internal/repository"
	"github.com/jwalitptl/consult-api/internal/service/audit"
	"github.com/jwalitptl/consult-api/internal/storage"
	apperrors "github.com/jwalitptl/consult-api/pkg/errors"
	"github.com/jwalitptl/consult-api/pkg/logger"
)

// allowedAudioExtensions are the recording formats accepted for upload.
var allowedAudioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".webm": true,
	".ogg":  true,
	".m4a":  true,
}

type Service struct {
	consultations repository.ConsultationRepository
	transcripts   repository.TranscriptRepository
	documents     repository.DocumentRepository
	store         storage.AudioStore
	orchestrator  *pipeline.Orchestrator
	auditor       *audit.Service
	maxAudioBytes int64
	logger        *logger.Logger
}

func NewService(
	consultations repository.ConsultationRepository,
	transcripts repository.TranscriptRepository,
	documents repository.DocumentRepository,
	store storage.AudioStore,
	orchestrator *pipeline.Orchestrator,
	auditor *audit.Service,
	maxAudioBytes int64,
	logger *logger.Logger,
) *Service {
	return &Service{
		consultations: consultations,
		transcripts:   transcripts,
		documents:     documents,
		store:         store,
		orchestrator:  orchestrator,
		auditor:       auditor,
		maxAudioBytes: maxAudioBytes,
		logger:        logger,
	}
}

func (s *Service) Create(ctx context.Context, actorID uuid.UUID, req *model.CreateConsultationRequest) (*model.Consultation, error) {
	now := time.Now()
	consultation := &model.Consultation{
		Base:             model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		PatientID:        req.PatientID,
		ClinicianID:      actorID,
		ConsultationDate: req.ConsultationDate,
		ConsultationTime: req.ConsultationTime,
		ConsultationType: req.ConsultationType,
		Status:           model.ConsultationStatusScheduled,
		ProcessingStatus: model.ProcessingPending,
		Notes:            req.Notes,
	}

	if err := s.consultations.Create(ctx, consultation); err != nil {
		return nil, fmt.Errorf("failed to create consultation: %w", err)
	}

	s.auditor.Log(ctx, actorID, model.AuditActionCreate, model.AuditEntityConsultation, consultation.ID, &audit.LogOptions{
		Changes: consultation,
	})
	return consultation, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error) {
	return s.consultations.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filters *model.ConsultationFilters) ([]*model.Consultation, error) {
	return s.consultations.List(ctx, filters)
}

// GetTranscript returns the consultation's transcript, or nil when the
// pipeline has not produced one yet.
func (s *Service) GetTranscript(ctx context.Context, consultationID uuid.UUID) (*model.Transcript, error) {
	transcript, err := s.transcripts.GetByConsultation(ctx, consultationID)
	if err != nil {
		if apperrors.Code(err) == apperrors.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return transcript, nil
}

func (s *Service) ListDocuments(ctx context.Context, consultationID uuid.UUID) ([]*model.ClinicalDocument, error) {
	return s.documents.ListByConsultation(ctx, consultationID)
}

func (s *Service) Update(ctx context.Context, actorID, id uuid.UUID, req *model.UpdateConsultationRequest) (*model.Consultation, error) {
	consultation, err := s.consultations.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}
	if req.ConsultationDate != nil {
		consultation.ConsultationDate = *req.ConsultationDate
		changes["consultation_date"] = *req.ConsultationDate
	}
	if req.ConsultationTime != nil {
		consultation.ConsultationTime = *req.ConsultationTime
		changes["consultation_time"] = *req.ConsultationTime
	}
	if req.ConsultationType != nil {
		consultation.ConsultationType = *req.ConsultationType
		changes["consultation_type"] = *req.ConsultationType
	}
	if req.Status != nil {
		consultation.Status = *req.Status
		changes["status"] = *req.Status
	}
	if req.Notes != nil {
		consultation.Notes = *req.Notes
		changes["notes"] = *req.Notes
	}

	if err := s.consultations.Update(ctx, consultation); err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, actorID, model.AuditActionUpdate, model.AuditEntityConsultation, id, &audit.LogOptions{
		Changes: changes,
	})
	return consultation, nil
}

// UploadAudio stores the recording, moves the consultation into the
// pipeline and enqueues the transcription task.
func (s *Service) UploadAudio(ctx context.Context, actorID, id uuid.UUID, filename string, size int64, r io.Reader) (*model.Consultation, error) {
	consultation, err := s.consultations.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedAudioExtensions[ext] {
		return nil, apperrors.NewBadRequest("invalid audio file type, accepted formats: MP3, WAV, WebM, OGG, M4A", nil)
	}
	if size > s.maxAudioBytes {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("file too large, maximum size is %dMB", s.maxAudioBytes>>20), nil)
	}

	stored := fmt.Sprintf("consultation_%s_%s%s", consultation.ID, time.Now().Format("20060102150405"), ext)
	recordingURL, err := s.store.Save(ctx, stored, r)
	if err != nil {
		return nil, fmt.Errorf("failed to store recording: %w", err)
	}

	consultation.RecordingURL = &recordingURL
	consultation.Status = model.ConsultationStatusInProgress
	if err := s.consultations.Update(ctx, consultation); err != nil {
		return nil, err
	}
	if err := s.consultations.UpdateProcessingStatus(ctx, id, model.ProcessingTranscribing); err != nil {
		return nil, err
	}
	consultation.ProcessingStatus = model.ProcessingTranscribing

	s.auditor.Log(ctx, actorID, model.AuditActionUploadAudio, model.AuditEntityConsultation, id, &audit.LogOptions{
		Changes: map[string]interface{}{"recording_url": recordingURL},
	})

	if err := s.orchestrator.Enqueue(ctx, pipeline.StageTranscription, id); err != nil {
		return nil, err
	}

	s.logger.Info("Audio uploaded, transcription enqueued",
		"consultation_id", id.String(),
		"recording_url", recordingURL,
		"bytes", size)

	return consultation, nil
}
