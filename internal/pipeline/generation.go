package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/consult-api/internal/model"
	"github.com/jwalitptl/consult-api/internal/repository"
	"github.com/jwalitptl/consult-api/internal/service/audit"
	apperrors "github.com/jwalitptl/consult-api/pkg/errors"
	"github.com/jwalitptl/consult-api/pkg/logger"
	"github.com/jwalitptl/consult-api/pkg/metrics"
)

// GenerationTask produces the clinical documents for a consultation: a
// SOAP note always, plus one letter per recognized entry in the
// extracted letters_required list. Documents are committed one at a
// time; a retried attempt regenerates from the top, so a partial
// failure can leave duplicate drafts behind for the reviewer to
// discard.
type GenerationTask struct {
	consultations repository.ConsultationRepository
	transcripts   repository.TranscriptRepository
	patients      repository.PatientRepository
	documents     repository.DocumentRepository
	generator     Generator
	audit         *audit.Service
	patientCache  *gocache.Cache
	metrics       *metrics.Metrics
	actorID       uuid.UUID
	logger        *logger.Logger
}

func NewGenerationTask(
	consultations repository.ConsultationRepository,
	transcripts repository.TranscriptRepository,
	patients repository.PatientRepository,
	documents repository.DocumentRepository,
	generator Generator,
	audit *audit.Service,
	metrics *metrics.Metrics,
	actorID uuid.UUID,
	logger *logger.Logger,
) *GenerationTask {
	return &GenerationTask{
		consultations: consultations,
		transcripts:   transcripts,
		patients:      patients,
		documents:     documents,
		generator:     generator,
		audit:         audit,
		patientCache:  gocache.New(5*time.Minute, 10*time.Minute),
		metrics:       metrics,
		actorID:       actorID,
		logger:        logger,
	}
}

func (t *GenerationTask) Run(ctx context.Context, consultationID uuid.UUID) error {
	consultation, err := t.consultations.Get(ctx, consultationID)
	if err != nil {
		return err
	}

	transcript, err := t.transcripts.GetByConsultation(ctx, consultationID)
	if err != nil {
		if apperrors.Code(err) == apperrors.ErrNotFound {
			return apperrors.NewMissingInput(fmt.Sprintf("no structured data available for consultation %s", consultationID))
		}
		return err
	}
	if len(transcript.StructuredData) == 0 {
		return apperrors.NewMissingInput(fmt.Sprintf("no structured data available for consultation %s", consultationID))
	}

	if err := t.consultations.UpdateProcessingStatus(ctx, consultationID, model.ProcessingGeneratingDocuments); err != nil {
		return err
	}

	patient, err := t.patient(ctx, consultation.PatientID)
	if err != nil {
		return err
	}

	var data model.StructuredClinicalData
	if err := json.Unmarshal(transcript.StructuredData, &data); err != nil {
		return apperrors.NewMalformedResponse(string(transcript.StructuredData), err)
	}

	t.logger.Info("Starting document generation", "consultation_id", consultationID.String())

	created := []string{}

	// The SOAP note is generated for every consultation.
	if err := t.generateDocument(ctx, consultationID, model.DocumentTypeSOAPNote,
		soapNotePrompt(consultation, patient, &data)); err != nil {
		return err
	}
	created = append(created, string(model.DocumentTypeSOAPNote))

	for _, letterType := range data.LettersRequired {
		docType, ok := classifyLetter(letterType)
		if !ok {
			t.logger.Warn("Unknown letter type, skipping",
				"consultation_id", consultationID.String(),
				"letter_type", letterType)
			continue
		}

		if err := t.generateDocument(ctx, consultationID, docType,
			letterPrompt(docType, consultation, patient, &data)); err != nil {
			return err
		}
		created = append(created, string(docType))
	}

	if err := t.consultations.UpdateProcessingStatus(ctx, consultationID, model.ProcessingReadyForReview); err != nil {
		return err
	}

	t.logger.Info("Document generation completed",
		"consultation_id", consultationID.String(),
		"documents", len(created))

	t.audit.Log(ctx, t.actorID, model.AuditActionGenerationCompleted, model.AuditEntityConsultation, consultationID, &audit.LogOptions{
		Changes: map[string]interface{}{
			"documents": created,
		},
	})

	return nil
}

func (t *GenerationTask) OnFailure(ctx context.Context, consultationID uuid.UUID, taskErr error) {
	markConsultationFailed(ctx, t.consultations, consultationID, t.logger)

	t.audit.Log(ctx, t.actorID, model.AuditActionPipelineFailed, model.AuditEntityConsultation, consultationID, &audit.LogOptions{
		Changes: map[string]interface{}{
			"stage": StageDocumentGeneration,
			"error": taskErr.Error(),
		},
	})
}

func (t *GenerationTask) generateDocument(ctx context.Context, consultationID uuid.UUID, docType model.DocumentType, prompt string) error {
	t.logger.Info("Generating document",
		"consultation_id", consultationID.String(),
		"document_type", string(docType))

	content, err := t.generator.Generate(ctx, prompt)
	if err != nil {
		return err
	}

	now := time.Now()
	doc := &model.ClinicalDocument{
		Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		ConsultationID: consultationID,
		DocumentType:   docType,
		Content:        content,
		Status:         model.DocumentStatusDraft,
		Version:        1,
	}
	if err := t.documents.Create(ctx, doc); err != nil {
		return err
	}

	t.metrics.DocumentsGenerated.WithLabelValues(string(docType)).Inc()
	return nil
}

// patient resolves the consultation's patient through a short-lived
// cache: the extraction and generation stages for one consultation, and
// retries within them, hit the same row repeatedly.
func (t *GenerationTask) patient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	if cached, ok := t.patientCache.Get(id.String()); ok {
		return cached.(*model.Patient), nil
	}

	patient, err := t.patients.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	t.patientCache.Set(id.String(), patient, gocache.DefaultExpiration)
	return patient, nil
}
