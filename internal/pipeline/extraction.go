package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/consult-api/internal/model"
	"github.com/jwalitptl/consult-api/internal/repository"
	"github.com/jwalitptl/consult-api/internal/service/audit"
	apperrors "github.com/jwalitptl/consult-api/pkg/errors"
	"github.com/jwalitptl/consult-api/pkg/logger"
)

// ExtractionTask asks the generation model to distill the raw
// transcript into the fixed structured clinical data schema, then
// enqueues document generation.
type ExtractionTask struct {
	consultations repository.ConsultationRepository
	transcripts   repository.TranscriptRepository
	patients      repository.PatientRepository
	generator     Generator
	orchestrator  *Orchestrator
	audit         *audit.Service
	actorID       uuid.UUID
	logger        *logger.Logger
}

func NewExtractionTask(
	consultations repository.ConsultationRepository,
	transcripts repository.TranscriptRepository,
	patients repository.PatientRepository,
	generator Generator,
	orchestrator *Orchestrator,
	audit *audit.Service,
	actorID uuid.UUID,
	logger *logger.Logger,
) *ExtractionTask {
	return &ExtractionTask{
		consultations: consultations,
		transcripts:   transcripts,
		patients:      patients,
		generator:     generator,
		orchestrator:  orchestrator,
		audit:         audit,
		actorID:       actorID,
		logger:        logger,
	}
}

func (t *ExtractionTask) Run(ctx context.Context, consultationID uuid.UUID) error {
	consultation, err := t.consultations.Get(ctx, consultationID)
	if err != nil {
		return err
	}

	transcript, err := t.transcripts.GetByConsultation(ctx, consultationID)
	if err != nil {
		if apperrors.Code(err) == apperrors.ErrNotFound {
			return apperrors.NewMissingInput(fmt.Sprintf("no transcript available for consultation %s", consultationID))
		}
		return err
	}
	if transcript.RawTranscript == nil || *transcript.RawTranscript == "" {
		return apperrors.NewMissingInput(fmt.Sprintf("no transcript available for consultation %s", consultationID))
	}

	if err := t.consultations.UpdateProcessingStatus(ctx, consultationID, model.ProcessingExtracting); err != nil {
		return err
	}

	patient, err := t.patients.Get(ctx, consultation.PatientID)
	if err != nil {
		return err
	}

	t.logger.Info("Starting data extraction", "consultation_id", consultationID.String())

	response, err := t.generator.Generate(ctx, extractionPrompt(consultation, patient, *transcript.RawTranscript))
	if err != nil {
		return err
	}

	structured, missing, err := parseStructuredData(response)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		t.logger.Warn("Missing fields in extracted data",
			"consultation_id", consultationID.String(),
			"fields", strings.Join(missing, ", "))
	}

	transcript.StructuredData = structured
	transcript.Status = model.TranscriptStatusCompleted
	transcript.ErrorMessage = nil
	if err := t.transcripts.Update(ctx, transcript); err != nil {
		return err
	}

	if err := t.consultations.UpdateProcessingStatus(ctx, consultationID, model.ProcessingGeneratingDocuments); err != nil {
		return err
	}

	t.logger.Info("Extraction completed", "consultation_id", consultationID.String())

	t.audit.Log(ctx, t.actorID, model.AuditActionExtractionCompleted, model.AuditEntityConsultation, consultationID, &audit.LogOptions{
		Changes: map[string]interface{}{
			"missing_fields": missing,
		},
	})

	return t.orchestrator.Enqueue(ctx, StageDocumentGeneration, consultationID)
}

func (t *ExtractionTask) OnFailure(ctx context.Context, consultationID uuid.UUID, taskErr error) {
	markTranscriptFailed(ctx, t.transcripts, consultationID, taskErr, t.logger)
	markConsultationFailed(ctx, t.consultations, consultationID, t.logger)

	t.audit.Log(ctx, t.actorID, model.AuditActionPipelineFailed, model.AuditEntityConsultation, consultationID, &audit.LogOptions{
		Changes: map[string]interface{}{
			"stage": StageExtraction,
			"error": taskErr.Error(),
		},
	})
}

var (
	fenceOpen  = regexp.MustCompile("^```json\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
)

// stripCodeFences removes the markdown fencing the model sometimes
// wraps its JSON in.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpen.ReplaceAllString(s, "")
	return fenceClose.ReplaceAllString(s, "")
}

// parseStructuredData validates the model output as JSON and reports
// which required schema keys are absent. Missing keys are a warning for
// the caller, not an error: the pipeline proceeds on a partial schema.
func parseStructuredData(content string) (json.RawMessage, []string, error) {
	text := stripCodeFences(content)

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, nil, apperrors.NewMalformedResponse(content, err)
	}

	return json.RawMessage(text), model.MissingStructuredKeys(raw), nil
}
