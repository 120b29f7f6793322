package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/consult-api/internal/model"
	apperrors "github.com/jwalitptl/consult-api/pkg/errors"
)

func TestGenerationCreatesSOAPAndLetters(t *testing.T) {
	fx := newFixture(t)
	fx.setProcessingStatus(t, model.ProcessingGeneratingDocuments)
	fx.seedStructuredData(t, `{
		"presenting_complaint": "Chest pain",
		"diagnosis": "Musculoskeletal pain",
		"treatment_plan": "NSAIDs",
		"follow_up_plan": "Review in two weeks",
		"letters_required": ["GP referral letter", "Patient summary letter", "Carrier pigeon note"]
	}`)
	fx.ai.generateFn = func(prompt string) (string, error) {
		return "Dear reader, ...", nil
	}

	require.NoError(t, fx.generationTask().Run(context.Background(), fx.consultationID))

	docs, err := fx.documents.ListByConsultation(context.Background(), fx.consultationID)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	// SOAP note always, recognized letters each, unknown type skipped
	// without failing the task.
	assert.Len(t, fx.documents.byType(fx.consultationID, model.DocumentTypeSOAPNote), 1)
	assert.Len(t, fx.documents.byType(fx.consultationID, model.DocumentTypeGPLetter), 1)
	assert.Len(t, fx.documents.byType(fx.consultationID, model.DocumentTypePatientLetter), 1)

	for _, doc := range docs {
		assert.Equal(t, model.DocumentStatusDraft, doc.Status)
		assert.Equal(t, 1, doc.Version)
	}

	assert.Equal(t, model.ProcessingReadyForReview, fx.consultations.status(fx.consultationID))
	assert.Contains(t, fx.auditRepo.actions(), model.AuditActionGenerationCompleted)
}

func TestGenerationMissingStructuredData(t *testing.T) {
	fx := newFixture(t)
	fx.setProcessingStatus(t, model.ProcessingGeneratingDocuments)
	fx.seedTranscript(t, "raw transcript without extraction")

	err := fx.generationTask().Run(context.Background(), fx.consultationID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrMissingInput, apperrors.Code(err))
	assert.False(t, apperrors.IsRetryable(err))
}

func TestGenerationPromptsUsePatientDetails(t *testing.T) {
	fx := newFixture(t)
	fx.setProcessingStatus(t, model.ProcessingGeneratingDocuments)
	fx.seedStructuredData(t, `{
		"presenting_complaint": "Chest pain",
		"diagnosis": "Musculoskeletal pain",
		"letters_required": ["Patient summary letter"]
	}`)
	fx.ai.generateFn = func(prompt string) (string, error) {
		assert.Contains(t, prompt, "Jane Smith")
		if strings.Contains(prompt, "patient-friendly letter") {
			assert.Contains(t, prompt, `Start with "Dear Jane Smith,"`)
		}
		return "content", nil
	}

	require.NoError(t, fx.generationTask().Run(context.Background(), fx.consultationID))
	assert.Equal(t, 2, fx.ai.calls())
}

// A retried generation run starts from the top and re-commits documents
// already written by the failed attempt. That duplication is accepted;
// the reviewer discards the extras.
func TestGenerationRetryDuplicatesDocuments(t *testing.T) {
	fx := newFixture(t)
	fx.setProcessingStatus(t, model.ProcessingGeneratingDocuments)
	fx.seedStructuredData(t, `{
		"presenting_complaint": "Chest pain",
		"diagnosis": "Musculoskeletal pain",
		"letters_required": ["GP referral letter"]
	}`)

	call := 0
	fx.ai.generateFn = func(prompt string) (string, error) {
		call++
		if call == 2 {
			return "", apperrors.NewEmptyResult("generation")
		}
		return "content", nil
	}

	task := fx.generationTask()

	// First attempt: SOAP note committed, letter generation fails.
	err := task.Run(context.Background(), fx.consultationID)
	require.Error(t, err)
	assert.Len(t, fx.documents.byType(fx.consultationID, model.DocumentTypeSOAPNote), 1)
	assert.Empty(t, fx.documents.byType(fx.consultationID, model.DocumentTypeGPLetter))

	// Second attempt: everything succeeds, SOAP note now duplicated.
	require.NoError(t, task.Run(context.Background(), fx.consultationID))
	assert.Len(t, fx.documents.byType(fx.consultationID, model.DocumentTypeSOAPNote), 2)
	assert.Len(t, fx.documents.byType(fx.consultationID, model.DocumentTypeGPLetter), 1)
	assert.Equal(t, model.ProcessingReadyForReview, fx.consultations.status(fx.consultationID))
}

// A full re-run on unchanged structured data (a redelivered message, an
// operator re-trigger) steps back from ready_for_review and appends a
// second set of drafts rather than dying on the status write.
func TestGenerationRerunAfterCompletionAppendsDocuments(t *testing.T) {
	fx := newFixture(t)
	fx.setProcessingStatus(t, model.ProcessingGeneratingDocuments)
	fx.seedStructuredData(t, `{"diagnosis": "flu", "letters_required": []}`)

	task := fx.generationTask()
	require.NoError(t, task.Run(context.Background(), fx.consultationID))
	require.Equal(t, model.ProcessingReadyForReview, fx.consultations.status(fx.consultationID))

	require.NoError(t, task.Run(context.Background(), fx.consultationID))
	assert.Len(t, fx.documents.byType(fx.consultationID, model.DocumentTypeSOAPNote), 2)
	assert.Equal(t, model.ProcessingReadyForReview, fx.consultations.status(fx.consultationID))
}

func TestGenerationCachesPatientLookups(t *testing.T) {
	fx := newFixture(t)
	fx.setProcessingStatus(t, model.ProcessingGeneratingDocuments)
	fx.seedStructuredData(t, `{"diagnosis": "flu", "letters_required": []}`)

	task := fx.generationTask()
	require.NoError(t, task.Run(context.Background(), fx.consultationID))
	require.NoError(t, task.Run(context.Background(), fx.consultationID))

	assert.Equal(t, 1, fx.patients.getCalls)
}

func TestGenerationOnFailure(t *testing.T) {
	fx := newFixture(t)
	fx.setProcessingStatus(t, model.ProcessingGeneratingDocuments)

	fx.generationTask().OnFailure(context.Background(), fx.consultationID, apperrors.NewEmptyResult("generation"))

	assert.Equal(t, model.ProcessingFailed, fx.consultations.status(fx.consultationID))
	assert.Contains(t, fx.auditRepo.actions(), model.AuditActionPipelineFailed)
}
