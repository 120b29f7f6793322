package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/consult-api/internal/model"
	apperrors "github.com/jwalitptl/consult-api/pkg/errors"
)

const extractedJSON = `{
	"presenting_complaint": "Chest pain",
	"history": "Two days of intermittent pain",
	"examination_findings": "BP 130/85, chest clear",
	"diagnosis": "Musculoskeletal pain",
	"treatment_plan": "NSAIDs for one week",
	"follow_up_plan": "Review in two weeks",
	"billing_triggers": ["Initial consultation", "ECG"],
	"letters_required": ["GP referral letter"]
}`

func TestStripCodeFences(t *testing.T) {
	plain := `{"diagnosis": "flu"}`
	assert.Equal(t, plain, stripCodeFences(plain))
	assert.Equal(t, plain, stripCodeFences("```json\n"+plain+"\n```"))
	assert.Equal(t, plain, stripCodeFences("  ```json  "+plain+"  ```  "))
}

func TestParseStructuredDataMalformed(t *testing.T) {
	_, _, err := parseStructuredData("I could not produce JSON, sorry.")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrMalformedResponse, apperrors.Code(err))
	// The raw response is preserved for diagnosis.
	assert.Contains(t, err.Error(), "I could not produce JSON")
	assert.True(t, apperrors.IsRetryable(err))
}

func TestParseStructuredDataMissingKeys(t *testing.T) {
	data, missing, err := parseStructuredData(`{"diagnosis": "flu", "history": "3 days of fever"}`)
	require.NoError(t, err)
	assert.NotNil(t, data)
	assert.Contains(t, missing, "presenting_complaint")
	assert.Contains(t, missing, "letters_required")
	assert.NotContains(t, missing, "diagnosis")
}

func TestExtractionHappyPath(t *testing.T) {
	fx := newFixture(t)
	fx.setProcessingStatus(t, model.ProcessingExtracting)
	fx.seedTranscript(t, "Doctor: what brings you in? Patient: chest pain.")
	fx.ai.generateFn = func(prompt string) (string, error) {
		return "```json\n" + extractedJSON + "\n```", nil
	}

	msgs, err := fx.broker.Subscribe(context.Background(), testChannel)
	require.NoError(t, err)

	require.NoError(t, fx.extractionTask().Run(context.Background(), fx.consultationID))

	transcript := fx.transcripts.get(fx.consultationID)
	require.NotNil(t, transcript)

	var data model.StructuredClinicalData
	require.NoError(t, json.Unmarshal(transcript.StructuredData, &data))
	assert.Equal(t, "Musculoskeletal pain", data.Diagnosis)
	assert.Equal(t, []string{"GP referral letter"}, data.LettersRequired)

	assert.Equal(t, model.ProcessingGeneratingDocuments, fx.consultations.status(fx.consultationID))
	assert.Equal(t, StageDocumentGeneration, drainTask(t, msgs))
	assert.Contains(t, fx.auditRepo.actions(), model.AuditActionExtractionCompleted)
}

func TestExtractionPromptCarriesTranscript(t *testing.T) {
	fx := newFixture(t)
	fx.setProcessingStatus(t, model.ProcessingExtracting)
	fx.seedTranscript(t, "a very distinctive transcript line")
	fx.ai.generateFn = func(prompt string) (string, error) {
		assert.Contains(t, prompt, "a very distinctive transcript line")
		assert.Contains(t, prompt, "Jane Smith")
		return extractedJSON, nil
	}

	require.NoError(t, fx.extractionTask().Run(context.Background(), fx.consultationID))
	assert.Equal(t, 1, fx.ai.calls())
}

func TestExtractionMissingTranscript(t *testing.T) {
	fx := newFixture(t)
	fx.setProcessingStatus(t, model.ProcessingExtracting)

	err := fx.extractionTask().Run(context.Background(), fx.consultationID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrMissingInput, apperrors.Code(err))
	assert.False(t, apperrors.IsRetryable(err))
}

func TestExtractionMalformedResponse(t *testing.T) {
	fx := newFixture(t)
	fx.setProcessingStatus(t, model.ProcessingExtracting)
	fx.seedTranscript(t, "some transcript")
	fx.ai.generateFn = func(prompt string) (string, error) {
		return "not json at all", nil
	}

	err := fx.extractionTask().Run(context.Background(), fx.consultationID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrMalformedResponse, apperrors.Code(err))

	// Nothing was persisted; the consultation stays in the active stage.
	transcript := fx.transcripts.get(fx.consultationID)
	assert.Empty(t, transcript.StructuredData)
	assert.Equal(t, model.ProcessingExtracting, fx.consultations.status(fx.consultationID))
}

func TestExtractionOnFailure(t *testing.T) {
	fx := newFixture(t)
	fx.setProcessingStatus(t, model.ProcessingExtracting)
	fx.seedTranscript(t, "some transcript")

	fx.extractionTask().OnFailure(context.Background(), fx.consultationID, apperrors.NewEmptyResult("generation"))

	assert.Equal(t, model.ProcessingFailed, fx.consultations.status(fx.consultationID))
	transcript := fx.transcripts.get(fx.consultationID)
	assert.Equal(t, model.TranscriptStatusFailed, transcript.Status)
	require.NotNil(t, transcript.ErrorMessage)
}
