package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/consult-api/internal/ai"
	"github.com/jwalitptl/consult-api/internal/model"
	apperrors "github.com/jwalitptl/consult-api/pkg/errors"
)

func TestTranscriptionHappyPath(t *testing.T) {
	fx := newFixture(t)
	fx.ai.transcription = &ai.Transcription{
		Text: "Patient reports chest pain for two days.",
		Segments: []model.Segment{
			{ID: 0, Start: 0, End: 3.2, Text: "Patient reports chest pain"},
			{ID: 1, Start: 3.2, End: 5.0, Text: "for two days."},
		},
	}

	msgs, err := fx.broker.Subscribe(context.Background(), testChannel)
	require.NoError(t, err)

	require.NoError(t, fx.transcriptionTask().Run(context.Background(), fx.consultationID))

	transcript := fx.transcripts.get(fx.consultationID)
	require.NotNil(t, transcript)
	require.NotNil(t, transcript.RawTranscript)
	assert.Equal(t, "Patient reports chest pain for two days.", *transcript.RawTranscript)
	assert.Equal(t, model.TranscriptStatusCompleted, transcript.Status)

	var segments []model.Segment
	require.NoError(t, json.Unmarshal(transcript.SpeakerSegments, &segments))
	require.Len(t, segments, 2)
	assert.Equal(t, "for two days.", segments[1].Text)

	assert.Equal(t, model.ProcessingExtracting, fx.consultations.status(fx.consultationID))
	assert.Equal(t, StageExtraction, drainTask(t, msgs))
	assert.Contains(t, fx.auditRepo.actions(), model.AuditActionTranscriptionCompleted)
}

func TestTranscriptionMissingRecording(t *testing.T) {
	fx := newFixture(t)
	c, err := fx.consultations.Get(context.Background(), fx.consultationID)
	require.NoError(t, err)
	c.RecordingURL = nil
	require.NoError(t, fx.consultations.Update(context.Background(), c))

	err = fx.transcriptionTask().Run(context.Background(), fx.consultationID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrMissingInput, apperrors.Code(err))
	assert.False(t, apperrors.IsRetryable(err))
}

func TestTranscriptionMissingAudioFile(t *testing.T) {
	fx := newFixture(t)
	gone := "/uploads/recordings/deleted.mp3"
	c, err := fx.consultations.Get(context.Background(), fx.consultationID)
	require.NoError(t, err)
	c.RecordingURL = &gone
	require.NoError(t, fx.consultations.Update(context.Background(), c))

	err = fx.transcriptionTask().Run(context.Background(), fx.consultationID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrMissingInput, apperrors.Code(err))
}

func TestTranscriptionProviderErrorPropagates(t *testing.T) {
	fx := newFixture(t)
	fx.ai.transcribeErr = apperrors.NewProvider("transcription", 503, "overloaded")

	err := fx.transcriptionTask().Run(context.Background(), fx.consultationID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrProvider, apperrors.Code(err))
	assert.True(t, apperrors.IsRetryable(err))

	// The attempt left the consultation in the active stage; the runner
	// decides whether to retry or fail it.
	assert.Equal(t, model.ProcessingTranscribing, fx.consultations.status(fx.consultationID))
}

func TestTranscriptionOnFailure(t *testing.T) {
	fx := newFixture(t)
	fx.setProcessingStatus(t, model.ProcessingTranscribing)

	taskErr := apperrors.NewProvider("transcription", 500, "boom")
	fx.transcriptionTask().OnFailure(context.Background(), fx.consultationID, taskErr)

	assert.Equal(t, model.ProcessingFailed, fx.consultations.status(fx.consultationID))

	transcript := fx.transcripts.get(fx.consultationID)
	require.NotNil(t, transcript)
	assert.Equal(t, model.TranscriptStatusFailed, transcript.Status)
	require.NotNil(t, transcript.ErrorMessage)
	assert.Contains(t, *transcript.ErrorMessage, "boom")

	assert.Contains(t, fx.auditRepo.actions(), model.AuditActionPipelineFailed)
}
