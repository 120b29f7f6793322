package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/consult-api/internal/ai"
	"github.com/jwalitptl/consult-api/internal/model"
	apperrors "github.com/jwalitptl/consult-api/pkg/errors"
	"github.com/jwalitptl/consult-api/pkg/worker"
)

func startRunner(t *testing.T, fx *fixture, maxAttempts int) {
	t.Helper()

	runner := worker.NewRunner(fx.broker, worker.RunnerConfig{
		Channel:      testChannel,
		Concurrency:  2,
		MaxAttempts:  maxAttempts,
		RetryBackoff: time.Millisecond,
	}, fx.logger, fx.metrics)

	runner.Register(StageTranscription, fx.transcriptionTask())
	runner.Register(StageExtraction, fx.extractionTask())
	runner.Register(StageDocumentGeneration, fx.generationTask())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		runner.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// The runner must be subscribed before anything publishes.
	<-runner.Ready()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// Full chain: audio upload already done, transcription enqueued, chain
// runs to ready_for_review with documents persisted.
func TestPipelineEndToEnd(t *testing.T) {
	fx := newFixture(t)
	fx.ai.transcription = &ai.Transcription{
		Text:     "Doctor: what brings you in? Patient: chest pain.",
		Segments: []model.Segment{{ID: 0, Start: 0, End: 4.1, Text: "chest pain"}},
	}
	fx.ai.generateFn = func(prompt string) (string, error) {
		if strings.Contains(prompt, "Extract the following information") {
			return "```json\n" + extractedJSON + "\n```", nil
		}
		return "Generated clinical text.", nil
	}

	startRunner(t, fx, 3)

	require.NoError(t, fx.orchestrator.Enqueue(context.Background(), StageTranscription, fx.consultationID))

	waitFor(t, func() bool {
		return fx.consultations.status(fx.consultationID) == model.ProcessingReadyForReview
	})

	transcript := fx.transcripts.get(fx.consultationID)
	require.NotNil(t, transcript)
	assert.Equal(t, model.TranscriptStatusCompleted, transcript.Status)
	assert.NotEmpty(t, transcript.StructuredData)

	// extractedJSON requests one GP referral letter.
	assert.Len(t, fx.documents.byType(fx.consultationID, model.DocumentTypeSOAPNote), 1)
	assert.Len(t, fx.documents.byType(fx.consultationID, model.DocumentTypeGPLetter), 1)

	// Stages advanced strictly in order, no skips, no regressions.
	assert.Equal(t, []model.ProcessingStatus{
		model.ProcessingTranscribing,
		model.ProcessingExtracting,
		model.ProcessingGeneratingDocuments,
		model.ProcessingReadyForReview,
	}, fx.consultations.history())
}

// A stage that keeps failing exhausts its attempts, marks the
// consultation failed and never enqueues its successor.
func TestPipelineHaltsOnPersistentFailure(t *testing.T) {
	fx := newFixture(t)
	fx.ai.transcribeErr = apperrors.NewProvider("transcription", 503, "overloaded")

	startRunner(t, fx, 3)

	require.NoError(t, fx.orchestrator.Enqueue(context.Background(), StageTranscription, fx.consultationID))

	waitFor(t, func() bool {
		return fx.consultations.status(fx.consultationID) == model.ProcessingFailed
	})

	assert.Equal(t, 3, fx.ai.transcribeCalls)
	assert.Zero(t, fx.ai.calls(), "extraction must not run after a transcription failure")

	transcript := fx.transcripts.get(fx.consultationID)
	require.NotNil(t, transcript)
	assert.Equal(t, model.TranscriptStatusFailed, transcript.Status)

	assert.Contains(t, fx.auditRepo.actions(), model.AuditActionPipelineFailed)
}

// Missing input short-circuits the retry budget: one attempt, terminal
// failure.
func TestPipelineDoesNotRetryMissingInput(t *testing.T) {
	fx := newFixture(t)
	c, err := fx.consultations.Get(context.Background(), fx.consultationID)
	require.NoError(t, err)
	c.RecordingURL = nil
	require.NoError(t, fx.consultations.Update(context.Background(), c))

	startRunner(t, fx, 3)

	require.NoError(t, fx.orchestrator.Enqueue(context.Background(), StageTranscription, fx.consultationID))

	waitFor(t, func() bool {
		return fx.consultations.status(fx.consultationID) == model.ProcessingFailed
	})

	// The recording check runs before the provider is ever called.
	assert.Zero(t, fx.ai.transcribeCalls)

	transcript := fx.transcripts.get(fx.consultationID)
	require.NotNil(t, transcript)
	assert.Equal(t, model.TranscriptStatusFailed, transcript.Status)
}
