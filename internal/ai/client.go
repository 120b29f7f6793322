package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	openai "github.com/sashabaranov/go-openai"

	"github.com/jwalitptl/consult-api/internal/config"
	"github.com/jwalitptl/consult-api/internal/model"
	"github.com/jwalitptl/consult-api/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/consult-api/pkg/errors"
	"github.com/jwalitptl/consult-api/pkg/logger"
	"github.com/jwalitptl/consult-api/pkg/metrics"
)

const (
	providerTranscription = "transcription"
	providerGeneration    = "generation"
)

// Client issues single blocking calls to the two external AI providers:
// speech-to-text and text generation. It performs no retries — the task
// layer owns the retry policy.
type Client struct {
	stt     *openai.Client
	llm     *openai.Client
	cfg     config.AIConfig
	sttCB   *circuitbreaker.CircuitBreaker
	llmCB   *circuitbreaker.CircuitBreaker
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// Transcription is the parsed speech-to-text result. Segments are in
// chronological order as returned by the provider.
type Transcription struct {
	Text     string
	Segments []model.Segment
}

func NewClient(cfg config.AIConfig, logger *logger.Logger, metrics *metrics.Metrics) *Client {
	sttCfg := openai.DefaultConfig(cfg.Transcription.APIKey)
	if cfg.Transcription.BaseURL != "" {
		sttCfg.BaseURL = cfg.Transcription.BaseURL
	}

	// The generation provider sits behind an OpenAI-compatible gateway,
	// so a custom base URL selects the vendor.
	llmCfg := openai.DefaultConfig(cfg.Generation.APIKey)
	if cfg.Generation.BaseURL != "" {
		llmCfg.BaseURL = cfg.Generation.BaseURL
	}

	// One breaker per provider: a flapping speech-to-text backend must
	// not block generation calls for unrelated consultations.
	sttCB := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "transcription-provider",
		MaxFailures: 5,
		Timeout:     30 * time.Second,
	})
	llmCB := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "generation-provider",
		MaxFailures: 5,
		Timeout:     30 * time.Second,
	})

	return &Client{
		stt:     openai.NewClientWithConfig(sttCfg),
		llm:     openai.NewClientWithConfig(llmCfg),
		cfg:     cfg,
		sttCB:   sttCB,
		llmCB:   llmCB,
		logger:  logger,
		metrics: metrics,
	}
}

// Transcribe sends the audio bytes to the speech-to-text provider and
// returns the transcript text with segment-level timestamps.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (*Transcription, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Transcription.Timeout)
	defer cancel()

	timer := prometheus.NewTimer(c.metrics.ProviderLatency.WithLabelValues(providerTranscription))
	defer timer.ObserveDuration()

	var resp openai.AudioResponse
	err := c.sttCB.Execute(func() error {
		var callErr error
		resp, callErr = c.stt.CreateTranscription(ctx, openai.AudioRequest{
			Model:    c.cfg.Transcription.Model,
			Reader:   bytes.NewReader(audio),
			FilePath: filename,
			Language: c.cfg.Transcription.Language,
			Format:   openai.AudioResponseFormatVerboseJSON,
		})
		return callErr
	})
	if err != nil {
		c.metrics.ProviderCalls.WithLabelValues(providerTranscription, "error").Inc()
		return nil, providerError(providerTranscription, err)
	}

	if strings.TrimSpace(resp.Text) == "" {
		c.metrics.ProviderCalls.WithLabelValues(providerTranscription, "error").Inc()
		return nil, apperrors.NewEmptyResult(providerTranscription)
	}

	segments := make([]model.Segment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		segments = append(segments, model.Segment{
			ID:    seg.ID,
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}

	c.metrics.ProviderCalls.WithLabelValues(providerTranscription, "success").Inc()
	c.logger.Debug("Transcription call completed",
		"chars", len(resp.Text),
		"segments", len(segments))

	return &Transcription{Text: resp.Text, Segments: segments}, nil
}

// Generate sends a single user-role prompt to the text-generation
// provider with the configured token budget and returns the text of the
// first choice.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Generation.Timeout)
	defer cancel()

	timer := prometheus.NewTimer(c.metrics.ProviderLatency.WithLabelValues(providerGeneration))
	defer timer.ObserveDuration()

	var resp openai.ChatCompletionResponse
	err := c.llmCB.Execute(func() error {
		var callErr error
		resp, callErr = c.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:     c.cfg.Generation.Model,
			MaxTokens: c.cfg.Generation.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		})
		return callErr
	})
	if err != nil {
		c.metrics.ProviderCalls.WithLabelValues(providerGeneration, "error").Inc()
		return "", providerError(providerGeneration, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		c.metrics.ProviderCalls.WithLabelValues(providerGeneration, "error").Inc()
		return "", apperrors.NewEmptyResult(providerGeneration)
	}

	c.metrics.ProviderCalls.WithLabelValues(providerGeneration, "success").Inc()
	c.logger.Debug("Generation call completed",
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return resp.Choices[0].Message.Content, nil
}

// providerError maps transport failures onto the pipeline error
// taxonomy, preserving HTTP status and body for diagnosis.
func providerError(provider string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apperrors.NewProvider(provider, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return apperrors.NewProvider(provider, reqErr.HTTPStatusCode, reqErr.Error())
	}
	return fmt.Errorf("%s call failed: %w", provider, err)
}
