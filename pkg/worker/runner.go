package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	apperrors "github.com/jwalitptl/consult-api/pkg/errors"
	"github.com/jwalitptl/consult-api/pkg/logger"
	"github.com/jwalitptl/consult-api/pkg/messaging"
	"github.com/jwalitptl/consult-api/pkg/metrics"
)

// TaskMessage is the unit of work exchanged over the broker. Task names
// are registered on the runner; the payload is just the consultation id.
type TaskMessage struct {
	Task           string    `json:"task"`
	ConsultationID uuid.UUID `json:"consultation_id"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}

// Handler executes one task attempt. Run is retried as a whole; OnFailure
// runs exactly once after the attempt budget is exhausted (or immediately
// for non-retryable errors) to persist terminal state.
type Handler interface {
	Run(ctx context.Context, consultationID uuid.UUID) error
	OnFailure(ctx context.Context, consultationID uuid.UUID, taskErr error)
}

type RunnerConfig struct {
	Channel      string
	Concurrency  int
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Runner consumes task messages from the broker and dispatches them onto
// a bounded pool. Tasks for different consultations run concurrently;
// tasks for the same consultation are serialized by the chaining
// contract, not by the runner.
type Runner struct {
	broker   messaging.Broker
	config   RunnerConfig
	handlers map[string]Handler
	logger   *logger.Logger
	metrics  *metrics.Metrics
	sem      chan struct{}
	wg       sync.WaitGroup
	ready    chan struct{}
}

func NewRunner(broker messaging.Broker, config RunnerConfig, logger *logger.Logger, metrics *metrics.Metrics) *Runner {
	// Config validation instead of defaults
	if config.Channel == "" {
		panic("Channel must be set")
	}
	if config.Concurrency <= 0 {
		panic("Concurrency must be greater than 0")
	}
	if config.MaxAttempts <= 0 {
		panic("MaxAttempts must be greater than 0")
	}
	if config.RetryBackoff <= 0 {
		panic("RetryBackoff must be greater than 0")
	}

	return &Runner{
		broker:   broker,
		config:   config,
		handlers: make(map[string]Handler),
		logger:   logger,
		metrics:  metrics,
		sem:      make(chan struct{}, config.Concurrency),
		ready:    make(chan struct{}),
	}
}

// Register binds a task name to its handler. Must be called before Start.
func (r *Runner) Register(task string, h Handler) {
	r.handlers[task] = h
}

// Ready is closed once the runner's subscription is established. Callers
// that publish right after starting the runner wait on it so messages
// are not published before anyone listens.
func (r *Runner) Ready() <-chan struct{} {
	return r.ready
}

// Start blocks consuming messages until ctx is cancelled, then waits for
// in-flight tasks to finish.
func (r *Runner) Start(ctx context.Context) error {
	msgs, err := r.broker.Subscribe(ctx, r.config.Channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.config.Channel, err)
	}
	close(r.ready)

	r.logger.Info("Starting task runner", "channel", r.config.Channel)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Shutting down task runner")
			r.wg.Wait()
			return nil
		case payload, ok := <-msgs:
			if !ok {
				r.wg.Wait()
				return nil
			}
			r.dispatch(ctx, payload)
		}
	}
}

func (r *Runner) dispatch(ctx context.Context, payload []byte) {
	var msg TaskMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		r.logger.Error(err, "Failed to decode task message")
		return
	}

	handler, ok := r.handlers[msg.Task]
	if !ok {
		r.logger.Error(fmt.Errorf("no handler registered for task %q", msg.Task), "Dropping task message",
			"consultation_id", msg.ConsultationID.String())
		return
	}

	r.sem <- struct{}{}
	r.wg.Add(1)
	go func() {
		defer func() {
			<-r.sem
			r.wg.Done()
		}()
		r.execute(ctx, msg, handler)
	}()
}

// execute runs one task with the whole-task retry policy: up to
// MaxAttempts attempts with exponentially increasing backoff, except for
// non-retryable errors which go straight to the failure handler.
func (r *Runner) execute(ctx context.Context, msg TaskMessage, handler Handler) {
	timer := prometheus.NewTimer(r.metrics.TaskDuration.WithLabelValues(msg.Task))
	defer timer.ObserveDuration()

	var err error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			r.metrics.TaskRetries.WithLabelValues(msg.Task).Inc()
			backoff := r.config.RetryBackoff << (attempt - 2)
			r.logger.Warn("Retrying task",
				"task", msg.Task,
				"consultation_id", msg.ConsultationID.String(),
				"attempt", attempt,
				"backoff", backoff.String())
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}

		if err = handler.Run(ctx, msg.ConsultationID); err == nil {
			r.metrics.TasksProcessed.WithLabelValues(msg.Task).Inc()
			return
		}

		if !apperrors.IsRetryable(err) {
			break
		}
	}

	r.metrics.TasksFailed.WithLabelValues(msg.Task).Inc()
	r.logger.Error(err, "Task failed after retries",
		"task", msg.Task,
		"consultation_id", msg.ConsultationID.String())
	handler.OnFailure(ctx, msg.ConsultationID, err)
}
