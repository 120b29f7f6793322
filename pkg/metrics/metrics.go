package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Pipeline task metrics
	TasksProcessed *prometheus.CounterVec
	TasksFailed    *prometheus.CounterVec
	TaskRetries    *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec

	// External AI provider metrics
	ProviderCalls   *prometheus.CounterVec
	ProviderLatency *prometheus.HistogramVec

	// Generated artifact metrics
	DocumentsGenerated *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// New creates and registers all application metrics under the given
// namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		TasksProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_tasks_processed_total",
			Help:      "Total number of successfully processed pipeline tasks",
		}, []string{"stage"}),
		TasksFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_tasks_failed_total",
			Help:      "Total number of pipeline tasks that exhausted their retries",
		}, []string{"stage"}),
		TaskRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_task_retry_attempts_total",
			Help:      "Total number of retry attempts per pipeline stage",
		}, []string{"stage"}),
		TaskDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_task_duration_seconds",
			Help:      "Time spent running pipeline tasks, external calls included",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
		ProviderCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_provider_calls_total",
			Help:      "Total number of external AI provider calls",
		}, []string{"provider", "status"}),
		ProviderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_provider_call_duration_seconds",
			Help:      "Duration of external AI provider calls",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"provider"}),
		DocumentsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clinical_documents_generated_total",
			Help:      "Total number of clinical documents persisted by the generation stage",
		}, []string{"document_type"}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}

// NewUnregistered builds the same metric set without registering it
// with the default registry. Used by tests that construct several
// runners in one process.
func NewUnregistered(namespace string) *Metrics {
	return &Metrics{
		TasksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_tasks_processed_total",
		}, []string{"stage"}),
		TasksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_tasks_failed_total",
		}, []string{"stage"}),
		TaskRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_task_retry_attempts_total",
		}, []string{"stage"}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_task_duration_seconds",
		}, []string{"stage"}),
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_provider_calls_total",
		}, []string{"provider", "status"}),
		ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_provider_call_duration_seconds",
		}, []string{"provider"}),
		DocumentsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clinical_documents_generated_total",
		}, []string{"document_type"}),
		DatabaseOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
		}, []string{"operation", "status"}),
	}
}
