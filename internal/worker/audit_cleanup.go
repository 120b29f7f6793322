package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/consult-api/internal/service/audit"
	"github.com/jwalitptl/consult-api/pkg/logger"
)

// AuditCleanupWorker prunes audit logs past the retention window on a
// fixed interval.
type AuditCleanupWorker struct {
	auditor         *audit.Service
	retentionDays   int
	cleanupInterval time.Duration
	logger          *logger.Logger
}

func NewAuditCleanupWorker(auditor *audit.Service, retentionDays int, cleanupInterval time.Duration, logger *logger.Logger) *AuditCleanupWorker {
	return &AuditCleanupWorker{
		auditor:         auditor,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		logger:          logger,
	}
}

func (w *AuditCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -w.retentionDays)
			if err := w.auditor.Cleanup(ctx, cutoff); err != nil {
				w.logger.Error(err, "Audit log cleanup failed")
				continue
			}
			w.logger.Info("Audit logs cleaned up", "cutoff", cutoff.Format(time.RFC3339))
		}
	}
}
