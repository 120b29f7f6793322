package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/consult-api/internal/model"
	"github.com/jwalitptl/consult-api/internal/repository"
	"github.com/jwalitptl/consult-api/pkg/logger"
)

type Service struct {
	repo   repository.AuditRepository
	logger *logger.Logger
}

func NewService(repo repository.AuditRepository, logger *logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

type LogOptions struct {
	Changes   interface{}
	IPAddress string
	UserAgent string
}

// Log creates an audit log entry. Failures are reported, not returned:
// an audit write must never fail the operation it records.
func (s *Service) Log(ctx context.Context, userID uuid.UUID, action, entityType string, entityID uuid.UUID, opts *LogOptions) {
	var changes json.RawMessage
	var ipAddress, userAgent string

	if opts != nil {
		if opts.Changes != nil {
			data, err := json.Marshal(opts.Changes)
			if err != nil {
				s.logger.Error(err, "Failed to marshal audit changes",
					"action", action,
					"entity_id", entityID.String())
			} else {
				changes = data
			}
		}
		ipAddress = opts.IPAddress
		userAgent = opts.UserAgent
	}

	log := &model.AuditLog{
		ID:         uuid.New(),
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Changes:    changes,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		CreatedAt:  time.Now(),
	}

	if err := s.repo.Create(ctx, log); err != nil {
		s.logger.Error(err, "Failed to write audit log",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID.String())
	}
}

func (s *Service) List(ctx context.Context, entityType string, entityID uuid.UUID) ([]*model.AuditLog, error) {
	return s.repo.List(ctx, entityType, entityID)
}

// Cleanup removes entries older than the retention cutoff.
func (s *Service) Cleanup(ctx context.Context, before time.Time) error {
	return s.repo.DeleteBefore(ctx, before)
}
