package audit

import (
	"context"
	"errors"
	"strings"

	"github.com/reelads/ReelAds/app/models"
	"github.com/reelads/ReelAds/app/repository"
)

// Service records privileged mutations for accountability. Entries are
// written before success is returned by the mutation they describe.
type Service struct {
	repo repository.AuditLogRepository
}

// NewService creates an audit service from an injected repository.
func NewService(repo repository.AuditLogRepository) *Service {
	return &Service{repo: repo}
}

// Record persists one audit entry.
func (s *Service) Record(ctx context.Context, actorID uint, action, targetType string, targetID uint, description string) error {
	_ = ctx
	entry, err := NewEntry(actorID, action, targetType, targetID, description)
	if err != nil {
		return err
	}
	return s.repo.Create(entry)
}

// ListForTarget returns the newest entries for a given target.
func (s *Service) ListForTarget(ctx context.Context, targetType string, targetID uint, limit int) ([]models.AuditLogEntry, error) {
	_ = ctx
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListByTarget(targetType, targetID, limit)
}

// NewEntry validates and builds an audit entry without persisting it.
// Repositories that must write the entry inside their own transaction build
// it here first.
func NewEntry(actorID uint, action, targetType string, targetID uint, description string) (*models.AuditLogEntry, error) {
	if !validAction(action) {
		return nil, errors.New("unknown audit action: " + action)
	}
	if strings.TrimSpace(targetType) == "" || targetID == 0 {
		return nil, errors.New("audit target is required")
	}
	return &models.AuditLogEntry{
		ActorID:     actorID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Description: description,
	}, nil
}

func validAction(action string) bool {
	switch action {
	case models.AuditAccountPaused, models.AuditAccountUnpaused,
		models.AuditUnlimitedGranted, models.AuditUnlimitedRevoked,
		models.AuditLinkCreated, models.AuditLinkRevoked,
		models.AuditLedgerFrozen, models.AuditLedgerUnfrozen:
		return true
	default:
		return false
	}
}
