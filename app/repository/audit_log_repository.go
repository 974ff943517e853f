package repository

import (
	"github.com/reelads/ReelAds/app/models"
	"gorm.io/gorm"
)

// auditLogRepository implements the AuditLogRepository interface
type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository creates a new audit log repository instance
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

// Create appends an audit entry. Entries are never updated or deleted.
func (r *auditLogRepository) Create(entry *models.AuditLogEntry) error {
	return r.db.Create(entry).Error
}

// ListByTarget returns the most recent entries for a target, newest first.
func (r *auditLogRepository) ListByTarget(targetType string, targetID uint, limit int) ([]models.AuditLogEntry, error) {
	var entries []models.AuditLogEntry
	err := r.db.Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("id DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

// ListByActor returns the most recent entries recorded by an actor, newest first.
func (r *auditLogRepository) ListByActor(actorID uint, limit int) ([]models.AuditLogEntry, error) {
	var entries []models.AuditLogEntry
	err := r.db.Where("actor_id = ?", actorID).
		Order("id DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
