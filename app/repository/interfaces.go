package repository

import (
	"github.com/reelads/ReelAds/app/models"
)

// AccountRepository defines the interface for account-related database operations
type AccountRepository interface {
	Create(account *models.Account) error
	GetByID(id uint) (*models.Account, error)
	GetByUUID(uuid string) (*models.Account, error)
	GetByExternalID(externalID string) (*models.Account, error)
	GetByAPIKeyHash(hash string) (*models.Account, error)
	Update(account *models.Account) error
	TouchLastSeen(id uint) error
	List(offset, limit int) ([]models.Account, error)
	Count() (int64, error)
}

// AuditLogRepository defines the interface for audit log persistence
type AuditLogRepository interface {
	Create(entry *models.AuditLogEntry) error
	ListByTarget(targetType string, targetID uint, limit int) ([]models.AuditLogEntry, error)
	ListByActor(actorID uint, limit int) ([]models.AuditLogEntry, error)
}

// Repositories holds all repository instances
type Repositories struct {
	Account  AccountRepository
	AuditLog AuditLogRepository
}
