package repository

import (
	"strings"
	"time"

	"github.com/reelads/ReelAds/app/models"
	"gorm.io/gorm"
)

// accountRepository implements the AccountRepository interface
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository instance
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

// Create creates a new account in the database
func (r *accountRepository) Create(account *models.Account) error {
	return r.db.Create(account).Error
}

// GetByID retrieves an account by its ID
func (r *accountRepository) GetByID(id uint) (*models.Account, error) {
	var account models.Account
	err := r.db.First(&account, id).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByUUID retrieves an account by its public UUID
func (r *accountRepository) GetByUUID(uuid string) (*models.Account, error) {
	var account models.Account
	err := r.db.Where("uuid = ?", uuid).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByExternalID retrieves an account by the identity provider subject
func (r *accountRepository) GetByExternalID(externalID string) (*models.Account, error) {
	var account models.Account
	err := r.db.Where("external_id = ?", externalID).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByAPIKeyHash resolves an active API key hash to its account.
func (r *accountRepository) GetByAPIKeyHash(hash string) (*models.Account, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var account models.Account
	err := r.db.Where("api_key_hash = ? AND api_key_hash <> ''", trimmed).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Update updates an existing account in the database
func (r *accountRepository) Update(account *models.Account) error {
	return r.db.Save(account).Error
}

// TouchLastSeen refreshes the last-seen timestamp best-effort.
func (r *accountRepository) TouchLastSeen(id uint) error {
	now := time.Now()
	return r.db.Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_seen_at": now}).Error
}

// List retrieves a paginated list of accounts
func (r *accountRepository) List(offset, limit int) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.Offset(offset).Limit(limit).Order("id ASC").Find(&accounts).Error
	return accounts, err
}

// Count returns the total number of accounts
func (r *accountRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Account{}).Count(&count).Error
	return count, err
}
