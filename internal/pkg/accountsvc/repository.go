package accountsvc

import (
	"errors"
	"strings"
	"time"

	"github.com/reelads/ReelAds/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrAccountNotFound = errors.New("accountsvc: account not found")

// Repository provides the store operations for account lifecycle and admin
// flag mutations. Flag mutations write their audit entry in the same
// transaction as the flag itself.
type Repository interface {
	// GetOrCreateByExternalID returns the account for the identity-provider
	// subject, creating it exactly once under concurrent sign-ins. The bool
	// reports whether this call created the row. When the call creates the
	// row and grant is non-nil, the grant is applied to the balance and its
	// ledger row appended in the same transaction, so an account never
	// exists without its signup credits.
	GetOrCreateByExternalID(account *models.Account, grant *models.LedgerTransaction) (*models.Account, bool, error)
	GetByID(id uint) (*models.Account, error)
	GetByUUID(uuid string) (*models.Account, error)
	SetPaused(accountID uint, paused bool, entry *models.AuditLogEntry) error
	SetUnlimited(accountID uint, grant bool, grantedBy uint, entry *models.AuditLogEntry) error
	SaveAPIKey(accountID uint, hash, prefix string, createdAt time.Time) error
	CompleteOnboarding(accountID uint) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an account repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetOrCreateByExternalID(account *models.Account, grant *models.LedgerTransaction) (*models.Account, bool, error) {
	if strings.TrimSpace(account.ExternalID) == "" {
		return nil, false, errors.New("accountsvc: external id is required")
	}

	var stored models.Account
	created := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoNothing: true,
		}).Create(account)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected > 0

		if created && grant != nil && grant.Amount > 0 {
			if err := tx.Model(&models.Account{}).
				Where("id = ?", account.ID).
				Updates(map[string]interface{}{
					"credits":      gorm.Expr("credits + ?", grant.Amount),
					"free_credits": gorm.Expr("free_credits + ?", grant.Amount),
				}).Error; err != nil {
				return err
			}
			grant.AccountID = account.ID
			// A fresh account starts at zero, so the balance after the
			// grant is the grant itself.
			grant.BalanceAfter = grant.Amount
			if err := tx.Create(grant).Error; err != nil {
				return err
			}
		}

		return tx.Where("external_id = ?", account.ExternalID).First(&stored).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &stored, created, nil
}

func (r *gormRepository) GetByID(id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) GetByUUID(uuid string) (*models.Account, error) {
	var account models.Account
	if err := r.db.Where("uuid = ?", uuid).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) SetPaused(accountID uint, paused bool, entry *models.AuditLogEntry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Account{}).
			Where("id = ? AND paused <> ?", accountID, paused).
			UpdateColumn("paused", paused)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return r.checkExists(tx, accountID)
		}
		if entry != nil {
			return tx.Create(entry).Error
		}
		return nil
	})
}

func (r *gormRepository) SetUnlimited(accountID uint, grant bool, grantedBy uint, entry *models.AuditLogEntry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"has_unlimited_access": grant,
		}
		if grant {
			updates["unlimited_granted_at"] = time.Now()
			updates["unlimited_granted_by"] = grantedBy
		} else {
			updates["unlimited_granted_at"] = nil
			updates["unlimited_granted_by"] = 0
		}
		res := tx.Model(&models.Account{}).
			Where("id = ? AND has_unlimited_access <> ?", accountID, grant).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return r.checkExists(tx, accountID)
		}
		if entry != nil {
			return tx.Create(entry).Error
		}
		return nil
	})
}

func (r *gormRepository) SaveAPIKey(accountID uint, hash, prefix string, createdAt time.Time) error {
	res := r.db.Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"api_key_hash":       hash,
			"api_key_prefix":     prefix,
			"api_key_created_at": createdAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.checkExists(r.db, accountID)
	}
	return nil
}

func (r *gormRepository) CompleteOnboarding(accountID uint) error {
	res := r.db.Model(&models.Account{}).
		Where("id = ? AND onboarding_completed = ?", accountID, false).
		UpdateColumn("onboarding_completed", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.checkExists(r.db, accountID)
	}
	return nil
}

// checkExists maps "no rows changed" to either no-op or missing account.
func (r *gormRepository) checkExists(tx *gorm.DB, accountID uint) error {
	var acct models.Account
	if err := tx.Select("id").First(&acct, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	return nil
}
