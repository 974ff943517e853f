package ledger

import (
	"errors"

	"github.com/reelads/ReelAds/app/models"
	"gorm.io/gorm"
)

// Repository provides the atomic store operations used by the ledger service.
type Repository interface {
	// ApplyTransaction updates the cached balance and appends the ledger row
	// in one atomic unit, returning the new balance. Debits are rejected with
	// ErrInsufficientFunds when they would drive the balance negative and
	// with ErrLedgerFrozen when the account ledger is frozen.
	ApplyTransaction(accountID uint, amount int64, reason, metadataJSON string) (int64, error)
	GetBalance(accountID uint) (int64, error)
	SumTransactions(accountID uint) (int64, error)
	SetFrozen(accountID uint, frozen bool, entry *models.AuditLogEntry) error
	IsFrozen(accountID uint) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a ledger repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ApplyTransaction(accountID uint, amount int64, reason, metadataJSON string) (int64, error) {
	var newBalance int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"credits": gorm.Expr("credits + ?", amount),
		}
		// Provenance counters are advisory; only grants move them.
		if amount > 0 {
			switch reason {
			case models.ReasonSignupGrant, models.ReasonMarketingGrant, models.ReasonPromoRedemption:
				updates["free_credits"] = gorm.Expr("free_credits + ?", amount)
			case models.ReasonAdminAdjustment:
				updates["paid_credits"] = gorm.Expr("paid_credits + ?", amount)
			}
		}

		query := tx.Model(&models.Account{}).Where("id = ?", accountID)
		if amount < 0 {
			// The guard and the increment are one statement so that two
			// concurrent debits can never both consume the last credit.
			query = query.Where("credits + ? >= 0 AND ledger_frozen = ?", amount, false)
		}
		res := query.Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var acct models.Account
			if err := tx.Select("id", "ledger_frozen").First(&acct, accountID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrAccountNotFound
				}
				return err
			}
			if acct.LedgerFrozen {
				return ErrLedgerFrozen
			}
			return ErrInsufficientFunds
		}

		var acct models.Account
		if err := tx.Select("credits").First(&acct, accountID).Error; err != nil {
			return err
		}
		newBalance = acct.Credits

		return tx.Create(&models.LedgerTransaction{
			AccountID:    accountID,
			Amount:       amount,
			Reason:       reason,
			MetadataJSON: metadataJSON,
			BalanceAfter: newBalance,
		}).Error
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *gormRepository) GetBalance(accountID uint) (int64, error) {
	var acct models.Account
	err := r.db.Select("credits").First(&acct, accountID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return acct.Credits, nil
}

func (r *gormRepository) SumTransactions(accountID uint) (int64, error) {
	var sum int64
	err := r.db.Model(&models.LedgerTransaction{}).
		Where("account_id = ?", accountID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

func (r *gormRepository) SetFrozen(accountID uint, frozen bool, entry *models.AuditLogEntry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Account{}).
			Where("id = ? AND ledger_frozen <> ?", accountID, frozen).
			UpdateColumn("ledger_frozen", frozen)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already in the requested state, or no such account. No state
			// change means no audit entry either.
			var acct models.Account
			if err := tx.Select("id").First(&acct, accountID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrAccountNotFound
				}
				return err
			}
			return nil
		}
		if entry != nil {
			return tx.Create(entry).Error
		}
		return nil
	})
}

func (r *gormRepository) IsFrozen(accountID uint) (bool, error) {
	var acct models.Account
	err := r.db.Select("ledger_frozen").First(&acct, accountID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrAccountNotFound
		}
		return false, err
	}
	return acct.LedgerFrozen, nil
}
