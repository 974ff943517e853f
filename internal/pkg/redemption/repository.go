package redemption

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/reelads/ReelAds/app/models"
	"github.com/reelads/ReelAds/internal/pkg/audit"
	"github.com/reelads/ReelAds/internal/pkg/ledger"
	"gorm.io/gorm"
)

// Attribution is the optional analytics context on a redemption.
type Attribution struct {
	ReferrerURL string
	DeviceInfo  string
}

// Repository provides the store operations behind the coordinator. The
// ConsumeSlot contract is the heart of it: the check-and-increment of
// current_uses, the usage-row insert and the credit grant happen in one
// atomic unit, so a failed step leaves no slot consumed, no usage row and
// no credit behind.
type Repository interface {
	GetLinkByToken(token string) (*models.RedemptionLink, error)
	// CreateLink inserts the link and, when actorID is non-zero, writes the
	// audit entry with the freshly assigned link ID in the same transaction.
	CreateLink(link *models.RedemptionLink, actorID uint) error
	RevokeLink(linkID uint, entry *models.AuditLogEntry) error
	// ConsumeSlot takes one use of the link for the account. A non-nil grant
	// is applied to the account balance and appended to the ledger inside
	// the same transaction; the returned balance is the balance after the
	// grant, or zero when grant is nil.
	ConsumeSlot(link *models.RedemptionLink, accountID uint, attr Attribution, now time.Time, grant *models.LedgerTransaction) (int64, error)
	ListLinks(offset, limit int) ([]models.RedemptionLink, error)
	ListUsages(linkID uint, limit int) ([]models.RedemptionUsage, error)
	AddClicks(increments map[uint]int64) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a redemption repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetLinkByToken(token string) (*models.RedemptionLink, error) {
	var link models.RedemptionLink
	err := r.db.Where("token = ?", token).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *gormRepository) CreateLink(link *models.RedemptionLink, actorID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(link).Error; err != nil {
			return err
		}
		if actorID == 0 {
			return nil
		}
		desc := fmt.Sprintf("%s link %s created, %d credits", link.Kind, link.Token, link.CreditAmount)
		entry, err := audit.NewEntry(actorID, models.AuditLinkCreated, models.AuditTargetLink, link.ID, desc)
		if err != nil {
			return err
		}
		return tx.Create(entry).Error
	})
}

func (r *gormRepository) RevokeLink(linkID uint, entry *models.AuditLogEntry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.RedemptionLink{}).
			Where("id = ? AND revoked = ?", linkID, false).
			UpdateColumn("revoked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var link models.RedemptionLink
			if err := tx.Select("id").First(&link, linkID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrLinkNotFound
				}
				return err
			}
			return ErrLinkRevoked
		}
		if entry != nil {
			return tx.Create(entry).Error
		}
		return nil
	})
}

// ConsumeSlot writes the usage row, performs the conditional
// check-and-increment and applies the credit grant in one transaction. The
// unique (link, account) index turns a same-account replay into
// ErrAlreadyRedeemed; any failed step rolls the whole redemption back so
// slots, usage rows and ledger rows stay one-to-one.
func (r *gormRepository) ConsumeSlot(link *models.RedemptionLink, accountID uint, attr Attribution, now time.Time, grant *models.LedgerTransaction) (int64, error) {
	var newBalance int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		usage := models.RedemptionUsage{
			LinkID:       link.ID,
			AccountID:    accountID,
			CreditAmount: link.CreditAmount,
			ReferrerURL:  attr.ReferrerURL,
			DeviceInfo:   attr.DeviceInfo,
		}
		if err := tx.Create(&usage).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrAlreadyRedeemed
			}
			return err
		}

		res := tx.Model(&models.RedemptionLink{}).
			Where("id = ? AND revoked = ? AND (max_uses IS NULL OR current_uses < max_uses) AND (expires_at IS NULL OR expires_at > ?)",
				link.ID, false, now).
			UpdateColumn("current_uses", gorm.Expr("current_uses + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Re-read inside the transaction to report the precise cause;
			// returning an error rolls the usage row back.
			var cur models.RedemptionLink
			if err := tx.First(&cur, link.ID).Error; err != nil {
				return err
			}
			switch {
			case cur.Revoked:
				return ErrLinkRevoked
			case cur.IsExpired(now):
				return ErrLinkExpired
			default:
				return ErrLinkExhausted
			}
		}

		if grant == nil {
			return nil
		}
		credit := tx.Model(&models.Account{}).
			Where("id = ?", accountID).
			Updates(map[string]interface{}{
				"credits":      gorm.Expr("credits + ?", grant.Amount),
				"free_credits": gorm.Expr("free_credits + ?", grant.Amount),
			})
		if credit.Error != nil {
			return credit.Error
		}
		if credit.RowsAffected == 0 {
			return ledger.ErrAccountNotFound
		}
		var acct models.Account
		if err := tx.Select("credits").First(&acct, accountID).Error; err != nil {
			return err
		}
		grant.AccountID = accountID
		grant.BalanceAfter = acct.Credits
		newBalance = acct.Credits
		return tx.Create(grant).Error
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *gormRepository) ListLinks(offset, limit int) ([]models.RedemptionLink, error) {
	var links []models.RedemptionLink
	err := r.db.Offset(offset).Limit(limit).Order("id DESC").Find(&links).Error
	return links, err
}

func (r *gormRepository) ListUsages(linkID uint, limit int) ([]models.RedemptionUsage, error) {
	var usages []models.RedemptionUsage
	err := r.db.Where("link_id = ?", linkID).Order("id DESC").Limit(limit).Find(&usages).Error
	return usages, err
}

// AddClicks applies drained click increments as one batched UPDATE with a
// CASE expression. Click tracking is analytics, not entitlement; callers may
// lose increments without harm.
func (r *gormRepository) AddClicks(increments map[uint]int64) error {
	type pair struct {
		id  uint
		inc int64
	}
	pairs := make([]pair, 0, len(increments))
	for id, inc := range increments {
		if inc == 0 {
			continue
		}
		pairs = append(pairs, pair{id: id, inc: inc})
	}
	if len(pairs) == 0 {
		return nil
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })

	// UPDATE redemption_links SET click_count = click_count + CASE id WHEN ? THEN ? ... END WHERE id IN ( ... )
	var builder strings.Builder
	args := make([]interface{}, 0, len(pairs)*3)
	builder.WriteString("UPDATE redemption_links SET click_count = click_count + CASE id ")
	for _, p := range pairs {
		builder.WriteString(" WHEN ? THEN ?")
		args = append(args, p.id, p.inc)
	}
	builder.WriteString(" END WHERE id IN (")
	for i, p := range pairs {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString("?")
		args = append(args, p.id)
	}
	builder.WriteString(")")

	return r.db.Exec(builder.String(), args...).Error
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// MySQL error 1062 without the error translator enabled.
	return err != nil && strings.Contains(err.Error(), "Duplicate entry")
}
