package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/reelads/ReelAds/app/models"
	"github.com/reelads/ReelAds/internal/pkg/mail"
	"gorm.io/gorm"
)

// Kind identifies a lifecycle notification. Each kind maps to one durable
// idempotency flag on the account row.
type Kind string

const (
	KindWelcome             Kind = "welcome"
	KindSubscriptionWelcome Kind = "subscription_welcome"
)

var (
	ErrUnknownKind     = errors.New("notification: unknown kind")
	ErrAccountNotFound = errors.New("notification: account not found")
)

// FlagStore claims the durable per-(account, kind) sent flag. ClaimFlag is
// an atomic check-and-set: it returns true for exactly one caller per flag,
// no matter how many race.
type FlagStore interface {
	ClaimFlag(accountID uint, kind Kind) (bool, error)
	AccountEmail(accountID uint) (string, error)
}

// Guard ensures each lifecycle email fires at most once per account. The
// database flag is the authoritative guard; the in-process map only
// short-circuits repeat calls from the same process and is never trusted on
// its own.
type Guard struct {
	store  FlagStore
	sender mail.Sender
	seen   sync.Map
}

// NewGuard creates a guard over the given flag store and mail sender.
func NewGuard(store FlagStore, sender mail.Sender) *Guard {
	return &Guard{store: store, sender: sender}
}

// NewGuardFromDB creates a guard with the GORM flag store and SMTP sender.
func NewGuardFromDB(db *gorm.DB) *Guard {
	return NewGuard(NewFlagStore(db), mail.SMTPSender{})
}

// EnsureSent delivers the notification exactly once per (account, kind).
// The returned sent=true means the notification has been sent, by this call
// or an earlier one. A send failure after a won claim is logged and not
// retried; at-most-once delivery wins over at-least-once here.
func (g *Guard) EnsureSent(ctx context.Context, accountID uint, kind Kind) (bool, error) {
	_ = ctx
	if kind != KindWelcome && kind != KindSubscriptionWelcome {
		return false, ErrUnknownKind
	}

	key := fmt.Sprintf("%d:%s", accountID, kind)
	if _, done := g.seen.Load(key); done {
		return true, nil
	}

	claimed, err := g.store.ClaimFlag(accountID, kind)
	if err != nil {
		return false, err
	}
	g.seen.Store(key, struct{}{})
	if !claimed {
		// Another caller won the claim; the notification is handled.
		return true, nil
	}

	email, err := g.store.AccountEmail(accountID)
	if err != nil {
		log.Printf("notification: flag claimed but email lookup failed for account %d: %v", accountID, err)
		return true, nil
	}
	subject, body := renderMail(kind)
	if err := g.sender.Send(email, subject, body); err != nil {
		log.Printf("notification: send failed for account %d kind %s: %v", accountID, kind, err)
	}
	return true, nil
}

type gormFlagStore struct {
	db *gorm.DB
}

// NewFlagStore creates the GORM-backed flag store.
func NewFlagStore(db *gorm.DB) FlagStore {
	return &gormFlagStore{db: db}
}

// ClaimFlag flips the flag with a conditional update. RowsAffected tells the
// winner apart from the losers; two concurrent callers can never both see an
// unclaimed flag.
func (s *gormFlagStore) ClaimFlag(accountID uint, kind Kind) (bool, error) {
	column := flagColumn(kind)
	res := s.db.Model(&models.Account{}).
		Where("id = ? AND "+column+" = ?", accountID, false).
		UpdateColumn(column, true)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	var acct models.Account
	if err := s.db.Select("id").First(&acct, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrAccountNotFound
		}
		return false, err
	}
	return false, nil
}

func (s *gormFlagStore) AccountEmail(accountID uint) (string, error) {
	var acct models.Account
	if err := s.db.Select("email").First(&acct, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrAccountNotFound
		}
		return "", err
	}
	return acct.Email, nil
}

func flagColumn(kind Kind) string {
	if kind == KindSubscriptionWelcome {
		return "subscription_email_sent"
	}
	return "welcome_email_sent"
}
