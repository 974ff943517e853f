package accountsvc

import (
	"context"
	"log"
	"time"

	"github.com/reelads/ReelAds/app/models"
	"github.com/reelads/ReelAds/internal/pkg/audit"
	"github.com/reelads/ReelAds/internal/pkg/entitlements"
	"github.com/reelads/ReelAds/internal/pkg/env"
	"github.com/reelads/ReelAds/internal/pkg/notification"
	"github.com/reelads/ReelAds/internal/pkg/subscription"
	"gorm.io/gorm"
)

// DefaultSignupCredits is the starter grant for a plain (non-link) signup.
const DefaultSignupCredits = 70

// IdentityEvent is what the external identity provider yields on
// sign-in/sign-up.
type IdentityEvent struct {
	ExternalID string
	Email      string
	IssuedAt   time.Time
}

// Service orchestrates account lifecycle around the ledger, the notification
// guard, the subscription cache and the audit trail.
type Service struct {
	repo          Repository
	guard         *notification.Guard
	subs          *subscription.Cache
	signupCredits int64
}

// NewService wires an account service.
func NewService(repo Repository, guard *notification.Guard, subs *subscription.Cache) *Service {
	return &Service{
		repo:          repo,
		guard:         guard,
		subs:          subs,
		signupCredits: int64(env.GetEnvInt("SIGNUP_CREDITS", DefaultSignupCredits)),
	}
}

// NewServiceFromDB wires an account service with all GORM-backed parts.
func NewServiceFromDB(db *gorm.DB, subs *subscription.Cache) *Service {
	return NewService(NewRepository(db), notification.NewGuardFromDB(db), subs)
}

// HandleIdentityEvent processes a sign-in/sign-up from the identity
// provider. The account is created exactly once; the signup grant lands in
// the same transaction as the creation, so a failed grant rolls the account
// back and the next event retries the whole bootstrap. Repeated or
// concurrent events for the same subject settle on the same account with
// one grant and one email.
func (s *Service) HandleIdentityEvent(ctx context.Context, ev IdentityEvent) (*models.Account, bool, error) {
	fresh, err := models.NewAccount(ev.ExternalID, ev.Email)
	if err != nil {
		return nil, false, err
	}

	var grant *models.LedgerTransaction
	if s.signupCredits > 0 {
		grant = &models.LedgerTransaction{Amount: s.signupCredits, Reason: models.ReasonSignupGrant}
	}
	account, created, err := s.repo.GetOrCreateByExternalID(fresh, grant)
	if err != nil {
		return nil, false, err
	}

	if created {
		if _, err := s.guard.EnsureSent(ctx, account.ID, notification.KindWelcome); err != nil {
			log.Printf("accountsvc: welcome notification failed for account %d: %v", account.ID, err)
		}
	}

	return account, created, nil
}

// EvaluateAccess loads the account and the cached subscription snapshot and
// runs the access evaluator.
func (s *Service) EvaluateAccess(ctx context.Context, accountID uint) (entitlements.Verdict, *models.Account, error) {
	_ = ctx
	account, err := s.repo.GetByID(accountID)
	if err != nil {
		return "", nil, err
	}
	snap := s.subs.Get(accountID)
	return entitlements.Evaluate(entitlements.FromAccount(account), snap), account, nil
}

// SetPaused toggles the account pause flag. Admin-only; audited in the same
// transaction as the flag change.
func (s *Service) SetPaused(ctx context.Context, adminID, accountID uint, paused bool) error {
	_ = ctx
	action := models.AuditAccountUnpaused
	desc := "account unpaused"
	if paused {
		action = models.AuditAccountPaused
		desc = "account paused"
	}
	entry, err := audit.NewEntry(adminID, action, models.AuditTargetAccount, accountID, desc)
	if err != nil {
		return err
	}
	return s.repo.SetPaused(accountID, paused, entry)
}

// GrantUnlimitedAccess grants or revokes the unlimited-access override.
// Admin-only; audited in the same transaction as the flag change.
func (s *Service) GrantUnlimitedAccess(ctx context.Context, adminID, accountID uint, grant bool) error {
	_ = ctx
	action := models.AuditUnlimitedRevoked
	desc := "unlimited access revoked"
	if grant {
		action = models.AuditUnlimitedGranted
		desc = "unlimited access granted"
	}
	entry, err := audit.NewEntry(adminID, action, models.AuditTargetAccount, accountID, desc)
	if err != nil {
		return err
	}
	return s.repo.SetUnlimited(accountID, grant, adminID, entry)
}

// IssueAPIKey mints a fresh API key for the account and stores only its
// hash. The raw key is returned once and cannot be recovered later.
func (s *Service) IssueAPIKey(ctx context.Context, accountID uint) (string, error) {
	_ = ctx
	account, err := s.repo.GetByID(accountID)
	if err != nil {
		return "", err
	}
	raw, err := account.IssueAPIKey()
	if err != nil {
		return "", err
	}
	if err := s.repo.SaveAPIKey(account.ID, account.APIKeyHash, account.APIKeyPrefix, *account.APIKeyCreatedAt); err != nil {
		return "", err
	}
	return raw, nil
}

// CompleteOnboarding marks the onboarding flow finished.
func (s *Service) CompleteOnboarding(ctx context.Context, accountID uint) error {
	_ = ctx
	return s.repo.CompleteOnboarding(accountID)
}

// GetByUUID resolves a public account handle.
func (s *Service) GetByUUID(ctx context.Context, uuid string) (*models.Account, error) {
	_ = ctx
	return s.repo.GetByUUID(uuid)
}
