package ledger

import (
	"context"
	"fmt"
	"log"

	"github.com/reelads/ReelAds/app/models"
	"github.com/reelads/ReelAds/internal/pkg/audit"
	"gorm.io/gorm"
)

// Service is the ledger store: an append-only transaction log plus a
// materialized per-account balance. The balance is a cache over the log;
// Reconcile is the integrity oracle between the two.
type Service struct {
	repo Repository
}

// NewService creates a ledger service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a ledger service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// ApplyTransaction credits or debits an account and appends the ledger row in
// the same atomic unit. It returns the new balance. A debit that would make
// the balance negative returns ErrInsufficientFunds and leaves the account
// untouched; credits always succeed.
func (s *Service) ApplyTransaction(ctx context.Context, accountID uint, amount int64, reason string, meta *models.TransactionMetadata) (int64, error) {
	_ = ctx
	if accountID == 0 {
		return 0, ErrAccountNotFound
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	if !models.ValidReason(reason) {
		return 0, ErrInvalidReason
	}
	if meta == nil {
		// A zero-value metadata still has to satisfy the per-reason
		// contract; reasons that require fields reject a nil meta.
		meta = &models.TransactionMetadata{}
	}
	if err := meta.ValidateFor(reason); err != nil {
		return 0, err
	}
	metadataJSON, err := meta.Encode()
	if err != nil {
		return 0, err
	}

	return s.repo.ApplyTransaction(accountID, amount, reason, metadataJSON)
}

// GetBalance reads the cached balance.
func (s *Service) GetBalance(ctx context.Context, accountID uint) (int64, error) {
	_ = ctx
	return s.repo.GetBalance(accountID)
}

// Reconcile replays the transaction log and compares it against the cached
// balance. A mismatch freezes the account ledger, records an audit entry and
// returns ErrIntegrityViolation; it is never silently repaired.
func (s *Service) Reconcile(ctx context.Context, actorID, accountID uint) (int64, error) {
	_ = ctx
	balance, err := s.repo.GetBalance(accountID)
	if err != nil {
		return 0, err
	}
	sum, err := s.repo.SumTransactions(accountID)
	if err != nil {
		return 0, err
	}
	if sum == balance {
		return balance, nil
	}

	log.Printf("ledger integrity violation for account %d: cached=%d replayed=%d", accountID, balance, sum)
	desc := fmt.Sprintf("reconcile mismatch: cached balance %d, replayed sum %d", balance, sum)
	entry, entryErr := audit.NewEntry(actorID, models.AuditLedgerFrozen, models.AuditTargetAccount, accountID, desc)
	if entryErr != nil {
		return balance, entryErr
	}
	if freezeErr := s.repo.SetFrozen(accountID, true, entry); freezeErr != nil {
		return balance, freezeErr
	}
	return balance, ErrIntegrityViolation
}

// Unfreeze clears a reconciliation freeze. Operator action, audited.
func (s *Service) Unfreeze(ctx context.Context, actorID, accountID uint) error {
	_ = ctx
	entry, err := audit.NewEntry(actorID, models.AuditLedgerUnfrozen, models.AuditTargetAccount, accountID, "ledger freeze cleared by operator")
	if err != nil {
		return err
	}
	return s.repo.SetFrozen(accountID, false, entry)
}
