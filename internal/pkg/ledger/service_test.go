package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/reelads/ReelAds/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepository mirrors the conditional-update contract of the GORM
// repository: the balance guard and the log append happen under one lock.
type memRepository struct {
	mu       sync.Mutex
	balances map[uint]int64
	frozen   map[uint]bool
	log      map[uint][]models.LedgerTransaction
	entries  []*models.AuditLogEntry
}

func newMemRepository(accounts ...uint) *memRepository {
	r := &memRepository{
		balances: make(map[uint]int64),
		frozen:   make(map[uint]bool),
		log:      make(map[uint][]models.LedgerTransaction),
	}
	for _, id := range accounts {
		r.balances[id] = 0
	}
	return r
}

func (r *memRepository) ApplyTransaction(accountID uint, amount int64, reason, metadataJSON string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	balance, ok := r.balances[accountID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	if amount < 0 {
		if r.frozen[accountID] {
			return 0, ErrLedgerFrozen
		}
		if balance+amount < 0 {
			return 0, ErrInsufficientFunds
		}
	}
	balance += amount
	r.balances[accountID] = balance
	r.log[accountID] = append(r.log[accountID], models.LedgerTransaction{
		AccountID:    accountID,
		Amount:       amount,
		Reason:       reason,
		MetadataJSON: metadataJSON,
		BalanceAfter: balance,
	})
	return balance, nil
}

func (r *memRepository) GetBalance(accountID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	balance, ok := r.balances[accountID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	return balance, nil
}

func (r *memRepository) SumTransactions(accountID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, tx := range r.log[accountID] {
		sum += tx.Amount
	}
	return sum, nil
}

func (r *memRepository) SetFrozen(accountID uint, frozen bool, entry *models.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.balances[accountID]; !ok {
		return ErrAccountNotFound
	}
	if r.frozen[accountID] == frozen {
		return nil
	}
	r.frozen[accountID] = frozen
	if entry != nil {
		r.entries = append(r.entries, entry)
	}
	return nil
}

func (r *memRepository) IsFrozen(accountID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.balances[accountID]; !ok {
		return false, ErrAccountNotFound
	}
	return r.frozen[accountID], nil
}

// tamper corrupts the cached balance without touching the log.
func (r *memRepository) tamper(accountID uint, balance int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[accountID] = balance
}

func TestApplyTransactionValidation(t *testing.T) {
	svc := NewService(newMemRepository(1))
	ctx := context.Background()

	tests := []struct {
		name      string
		accountID uint
		amount    int64
		reason    string
		meta      *models.TransactionMetadata
		wantErr   error
	}{
		{name: "missing account id", accountID: 0, amount: 10, reason: models.ReasonSignupGrant, wantErr: ErrAccountNotFound},
		{name: "zero amount", accountID: 1, amount: 0, reason: models.ReasonSignupGrant, wantErr: ErrInvalidAmount},
		{name: "unknown reason", accountID: 1, amount: 10, reason: "lottery_win", wantErr: ErrInvalidReason},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ApplyTransaction(ctx, tt.accountID, tt.amount, tt.reason, tt.meta)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestApplyTransactionMetadataRequired(t *testing.T) {
	svc := NewService(newMemRepository(1))
	ctx := context.Background()

	// Link grants must carry the token, debits the job id.
	_, err := svc.ApplyTransaction(ctx, 1, 20, models.ReasonMarketingGrant, &models.TransactionMetadata{})
	assert.Error(t, err)

	_, err = svc.ApplyTransaction(ctx, 1, 20, models.ReasonMarketingGrant, &models.TransactionMetadata{LinkToken: "launch2026"})
	assert.NoError(t, err)

	_, err = svc.ApplyTransaction(ctx, 1, -1, models.ReasonGenerationDebit, &models.TransactionMetadata{})
	assert.Error(t, err)

	// A nil meta does not sidestep the per-reason contract.
	_, err = svc.ApplyTransaction(ctx, 1, -1, models.ReasonGenerationDebit, nil)
	assert.Error(t, err)

	_, err = svc.ApplyTransaction(ctx, 1, 5, models.ReasonAdminAdjustment, nil)
	assert.Error(t, err)
}

func TestSignupGrantThenSpendDown(t *testing.T) {
	repo := newMemRepository(1)
	svc := NewService(repo)
	ctx := context.Background()

	balance, err := svc.ApplyTransaction(ctx, 1, 70, models.ReasonSignupGrant, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(70), balance)

	for i := 0; i < 70; i++ {
		balance, err = svc.ApplyTransaction(ctx, 1, -1, models.ReasonGenerationDebit,
			&models.TransactionMetadata{JobID: "job-spend"})
		require.NoError(t, err)
	}
	assert.Equal(t, int64(0), balance)

	_, err = svc.ApplyTransaction(ctx, 1, -1, models.ReasonGenerationDebit,
		&models.TransactionMetadata{JobID: "job-overdraft"})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// The failed debit left no trace in the log.
	sum, err := repo.SumTransactions(1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	repo := newMemRepository(1)
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.ApplyTransaction(ctx, 1, 5, models.ReasonSignupGrant, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ApplyTransaction(ctx, 1, -1, models.ReasonGenerationDebit,
				&models.TransactionMetadata{JobID: "job-race"})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrInsufficientFunds)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	balance, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestFrozenLedgerBlocksDebitsOnly(t *testing.T) {
	repo := newMemRepository(1)
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.ApplyTransaction(ctx, 1, 10, models.ReasonSignupGrant, nil)
	require.NoError(t, err)
	require.NoError(t, repo.SetFrozen(1, true, nil))

	_, err = svc.ApplyTransaction(ctx, 1, -1, models.ReasonGenerationDebit,
		&models.TransactionMetadata{JobID: "job-frozen"})
	assert.ErrorIs(t, err, ErrLedgerFrozen)

	// Credits still land; freezing blocks spending, not receiving.
	balance, err := svc.ApplyTransaction(ctx, 1, 5, models.ReasonAdminAdjustment,
		&models.TransactionMetadata{AdminID: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(15), balance)
}

func TestReconcileMatch(t *testing.T) {
	repo := newMemRepository(1)
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.ApplyTransaction(ctx, 1, 70, models.ReasonSignupGrant, nil)
	require.NoError(t, err)
	_, err = svc.ApplyTransaction(ctx, 1, -20, models.ReasonGenerationDebit,
		&models.TransactionMetadata{JobID: "job-1"})
	require.NoError(t, err)

	balance, err := svc.Reconcile(ctx, 9, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	frozen, err := repo.IsFrozen(1)
	require.NoError(t, err)
	assert.False(t, frozen)
}

func TestReconcileMismatchFreezes(t *testing.T) {
	repo := newMemRepository(1)
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.ApplyTransaction(ctx, 1, 70, models.ReasonSignupGrant, nil)
	require.NoError(t, err)
	repo.tamper(1, 120)

	_, err = svc.Reconcile(ctx, 9, 1)
	assert.ErrorIs(t, err, ErrIntegrityViolation)

	frozen, err := repo.IsFrozen(1)
	require.NoError(t, err)
	assert.True(t, frozen)

	// The freeze is audited, never silently repaired.
	require.Len(t, repo.entries, 1)
	assert.Equal(t, models.AuditLedgerFrozen, repo.entries[0].Action)
	assert.Equal(t, int64(120), mustBalance(t, svc, 1), "cached balance must stay untouched")
}

func TestUnfreeze(t *testing.T) {
	repo := newMemRepository(1)
	svc := NewService(repo)
	ctx := context.Background()

	require.NoError(t, repo.SetFrozen(1, true, nil))
	require.NoError(t, svc.Unfreeze(ctx, 9, 1))

	frozen, err := repo.IsFrozen(1)
	require.NoError(t, err)
	assert.False(t, frozen)
	require.Len(t, repo.entries, 1)
	assert.Equal(t, models.AuditLedgerUnfrozen, repo.entries[0].Action)
}

func mustBalance(t *testing.T, svc *Service, accountID uint) int64 {
	t.Helper()
	balance, err := svc.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	return balance
}
