package redemption

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/reelads/ReelAds/app/models"
	"github.com/reelads/ReelAds/internal/pkg/audit"
	"github.com/reelads/ReelAds/internal/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLinkRepo mirrors the transactional contract of the GORM repository:
// the usage insert, the slot increment and the credit grant succeed or fail
// as one unit.
type memLinkRepo struct {
	mu        sync.Mutex
	nextID    uint
	byToken   map[string]*models.RedemptionLink
	byID      map[uint]*models.RedemptionLink
	usages    map[[2]uint]models.RedemptionUsage
	entries   []*models.AuditLogEntry
	balances  map[uint]int64
	grants    []*models.LedgerTransaction
	failGrant bool
}

func newMemLinkRepo(accounts ...uint) *memLinkRepo {
	r := &memLinkRepo{
		nextID:   1,
		byToken:  make(map[string]*models.RedemptionLink),
		byID:     make(map[uint]*models.RedemptionLink),
		usages:   make(map[[2]uint]models.RedemptionUsage),
		balances: make(map[uint]int64),
	}
	for _, id := range accounts {
		r.balances[id] = 0
	}
	return r
}

func (r *memLinkRepo) GetLinkByToken(token string) (*models.RedemptionLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.byToken[token]
	if !ok {
		return nil, ErrLinkNotFound
	}
	cp := *link
	return &cp, nil
}

func (r *memLinkRepo) CreateLink(link *models.RedemptionLink, actorID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	link.ID = r.nextID
	r.nextID++
	cp := *link
	r.byToken[link.Token] = &cp
	r.byID[link.ID] = &cp
	if actorID == 0 {
		return nil
	}
	entry, err := audit.NewEntry(actorID, models.AuditLinkCreated, models.AuditTargetLink, link.ID, "link created")
	if err != nil {
		return err
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memLinkRepo) RevokeLink(linkID uint, entry *models.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.byID[linkID]
	if !ok {
		return ErrLinkNotFound
	}
	if link.Revoked {
		return ErrLinkRevoked
	}
	link.Revoked = true
	if entry != nil {
		r.entries = append(r.entries, entry)
	}
	return nil
}

func (r *memLinkRepo) ConsumeSlot(link *models.RedemptionLink, accountID uint, attr Attribution, now time.Time, grant *models.LedgerTransaction) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[link.ID]
	if !ok {
		return 0, ErrLinkNotFound
	}
	key := [2]uint{link.ID, accountID}
	if _, dup := r.usages[key]; dup {
		return 0, ErrAlreadyRedeemed
	}
	switch {
	case cur.Revoked:
		return 0, ErrLinkRevoked
	case cur.IsExpired(now):
		return 0, ErrLinkExpired
	case cur.IsExhausted():
		return 0, ErrLinkExhausted
	}

	var newBalance int64
	if grant != nil {
		// Nothing below may commit if the grant cannot; the real
		// repository rolls the whole transaction back.
		if r.failGrant {
			r.failGrant = false
			return 0, errors.New("ledger append failed")
		}
		balance, ok := r.balances[accountID]
		if !ok {
			return 0, ledger.ErrAccountNotFound
		}
		newBalance = balance + grant.Amount
		r.balances[accountID] = newBalance
		g := *grant
		g.AccountID = accountID
		g.BalanceAfter = newBalance
		r.grants = append(r.grants, &g)
	}

	cur.CurrentUses++
	r.usages[key] = models.RedemptionUsage{
		LinkID:       link.ID,
		AccountID:    accountID,
		CreditAmount: link.CreditAmount,
		ReferrerURL:  attr.ReferrerURL,
		DeviceInfo:   attr.DeviceInfo,
	}
	return newBalance, nil
}

func (r *memLinkRepo) ListLinks(offset, limit int) ([]models.RedemptionLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var links []models.RedemptionLink
	for _, l := range r.byID {
		links = append(links, *l)
	}
	return links, nil
}

func (r *memLinkRepo) ListUsages(linkID uint, limit int) ([]models.RedemptionUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var usages []models.RedemptionUsage
	for key, u := range r.usages {
		if key[0] == linkID {
			usages = append(usages, u)
		}
	}
	return usages, nil
}

func (r *memLinkRepo) AddClicks(increments map[uint]int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for linkID, delta := range increments {
		if link, ok := r.byID[linkID]; ok {
			link.ClickCount += delta
		}
	}
	return nil
}

func (r *memLinkRepo) currentUses(linkID uint) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[linkID].CurrentUses
}

func (r *memLinkRepo) grantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.grants)
}

func (r *memLinkRepo) balance(accountID uint) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[accountID]
}

func seedLink(t *testing.T, repo *memLinkRepo, link models.RedemptionLink) *models.RedemptionLink {
	t.Helper()
	require.NoError(t, repo.CreateLink(&link, 0))
	return &link
}

func TestRedeemGrantsCredits(t *testing.T) {
	repo := newMemLinkRepo(1)
	svc := NewService(repo)

	seedLink(t, repo, models.RedemptionLink{Token: "launch2026", Kind: models.LinkKindMarketing, CreditAmount: 25})

	grant, err := svc.Redeem(context.Background(), "launch2026", 1, Attribution{ReferrerURL: "https://x.com/ad"})
	require.NoError(t, err)
	assert.Equal(t, int64(25), grant.Amount)
	assert.Equal(t, int64(25), grant.NewBalance)
	assert.Equal(t, models.LinkKindMarketing, grant.LinkKind)
	assert.Equal(t, int64(1), repo.currentUses(1))

	require.Equal(t, 1, repo.grantCount())
	assert.Equal(t, models.ReasonMarketingGrant, repo.grants[0].Reason)
	assert.Equal(t, int64(25), repo.grants[0].BalanceAfter)
}

func TestRedeemZeroCreditInvite(t *testing.T) {
	repo := newMemLinkRepo(1)
	svc := NewService(repo)

	seedLink(t, repo, models.RedemptionLink{Token: "friend-invite", Kind: models.LinkKindInvite})

	grant, err := svc.Redeem(context.Background(), "friend-invite", 1, Attribution{})
	require.NoError(t, err)
	assert.Zero(t, grant.Amount)
	assert.Zero(t, repo.grantCount(), "zero-credit links must not touch the ledger")
	assert.Equal(t, int64(1), repo.currentUses(1), "the slot is still consumed")
}

func TestRedeemUnknownToken(t *testing.T) {
	svc := NewService(newMemLinkRepo(1))
	_, err := svc.Redeem(context.Background(), "no-such-token", 1, Attribution{})
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestRedeemExpiredFailsFast(t *testing.T) {
	repo := newMemLinkRepo(1)
	svc := NewService(repo)

	past := time.Now().Add(-time.Hour)
	seedLink(t, repo, models.RedemptionLink{Token: "old-promo", Kind: models.LinkKindPromo, CreditAmount: 10, ExpiresAt: &past})

	_, err := svc.Redeem(context.Background(), "old-promo", 1, Attribution{})
	assert.ErrorIs(t, err, ErrLinkExpired)
	assert.Zero(t, repo.currentUses(1))
}

func TestRedeemRevokedFailsFast(t *testing.T) {
	repo := newMemLinkRepo(1)
	svc := NewService(repo)

	seedLink(t, repo, models.RedemptionLink{Token: "pulled", Kind: models.LinkKindMarketing, CreditAmount: 10, Revoked: true})

	_, err := svc.Redeem(context.Background(), "pulled", 1, Attribution{})
	assert.ErrorIs(t, err, ErrLinkRevoked)
	assert.Zero(t, repo.currentUses(1))
}

func TestRedeemSameAccountTwice(t *testing.T) {
	repo := newMemLinkRepo(1)
	svc := NewService(repo)

	seedLink(t, repo, models.RedemptionLink{Token: "launch2026", Kind: models.LinkKindMarketing, CreditAmount: 25})

	_, err := svc.Redeem(context.Background(), "launch2026", 1, Attribution{})
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), "launch2026", 1, Attribution{})
	assert.ErrorIs(t, err, ErrAlreadyRedeemed)

	assert.Equal(t, 1, repo.grantCount(), "the replay must not grant twice")
	assert.Equal(t, int64(1), repo.currentUses(1))
}

func TestRedeemFailedGrantRollsBack(t *testing.T) {
	repo := newMemLinkRepo(1)
	svc := NewService(repo)

	seedLink(t, repo, models.RedemptionLink{Token: "launch2026", Kind: models.LinkKindMarketing, CreditAmount: 25})

	repo.failGrant = true
	_, err := svc.Redeem(context.Background(), "launch2026", 1, Attribution{})
	require.Error(t, err)

	// The failed grant must not strand the slot or the usage row; the
	// account retries and gets its credits.
	assert.Zero(t, repo.currentUses(1))
	usages, err := repo.ListUsages(1, 100)
	require.NoError(t, err)
	assert.Empty(t, usages)
	assert.Zero(t, repo.balance(1))

	grant, err := svc.Redeem(context.Background(), "launch2026", 1, Attribution{})
	require.NoError(t, err)
	assert.Equal(t, int64(25), grant.NewBalance)
	assert.Equal(t, int64(1), repo.currentUses(1))
	assert.Equal(t, 1, repo.grantCount())
}

func TestRedeemLastSlotUnderConcurrency(t *testing.T) {
	accounts := make([]uint, 20)
	for i := range accounts {
		accounts[i] = uint(i + 1)
	}
	repo := newMemLinkRepo(accounts...)
	svc := NewService(repo)

	one := int64(1)
	seedLink(t, repo, models.RedemptionLink{Token: "one-shot", Kind: models.LinkKindPromo, CreditAmount: 50, MaxUses: &one})

	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for _, accountID := range accounts {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := svc.Redeem(context.Background(), "one-shot", id, Attribution{})
			if err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrLinkExhausted)
			}
		}(accountID)
	}
	wg.Wait()

	assert.Equal(t, 1, won, "exactly one caller may take the last slot")
	assert.Equal(t, int64(1), repo.currentUses(1))
	assert.Equal(t, 1, repo.grantCount())

	usages, err := repo.ListUsages(1, 100)
	require.NoError(t, err)
	assert.Len(t, usages, 1, "slots and usage rows stay one-to-one")
}

func TestCreateLink(t *testing.T) {
	repo := newMemLinkRepo()
	svc := NewService(repo)

	five := int64(5)
	link, err := svc.CreateLink(context.Background(), 9, LinkSpec{
		Kind:         models.LinkKindMarketing,
		CreditAmount: 30,
		MaxUses:      &five,
	})
	require.NoError(t, err)
	assert.Len(t, link.Token, tokenLength)
	assert.Equal(t, uint(9), link.CreatedBy)

	require.Len(t, repo.entries, 1)
	assert.Equal(t, models.AuditLinkCreated, repo.entries[0].Action)
	assert.Equal(t, uint(9), repo.entries[0].ActorID)
	assert.Equal(t, link.ID, repo.entries[0].TargetID)
}

func TestCreateLinkValidation(t *testing.T) {
	svc := NewService(newMemLinkRepo())
	ctx := context.Background()

	zero := int64(0)
	past := time.Now().Add(-time.Minute)

	tests := []struct {
		name string
		spec LinkSpec
	}{
		{name: "unknown kind", spec: LinkSpec{Kind: "raffle", CreditAmount: 10}},
		{name: "negative credits", spec: LinkSpec{Kind: models.LinkKindPromo, CreditAmount: -1}},
		{name: "non-positive max uses", spec: LinkSpec{Kind: models.LinkKindPromo, CreditAmount: 10, MaxUses: &zero}},
		{name: "expiry in the past", spec: LinkSpec{Kind: models.LinkKindPromo, CreditAmount: 10, ExpiresAt: &past}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateLink(ctx, 9, tt.spec)
			assert.ErrorIs(t, err, ErrInvalidLink)
		})
	}
}

func TestRevokeLinkIdempotence(t *testing.T) {
	repo := newMemLinkRepo()
	svc := NewService(repo)

	seedLink(t, repo, models.RedemptionLink{Token: "pull-me", Kind: models.LinkKindMarketing})

	require.NoError(t, svc.RevokeLink(context.Background(), 9, "pull-me"))
	assert.ErrorIs(t, svc.RevokeLink(context.Background(), 9, "pull-me"), ErrLinkRevoked)

	// Only the first revocation is audited.
	require.Len(t, repo.entries, 1)
	assert.Equal(t, models.AuditLinkRevoked, repo.entries[0].Action)
}
