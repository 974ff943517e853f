package subscription

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultRefreshInterval is how often an active account's entitlement is
// re-fetched from the billing provider.
const DefaultRefreshInterval = 60 * time.Second

// Refresher runs one background refresh loop per active account. Loops stop
// when the account is marked inactive or the parent context is cancelled.
// The OnSubscribed hook fires on the rising edge only: the previous snapshot
// positively reported not-subscribed and the new one reports subscribed.
// An unknown previous state is not an edge.
type Refresher struct {
	cache        *Cache
	interval     time.Duration
	OnSubscribed func(accountID uint)

	mu     sync.Mutex
	active map[uint]context.CancelFunc
	wg     sync.WaitGroup
}

// NewRefresher creates a refresher over the given cache. Interval <= 0 uses
// the default.
func NewRefresher(cache *Cache, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		cache:    cache,
		interval: interval,
		active:   make(map[uint]context.CancelFunc),
	}
}

// Start begins the refresh loop for an account. Starting an already-active
// account is a no-op.
func (r *Refresher) Start(ctx context.Context, accountID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[accountID]; ok {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	r.active[accountID] = cancel
	r.wg.Add(1)
	go r.loop(loopCtx, accountID)
}

// Stop cancels the refresh loop for an account.
func (r *Refresher) Stop(accountID uint) {
	r.mu.Lock()
	cancel, ok := r.active[accountID]
	if ok {
		delete(r.active, accountID)
	}
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

// StopAll cancels every loop and waits for them to exit.
func (r *Refresher) StopAll() {
	r.mu.Lock()
	for id, cancel := range r.active {
		cancel()
		delete(r.active, id)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Refresher) loop(ctx context.Context, accountID uint) {
	defer r.wg.Done()

	// First refresh immediately so a fresh sign-in does not wait a full
	// interval for its entitlement.
	r.refreshOnce(ctx, accountID)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshOnce(ctx, accountID)
		}
	}
}

func (r *Refresher) refreshOnce(ctx context.Context, accountID uint) {
	prev := r.cache.Peek(accountID)
	snap, err := r.cache.Refresh(ctx, accountID)
	if err != nil {
		log.Printf("subscription: refresh failed for account %d: %v", accountID, err)
		return
	}
	if r.OnSubscribed != nil &&
		prev != nil && prev.Status == StatusNotSubscribed &&
		snap.Subscribed() {
		r.OnSubscribed(accountID)
	}
}
