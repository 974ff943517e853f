package subscription

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/reelads/ReelAds/internal/pkg/cache"
)

const (
	// DefaultTTL matches the refresh interval: a snapshot is trusted for one
	// refresh period.
	DefaultTTL = 60 * time.Second
	// DefaultGrace is how long a stale snapshot may still serve as fallback
	// when the provider is unreachable.
	DefaultGrace = 5 * time.Minute
	// DefaultLookupTimeout bounds a single provider call.
	DefaultLookupTimeout = 10 * time.Second
)

// Store persists snapshots. The Redis store is the production backing;
// tests use an in-memory one.
type Store interface {
	// Load returns the stored snapshot or nil when none exists.
	Load(accountID uint) (*Snapshot, error)
	Save(snap *Snapshot, retention time.Duration) error
	Delete(accountID uint) error
}

type redisStore struct{}

// NewRedisStore returns a snapshot store backed by the shared cache server.
func NewRedisStore() Store {
	return redisStore{}
}

func snapshotKey(accountID uint) string {
	return fmt.Sprintf("subscription:snapshot:%d", accountID)
}

func (redisStore) Load(accountID uint) (*Snapshot, error) {
	var snap Snapshot
	if err := cache.GetJSON(snapshotKey(accountID), &snap); err != nil {
		if cache.IsMiss(err) {
			return nil, nil
		}
		return nil, err
	}
	return &snap, nil
}

func (redisStore) Save(snap *Snapshot, retention time.Duration) error {
	return cache.SetJSON(snapshotKey(snap.AccountID), snap, retention)
}

func (redisStore) Delete(accountID uint) error {
	return cache.Delete(snapshotKey(accountID))
}

// Cache exposes a TTL'd view of the external billing entitlement. A failed
// provider call falls back to the previous snapshot while it is inside the
// grace window; after that the status degrades to unknown, never to
// "not subscribed".
type Cache struct {
	provider Provider
	store    Store
	ttl      time.Duration
	grace    time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// Options tune the cache; zero values fall back to the defaults above.
type Options struct {
	Store         Store
	TTL           time.Duration
	Grace         time.Duration
	LookupTimeout time.Duration
	Now           func() time.Time
}

// NewCache creates a snapshot cache for the given provider.
func NewCache(provider Provider, opts Options) *Cache {
	c := &Cache{
		provider: provider,
		store:    opts.Store,
		ttl:      opts.TTL,
		grace:    opts.Grace,
		timeout:  opts.LookupTimeout,
		now:      opts.Now,
	}
	if c.store == nil {
		c.store = NewRedisStore()
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.grace <= 0 {
		c.grace = DefaultGrace
	}
	if c.timeout <= 0 {
		c.timeout = DefaultLookupTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Refresh calls the external entitlement lookup and stores the result. On
// lookup failure it returns the previous snapshot if that is still within
// the grace window, otherwise an unknown snapshot together with the error.
func (c *Cache) Refresh(ctx context.Context, accountID uint) (*Snapshot, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	now := c.now()
	ent, err := c.provider.GetEntitlement(lookupCtx, accountID)
	if err == nil {
		snap := &Snapshot{
			AccountID:       accountID,
			Status:          StatusNotSubscribed,
			ProductID:       ent.ProductID,
			SubscriptionEnd: ent.PeriodEnd,
			FetchedAt:       now,
		}
		if ent.Subscribed {
			snap.Status = StatusSubscribed
		}
		if saveErr := c.store.Save(snap, c.ttl+c.grace); saveErr != nil {
			log.Printf("subscription: failed to store snapshot for account %d: %v", accountID, saveErr)
		}
		return snap, nil
	}

	prev, loadErr := c.store.Load(accountID)
	if loadErr == nil && prev != nil && prev.Age(now) <= c.ttl+c.grace {
		log.Printf("subscription: lookup failed for account %d, serving cached snapshot: %v", accountID, err)
		return prev, nil
	}

	return &Snapshot{
		AccountID: accountID,
		Status:    StatusUnknown,
		FetchedAt: now,
	}, fmt.Errorf("%w: %v", ErrExternalLookup, err)
}

// Get returns the cached snapshot or nil when none exists. Snapshots older
// than the TTL are degraded to unknown status rather than trusted.
func (c *Cache) Get(accountID uint) *Snapshot {
	snap, err := c.store.Load(accountID)
	if err != nil {
		log.Printf("subscription: snapshot load failed for account %d: %v", accountID, err)
		return nil
	}
	if snap == nil {
		return nil
	}
	if snap.Age(c.now()) > c.ttl {
		degraded := *snap
		degraded.Status = StatusUnknown
		return &degraded
	}
	return snap
}

// Peek returns the stored snapshot without staleness degradation. The
// refresher uses it for edge detection against the previous state.
func (c *Cache) Peek(accountID uint) *Snapshot {
	snap, err := c.store.Load(accountID)
	if err != nil {
		return nil
	}
	return snap
}

// Forget drops the stored snapshot for an account.
func (c *Cache) Forget(accountID uint) {
	if err := c.store.Delete(accountID); err != nil && !cache.IsMiss(err) {
		log.Printf("subscription: failed to drop snapshot for account %d: %v", accountID, err)
	}
}
