package subscription

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshOnceFiresOnRisingEdge(t *testing.T) {
	provider := &fakeProvider{ent: &Entitlement{Subscribed: false}}
	c, _ := newTestCache(provider, nil)
	r := NewRefresher(c, time.Minute)

	var mu sync.Mutex
	var fired []uint
	r.OnSubscribed = func(accountID uint) {
		mu.Lock()
		fired = append(fired, accountID)
		mu.Unlock()
	}

	ctx := context.Background()

	// First refresh establishes not-subscribed; no edge yet.
	r.refreshOnce(ctx, 7)
	assert.Empty(t, fired)

	// Still not subscribed; no edge.
	r.refreshOnce(ctx, 7)
	assert.Empty(t, fired)

	// Subscription appears: rising edge.
	provider.set(&Entitlement{Subscribed: true}, nil)
	r.refreshOnce(ctx, 7)
	require.Equal(t, []uint{7}, fired)

	// Staying subscribed is not another edge.
	r.refreshOnce(ctx, 7)
	assert.Equal(t, []uint{7}, fired)
}

func TestRefreshOnceNoEdgeWithoutPriorSnapshot(t *testing.T) {
	provider := &fakeProvider{ent: &Entitlement{Subscribed: true}}
	c, _ := newTestCache(provider, nil)
	r := NewRefresher(c, time.Minute)

	fired := 0
	r.OnSubscribed = func(uint) { fired++ }

	// No previous snapshot: subscribed on first sight is not an edge.
	r.refreshOnce(context.Background(), 7)
	assert.Zero(t, fired)
}

func TestRefreshOnceUnknownIsNotAnEdge(t *testing.T) {
	now := time.Now()
	provider := &fakeProvider{ent: &Entitlement{Subscribed: false}}
	c, store := newTestCache(provider, func() time.Time { return now })
	r := NewRefresher(c, time.Minute)

	fired := 0
	r.OnSubscribed = func(uint) { fired++ }

	// Seed an unknown snapshot, as left behind by a degraded lookup.
	require.NoError(t, store.Save(&Snapshot{AccountID: 7, Status: StatusUnknown, FetchedAt: now}, time.Minute))

	provider.set(&Entitlement{Subscribed: true}, nil)
	r.refreshOnce(context.Background(), 7)
	assert.Zero(t, fired, "unknown -> subscribed must not fire the hook")
}

func TestStartIsIdempotentPerAccount(t *testing.T) {
	provider := &fakeProvider{ent: &Entitlement{Subscribed: false}}
	c, _ := newTestCache(provider, nil)
	r := NewRefresher(c, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.Start(ctx, 7)
	r.Start(ctx, 7)
	r.Start(ctx, 7)

	r.mu.Lock()
	active := len(r.active)
	r.mu.Unlock()
	assert.Equal(t, 1, active)

	r.Stop(7)
	r.mu.Lock()
	active = len(r.active)
	r.mu.Unlock()
	assert.Zero(t, active)

	r.StopAll()
}

func TestStopAllWaitsForLoops(t *testing.T) {
	provider := &fakeProvider{ent: &Entitlement{Subscribed: false}}
	c, _ := newTestCache(provider, nil)
	r := NewRefresher(c, time.Hour)

	ctx := context.Background()
	for id := uint(1); id <= 5; id++ {
		r.Start(ctx, id)
	}
	r.StopAll()

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Empty(t, r.active)
}
