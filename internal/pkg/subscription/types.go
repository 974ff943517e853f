package subscription

import (
	"context"
	"errors"
	"time"
)

// Snapshot status values. Unknown means the entitlement could not be
// determined; callers must never treat Unknown as "not subscribed" when
// making destructive decisions.
const (
	StatusUnknown       = "unknown"
	StatusSubscribed    = "subscribed"
	StatusNotSubscribed = "not_subscribed"
)

// ErrExternalLookup is returned when the billing provider could not be
// reached and no cached snapshot was fresh enough to fall back on.
var ErrExternalLookup = errors.New("subscription: entitlement lookup failed")

// Snapshot is a cached, TTL'd view of the external billing entitlement.
type Snapshot struct {
	AccountID       uint       `json:"account_id"`
	Status          string     `json:"status"`
	ProductID       string     `json:"product_id,omitempty"`
	SubscriptionEnd *time.Time `json:"subscription_end,omitempty"`
	FetchedAt       time.Time  `json:"fetched_at"`
}

// Subscribed reports whether the snapshot positively confirms an active
// subscription. Unknown snapshots report false here and must be treated as
// inconclusive, not as unsubscribed.
func (s *Snapshot) Subscribed() bool {
	return s != nil && s.Status == StatusSubscribed
}

// Age returns how old the snapshot is at the given instant.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// Entitlement is the provider-neutral shape returned by the external billing
// lookup.
type Entitlement struct {
	Subscribed bool
	ProductID  string
	PeriodEnd  *time.Time
}

// Provider is the external billing entitlement lookup. Implementations must
// honor the context deadline.
type Provider interface {
	GetEntitlement(ctx context.Context, accountID uint) (*Entitlement, error)
}
