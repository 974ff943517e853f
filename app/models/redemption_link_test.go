package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidLinkKind(t *testing.T) {
	for _, kind := range []string{LinkKindMarketing, LinkKindInvite, LinkKindPromo} {
		assert.True(t, ValidLinkKind(kind), kind)
	}
	assert.False(t, ValidLinkKind("raffle"))
	assert.False(t, ValidLinkKind(""))
}

func TestRedemptionLinkIsExpired(t *testing.T) {
	now := time.Now()

	open := &RedemptionLink{}
	assert.False(t, open.IsExpired(now), "no expiry means never expired")

	future := now.Add(time.Hour)
	assert.False(t, (&RedemptionLink{ExpiresAt: &future}).IsExpired(now))

	past := now.Add(-time.Hour)
	assert.True(t, (&RedemptionLink{ExpiresAt: &past}).IsExpired(now))
}

func TestRedemptionLinkIsExhausted(t *testing.T) {
	unlimited := &RedemptionLink{CurrentUses: 1000}
	assert.False(t, unlimited.IsExhausted(), "no max means never exhausted")

	three := int64(3)
	assert.False(t, (&RedemptionLink{MaxUses: &three, CurrentUses: 2}).IsExhausted())
	assert.True(t, (&RedemptionLink{MaxUses: &three, CurrentUses: 3}).IsExhausted())
}
