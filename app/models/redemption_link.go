package models

import (
	"time"
)

// Link kinds. Marketing links grant signup credits, invite links bypass the
// waitlist/paywall on top of the grant, promo codes are entered manually.
const (
	LinkKindMarketing = "marketing"
	LinkKindInvite    = "invite"
	LinkKindPromo     = "promo"
)

// RedemptionLink is a usage-limited, time-limited credit grant. CurrentUses
// only ever increases and is guarded against MaxUses by a conditional update
// at redemption time.
type RedemptionLink struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Token        string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"token"`
	Kind         string     `gorm:"type:varchar(20);not null;default:'marketing'" json:"kind"`
	CreditAmount int64      `gorm:"not null;default:0" json:"credit_amount"`
	MaxUses      *int64     `gorm:"default:null" json:"max_uses,omitempty"`
	CurrentUses  int64      `gorm:"not null;default:0" json:"current_uses"`
	Revoked      bool       `gorm:"default:false" json:"revoked"`
	ExpiresAt    *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	ClickCount   int64      `gorm:"not null;default:0" json:"click_count"`
	CreatedBy    uint       `gorm:"not null;index" json:"created_by"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ValidLinkKind reports whether the kind is a known enum value.
func ValidLinkKind(kind string) bool {
	switch kind {
	case LinkKindMarketing, LinkKindInvite, LinkKindPromo:
		return true
	default:
		return false
	}
}

// IsExpired reports whether the link has expired at the given instant.
func (l *RedemptionLink) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// IsExhausted reports whether every use slot is taken. The answer is only a
// snapshot; the redemption path re-checks inside a conditional update.
func (l *RedemptionLink) IsExhausted() bool {
	return l.MaxUses != nil && l.CurrentUses >= *l.MaxUses
}
