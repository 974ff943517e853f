package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Ledger transaction reasons. Every row carries exactly one.
const (
	ReasonSignupGrant     = "signup_grant"
	ReasonMarketingGrant  = "marketing_link_grant"
	ReasonPromoRedemption = "promo_redemption"
	ReasonGenerationDebit = "generation_debit"
	ReasonAdminAdjustment = "admin_adjustment"
)

// LedgerTransaction is one append-only entry of the credit ledger. Rows are
// never updated or deleted; the account's Credits field is a cache over the
// sum of its rows.
type LedgerTransaction struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AccountID    uint      `gorm:"not null;index" json:"account_id"`
	Amount       int64     `gorm:"not null" json:"amount"`
	Reason       string    `gorm:"type:varchar(32);not null;index" json:"reason"`
	MetadataJSON string    `gorm:"type:text" json:"metadata_json,omitempty"`
	BalanceAfter int64     `gorm:"not null" json:"balance_after"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ValidReason reports whether the reason is a known enum value.
func ValidReason(reason string) bool {
	switch reason {
	case ReasonSignupGrant, ReasonMarketingGrant, ReasonPromoRedemption,
		ReasonGenerationDebit, ReasonAdminAdjustment:
		return true
	default:
		return false
	}
}

// TransactionMetadata is the tagged metadata attached to a ledger row. Which
// fields are meaningful depends on the reason; ValidateFor enforces that at
// the boundary so the stored JSON stays queryable.
type TransactionMetadata struct {
	LinkToken   string `json:"link_token,omitempty"`
	JobID       string `json:"job_id,omitempty"`
	AdminID     uint   `json:"admin_id,omitempty"`
	Note        string `json:"note,omitempty"`
	ReferrerURL string `json:"referrer_url,omitempty"`
}

// ValidateFor checks the metadata against the reason it is recorded under.
func (m *TransactionMetadata) ValidateFor(reason string) error {
	switch reason {
	case ReasonMarketingGrant, ReasonPromoRedemption:
		if strings.TrimSpace(m.LinkToken) == "" {
			return fmt.Errorf("metadata for %s requires link_token", reason)
		}
	case ReasonGenerationDebit:
		if strings.TrimSpace(m.JobID) == "" {
			return fmt.Errorf("metadata for %s requires job_id", reason)
		}
	case ReasonAdminAdjustment:
		if m.AdminID == 0 {
			return fmt.Errorf("metadata for %s requires admin_id", reason)
		}
	}
	return nil
}

// Encode serializes the metadata for storage. Empty metadata encodes to "".
func (m *TransactionMetadata) Encode() (string, error) {
	if m == nil || *m == (TransactionMetadata{}) {
		return "", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
