package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ROLE_USER  = "user"
	ROLE_ADMIN = "admin"
)

// Account is the identity-scoped entitlement record. The Credits field is the
// authoritative spendable balance; FreeCredits and PaidCredits are advisory
// provenance counters and are not required to sum to Credits.
type Account struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	UUID                  string         `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	ExternalID            string         `gorm:"type:varchar(191);uniqueIndex" json:"-" validate:"required,max=191"`
	Email                 string         `gorm:"type:varchar(200);index" json:"email" validate:"required,email,min=5,max=200"`
	Role                  string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Credits               int64          `gorm:"not null;default:0" json:"credits"`
	FreeCredits           int64          `gorm:"not null;default:0" json:"free_credits"`
	PaidCredits           int64          `gorm:"not null;default:0" json:"paid_credits"`
	HasUnlimitedAccess    bool           `gorm:"default:false" json:"has_unlimited_access"`
	UnlimitedGrantedAt    *time.Time     `gorm:"type:timestamp;default:null" json:"unlimited_granted_at,omitempty"`
	UnlimitedGrantedBy    uint           `gorm:"default:0" json:"unlimited_granted_by,omitempty"`
	Paused                bool           `gorm:"default:false" json:"paused"`
	LedgerFrozen          bool           `gorm:"default:false" json:"ledger_frozen"`
	WelcomeEmailSent      bool           `gorm:"default:false" json:"-"`
	SubscriptionEmailSent bool           `gorm:"default:false" json:"-"`
	OnboardingCompleted   bool           `gorm:"default:false" json:"onboarding_completed"`
	APIKeyHash            string         `gorm:"type:varchar(64);index;default:''" json:"-"`
	APIKeyPrefix          string         `gorm:"type:varchar(20);default:''" json:"api_key_prefix,omitempty"`
	APIKeyCreatedAt       *time.Time     `gorm:"type:timestamp;default:null" json:"-"`
	LastSeenAt            *time.Time     `gorm:"type:timestamp;default:null" json:"last_seen_at,omitempty"`
	CreatedAt             time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`
}

func (a *Account) Validate() error {
	v := validator.New()

	return v.Struct(a)
}

// NewAccount builds an unsaved account for a first-time identity event.
func NewAccount(externalID string, email string) (*Account, error) {
	a := &Account{
		UUID:       uuid.NewString(),
		ExternalID: strings.TrimSpace(externalID),
		Email:      strings.TrimSpace(email),
		Role:       ROLE_USER,
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}

	return a, nil
}

// IsAdmin reports whether the account may call the admin endpoints.
func (a *Account) IsAdmin() bool {
	return a.Role == ROLE_ADMIN
}

// IssueAPIKey generates a new API key, stores its hash on the struct and
// returns the raw secret. The raw key is never persisted.
func (a *Account) IssueAPIKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	raw := "ra_" + hex.EncodeToString(b)
	now := time.Now()
	a.APIKeyHash = HashAPIKey(raw)
	a.APIKeyPrefix = raw[:10]
	a.APIKeyCreatedAt = &now
	return raw, nil
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

// HasActiveAPIKey reports whether an API key is currently issued.
func (a *Account) HasActiveAPIKey() bool {
	return a.APIKeyHash != ""
}
