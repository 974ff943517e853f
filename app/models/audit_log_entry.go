package models

import "time"

// Audit actions. Every privileged mutation writes exactly one entry.
const (
	AuditAccountPaused    = "account_paused"
	AuditAccountUnpaused  = "account_unpaused"
	AuditUnlimitedGranted = "unlimited_granted"
	AuditUnlimitedRevoked = "unlimited_revoked"
	AuditLinkCreated      = "link_created"
	AuditLinkRevoked      = "link_revoked"
	AuditLedgerFrozen     = "ledger_frozen"
	AuditLedgerUnfrozen   = "ledger_unfrozen"
)

// Audit target types.
const (
	AuditTargetAccount = "account"
	AuditTargetLink    = "redemption_link"
)

// AuditLogEntry is an append-only record of a privileged mutation.
type AuditLogEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ActorID     uint      `gorm:"not null;index" json:"actor_id"`
	Action      string    `gorm:"type:varchar(32);not null;index" json:"action"`
	TargetType  string    `gorm:"type:varchar(32);not null" json:"target_type"`
	TargetID    uint      `gorm:"not null;index" json:"target_id"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
