package models

import "time"

// RedemptionUsage records one successful redemption. The unique (link,
// account) index is what turns a same-account replay into a constraint
// violation instead of a double grant.
type RedemptionUsage struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	LinkID       uint      `gorm:"not null;index:ux_redemption_usages_link_account,unique,priority:1" json:"link_id"`
	AccountID    uint      `gorm:"not null;index:ux_redemption_usages_link_account,unique,priority:2" json:"account_id"`
	CreditAmount int64     `gorm:"not null;default:0" json:"credit_amount"`
	ReferrerURL  string    `gorm:"type:varchar(255);default:''" json:"referrer_url,omitempty"`
	DeviceInfo   string    `gorm:"type:varchar(255);default:''" json:"device_info,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}
