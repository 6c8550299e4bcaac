package model

import (
	"time"
)

const (
	AccountStatusActive  = "ACTIVE"
	AccountStatusBlocked = "BLOCKED"
)

// Account is one customer account. Balance is in minor units and never
// negative; Status only moves from ACTIVE to BLOCKED.
type Account struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	AccountNumber string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"account_number"`
	OwnerName     string    `gorm:"type:varchar(128);not null" json:"owner_name"`
	PinHash       string    `gorm:"type:varchar(100);not null" json:"-"`
	Balance       int64     `gorm:"not null;default:0" json:"balance"`
	Status        string    `gorm:"type:varchar(16);not null;default:ACTIVE" json:"status"`
	BlockReason   string    `gorm:"type:varchar(255)" json:"block_reason,omitempty"`
	Version       int       `gorm:"not null;default:0" json:"-"` // bumped on every balance/pin/status write
	MovementSeq   int64     `gorm:"not null;default:0" json:"-"` // seq of the account's latest movement
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

func (a *Account) IsBlocked() bool {
	return a.Status == AccountStatusBlocked
}
