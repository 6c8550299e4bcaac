package model

import (
	"time"
)

// ============================================================================
// Movement types
// ============================================================================

const (
	MovementTypeDeposit     = "DEPOSIT"
	MovementTypeWithdrawal  = "WITHDRAWAL"
	MovementTypeTransferOut = "TRANSFER_OUT"
	MovementTypeTransferIn  = "TRANSFER_IN"
)

// ============================================================================
// Movement
// ============================================================================

// Movement is one balance change on one account. Rows are append-only:
//  1. inserted in the same transaction that changes the balance
//  2. never updated or deleted
//  3. a transfer writes two rows, each pointing at the other
//
// ID comes from the snowflake generator and doubles as the receipt number.
// Seq numbers the account's movements 1, 2, 3... in commit order; it is
// taken from the account row while that row is locked, so it orders history
// correctly whichever node wrote the movement.
type Movement struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	AccountNumber       string    `gorm:"type:varchar(32);uniqueIndex:idx_movement_account_seq,priority:1;not null" json:"account_number"`
	Seq                 int64     `gorm:"not null;uniqueIndex:idx_movement_account_seq,priority:2" json:"-"`
	Type                string    `gorm:"type:varchar(16);not null" json:"type"`
	Amount              int64     `gorm:"not null" json:"amount"` // always positive, direction is in Type
	BalanceAfter        int64     `gorm:"not null" json:"-"`
	CounterpartyAccount string    `gorm:"type:varchar(32)" json:"counterparty_account,omitempty"`
	RelatedMovementID   int64     `gorm:"index" json:"related_movement_id,string,omitempty"`
	Description         string    `gorm:"type:varchar(128)" json:"description"`
	CreatedAt           time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
}

func (Movement) TableName() string {
	return "movement"
}
