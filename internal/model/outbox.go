package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxMessage is a movement event waiting to be published. It is written in
// the same transaction as the movement it describes.
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"` // account number, keeps per-account order in a partition
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	LastError  string    `gorm:"type:varchar(255)" json:"last_error,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// MovementEvent is the payload published for every committed movement.
type MovementEvent struct {
	MovementID          int64     `json:"movement_id,string"`
	AccountNumber       string    `json:"account_number"`
	Type                string    `json:"type"`
	Amount              int64     `json:"amount"`
	BalanceAfter        int64     `json:"balance_after"`
	CounterpartyAccount string    `json:"counterparty_account,omitempty"`
	OccurredAt          time.Time `json:"occurred_at"`
}
