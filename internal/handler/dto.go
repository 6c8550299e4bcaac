package handler

import (
	"time"

	"atmledger/internal/model"
	"atmledger/pkg/money"
)

// ============================================================
// Requests
// ============================================================

type LoginRequest struct {
	AccountNumber string `json:"account_number" binding:"required"`
	Pin           string `json:"pin" binding:"required"`
}

// DepositRequest carries the amount in major units, e.g. 1000.50.
type DepositRequest struct {
	Amount money.Amount `json:"amount"`
}

type WithdrawRequest struct {
	Amount money.Amount `json:"amount"`
	Pin    string       `json:"pin" binding:"required"`
}

type TransferRequest struct {
	OriginAccount      string       `json:"origin_account" binding:"required"`
	DestinationAccount string       `json:"destination_account" binding:"required"`
	Amount             money.Amount `json:"amount"`
	Pin                string       `json:"pin" binding:"required"`
}

type ChangePinRequest struct {
	CurrentPin string `json:"current_pin" binding:"required"`
	NewPin     string `json:"new_pin"`
}

type BlockRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

// ============================================================
// Responses
// ============================================================

type AccountSummary struct {
	AccountNumber string       `json:"account_number"`
	OwnerName     string       `json:"owner_name"`
	Balance       money.Amount `json:"balance"`
	Status        string       `json:"status"`
	BlockReason   string       `json:"block_reason,omitempty"`
}

func toAccountSummary(a *model.Account) AccountSummary {
	return AccountSummary{
		AccountNumber: a.AccountNumber,
		OwnerName:     a.OwnerName,
		Balance:       money.Amount(a.Balance),
		Status:        a.Status,
		BlockReason:   a.BlockReason,
	}
}

type BalanceResponse struct {
	AccountNumber string       `json:"account_number"`
	Balance       money.Amount `json:"balance"`
}

type TransferResponse struct {
	OriginAccount      string       `json:"origin_account"`
	DestinationAccount string       `json:"destination_account"`
	Amount             money.Amount `json:"amount"`
	Balance            money.Amount `json:"balance"`
}

type MovementResponse struct {
	ID                  int64        `json:"id,string"`
	AccountNumber       string       `json:"account_number"`
	Type                string       `json:"type"`
	Amount              money.Amount `json:"amount"`
	CounterpartyAccount string       `json:"counterparty_account,omitempty"`
	RelatedMovementID   int64        `json:"related_movement_id,string,omitempty"`
	Description         string       `json:"description"`
	Timestamp           time.Time    `json:"timestamp"`
}

func toMovementResponse(m *model.Movement) MovementResponse {
	return MovementResponse{
		ID:                  m.ID,
		AccountNumber:       m.AccountNumber,
		Type:                m.Type,
		Amount:              money.Amount(m.Amount),
		CounterpartyAccount: m.CounterpartyAccount,
		RelatedMovementID:   m.RelatedMovementID,
		Description:         m.Description,
		Timestamp:           m.CreatedAt,
	}
}

type HistoryResponse struct {
	AccountNumber string             `json:"account_number"`
	Movements     []MovementResponse `json:"movements"`
}
