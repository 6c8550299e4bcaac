package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"atmledger/internal/model"

	"gorm.io/gorm"
)

const maxOwnerNameLen = 128

// CreateAccountRequest describes a new account. OpeningBalance is in minor
// units; a positive value is recorded as an opening deposit movement.
type CreateAccountRequest struct {
	AccountNumber  string
	OwnerName      string
	Pin            string
	OpeningBalance int64
}

// CreateAccount provisions an ACTIVE account. It is an operator action and
// is not exposed on the customer HTTP surface.
func (s *LedgerService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*model.Account, error) {
	owner := strings.TrimSpace(req.OwnerName)
	switch {
	case !s.validNumber(req.AccountNumber):
		return nil, withMessage(ErrInvalidAccountNumber, "account number must be exactly %d digits", s.opts.AccountNumberLength)
	case owner == "" || utf8.RuneCountInString(owner) > maxOwnerNameLen:
		return nil, withMessage(ErrInvalidRequest, "owner name is required and at most %d characters", maxOwnerNameLen)
	case !s.validPin(req.Pin):
		return nil, withMessage(ErrInvalidPinFormat, "pin must be exactly %d digits", s.opts.PinLength)
	case req.OpeningBalance < 0:
		return nil, withMessage(ErrInvalidAmount, "opening balance cannot be negative")
	}

	pinHash, err := s.pins.Hash(req.Pin)
	if err != nil {
		s.log.ErrorContext(ctx, "hash pin failed", "error", err)
		return nil, storeError(err)
	}

	account := &model.Account{
		AccountNumber: req.AccountNumber,
		OwnerName:     owner,
		PinHash:       pinHash,
		Balance:       req.OpeningBalance,
		Status:        model.AccountStatusActive,
	}

	err = s.inTx(ctx, "create account", func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Account{}).Where("account_number = ?", req.AccountNumber).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrAccountExists
		}

		var opening *model.Movement
		if req.OpeningBalance > 0 {
			opening = s.newMovement(account, model.MovementTypeDeposit,
				req.OpeningBalance, req.OpeningBalance, "", "Opening deposit")
			account.MovementSeq = opening.Seq
		}
		if err := s.accounts.Create(ctx, tx, account); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAccountExists
			}
			return err
		}
		if opening == nil {
			return nil
		}
		return s.record(ctx, tx, opening)
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "account created", "account", account.AccountNumber)
	return account, nil
}
