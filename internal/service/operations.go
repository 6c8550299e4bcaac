package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"atmledger/internal/model"
	"atmledger/internal/repository"

	"gorm.io/gorm"
)

const maxBlockReasonLen = 255

// Deposit credits amount to an active account. No pin is required.
func (s *LedgerService) Deposit(ctx context.Context, number string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if !s.validNumber(number) {
		return 0, ErrNotFound
	}

	var newBalance int64
	err := s.inTx(ctx, "deposit", func(tx *gorm.DB) error {
		account, err := s.lockAccount(ctx, tx, number, ErrNotFound)
		if err != nil {
			return err
		}
		if account.IsBlocked() {
			return ErrAccountBlocked
		}
		if account.Balance > math.MaxInt64-amount {
			return withMessage(ErrInvalidAmount, "amount exceeds the account limit")
		}

		if err := s.accounts.Credit(ctx, tx, number, amount); err != nil {
			return err
		}
		newBalance = account.Balance + amount

		return s.record(ctx, tx, s.newMovement(account, model.MovementTypeDeposit, amount, newBalance, "", "Deposit"))
	})
	if err != nil {
		return 0, err
	}

	s.log.InfoContext(ctx, "deposit applied", "account", number, "amount", amount, "balance", newBalance)
	return newBalance, nil
}

// Withdraw debits amount after a pin check. The balance check and the debit
// happen under the row lock, so concurrent withdrawals cannot overdraw.
func (s *LedgerService) Withdraw(ctx context.Context, number string, amount int64, pin string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	authed, err := s.Authenticate(ctx, number, pin)
	if err != nil {
		return 0, err
	}

	var newBalance int64
	err = s.inTx(ctx, "withdraw", func(tx *gorm.DB) error {
		account, err := s.lockAccount(ctx, tx, number, ErrNotFound)
		if err != nil {
			return err
		}
		if err := checkStillAuthorized(authed, account); err != nil {
			return err
		}
		if account.Balance < amount {
			return ErrInsufficientFunds
		}

		if err := s.accounts.Debit(ctx, tx, number, amount); err != nil {
			if errors.Is(err, repository.ErrBalanceNotEnough) {
				return ErrInsufficientFunds
			}
			return err
		}
		newBalance = account.Balance - amount

		return s.record(ctx, tx, s.newMovement(account, model.MovementTypeWithdrawal, amount, newBalance, "", "Withdrawal"))
	})
	if err != nil {
		return 0, err
	}

	s.log.InfoContext(ctx, "withdrawal applied", "account", number, "amount", amount, "balance", newBalance)
	return newBalance, nil
}

// Transfer moves amount from origin to destination in one transaction and
// returns the new origin balance. Both balances and both movements commit
// together or not at all.
func (s *LedgerService) Transfer(ctx context.Context, origin, destination string, amount int64, pin string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if origin == destination {
		return 0, ErrSameAccount
	}
	if !s.validNumber(destination) {
		return 0, ErrInvalidDestination
	}
	authed, err := s.Authenticate(ctx, origin, pin)
	if err != nil {
		return 0, err
	}

	var newBalance int64
	err = s.inTx(ctx, "transfer", func(tx *gorm.DB) error {
		locked := make(map[string]*model.Account, 2)
		first, second := lockOrder(origin, destination)
		for _, number := range []string{first, second} {
			notFound := ErrNotFound
			if number == destination {
				notFound = ErrDestinationNotFound
			}
			account, err := s.lockAccount(ctx, tx, number, notFound)
			if err != nil {
				return err
			}
			locked[number] = account
		}
		from, to := locked[origin], locked[destination]

		if err := checkStillAuthorized(authed, from); err != nil {
			return err
		}
		if to.IsBlocked() {
			return withMessage(ErrAccountBlocked, "destination account is blocked")
		}
		if from.Balance < amount {
			return ErrInsufficientFunds
		}
		if to.Balance > math.MaxInt64-amount {
			return withMessage(ErrInvalidAmount, "amount exceeds the destination account limit")
		}

		if err := s.accounts.Debit(ctx, tx, origin, amount); err != nil {
			if errors.Is(err, repository.ErrBalanceNotEnough) {
				return ErrInsufficientFunds
			}
			return err
		}
		if err := s.accounts.Credit(ctx, tx, destination, amount); err != nil {
			return err
		}
		newBalance = from.Balance - amount

		out := s.newMovement(from, model.MovementTypeTransferOut, amount, newBalance,
			destination, fmt.Sprintf("Transfer to %s", destination))
		in := s.newMovement(to, model.MovementTypeTransferIn, amount, to.Balance+amount,
			origin, fmt.Sprintf("Transfer from %s", origin))
		out.RelatedMovementID = in.ID
		in.RelatedMovementID = out.ID

		return s.record(ctx, tx, out, in)
	})
	if err != nil {
		return 0, err
	}

	s.log.InfoContext(ctx, "transfer applied",
		"origin", origin, "destination", destination, "amount", amount, "balance", newBalance)
	return newBalance, nil
}

// ChangePin replaces the pin hash after checking the current pin. The new
// pin format is checked first and needs no store access.
func (s *LedgerService) ChangePin(ctx context.Context, number, currentPin, newPin string) error {
	if !s.validPin(newPin) {
		return withMessage(ErrInvalidPinFormat, "pin must be exactly %d digits", s.opts.PinLength)
	}
	authed, err := s.Authenticate(ctx, number, currentPin)
	if err != nil {
		return err
	}

	newHash, err := s.pins.Hash(newPin)
	if err != nil {
		s.log.ErrorContext(ctx, "hash pin failed", "error", err)
		return storeError(err)
	}

	err = s.inTx(ctx, "change pin", func(tx *gorm.DB) error {
		account, err := s.lockAccount(ctx, tx, number, ErrNotFound)
		if err != nil {
			return err
		}
		if err := checkStillAuthorized(authed, account); err != nil {
			return err
		}
		return s.accounts.UpdatePinHash(ctx, tx, number, newHash)
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "pin changed", "account", number)
	return nil
}

// BlockAccount sets the account to BLOCKED. Blocking again only replaces
// the reason. There is no way back to ACTIVE.
func (s *LedgerService) BlockAccount(ctx context.Context, number, reason string) error {
	if !s.validNumber(number) {
		return ErrNotFound
	}
	reason = truncateRunes(strings.TrimSpace(reason), maxBlockReasonLen)

	err := s.inTx(ctx, "block account", func(tx *gorm.DB) error {
		if _, err := s.lockAccount(ctx, tx, number, ErrNotFound); err != nil {
			return err
		}
		return s.accounts.Block(ctx, tx, number, reason)
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "account blocked", "account", number, "reason", reason)
	return nil
}

// checkStillAuthorized re-validates, under the row lock, what Authenticate
// saw before the transaction: the pin hash is unchanged and the account was
// not blocked in between.
func checkStillAuthorized(authed, locked *model.Account) error {
	if locked.PinHash != authed.PinHash {
		return ErrInvalidCredentials
	}
	if locked.IsBlocked() {
		return ErrAccountBlocked
	}
	return nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
