package repository

import (
	"context"
	"errors"

	"atmledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrBalanceNotEnough = errors.New("balance not enough")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *AccountRepository) Create(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	return r.conn(tx).WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) GetByNumber(ctx context.Context, number string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("account_number = ?", number).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByNumberForUpdate reads the row with SELECT ... FOR UPDATE inside tx.
// The row stays locked until tx commits or rolls back.
func (r *AccountRepository) GetByNumberForUpdate(ctx context.Context, tx *gorm.DB, number string) (*model.Account, error) {
	var account model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_number = ?", number).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Debit subtracts amount only if the balance covers it. The balance guard
// sits in the WHERE clause, so the row can never go negative even without
// the row lock. Debit and Credit both advance movement_seq by one; the
// caller records exactly one movement per call.
func (r *AccountRepository) Debit(ctx context.Context, tx *gorm.DB, number string, amount int64) error {
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_number = ? AND balance >= ?", number, amount).
		Updates(map[string]any{
			"balance":      gorm.Expr("balance - ?", amount),
			"movement_seq": gorm.Expr("movement_seq + 1"),
			"version":      gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBalanceNotEnough
	}
	return nil
}

func (r *AccountRepository) Credit(ctx context.Context, tx *gorm.DB, number string, amount int64) error {
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_number = ?", number).
		Updates(map[string]any{
			"balance":      gorm.Expr("balance + ?", amount),
			"movement_seq": gorm.Expr("movement_seq + 1"),
			"version":      gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) UpdatePinHash(ctx context.Context, tx *gorm.DB, number, pinHash string) error {
	return r.update(ctx, tx, number, map[string]any{
		"pin_hash": pinHash,
		"version":  gorm.Expr("version + 1"),
	})
}

func (r *AccountRepository) Block(ctx context.Context, tx *gorm.DB, number, reason string) error {
	return r.update(ctx, tx, number, map[string]any{
		"status":       model.AccountStatusBlocked,
		"block_reason": reason,
		"version":      gorm.Expr("version + 1"),
	})
}

func (r *AccountRepository) update(ctx context.Context, tx *gorm.DB, number string, values map[string]any) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("account_number = ?", number).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
