package repository

import (
	"context"
	"errors"

	"atmledger/internal/model"

	"gorm.io/gorm"
)

var ErrMovementNotFound = errors.New("movement not found")

type MovementRepository struct {
	db *gorm.DB
}

func NewMovementRepository(db *gorm.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// Create inserts movements in one statement. Movements are never updated
// afterwards, so there is no Save/Update here.
func (r *MovementRepository) Create(ctx context.Context, tx *gorm.DB, movements ...*model.Movement) error {
	if len(movements) == 0 {
		return nil
	}
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(movements).Error
}

func (r *MovementRepository) GetByID(ctx context.Context, id int64) (*model.Movement, error) {
	var m model.Movement
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMovementNotFound
		}
		return nil, err
	}
	return &m, nil
}

// ListPage returns up to limit movements of the account, newest first by
// seq. beforeSeq > 0 continues after the last seq of the previous page.
func (r *MovementRepository) ListPage(ctx context.Context, number string, beforeSeq int64, limit int) ([]model.Movement, error) {
	query := r.db.WithContext(ctx).Where("account_number = ?", number)
	if beforeSeq > 0 {
		query = query.Where("seq < ?", beforeSeq)
	}

	var movements []model.Movement
	err := query.Order("seq DESC").Limit(limit).Find(&movements).Error
	return movements, err
}

func (r *MovementRepository) CountByAccount(ctx context.Context, number string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Movement{}).Where("account_number = ?", number).Count(&n).Error
	return n, err
}
