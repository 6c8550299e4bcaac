package repository

import (
	"context"

	"atmledger/internal/model"

	"gorm.io/gorm"
)

const maxErrorLen = 255

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Create(ctx context.Context, tx *gorm.DB, msgs ...*model.OutboxMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(msgs).Error
}

// GetPendingMessages returns pending rows oldest first, so events for one
// account go out in the order they were committed.
func (r *OutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *OutboxRepository) MarkAsSent(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Update("status", model.OutboxStatusSent).Error
}

func (r *OutboxRepository) IncrementRetryCount(ctx context.Context, id int64, cause error) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  truncate(cause),
		}).Error
}

func (r *OutboxRepository) MarkAsFailed(ctx context.Context, id int64, cause error) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      model.OutboxStatusFailed,
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  truncate(cause),
		}).Error
}

// RequeueFailed moves every FAILED row back to PENDING with a fresh retry
// budget. Used by operators once the broker is healthy again.
func (r *OutboxRepository) RequeueFailed(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("status = ?", model.OutboxStatusFailed).
		Updates(map[string]any{
			"status":      model.OutboxStatusPending,
			"retry_count": 0,
		})
	return result.RowsAffected, result.Error
}

func (r *OutboxRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.OutboxMessage{}).Where("status = ?", status).Count(&n).Error
	return n, err
}

func truncate(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	if len(s) > maxErrorLen {
		s = s[:maxErrorLen]
	}
	return s
}
