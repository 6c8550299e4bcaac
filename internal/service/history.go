package service

import (
	"context"
	"errors"
	"iter"

	"atmledger/internal/model"
	"atmledger/internal/repository"
)

// historyPageSize bounds each store round trip while ranging over history.
const historyPageSize = 50

// ListMovements returns the account's movements, newest first, bounded by
// limit. Order follows the per-account seq, which is commit order even
// when several nodes write to the same account. limit <= 0 selects the default; values above the maximum are
// clamped. The account is checked immediately; the rows are read lazily,
// page by page, each time the sequence is ranged over, so every range sees
// a fresh snapshot starting from the newest movement.
func (s *LedgerService) ListMovements(ctx context.Context, number string, limit int) (iter.Seq2[model.Movement, error], error) {
	if _, err := s.GetAccount(ctx, number); err != nil {
		return nil, err
	}
	limit = s.clampLimit(limit)

	return func(yield func(model.Movement, error) bool) {
		remaining := limit
		var before int64
		for remaining > 0 {
			size := min(remaining, historyPageSize)

			var page []model.Movement
			err := s.retryRead(ctx, "list movements", func() error {
				var err error
				page, err = s.movements.ListPage(ctx, number, before, size)
				return err
			})
			if err != nil {
				yield(model.Movement{}, err)
				return
			}

			for _, m := range page {
				if !yield(m, nil) {
					return
				}
				remaining--
			}
			if len(page) < size {
				return
			}
			before = page[len(page)-1].Seq
		}
	}, nil
}

// CollectMovements drains seq into a slice, stopping at the first error.
func CollectMovements(seq iter.Seq2[model.Movement, error]) ([]model.Movement, error) {
	out := make([]model.Movement, 0)
	for m, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// GetMovementReceipt looks up one movement by id.
func (s *LedgerService) GetMovementReceipt(ctx context.Context, id int64) (*model.Movement, error) {
	notFound := withMessage(ErrNotFound, "movement not found")
	if id <= 0 {
		return nil, notFound
	}

	var m *model.Movement
	err := s.retryRead(ctx, "get movement", func() error {
		var err error
		m, err = s.movements.GetByID(ctx, id)
		return err
	})
	if errors.Is(err, repository.ErrMovementNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *LedgerService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.opts.HistoryDefaultLimit
	}
	return min(limit, s.opts.HistoryMaxLimit)
}
