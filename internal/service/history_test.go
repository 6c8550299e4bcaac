package service

import (
	"context"
	"testing"
	"time"

	"atmledger/internal/infrastructure/logging"
	"atmledger/internal/model"
	"atmledger/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestListMovementsNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seedAccount(t, svc, alice, 0)

	for i := int64(1); i <= 15; i++ {
		_, err := svc.Deposit(ctx, alice, i)
		require.NoError(t, err)
	}

	seq, err := svc.ListMovements(ctx, alice, 10)
	require.NoError(t, err)
	got, err := CollectMovements(seq)
	require.NoError(t, err)

	require.Len(t, got, 10)
	for i, m := range got {
		assert.Equal(t, int64(15-i), m.Amount)
		assert.Equal(t, model.MovementTypeDeposit, m.Type)
		if i > 0 {
			assert.Equal(t, got[i-1].Seq-1, m.Seq)
		}
	}
}

func TestListMovementsAcrossNodes(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	node := func(id int64) *LedgerService {
		opts := DefaultOptions()
		opts.NodeID = id
		opts.PinHashCost = bcrypt.MinCost
		svc, err := NewLedgerService(db, opts, logging.Discard())
		require.NoError(t, err)
		svc.now = func() time.Time { return clock }
		return svc
	}
	node1, node2 := node(1), node(2)
	seedAccount(t, node1, alice, 0)

	// same millisecond on both nodes: the later deposit gets the smaller id
	_, err := node2.Deposit(ctx, alice, 100)
	require.NoError(t, err)
	_, err = node1.Deposit(ctx, alice, 200)
	require.NoError(t, err)

	for _, svc := range []*LedgerService{node1, node2} {
		seq, err := svc.ListMovements(ctx, alice, 10)
		require.NoError(t, err)
		got, err := CollectMovements(seq)
		require.NoError(t, err)

		require.Len(t, got, 2)
		assert.Equal(t, int64(200), got[0].Amount)
		assert.Equal(t, int64(100), got[1].Amount)
		assert.Less(t, got[0].ID, got[1].ID)
		assert.Equal(t, []int64{2, 1}, []int64{got[0].Seq, got[1].Seq})
	}

	acc, err := node2.GetAccount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(2), acc.MovementSeq)
}

func TestListMovementsIsRestartable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seedAccount(t, svc, alice, 100)

	seq, err := svc.ListMovements(ctx, alice, 5)
	require.NoError(t, err)

	first, err := CollectMovements(seq)
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = svc.Withdraw(ctx, alice, 30, pin)
	require.NoError(t, err)

	// ranging again reads a fresh snapshot
	second, err := CollectMovements(seq)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, model.MovementTypeWithdrawal, second[0].Type)
}

func TestListMovementsPagesAndClamps(t *testing.T) {
	svc, _ := newTestService(t, func(o *Options) { o.HistoryMaxLimit = 70 })
	ctx := context.Background()
	seedAccount(t, svc, alice, 0)

	for i := 0; i < 120; i++ {
		_, err := svc.Deposit(ctx, alice, 1)
		require.NoError(t, err)
	}

	seq, err := svc.ListMovements(ctx, alice, 1000)
	require.NoError(t, err)
	got, err := CollectMovements(seq)
	require.NoError(t, err)
	require.Len(t, got, 70)

	seen := make(map[int64]bool, len(got))
	for i, m := range got {
		assert.False(t, seen[m.ID])
		seen[m.ID] = true
		if i > 0 {
			assert.Equal(t, got[i-1].Seq-1, m.Seq)
		}
	}

	seq, err = svc.ListMovements(ctx, alice, 0)
	require.NoError(t, err)
	got, err = CollectMovements(seq)
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestListMovementsStopsEarly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seedAccount(t, svc, alice, 0)
	for i := 0; i < 5; i++ {
		_, err := svc.Deposit(ctx, alice, 1)
		require.NoError(t, err)
	}

	seq, err := svc.ListMovements(ctx, alice, 5)
	require.NoError(t, err)

	n := 0
	for _, err := range seq {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestListMovementsUnknownAccount(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ListMovements(context.Background(), alice, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetMovementReceipt(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seedAccount(t, svc, alice, 0)
	seedAccount(t, svc, bob, 0)

	_, err := svc.Deposit(ctx, alice, 500)
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, alice, bob, 200, pin)
	require.NoError(t, err)

	seq, err := svc.ListMovements(ctx, bob, 1)
	require.NoError(t, err)
	list, err := CollectMovements(seq)
	require.NoError(t, err)
	require.Len(t, list, 1)

	receipt, err := svc.GetMovementReceipt(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.MovementTypeTransferIn, receipt.Type)
	assert.Equal(t, alice, receipt.CounterpartyAccount)
	assert.Equal(t, int64(200), receipt.Amount)

	counterpart, err := svc.GetMovementReceipt(ctx, receipt.RelatedMovementID)
	require.NoError(t, err)
	assert.Equal(t, model.MovementTypeTransferOut, counterpart.Type)

	_, err = svc.GetMovementReceipt(ctx, 0)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetMovementReceipt(ctx, receipt.ID+1_000_000)
	assert.ErrorIs(t, err, ErrNotFound)
}
