package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"atmledger/internal/infrastructure/logging"
	"atmledger/internal/model"
	"atmledger/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	alice = "100200300"
	bob   = "200300400"
	pin   = "1234"
)

func newTestService(t *testing.T, mutate ...func(*Options)) (*LedgerService, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)

	opts := DefaultOptions()
	opts.PinHashCost = bcrypt.MinCost
	for _, m := range mutate {
		m(&opts)
	}

	svc, err := NewLedgerService(db, opts, logging.Discard())
	require.NoError(t, err)
	return svc, db
}

func seedAccount(t *testing.T, svc *LedgerService, number string, balance int64) {
	t.Helper()
	_, err := svc.CreateAccount(context.Background(), CreateAccountRequest{
		AccountNumber:  number,
		OwnerName:      "Owner " + number,
		Pin:            pin,
		OpeningBalance: balance,
	})
	require.NoError(t, err)
}

func movementCount(t *testing.T, db *gorm.DB, number string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.Movement{}).Where("account_number = ?", number).Count(&n).Error)
	return n
}

func balanceOf(t *testing.T, svc *LedgerService, number string) int64 {
	t.Helper()
	b, err := svc.GetBalance(context.Background(), number)
	require.NoError(t, err)
	return b
}

func TestExampleScenario(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, svc, alice, 500000)
	seedAccount(t, svc, bob, 0)

	bal, err := svc.Deposit(ctx, alice, 100000)
	require.NoError(t, err)
	assert.Equal(t, int64(600000), bal)
	assert.Equal(t, int64(2), movementCount(t, db, alice)) // opening deposit + deposit

	bal, err = svc.Transfer(ctx, alice, bob, 150000, pin)
	require.NoError(t, err)
	assert.Equal(t, int64(450000), bal)
	assert.Equal(t, int64(150000), balanceOf(t, svc, bob))
	assert.Equal(t, int64(3), movementCount(t, db, alice))
	assert.Equal(t, int64(1), movementCount(t, db, bob))

	_, err = svc.Withdraw(ctx, alice, 1000000, pin)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(450000), balanceOf(t, svc, alice))
	assert.Equal(t, int64(3), movementCount(t, db, alice))
}

func TestGetAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seedAccount(t, svc, alice, 700)

	acc, err := svc.GetAccount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "Owner "+alice, acc.OwnerName)
	assert.Equal(t, model.AccountStatusActive, acc.Status)
	assert.Equal(t, int64(700), acc.Balance)

	for _, number := range []string{bob, "", "12ab56789", "1002003001"} {
		_, err := svc.GetAccount(ctx, number)
		assert.ErrorIs(t, err, ErrNotFound, number)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seedAccount(t, svc, alice, 0)

	acc, err := svc.Authenticate(ctx, alice, pin)
	require.NoError(t, err)
	assert.Equal(t, alice, acc.AccountNumber)

	_, err = svc.Authenticate(ctx, alice, "9999")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, bob, pin)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.BlockAccount(ctx, alice, "lost card"))
	_, err = svc.Authenticate(ctx, alice, pin)
	assert.ErrorIs(t, err, ErrAccountBlocked)

	// blocked status is not revealed without the right pin
	_, err = svc.Authenticate(ctx, alice, "0000")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestDeposit(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, svc, alice, 1000)

	for _, amount := range []int64{0, -5} {
		_, err := svc.Deposit(ctx, alice, amount)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}

	_, err := svc.Deposit(ctx, bob, 10)
	assert.ErrorIs(t, err, ErrNotFound)

	bal, err := svc.Deposit(ctx, alice, 250)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), bal)
	assert.Equal(t, bal, balanceOf(t, svc, alice))

	var m model.Movement
	require.NoError(t, db.Where("account_number = ?", alice).Order("id DESC").First(&m).Error)
	assert.Equal(t, model.MovementTypeDeposit, m.Type)
	assert.Equal(t, int64(250), m.Amount)
	assert.Equal(t, int64(1250), m.BalanceAfter)
	assert.Empty(t, m.CounterpartyAccount)
	assert.False(t, m.CreatedAt.IsZero())
}

func TestWithdraw(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, svc, alice, 1000)

	_, err := svc.Withdraw(ctx, alice, 0, pin)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Withdraw(ctx, alice, 100, "4321")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Withdraw(ctx, bob, 100, pin)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Withdraw(ctx, alice, 1001, pin)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(1000), balanceOf(t, svc, alice))

	bal, err := svc.Withdraw(ctx, alice, 1000, pin)
	require.NoError(t, err)
	assert.Zero(t, bal)
	assert.Equal(t, int64(2), movementCount(t, db, alice))
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, svc, alice, 100)

	const attempts = 1000
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
		other        []error
	)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Withdraw(ctx, alice, 50, pin)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case KindOf(err) == KindInsufficientFunds:
				insufficient++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, attempts-2, insufficient)
	assert.Zero(t, balanceOf(t, svc, alice))
	// opening deposit plus the two withdrawals
	assert.Equal(t, int64(3), movementCount(t, db, alice))
}

func TestTransferValidation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, svc, alice, 1000)
	seedAccount(t, svc, bob, 1000)

	tests := []struct {
		name        string
		origin      string
		destination string
		amount      int64
		pin         string
		want        error
	}{
		{"zero amount", alice, bob, 0, pin, ErrInvalidAmount},
		{"same account", alice, alice, 10, pin, ErrSameAccount},
		{"bad destination format", alice, "12345", 10, pin, ErrInvalidDestination},
		{"unknown destination", alice, "999999999", 10, pin, ErrDestinationNotFound},
		{"wrong pin", alice, bob, 10, "0000", ErrInvalidCredentials},
		{"unknown origin", "300400500", bob, 10, pin, ErrNotFound},
		{"insufficient funds", alice, bob, 1001, pin, ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Transfer(ctx, tt.origin, tt.destination, tt.amount, tt.pin)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, int64(1000), balanceOf(t, svc, alice))
	assert.Equal(t, int64(1000), balanceOf(t, svc, bob))
	assert.Equal(t, int64(1), movementCount(t, db, alice))
	assert.Equal(t, int64(1), movementCount(t, db, bob))
}

func TestTransferToBlockedAccountChangesNothing(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, svc, alice, 1000)
	seedAccount(t, svc, bob, 0)
	require.NoError(t, svc.BlockAccount(ctx, bob, "closed"))

	_, err := svc.Transfer(ctx, alice, bob, 100, pin)
	assert.ErrorIs(t, err, ErrAccountBlocked)
	assert.Equal(t, int64(1000), balanceOf(t, svc, alice))
	assert.Equal(t, int64(0), movementCount(t, db, bob))
}

func TestTransferLinksMovements(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, svc, alice, 1000)
	seedAccount(t, svc, bob, 10)

	_, err := svc.Transfer(ctx, alice, bob, 400, pin)
	require.NoError(t, err)

	var out, in model.Movement
	require.NoError(t, db.Where("account_number = ? AND type = ?", alice, model.MovementTypeTransferOut).First(&out).Error)
	require.NoError(t, db.Where("account_number = ? AND type = ?", bob, model.MovementTypeTransferIn).First(&in).Error)

	assert.Equal(t, out.Amount, in.Amount)
	assert.Equal(t, bob, out.CounterpartyAccount)
	assert.Equal(t, alice, in.CounterpartyAccount)
	assert.Equal(t, in.ID, out.RelatedMovementID)
	assert.Equal(t, out.ID, in.RelatedMovementID)
	assert.Equal(t, int64(600), out.BalanceAfter)
	assert.Equal(t, int64(410), in.BalanceAfter)
	assert.Equal(t, "Transfer to "+bob, out.Description)
}

func TestOppositeTransfersConserveMoney(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seedAccount(t, svc, alice, 5000)
	seedAccount(t, svc, bob, 5000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, alice, bob, 30, pin)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, bob, alice, 20, pin)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	a, b := balanceOf(t, svc, alice), balanceOf(t, svc, bob)
	assert.Equal(t, int64(10000), a+b)
	assert.Equal(t, int64(5000-50*10), a)
}

func TestLockOrder(t *testing.T) {
	first, second := lockOrder(bob, alice)
	assert.Equal(t, alice, first)
	assert.Equal(t, bob, second)

	first, second = lockOrder(alice, bob)
	assert.Equal(t, alice, first)
	assert.Equal(t, bob, second)
}

func TestChangePin(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, svc, alice, 0)

	hashOf := func() string {
		var acc model.Account
		require.NoError(t, db.Where("account_number = ?", alice).First(&acc).Error)
		return acc.PinHash
	}
	before := hashOf()

	err := svc.ChangePin(ctx, alice, "0000", "5678")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, before, hashOf())

	for _, bad := range []string{"", "12", "12345", "12a4"} {
		err := svc.ChangePin(ctx, alice, pin, bad)
		assert.ErrorIs(t, err, ErrInvalidPinFormat, bad)
	}
	assert.Equal(t, before, hashOf())

	err = svc.ChangePin(ctx, bob, pin, "5678")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.ChangePin(ctx, alice, pin, "5678"))
	assert.NotEqual(t, before, hashOf())

	_, err = svc.Authenticate(ctx, alice, pin)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, alice, "5678")
	assert.NoError(t, err)
}

func TestBlockAccount(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, svc, alice, 500)

	require.NoError(t, svc.BlockAccount(ctx, alice, "lost card"))

	_, err := svc.Withdraw(ctx, alice, 10, pin)
	assert.ErrorIs(t, err, ErrAccountBlocked)
	_, err = svc.Deposit(ctx, alice, 10)
	assert.ErrorIs(t, err, ErrAccountBlocked)
	assert.Equal(t, int64(500), balanceOf(t, svc, alice))

	// blocking again only replaces the reason
	require.NoError(t, svc.BlockAccount(ctx, alice, "  stolen  "))
	acc, err := svc.GetAccount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, model.AccountStatusBlocked, acc.Status)
	assert.Equal(t, "stolen", acc.BlockReason)
	assert.Equal(t, int64(1), movementCount(t, db, alice))

	assert.ErrorIs(t, svc.BlockAccount(ctx, bob, "x"), ErrNotFound)
}

func TestCreateAccount(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	acc, err := svc.CreateAccount(ctx, CreateAccountRequest{
		AccountNumber: alice, OwnerName: "  Ana Lopez ", Pin: pin,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana Lopez", acc.OwnerName)
	assert.NotEqual(t, pin, acc.PinHash)
	assert.Zero(t, movementCount(t, db, alice))

	_, err = svc.CreateAccount(ctx, CreateAccountRequest{AccountNumber: alice, OwnerName: "Dup", Pin: pin})
	assert.ErrorIs(t, err, ErrAccountExists)

	tests := []struct {
		name string
		req  CreateAccountRequest
		want error
	}{
		{"short number", CreateAccountRequest{AccountNumber: "123", OwnerName: "A", Pin: pin}, ErrInvalidAccountNumber},
		{"no owner", CreateAccountRequest{AccountNumber: bob, OwnerName: " ", Pin: pin}, ErrInvalidRequest},
		{"bad pin", CreateAccountRequest{AccountNumber: bob, OwnerName: "B", Pin: "abcd"}, ErrInvalidPinFormat},
		{"negative opening", CreateAccountRequest{AccountNumber: bob, OwnerName: "B", Pin: pin, OpeningBalance: -1}, ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateAccount(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOutboxRowsWrittenWithMovements(t *testing.T) {
	svc, db := newTestService(t, func(o *Options) {
		o.PublishEvents = true
		o.MovementsTopic = "atm.movements"
	})
	ctx := context.Background()
	seedAccount(t, svc, alice, 1000)
	seedAccount(t, svc, bob, 0)

	_, err := svc.Transfer(ctx, alice, bob, 100, pin)
	require.NoError(t, err)

	var msgs []model.OutboxMessage
	require.NoError(t, db.Order("id ASC").Find(&msgs).Error)
	// opening deposit for alice, then both transfer sides
	require.Len(t, msgs, 3)
	assert.Equal(t, alice, msgs[1].MessageKey)
	assert.Equal(t, bob, msgs[2].MessageKey)
	assert.Equal(t, "atm.movements", msgs[2].Topic)
	assert.Equal(t, model.OutboxStatusPending, msgs[2].Status)
	assert.Contains(t, msgs[2].Payload, `"type":"TRANSFER_IN"`)

	// a failed transfer leaves no event behind
	_, err = svc.Transfer(ctx, alice, bob, 5000, pin)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	var n int64
	require.NoError(t, db.Model(&model.OutboxMessage{}).Count(&n).Error)
	assert.Equal(t, int64(3), n)
}

func TestPing(t *testing.T) {
	svc, _ := newTestService(t)
	assert.NoError(t, svc.Ping(context.Background()))
}

func TestNewLedgerServiceRejectsBadOptions(t *testing.T) {
	db := testutil.NewDB(t)

	_, err := NewLedgerService(db, Options{NodeID: 5000}, logging.Discard())
	assert.Error(t, err)

	_, err = NewLedgerService(db, Options{PinHashCost: 99}, logging.Discard())
	assert.Error(t, err)
}

func ExampleKindOf() {
	err := fmt.Errorf("withdraw: %w", ErrInsufficientFunds)
	fmt.Println(KindOf(err))
	// Output: INSUFFICIENT_FUNDS
}
