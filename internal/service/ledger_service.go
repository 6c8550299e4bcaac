package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"atmledger/internal/config"
	"atmledger/internal/infrastructure/database"
	"atmledger/internal/model"
	"atmledger/internal/repository"
	"atmledger/pkg/idgen"

	"gorm.io/gorm"
)

// Options tunes the ledger. Zero values fall back to DefaultOptions.
type Options struct {
	NodeID              int64
	AccountNumberLength int
	PinLength           int
	PinHashCost         int
	HistoryDefaultLimit int
	HistoryMaxLimit     int
	PublishEvents       bool
	MovementsTopic      string
}

func DefaultOptions() Options {
	return Options{
		NodeID:              1,
		AccountNumberLength: 9,
		PinLength:           4,
		PinHashCost:         10,
		HistoryDefaultLimit: 10,
		HistoryMaxLimit:     100,
		MovementsTopic:      "ledger.movements",
	}
}

// OptionsFromConfig maps the ledger and kafka sections onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		NodeID:              cfg.Ledger.NodeID,
		AccountNumberLength: cfg.Ledger.AccountNumberLength,
		PinLength:           cfg.Ledger.PinLength,
		PinHashCost:         cfg.Ledger.PinHashCost,
		HistoryDefaultLimit: cfg.Ledger.HistoryDefaultLimit,
		HistoryMaxLimit:     cfg.Ledger.HistoryMaxLimit,
		PublishEvents:       cfg.Kafka.Enabled,
		MovementsTopic:      cfg.Kafka.Topic.Movements,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.AccountNumberLength <= 0 {
		o.AccountNumberLength = d.AccountNumberLength
	}
	if o.PinLength <= 0 {
		o.PinLength = d.PinLength
	}
	if o.PinHashCost == 0 {
		o.PinHashCost = d.PinHashCost
	}
	if o.HistoryDefaultLimit <= 0 {
		o.HistoryDefaultLimit = d.HistoryDefaultLimit
	}
	if o.HistoryMaxLimit < o.HistoryDefaultLimit {
		o.HistoryMaxLimit = max(d.HistoryMaxLimit, o.HistoryDefaultLimit)
	}
	if o.MovementsTopic == "" {
		o.MovementsTopic = d.MovementsTopic
	}
	return o
}

// LedgerService owns every balance change. Each mutation runs in one
// database transaction that locks the account rows it touches, so the
// balance check, the balance write and the movement insert commit or roll
// back together. The service keeps no account state between calls.
type LedgerService struct {
	db        *gorm.DB
	accounts  *repository.AccountRepository
	movements *repository.MovementRepository
	outbox    *repository.OutboxRepository
	ids       *idgen.Snowflake
	pins      *pinHasher
	opts      Options
	log       *slog.Logger
	now       func() time.Time
}

func NewLedgerService(db *gorm.DB, opts Options, log *slog.Logger) (*LedgerService, error) {
	opts = opts.withDefaults()

	pins, err := newPinHasher(opts.PinHashCost)
	if err != nil {
		return nil, err
	}

	s := &LedgerService{
		db:        db,
		accounts:  repository.NewAccountRepository(db),
		movements: repository.NewMovementRepository(db),
		outbox:    repository.NewOutboxRepository(db),
		pins:      pins,
		opts:      opts,
		log:       log.With("component", "ledger"),
		now:       time.Now,
	}

	// ids and timestamps read the same clock
	s.ids, err = idgen.New(opts.NodeID, idgen.WithClock(func() time.Time { return s.now() }))
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LedgerService) validNumber(number string) bool {
	return isDigits(number, s.opts.AccountNumberLength)
}

func (s *LedgerService) validPin(pin string) bool {
	return isDigits(pin, s.opts.PinLength)
}

// ============================================================================
// Reads
// ============================================================================

func (s *LedgerService) GetAccount(ctx context.Context, number string) (*model.Account, error) {
	if !s.validNumber(number) {
		return nil, ErrNotFound
	}

	var account *model.Account
	err := s.retryRead(ctx, "get account", func() error {
		var err error
		account, err = s.accounts.GetByNumber(ctx, number)
		return err
	})
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *LedgerService) GetBalance(ctx context.Context, number string) (int64, error) {
	account, err := s.GetAccount(ctx, number)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// Authenticate checks pin against the stored hash. A wrong pin is reported
// before a blocked status, so the status is only revealed to pin holders.
func (s *LedgerService) Authenticate(ctx context.Context, number, pin string) (*model.Account, error) {
	account, err := s.GetAccount(ctx, number)
	if errors.Is(err, ErrNotFound) {
		s.pins.Burn(pin)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if !s.pins.Matches(account.PinHash, pin) {
		s.log.InfoContext(ctx, "authentication failed", "account", number)
		return nil, ErrInvalidCredentials
	}
	if account.IsBlocked() {
		return nil, ErrAccountBlocked
	}
	return account, nil
}

// Ping reports whether the store is reachable.
func (s *LedgerService) Ping(ctx context.Context) error {
	if err := database.Ping(ctx, s.db); err != nil {
		s.log.ErrorContext(ctx, "store ping failed", "error", err)
		return storeError(err)
	}
	return nil
}

// retryRead runs an idempotent read, retrying once on a store failure.
// Not-found results are returned as they are.
func (s *LedgerService) retryRead(ctx context.Context, op string, read func() error) error {
	err := read()
	if err == nil || isMiss(err) {
		return err
	}
	if ctx.Err() == nil {
		s.log.WarnContext(ctx, "store read failed, retrying", "op", op, "error", err)
		err = read()
		if err == nil || isMiss(err) {
			return err
		}
	}
	s.log.ErrorContext(ctx, "store read failed", "op", op, "error", err)
	return storeError(err)
}

func isMiss(err error) bool {
	return errors.Is(err, repository.ErrAccountNotFound) || errors.Is(err, repository.ErrMovementNotFound)
}

// ============================================================================
// Transactions
// ============================================================================

// inTx runs fn in one transaction. Ledger errors returned by fn pass through
// unchanged; anything else rolls back and surfaces as STORE_UNAVAILABLE with
// the cause logged.
func (s *LedgerService) inTx(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(fn)
	if err == nil {
		return nil
	}
	var ledgerErr *Error
	if errors.As(err, &ledgerErr) {
		return err
	}
	s.log.ErrorContext(ctx, "transaction rolled back", "op", op, "error", err)
	return storeError(err)
}

// lockAccount takes the row lock on number, mapping a missing row to notFound.
func (s *LedgerService) lockAccount(ctx context.Context, tx *gorm.DB, number string, notFound error) (*model.Account, error) {
	account, err := s.accounts.GetByNumberForUpdate(ctx, tx, number)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, notFound
	}
	return account, err
}

// lockOrder returns the two account numbers in the order rows must be
// locked. Every transfer locks ascending, so two opposite transfers between
// the same pair cannot deadlock.
func lockOrder(a, b string) (first, second string) {
	if a < b {
		return a, b
	}
	return b, a
}

// newMovement builds the next movement of locked, which must be the row read
// under lock in this transaction before its Debit or Credit.
func (s *LedgerService) newMovement(locked *model.Account, kind string, amount, balanceAfter int64, counterparty, description string) *model.Movement {
	return &model.Movement{
		ID:                  s.ids.Generate(),
		AccountNumber:       locked.AccountNumber,
		Seq:                 locked.MovementSeq + 1,
		Type:                kind,
		Amount:              amount,
		BalanceAfter:        balanceAfter,
		CounterpartyAccount: counterparty,
		Description:         description,
		CreatedAt:           s.now().UTC(),
	}
}

// record appends movements and, when events are enabled, their outbox rows
// in the same transaction.
func (s *LedgerService) record(ctx context.Context, tx *gorm.DB, movements ...*model.Movement) error {
	if err := s.movements.Create(ctx, tx, movements...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}
	if !s.opts.PublishEvents {
		return nil
	}

	msgs := make([]*model.OutboxMessage, 0, len(movements))
	for _, m := range movements {
		payload, err := json.Marshal(model.MovementEvent{
			MovementID:          m.ID,
			AccountNumber:       m.AccountNumber,
			Type:                m.Type,
			Amount:              m.Amount,
			BalanceAfter:        m.BalanceAfter,
			CounterpartyAccount: m.CounterpartyAccount,
			OccurredAt:          m.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("encode movement event: %w", err)
		}
		msgs = append(msgs, &model.OutboxMessage{
			MessageKey: m.AccountNumber,
			Topic:      s.opts.MovementsTopic,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		})
	}
	if err := s.outbox.Create(ctx, tx, msgs...); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}
