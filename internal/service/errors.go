package service

import (
	"errors"
	"fmt"
)

// Kind is the stable, caller-visible name of a ledger failure.
type Kind string

const (
	KindNotFound             Kind = "NOT_FOUND"
	KindInvalidCredentials   Kind = "INVALID_CREDENTIALS"
	KindAccountBlocked       Kind = "ACCOUNT_BLOCKED"
	KindInvalidAmount        Kind = "INVALID_AMOUNT"
	KindInsufficientFunds    Kind = "INSUFFICIENT_FUNDS"
	KindInvalidDestination   Kind = "INVALID_DESTINATION"
	KindDestinationNotFound  Kind = "DESTINATION_NOT_FOUND"
	KindSameAccount          Kind = "SAME_ACCOUNT"
	KindInvalidPinFormat     Kind = "INVALID_PIN_FORMAT"
	KindStoreUnavailable     Kind = "STORE_UNAVAILABLE"
	KindInvalidAccountNumber Kind = "INVALID_ACCOUNT_NUMBER"
	KindAccountExists        Kind = "ACCOUNT_EXISTS"
	KindInvalidRequest       Kind = "INVALID_REQUEST"
)

// Error is a typed ledger failure. Message is safe to show to callers;
// Err carries the internal cause and is never rendered.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// works regardless of message or cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrNotFound             = &Error{Kind: KindNotFound, Message: "account not found"}
	ErrInvalidCredentials   = &Error{Kind: KindInvalidCredentials, Message: "invalid credentials"}
	ErrAccountBlocked       = &Error{Kind: KindAccountBlocked, Message: "account is blocked"}
	ErrInvalidAmount        = &Error{Kind: KindInvalidAmount, Message: "amount must be greater than zero"}
	ErrInsufficientFunds    = &Error{Kind: KindInsufficientFunds, Message: "insufficient funds"}
	ErrInvalidDestination   = &Error{Kind: KindInvalidDestination, Message: "invalid destination account"}
	ErrDestinationNotFound  = &Error{Kind: KindDestinationNotFound, Message: "destination account not found"}
	ErrSameAccount          = &Error{Kind: KindSameAccount, Message: "origin and destination must differ"}
	ErrInvalidPinFormat     = &Error{Kind: KindInvalidPinFormat, Message: "invalid pin format"}
	ErrStoreUnavailable     = &Error{Kind: KindStoreUnavailable, Message: "ledger store unavailable, try again later"}
	ErrInvalidAccountNumber = &Error{Kind: KindInvalidAccountNumber, Message: "invalid account number"}
	ErrAccountExists        = &Error{Kind: KindAccountExists, Message: "account already exists"}
	ErrInvalidRequest       = &Error{Kind: KindInvalidRequest, Message: "invalid request"}
)

// storeError wraps a store failure as STORE_UNAVAILABLE.
func storeError(cause error) error {
	return &Error{Kind: KindStoreUnavailable, Message: ErrStoreUnavailable.Message, Err: cause}
}

// withMessage returns a copy of base with a more specific message.
func withMessage(base *Error, format string, args ...any) error {
	return &Error{Kind: base.Kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a ledger error, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// PublicMessage returns the caller-safe message for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
