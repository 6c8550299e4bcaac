package service

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past 72 bytes; longer pins are rejected outright.
const maxPinBytes = 72

// isDigits reports whether s is exactly n ASCII digits.
func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// pinHasher hashes and checks PINs with bcrypt. CompareHashAndPassword is
// constant-time over the hashed form.
type pinHasher struct {
	cost  int
	dummy []byte
}

func newPinHasher(cost int) (*pinHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("pin hash cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("no-such-account"), cost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}
	return &pinHasher{cost: cost, dummy: dummy}, nil
}

func (h *pinHasher) Hash(pin string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pin), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *pinHasher) Matches(hash, pin string) bool {
	if len(pin) > maxPinBytes {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

// Burn spends the same time as a real comparison, so a missing account is
// not distinguishable from a wrong pin by latency.
func (h *pinHasher) Burn(pin string) {
	if len(pin) > maxPinBytes {
		pin = pin[:maxPinBytes]
	}
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(pin))
}
