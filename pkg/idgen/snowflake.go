package idgen

import (
	"fmt"
	"sync"
	"time"
)

// ============================================================================
// Snowflake ID generator
// ============================================================================
//
// Movement ids double as receipt numbers, so they must be:
//   1. globally unique across service instances (worker id)
//   2. increasing within an instance
//   3. assigned by the service, never by the caller
//
// Ids from different instances are not ordered against each other; history
// order comes from the per-account movement seq instead.
//
// Layout (64 bits):
//
//   0 - 41 bit timestamp - 10 bit worker id - 12 bit sequence
//
// ============================================================================

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// Snowflake generates ids for one worker. Safe for concurrent use.
type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
	now       func() int64
}

// Option configures a Snowflake.
type Option func(*Snowflake)

// WithClock replaces the wall clock, e.g. to share a clock with the caller.
func WithClock(clock func() time.Time) Option {
	return func(s *Snowflake) {
		s.now = func() int64 { return clock().UnixMilli() }
	}
}

// New returns a generator for workerID, which must be in [0, 1023].
func New(workerID int64, opts ...Option) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("worker id must be between 0 and %d, got %d", maxWorkerID, workerID)
	}
	s := &Snowflake{
		workerID: workerID,
		now:      func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Generate returns the next id. It never waits for the clock: when the
// sequence of the current millisecond is exhausted, or the clock stepped
// back, it moves on to the next logical millisecond instead.
func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now > s.timestamp {
		s.timestamp = now
		s.sequence = 0
	} else {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// borrow the next millisecond; the clock catches up later
			s.timestamp++
		}
	}

	return ((s.timestamp - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// WorkerID returns the worker id encoded in id.
func WorkerID(id int64) int64 {
	return (id >> workerIDShift) & maxWorkerID
}

// Time returns the millisecond timestamp encoded in id.
func Time(id int64) time.Time {
	return time.UnixMilli((id >> timestampShift) + epoch)
}
