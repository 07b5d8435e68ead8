package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/roach88/fluxora/internal/amount"
	"github.com/roach88/fluxora/internal/domain"
)

// fakeClock is a settable retention clock.
type fakeClock struct{ now uint64 }

func (c *fakeClock) Now() uint64 { return c.now }

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestStream creates a stream record with minimal required fields.
func createTestStream(id domain.StreamID) domain.Stream {
	return domain.Stream{
		ID:        id,
		Sender:    "alice",
		Recipient: "bob",
		Deposit:   amount.New(1000),
		Rate:      amount.New(1),
		Start:     0,
		Cliff:     0,
		End:       1000,
		Withdrawn: amount.Zero,
		Status:    domain.StatusActive,
	}
}

// peekNextID returns the stream counter without incrementing it.
func peekNextID(t *testing.T, s *Store) domain.StreamID {
	t.Helper()
	var id int64
	err := s.db.QueryRow(`SELECT value FROM counters WHERE name = ?`, counterStreamID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0
	}
	if err != nil {
		t.Fatalf("peek next id: %v", err)
	}
	return domain.StreamID(id)
}

// streamRetention returns a stream's live_until, or ErrStreamNotFound.
func streamRetention(s *Store, id domain.StreamID) (uint64, error) {
	var liveUntil int64
	err := s.db.QueryRow(`SELECT live_until FROM streams WHERE id = ?`, int64(id)).Scan(&liveUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrStreamNotFound
	}
	return uint64(liveUntil), err
}
