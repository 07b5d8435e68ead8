package store

import (
	"fmt"

	"github.com/roach88/fluxora/internal/domain"
)

// streamColumns is the column order scanStream expects.
const streamColumns = `id, sender, recipient, deposit_amount, rate_per_second,
	start_time, cliff_time, end_time, withdrawn_amount, status, cancelled_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanStream reads one streams row in streamColumns order.
func scanStream(row rowScanner) (domain.Stream, error) {
	var (
		s                 domain.Stream
		id                int64
		sender, recipient string
		start, cliff, end int64
		cancelledAt       int64
		status            string
	)
	err := row.Scan(&id, &sender, &recipient, &s.Deposit, &s.Rate,
		&start, &cliff, &end, &s.Withdrawn, &status, &cancelledAt)
	if err != nil {
		return domain.Stream{}, err
	}
	st, err := domain.ParseStatus(status)
	if err != nil {
		return domain.Stream{}, fmt.Errorf("stream %d: %w", id, err)
	}
	s.ID = domain.StreamID(id)
	s.Sender = domain.Identity(sender)
	s.Recipient = domain.Identity(recipient)
	s.Start = uint64(start)
	s.Cliff = uint64(cliff)
	s.End = uint64(end)
	s.Status = st
	s.CancelledAt = uint64(cancelledAt)
	return s, nil
}

// toSQLTime stores an unsigned timestamp in a signed INTEGER column without
// losing bits. go-sqlite3 rejects uint64 values with the high bit set.
func toSQLTime(t uint64) int64 { return int64(t) }
