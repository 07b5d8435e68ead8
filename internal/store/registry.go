package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/fluxora/internal/domain"
)

const counterStreamID = "next_stream_id"

// SetConfig writes the configuration and resets the stream counter to 0.
// Fails with domain.ErrAlreadyInitialized if a configuration exists.
func (s *Store) SetConfig(ctx context.Context, cfg domain.Config) error {
	liveUntil := s.clock.Now() + s.retention.ExtendTo
	return s.inTx(ctx, func(q querier) error {
		var exists int
		err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM config`).Scan(&exists)
		if err != nil {
			return fmt.Errorf("set config: %w", err)
		}
		if exists > 0 {
			return domain.ErrAlreadyInitialized
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO config (id, token, admin, live_until)
			VALUES (1, ?, ?, ?)
		`, string(cfg.Token), string(cfg.Admin), toSQLTime(liveUntil))
		if err != nil {
			return fmt.Errorf("set config: %w", err)
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO counters (name, value) VALUES (?, 0)
			ON CONFLICT(name) DO UPDATE SET value = 0
		`, counterStreamID)
		if err != nil {
			return fmt.Errorf("set config: init counter: %w", err)
		}
		return nil
	})
}

// GetConfig returns the configuration or domain.ErrNotInitialized.
func (s *Store) GetConfig(ctx context.Context) (domain.Config, error) {
	var token, admin string
	err := s.conn(ctx).QueryRowContext(ctx, `SELECT token, admin FROM config WHERE id = 1`).Scan(&token, &admin)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Config{}, domain.ErrNotInitialized
	}
	if err != nil {
		return domain.Config{}, fmt.Errorf("get config: %w", err)
	}
	return domain.Config{Token: domain.Identity(token), Admin: domain.Identity(admin)}, nil
}

// NextID returns the current counter value and increments it by one.
func (s *Store) NextID(ctx context.Context) (domain.StreamID, error) {
	var id int64
	err := s.inTx(ctx, func(q querier) error {
		err := q.QueryRowContext(ctx, `SELECT value FROM counters WHERE name = ?`, counterStreamID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			id = 0
		} else if err != nil {
			return fmt.Errorf("next id: %w", err)
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO counters (name, value) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET value = excluded.value
		`, counterStreamID, id+1)
		if err != nil {
			return fmt.Errorf("next id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return domain.StreamID(id), nil
}

// LoadStream returns the stream with the given id or
// domain.ErrStreamNotFound.
func (s *Store) LoadStream(ctx context.Context, id domain.StreamID) (domain.Stream, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+streamColumns+` FROM streams WHERE id = ?`, int64(id))
	st, err := scanStream(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Stream{}, domain.ErrStreamNotFound
	}
	if err != nil {
		return domain.Stream{}, fmt.Errorf("load stream: %w", err)
	}
	return st, nil
}

// SaveStream upserts the record keyed by its id and extends its retention
// window when fewer than Retention.Threshold seconds remain.
func (s *Store) SaveStream(ctx context.Context, st domain.Stream) error {
	now := s.clock.Now()
	extendTo := toSQLTime(now + s.retention.ExtendTo)
	threshold := toSQLTime(now + s.retention.Threshold)

	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO streams
		(id, sender, recipient, deposit_amount, rate_per_second,
		 start_time, cliff_time, end_time, withdrawn_amount, status, cancelled_at, live_until)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sender           = excluded.sender,
			recipient        = excluded.recipient,
			deposit_amount   = excluded.deposit_amount,
			rate_per_second  = excluded.rate_per_second,
			start_time       = excluded.start_time,
			cliff_time       = excluded.cliff_time,
			end_time         = excluded.end_time,
			withdrawn_amount = excluded.withdrawn_amount,
			status           = excluded.status,
			cancelled_at     = excluded.cancelled_at,
			live_until       = CASE WHEN streams.live_until < ?
			                        THEN excluded.live_until
			                        ELSE streams.live_until END
	`,
		int64(st.ID),
		string(st.Sender),
		string(st.Recipient),
		st.Deposit,
		st.Rate,
		toSQLTime(st.Start),
		toSQLTime(st.Cliff),
		toSQLTime(st.End),
		st.Withdrawn,
		st.Status.String(),
		toSQLTime(st.CancelledAt),
		extendTo,
		threshold,
	)
	if err != nil {
		return fmt.Errorf("save stream: %w", err)
	}
	return nil
}

// ListStreams returns every stream ordered by id.
//
// Returns an empty slice (not nil) if there are no streams.
func (s *Store) ListStreams(ctx context.Context) ([]domain.Stream, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT `+streamColumns+` FROM streams ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query streams: %w", err)
	}
	defer rows.Close()

	streams := []domain.Stream{}
	for rows.Next() {
		st, err := scanStream(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stream: %w", err)
		}
		streams = append(streams, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate streams: %w", err)
	}
	return streams, nil
}

// ExpiredStreams lists streams whose retention window closed before now.
func (s *Store) ExpiredStreams(ctx context.Context, now uint64) ([]domain.StreamID, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id FROM streams WHERE live_until < ? ORDER BY id ASC
	`, toSQLTime(now))
	if err != nil {
		return nil, fmt.Errorf("query expired streams: %w", err)
	}
	defer rows.Close()

	ids := []domain.StreamID{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired stream: %w", err)
		}
		ids = append(ids, domain.StreamID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired streams: %w", err)
	}
	return ids, nil
}
