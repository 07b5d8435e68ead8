package eventlog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/roach88/fluxora/internal/domain"
)

// Log is an append-only event log. Safe for concurrent use.
type Log struct {
	db     *pebble.DB
	ids    IDGenerator
	sync   bool
	logger *slog.Logger

	mu      sync.Mutex
	lastSeq uint64
}

// Option configures a Log.
type Option func(*Log)

// WithIDGenerator sets the event id source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(l *Log) { l.ids = g }
}

// WithSync makes every append fsync the WAL before returning.
func WithSync(sync bool) Option {
	return func(l *Log) { l.sync = sync }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// Open creates or opens a log in dir and loads the last sequence.
func Open(dir string, opts ...Option) (*Log, error) {
	if dir == "" {
		return nil, errors.New("eventlog: dir is required")
	}
	return open(dir, &pebble.Options{}, opts...)
}

// OpenInMemory opens a log that lives only as long as the process.
func OpenInMemory(opts ...Option) (*Log, error) {
	return open("", &pebble.Options{FS: vfs.NewMem()}, opts...)
}

func open(dir string, po *pebble.Options, opts ...Option) (*Log, error) {
	db, err := pebble.Open(dir, po)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	l := &Log{db: db, ids: UUIDv7Generator{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}

	meta, closer, err := db.Get(metaLastKey)
	switch {
	case err == nil:
		if len(meta) >= 8 {
			l.lastSeq = binary.BigEndian.Uint64(meta[:8])
		}
		closer.Close()
	case errors.Is(err, pebble.ErrNotFound):
	default:
		db.Close()
		return nil, fmt.Errorf("load last sequence: %w", err)
	}
	return l, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// LastSeq returns the sequence of the newest event, or 0 for an empty log.
func (l *Log) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeq
}

// Publish appends ev, implementing engine.Notifier.
func (l *Log) Publish(ctx context.Context, ev domain.Event) error {
	_, err := l.Append(ctx, ev)
	return err
}

// Append assigns ev an id and the next sequence and writes it together with
// the updated metadata in one batch. Returns the stored event.
func (l *Log) Append(ctx context.Context, ev domain.Event) (domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return domain.Event{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	ev.Seq = l.lastSeq + 1
	if ev.ID == "" {
		ev.ID = l.ids.NewID()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return domain.Event{}, fmt.Errorf("encode event: %w", err)
	}

	b := l.db.NewBatch()
	defer b.Close()
	if err := b.Set(keyEntry(ev.Seq), payload, nil); err != nil {
		return domain.Event{}, err
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], ev.Seq)
	if err := b.Set(metaLastKey, meta[:], nil); err != nil {
		return domain.Event{}, err
	}

	mode := pebble.NoSync
	if l.sync {
		mode = pebble.Sync
	}
	if err := b.Commit(mode); err != nil {
		return domain.Event{}, fmt.Errorf("commit event: %w", err)
	}
	l.lastSeq = ev.Seq
	l.logger.Debug("event appended", "seq", ev.Seq, "topic", ev.Topic, "stream_id", ev.StreamID)
	return ev, nil
}

// Read returns up to limit events with sequence >= from, in order. A limit
// of 0 means no limit; from 0 starts at the beginning.
func (l *Log) Read(ctx context.Context, from uint64, limit int) ([]domain.Event, error) {
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: keyEntry(from),
		UpperBound: entryUpperBound,
	})
	if err != nil {
		return nil, fmt.Errorf("open iterator: %w", err)
	}
	defer iter.Close()

	events := []domain.Event{}
	for iter.First(); iter.Valid(); iter.Next() {
		if limit > 0 && len(events) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seq, ok := seqFromKey(iter.Key())
		if !ok {
			continue
		}
		var ev domain.Event
		if err := json.Unmarshal(iter.Value(), &ev); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", seq, err)
		}
		events = append(events, ev)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// All returns the whole log in publication order.
func (l *Log) All(ctx context.Context) ([]domain.Event, error) {
	return l.Read(ctx, 0, 0)
}
