package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/fluxora/internal/amount"
	"github.com/roach88/fluxora/internal/auth"
	"github.com/roach88/fluxora/internal/domain"
	"github.com/roach88/fluxora/internal/store"
	"github.com/roach88/fluxora/internal/testutil"
)

const (
	testToken domain.Identity = "USDC"
	testAdmin domain.Identity = "admin"
	alice     domain.Identity = "alice"
	bob       domain.Identity = "bob"
	mallory   domain.Identity = "mallory"
)

// recordingNotifier captures published events. A non-nil fail makes every
// Publish return it.
type recordingNotifier struct {
	events []domain.Event
	fail   error
}

func (r *recordingNotifier) Publish(_ context.Context, ev domain.Event) error {
	if r.fail != nil {
		return r.fail
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingNotifier) topics() []domain.Topic {
	out := make([]domain.Topic, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Topic
	}
	return out
}

// failingTransfer wraps a ledger and fails every transfer once armed.
type failingTransfer struct {
	ValueTransfer
	armed bool
}

func (f *failingTransfer) Transfer(ctx context.Context, token, from, to domain.Identity, amt amount.Amount) error {
	if f.armed {
		return errors.New("ledger unavailable")
	}
	return f.ValueTransfer.Transfer(ctx, token, from, to, amt)
}

// failingRegistry wraps a registry and fails every SaveStream once armed.
type failingRegistry struct {
	Registry
	armed bool
}

var errDiskFull = errors.New("disk full")

func (f *failingRegistry) SaveStream(ctx context.Context, s domain.Stream) error {
	if f.armed {
		return errDiskFull
	}
	return f.Registry.SaveStream(ctx, s)
}

type testEnv struct {
	t      *testing.T
	engine *Engine
	store  *store.Store
	clock  *testutil.ManualClock
	events *recordingNotifier
}

// setupEngine returns an initialized engine over a fresh SQLite store with
// alice funded with 10000.
func setupEngine(t *testing.T, opts ...EngineOption) *testEnv {
	t.Helper()
	clock := testutil.NewManualClock(0)
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	events := &recordingNotifier{}
	base := []EngineOption{
		WithNotifier(events),
		WithClock(clock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	eng := New(s, s, auth.ContextAuthorizer{}, append(base, opts...)...)

	ctx := context.Background()
	require.NoError(t, eng.Initialize(ctx, testToken, testAdmin))
	require.NoError(t, s.Mint(ctx, testToken, alice, amount.New(10000)))

	return &testEnv{t: t, engine: eng, store: s, clock: clock, events: events}
}

// as returns a context authenticated as id.
func as(id domain.Identity) context.Context {
	return auth.WithPrincipal(context.Background(), auth.Trusted(id))
}

// claiming returns a context that claims id without proving it.
func claiming(id domain.Identity) context.Context {
	return auth.WithPrincipal(context.Background(), auth.Claimed(id))
}

// standard is the 1000-over-1000s stream used throughout the tests.
func standard() CreateParams {
	return CreateParams{
		Sender:    alice,
		Recipient: bob,
		Deposit:   amount.New(1000),
		Rate:      amount.New(1),
		Start:     0,
		Cliff:     0,
		End:       1000,
	}
}

func (e *testEnv) create(p CreateParams) domain.StreamID {
	e.t.Helper()
	id, err := e.engine.CreateStream(as(p.Sender), p)
	require.NoError(e.t, err)
	return id
}

func (e *testEnv) balance(id domain.Identity) amount.Amount {
	e.t.Helper()
	bal, err := e.store.Balance(context.Background(), testToken, id)
	require.NoError(e.t, err)
	return bal
}

func (e *testEnv) stream(id domain.StreamID) domain.Stream {
	e.t.Helper()
	s, err := e.engine.GetStreamState(context.Background(), id)
	require.NoError(e.t, err)
	return s
}
