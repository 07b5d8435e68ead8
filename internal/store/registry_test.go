package store

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fluxora/internal/amount"
	"github.com/roach88/fluxora/internal/domain"
)

func TestConfig_WriteOnce(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, err := s.GetConfig(ctx)
	assert.ErrorIs(t, err, domain.ErrNotInitialized)

	cfg := domain.Config{Token: "USDC", Admin: "admin"}
	require.NoError(t, s.SetConfig(ctx, cfg))

	got, err := s.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	err = s.SetConfig(ctx, domain.Config{Token: "OTHER", Admin: "mallory"})
	assert.ErrorIs(t, err, domain.ErrAlreadyInitialized)

	got, err = s.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, got, "failed second init must not change config")
}

func TestNextID_Dense(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.SetConfig(ctx, domain.Config{Token: "USDC", Admin: "admin"}))

	for want := domain.StreamID(0); want < 5; want++ {
		assert.Equal(t, want, peekNextID(t, s))

		id, err := s.NextID(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
}

func TestNextID_BeforeConfig(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	id, err := s.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StreamID(0), id)
}

func TestStream_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	st := createTestStream(3)
	st.Deposit = amount.MustParse("170141183460469231731687303715884105727")
	st.Rate = amount.MustParse("9223372036854775808")
	st.End = math.MaxUint64
	st.Cliff = math.MaxUint64 - 1
	require.NoError(t, s.SaveStream(ctx, st))

	got, err := s.LoadStream(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, st, got)
}

func TestStream_Upsert(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	st := createTestStream(0)
	require.NoError(t, s.SaveStream(ctx, st))

	st.Withdrawn = amount.New(400)
	st.Status = domain.StatusCancelled
	require.NoError(t, s.SaveStream(ctx, st))

	got, err := s.LoadStream(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, amount.New(400), got.Withdrawn)
	assert.Equal(t, domain.StatusCancelled, got.Status)

	all, err := s.ListStreams(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStream_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.LoadStream(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
}

func TestListStreams_Ordered(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	empty, err := s.ListStreams(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, id := range []domain.StreamID{2, 0, 1} {
		require.NoError(t, s.SaveStream(ctx, createTestStream(id)))
	}
	all, err := s.ListStreams(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, st := range all {
		assert.Equal(t, domain.StreamID(i), st.ID)
	}
}

func TestRetention_ExtendsOnlyNearExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: 1000}
	s := createTestStore(t, WithClock(clock), WithRetention(Retention{Threshold: 100, ExtendTo: 500}))

	st := createTestStream(0)
	require.NoError(t, s.SaveStream(ctx, st))
	live, err := streamRetention(s, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), live)

	// 400 seconds remain, above the threshold: no extension.
	clock.now = 1100
	require.NoError(t, s.SaveStream(ctx, st))
	live, err = streamRetention(s, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), live)

	// 50 seconds remain: extend to now+500.
	clock.now = 1450
	require.NoError(t, s.SaveStream(ctx, st))
	live, err = streamRetention(s, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1950), live)
}

func TestExpiredStreams(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: 0}
	s := createTestStore(t, WithClock(clock), WithRetention(Retention{Threshold: 10, ExtendTo: 100}))

	require.NoError(t, s.SaveStream(ctx, createTestStream(0)))
	clock.now = 50
	require.NoError(t, s.SaveStream(ctx, createTestStream(1)))

	expired, err := s.ExpiredStreams(ctx, 120)
	require.NoError(t, err)
	assert.Equal(t, []domain.StreamID{0}, expired)

	expired, err = s.ExpiredStreams(ctx, 50)
	require.NoError(t, err)
	assert.Empty(t, expired)

	_, err = streamRetention(s, 9)
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
}
