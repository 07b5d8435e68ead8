package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fluxora/internal/amount"
	"github.com/roach88/fluxora/internal/domain"
)

func TestInitialize_Once(t *testing.T) {
	env := setupEngine(t)

	cfg, err := env.engine.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Config{Token: testToken, Admin: testAdmin}, cfg)

	err = env.engine.Initialize(context.Background(), "OTHER", mallory)
	assert.ErrorIs(t, err, domain.ErrAlreadyInitialized)
	assert.Equal(t, "ALREADY_INITIALIZED", domain.CodeOf(err))
}

func TestCreateStream_BeforeInitialize(t *testing.T) {
	env := setupEngine(t)
	fresh := New(emptyRegistry{}, env.store, env.engine.auth, WithClock(env.clock))

	_, err := fresh.CreateStream(as(alice), standard())
	assert.ErrorIs(t, err, domain.ErrNotInitialized)

	_, err = fresh.GetConfig(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
}

// emptyRegistry is a registry that was never initialized.
type emptyRegistry struct{}

func (emptyRegistry) Atomic(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (emptyRegistry) NextID(context.Context) (domain.StreamID, error) { return 0, nil }
func (emptyRegistry) LoadStream(context.Context, domain.StreamID) (domain.Stream, error) {
	return domain.Stream{}, domain.ErrStreamNotFound
}
func (emptyRegistry) SaveStream(context.Context, domain.Stream) error { return nil }
func (emptyRegistry) GetConfig(context.Context) (domain.Config, error) {
	return domain.Config{}, domain.ErrNotInitialized
}
func (emptyRegistry) SetConfig(context.Context, domain.Config) error { return nil }

func TestCreateStream_EscrowsDeposit(t *testing.T) {
	env := setupEngine(t)

	id := env.create(standard())
	assert.Equal(t, domain.StreamID(0), id)

	s := env.stream(id)
	assert.Equal(t, domain.StatusActive, s.Status)
	assert.Equal(t, amount.Zero, s.Withdrawn)
	assert.Equal(t, alice, s.Sender)
	assert.Equal(t, bob, s.Recipient)

	assert.Equal(t, amount.New(9000), env.balance(alice))
	assert.Equal(t, amount.New(1000), env.balance(DefaultCustody))

	require.Len(t, env.events.events, 1)
	ev := env.events.events[0]
	assert.Equal(t, domain.TopicCreated, ev.Topic)
	assert.Equal(t, amount.New(1000), ev.Amount)
	require.NotNil(t, ev.Stream)
	assert.Equal(t, s, *ev.Stream)
}

func TestCreateStream_IDsAreDense(t *testing.T) {
	env := setupEngine(t)

	for want := domain.StreamID(0); want < 4; want++ {
		assert.Equal(t, want, env.create(standard()))
	}
}

func TestCreateStream_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *CreateParams)
		wantErr error
	}{
		{"zero deposit", func(p *CreateParams) { p.Deposit = amount.Zero }, domain.ErrInvalidParams},
		{"negative deposit", func(p *CreateParams) { p.Deposit = amount.New(-1) }, domain.ErrInvalidParams},
		{"zero rate", func(p *CreateParams) { p.Rate = amount.Zero }, domain.ErrInvalidParams},
		{"sender is recipient", func(p *CreateParams) { p.Recipient = alice }, domain.ErrInvalidParams},
		{"start equals end", func(p *CreateParams) { p.Start, p.Cliff, p.End = 5, 5, 5 }, domain.ErrInvalidParams},
		{"cliff before start", func(p *CreateParams) { p.Start, p.Cliff = 10, 5; p.Deposit = amount.New(990) }, domain.ErrInvalidParams},
		{"cliff after end", func(p *CreateParams) { p.Cliff = 1001 }, domain.ErrInvalidParams},
		{"deposit below rate times duration", func(p *CreateParams) { p.Deposit = amount.New(999) }, domain.ErrInvalidParams},
		{"rate times duration overflows", func(p *CreateParams) { p.Rate = amount.Max }, domain.ErrArithmeticOverflow},
		{"deposit above balance", func(p *CreateParams) { p.Deposit = amount.New(10001) }, domain.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEngine(t)
			p := standard()
			tt.mutate(&p)

			_, err := env.engine.CreateStream(as(alice), p)
			assert.ErrorIs(t, err, tt.wantErr)

			// No partial effect
			assert.Equal(t, amount.New(10000), env.balance(alice))
			assert.Empty(t, env.events.events)
			assert.Equal(t, domain.StreamID(0), env.create(standard()), "failed create must not consume an id")
		})
	}
}

func TestCreateStream_DepositBounds(t *testing.T) {
	env := setupEngine(t)

	equal := standard()
	_, err := env.engine.CreateStream(as(alice), equal)
	assert.NoError(t, err, "deposit equal to rate*duration")

	greater := standard()
	greater.Deposit = amount.New(1500)
	_, err = env.engine.CreateStream(as(alice), greater)
	assert.NoError(t, err, "deposit greater than rate*duration")

	less := standard()
	less.Deposit = amount.New(999)
	_, err = env.engine.CreateStream(as(alice), less)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestCreateStream_RequiresSenderAuth(t *testing.T) {
	env := setupEngine(t)

	_, err := env.engine.CreateStream(as(mallory), standard())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = env.engine.CreateStream(claiming(alice), standard())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = env.engine.CreateStream(context.Background(), standard())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestCreateStream_TransferFailureLeavesNoRecord(t *testing.T) {
	env := setupEngine(t)
	ft := &failingTransfer{ValueTransfer: env.store, armed: true}
	eng := New(env.store, ft, env.engine.auth, WithClock(env.clock), WithNotifier(env.events))

	_, err := eng.CreateStream(as(alice), standard())
	require.Error(t, err)

	streams, err := env.store.ListStreams(context.Background())
	require.NoError(t, err)
	assert.Empty(t, streams)
	assert.Empty(t, env.events.events)
	assert.Equal(t, domain.StreamID(0), env.create(standard()), "failed create must not consume an id")
}

func TestCalculateAccrued_Scenarios(t *testing.T) {
	env := setupEngine(t)
	plain := env.create(standard())
	withCliff := standard()
	withCliff.Cliff = 500
	cliffed := env.create(withCliff)

	tests := []struct {
		id   domain.StreamID
		now  uint64
		want int64
	}{
		{plain, 0, 0},
		{plain, 300, 300},
		{plain, 9999, 1000},
		{cliffed, 200, 0},
		{cliffed, 600, 600},
	}
	for _, tt := range tests {
		env.clock.Set(tt.now)
		got, err := env.engine.CalculateAccrued(context.Background(), tt.id)
		require.NoError(t, err)
		assert.Equal(t, amount.New(tt.want), got, "stream %d at %d", tt.id, tt.now)
	}

	_, err := env.engine.CalculateAccrued(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
}

func TestCancel_AtStartRefundsEverything(t *testing.T) {
	env := setupEngine(t)
	id := env.create(standard())

	refund, err := env.engine.CancelStream(as(alice), id)
	require.NoError(t, err)

	assert.Equal(t, amount.New(1000), refund)
	assert.Equal(t, domain.StatusCancelled, env.stream(id).Status)
	assert.Equal(t, amount.New(10000), env.balance(alice))
	assert.Equal(t, amount.Zero, env.balance(DefaultCustody))
}

func TestCancel_ThenWithdrawResidualOnce(t *testing.T) {
	env := setupEngine(t)
	id := env.create(standard())

	env.clock.Set(300)
	refund, err := env.engine.CancelStream(as(alice), id)
	require.NoError(t, err)
	assert.Equal(t, amount.New(700), refund)
	assert.Equal(t, amount.New(9700), env.balance(alice))

	// Vesting stopped at cancellation; later time adds nothing.
	env.clock.Set(900)
	accrued, err := env.engine.CalculateAccrued(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, amount.New(300), accrued)

	got, err := env.engine.Withdraw(as(bob), id)
	require.NoError(t, err)
	assert.Equal(t, amount.New(300), got)
	assert.Equal(t, amount.New(300), env.balance(bob))
	s := env.stream(id)
	assert.Equal(t, domain.StatusCancelled, s.Status)
	assert.Equal(t, uint64(300), s.CancelledAt)

	_, err = env.engine.Withdraw(as(bob), id)
	assert.ErrorIs(t, err, domain.ErrNothingToWithdraw)
	assert.Equal(t, amount.Zero, env.balance(DefaultCustody))
}

func TestCancel_Terminal(t *testing.T) {
	env := setupEngine(t)
	id := env.create(standard())

	_, err := env.engine.CancelStream(as(alice), id)
	require.NoError(t, err)

	_, err = env.engine.CancelStream(as(alice), id)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.ErrorIs(t, env.engine.PauseStream(as(alice), id), domain.ErrInvalidState)
	assert.ErrorIs(t, env.engine.ResumeStream(as(alice), id), domain.ErrInvalidState)
}

func TestCancel_PausedStream(t *testing.T) {
	env := setupEngine(t)
	id := env.create(standard())

	env.clock.Set(400)
	require.NoError(t, env.engine.PauseStream(as(alice), id))
	refund, err := env.engine.CancelStream(as(testAdmin), id)
	require.NoError(t, err)
	assert.Equal(t, amount.New(600), refund)

	evs := env.events.events
	require.Len(t, evs, 3)
	assert.Equal(t, testAdmin, evs[2].Actor)
	assert.Equal(t, amount.New(600), evs[2].Amount)
}

func TestCancel_Conservation(t *testing.T) {
	for _, now := range []uint64{0, 1, 250, 999, 1000, 50000} {
		env := setupEngine(t)
		p := standard()
		p.Cliff = 250
		id := env.create(p)

		env.clock.Set(now)
		accrued, err := env.engine.CalculateAccrued(context.Background(), id)
		require.NoError(t, err)
		refund, err := env.engine.CancelStream(as(alice), id)
		require.NoError(t, err)

		sum, ok := refund.CheckedAdd(accrued)
		require.True(t, ok)
		assert.Equal(t, p.Deposit, sum, "now=%d", now)
		assert.Equal(t, accrued, env.balance(DefaultCustody), "custody keeps exactly the vested part")
	}
}

func TestCancel_FullyVestedNeedsNoRefund(t *testing.T) {
	env := setupEngine(t)
	id := env.create(standard())

	env.clock.Set(1000)
	refund, err := env.engine.CancelStream(as(alice), id)
	require.NoError(t, err)
	assert.Equal(t, amount.Zero, refund)
	assert.Equal(t, domain.StatusCancelled, env.stream(id).Status)
}

func TestCancelStreamAsAdmin(t *testing.T) {
	env := setupEngine(t)
	id := env.create(standard())
	env.clock.Set(100)

	_, err := env.engine.CancelStreamAsAdmin(as(alice), id)
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "sender cannot use the admin override")

	_, err = env.engine.CancelStreamAsAdmin(claiming(testAdmin), id)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	refund, err := env.engine.CancelStreamAsAdmin(as(testAdmin), id)
	require.NoError(t, err)
	assert.Equal(t, amount.New(900), refund)
	assert.Equal(t, amount.New(9900), env.balance(alice), "refund goes to the sender, not the admin")
	assert.Equal(t, amount.Zero, env.balance(testAdmin))

	_, err = env.engine.CancelStreamAsAdmin(as(testAdmin), 42)
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
}

func TestPauseResume_Guards(t *testing.T) {
	env := setupEngine(t)
	id := env.create(standard())

	assert.ErrorIs(t, env.engine.ResumeStream(as(alice), id), domain.ErrInvalidState, "resume an active stream")

	require.NoError(t, env.engine.PauseStream(as(alice), id))
	assert.Equal(t, domain.StatusPaused, env.stream(id).Status)
	assert.ErrorIs(t, env.engine.PauseStream(as(alice), id), domain.ErrInvalidState, "pause twice")

	env.clock.Set(500)
	_, err := env.engine.Withdraw(as(bob), id)
	assert.ErrorIs(t, err, domain.ErrInvalidState, "withdraw while paused")

	require.NoError(t, env.engine.ResumeStream(as(alice), id))
	assert.Equal(t, domain.StatusActive, env.stream(id).Status)

	assert.Equal(t, []domain.Topic{domain.TopicCreated, domain.TopicPaused, domain.TopicResumed}, env.events.topics())
}

func TestPauseResume_Authorization(t *testing.T) {
	env := setupEngine(t)
	id := env.create(standard())

	err := env.engine.PauseStream(as(mallory), id)
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "third party")

	err = env.engine.PauseStream(as(bob), id)
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "recipient")

	err = env.engine.PauseStream(claiming(testAdmin), id)
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "admin claim without proof")

	require.NoError(t, env.engine.PauseStream(as(testAdmin), id), "admin")
	require.NoError(t, env.engine.ResumeStream(as(alice), id), "sender")

	assert.Equal(t, testAdmin, env.events.events[1].Actor)
	assert.Equal(t, alice, env.events.events[2].Actor)
}

func TestPause_NotFound(t *testing.T) {
	env := setupEngine(t)

	err := env.engine.PauseStream(as(alice), 7)
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)

	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "pause", opErr.Op)
	assert.True(t, opErr.HasStream)
	assert.Equal(t, domain.StreamID(7), opErr.StreamID)
	assert.Equal(t, "StreamNotFound", opErr.Code())
}

func TestWithdraw_OnlyRecipient(t *testing.T) {
	env := setupEngine(t)
	id := env.create(standard())
	env.clock.Set(300)

	for _, who := range []domain.Identity{alice, testAdmin, mallory} {
		_, err := env.engine.Withdraw(as(who), id)
		assert.ErrorIs(t, err, domain.ErrUnauthorized, "withdraw as %s", who)
	}
}

func TestWithdraw_BeforeCliff(t *testing.T) {
	env := setupEngine(t)
	p := standard()
	p.Cliff = 500
	id := env.create(p)

	env.clock.Set(499)
	_, err := env.engine.Withdraw(as(bob), id)
	assert.ErrorIs(t, err, domain.ErrNothingToWithdraw)

	env.clock.Set(500)
	got, err := env.engine.Withdraw(as(bob), id)
	require.NoError(t, err)
	assert.Equal(t, amount.New(500), got)
}

func TestWithdraw_PartialsThenComplete(t *testing.T) {
	env := setupEngine(t)
	id := env.create(standard())

	var total amount.Amount
	for _, now := range []uint64{100, 350, 999} {
		env.clock.Set(now)
		got, err := env.engine.Withdraw(as(bob), id)
		require.NoError(t, err)
		total = total.SaturatingAdd(got)
		assert.Equal(t, amount.New(int64(now)), total)
		assert.Equal(t, domain.StatusActive, env.stream(id).Status)
	}

	env.clock.Set(1200)
	got, err := env.engine.Withdraw(as(bob), id)
	require.NoError(t, err)
	assert.Equal(t, amount.New(1), got)

	s := env.stream(id)
	assert.Equal(t, domain.StatusCompleted, s.Status)
	assert.Equal(t, s.Deposit, s.Withdrawn)
	assert.Equal(t, amount.New(1000), env.balance(bob))

	_, err = env.engine.Withdraw(as(bob), id)
	assert.ErrorIs(t, err, domain.ErrInvalidState, "withdraw from completed")
	_, err = env.engine.CancelStream(as(alice), id)
	assert.ErrorIs(t, err, domain.ErrInvalidState, "cancel completed")
}

func TestWithdraw_OverfundedStreamCompletesOnlyWhenDrained(t *testing.T) {
	env := setupEngine(t)
	p := standard()
	p.Deposit = amount.New(1500)
	id := env.create(p)

	// Accrual caps at rate*duration=1000, below the deposit, so the stream
	// can never be drained by withdrawals and stays Active.
	env.clock.Set(2000)
	got, err := env.engine.Withdraw(as(bob), id)
	require.NoError(t, err)
	assert.Equal(t, amount.New(1000), got)
	assert.Equal(t, domain.StatusActive, env.stream(id).Status)
}

func TestWithdraw_TransferFailureLeavesStateUntouched(t *testing.T) {
	env := setupEngine(t)
	id := env.create(standard())
	ft := &failingTransfer{ValueTransfer: env.store, armed: true}
	eng := New(env.store, ft, env.engine.auth, WithClock(env.clock), WithNotifier(env.events))

	env.clock.Set(500)
	_, err := eng.Withdraw(as(bob), id)
	require.Error(t, err)
	assert.Equal(t, amount.Zero, env.stream(id).Withdrawn)
	assert.Len(t, env.events.events, 1, "only the creation event")
}

func TestWithdraw_InvariantsUnderInterleaving(t *testing.T) {
	env := setupEngine(t)
	id := env.create(standard())

	steps := []struct {
		now uint64
		do  func() error
	}{
		{100, func() error { _, err := env.engine.Withdraw(as(bob), id); return err }},
		{150, func() error { return env.engine.PauseStream(as(alice), id) }},
		{200, func() error { _, err := env.engine.Withdraw(as(bob), id); return err }},
		{400, func() error { return env.engine.ResumeStream(as(testAdmin), id) }},
		{450, func() error { _, err := env.engine.Withdraw(as(bob), id); return err }},
		{450, func() error { _, err := env.engine.Withdraw(as(bob), id); return err }},
		{700, func() error { _, err := env.engine.CancelStream(as(alice), id); return err }},
		{900, func() error { _, err := env.engine.Withdraw(as(bob), id); return err }},
	}
	prev := amount.Zero
	for i, st := range steps {
		env.clock.Set(st.now)
		_ = st.do()
		s := env.stream(id)
		assert.GreaterOrEqual(t, s.Withdrawn.Sign(), 0, "step %d", i)
		assert.LessOrEqual(t, s.Withdrawn.Cmp(s.Deposit), 0, "step %d", i)
		assert.GreaterOrEqual(t, s.Withdrawn.Cmp(prev), 0, "withdrawn decreased at step %d", i)
		prev = s.Withdrawn
	}

	// Everything that left custody went to alice or bob.
	total := env.balance(alice).SaturatingAdd(env.balance(bob)).SaturatingAdd(env.balance(DefaultCustody))
	assert.Equal(t, amount.New(10000), total)
}

func TestWithdrawable(t *testing.T) {
	env := setupEngine(t)
	id := env.create(standard())

	env.clock.Set(400)
	w, err := env.engine.Withdrawable(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, amount.New(400), w)

	_, err = env.engine.Withdraw(as(bob), id)
	require.NoError(t, err)
	w, err = env.engine.Withdrawable(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, amount.Zero, w)
}

func TestPublishFailureDoesNotAbort(t *testing.T) {
	env := setupEngine(t)
	env.events.fail = errors.New("sink down")

	id := env.create(standard())
	require.NoError(t, env.engine.PauseStream(as(alice), id))
	assert.Equal(t, domain.StatusPaused, env.stream(id).Status)
}

func TestEventTimestamps(t *testing.T) {
	env := setupEngine(t)
	env.clock.Set(10)
	id := env.create(standard())
	env.clock.Set(300)
	_, err := env.engine.Withdraw(as(bob), id)
	require.NoError(t, err)

	require.Len(t, env.events.events, 2)
	assert.Equal(t, uint64(10), env.events.events[0].Time)
	assert.Equal(t, uint64(300), env.events.events[1].Time)
	assert.Equal(t, amount.New(300), env.events.events[1].Amount)
}

func TestCreateStream_RejectsCustodyAsParty(t *testing.T) {
	env := setupEngine(t)
	env.create(standard())

	fromCustody := standard()
	fromCustody.Sender = DefaultCustody
	_, err := env.engine.CreateStream(as(DefaultCustody), fromCustody)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)

	toCustody := standard()
	toCustody.Recipient = DefaultCustody
	_, err = env.engine.CreateStream(as(alice), toCustody)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)

	assert.Equal(t, amount.New(1000), env.balance(DefaultCustody))
	assert.Equal(t, amount.New(9000), env.balance(alice))
	assert.Len(t, env.events.events, 1)
}

func TestCreateStream_RejectsConfiguredCustody(t *testing.T) {
	env := setupEngine(t, WithCustody("vault"))
	require.NoError(t, env.store.Mint(context.Background(), testToken, "vault", amount.New(5000)))

	p := standard()
	p.Sender = "vault"
	_, err := env.engine.CreateStream(as("vault"), p)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
	assert.Equal(t, amount.New(5000), env.balance("vault"))
}

func TestCreateStream_SaveFailureRollsBackEscrow(t *testing.T) {
	env := setupEngine(t)
	reg := &failingRegistry{Registry: env.store, armed: true}
	eng := New(reg, env.store, env.engine.auth, WithClock(env.clock), WithNotifier(env.events))

	_, err := eng.CreateStream(as(alice), standard())
	assert.ErrorIs(t, err, errDiskFull)

	assert.Equal(t, amount.New(10000), env.balance(alice))
	assert.Equal(t, amount.Zero, env.balance(DefaultCustody))
	assert.Empty(t, env.events.events)
	assert.Equal(t, domain.StreamID(0), env.create(standard()), "failed create must not consume an id")
}

func TestWithdraw_SaveFailurePaysNothing(t *testing.T) {
	env := setupEngine(t)
	id := env.create(standard())
	reg := &failingRegistry{Registry: env.store, armed: true}
	eng := New(reg, env.store, env.engine.auth, WithClock(env.clock), WithNotifier(env.events))

	env.clock.Set(300)
	_, err := eng.Withdraw(as(bob), id)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, amount.Zero, env.balance(bob))
	assert.Equal(t, amount.Zero, env.stream(id).Withdrawn)
	assert.Equal(t, amount.New(1000), env.balance(DefaultCustody))

	// The retry pays exactly what has accrued, once.
	reg.armed = false
	got, err := eng.Withdraw(as(bob), id)
	require.NoError(t, err)
	assert.Equal(t, amount.New(300), got)
	assert.Equal(t, amount.New(300), env.balance(bob))

	_, err = eng.Withdraw(as(bob), id)
	assert.ErrorIs(t, err, domain.ErrNothingToWithdraw)
	assert.Equal(t, amount.New(300), env.balance(bob))
}

func TestCancel_SaveFailureRefundsNothing(t *testing.T) {
	env := setupEngine(t)
	id := env.create(standard())
	reg := &failingRegistry{Registry: env.store, armed: true}
	eng := New(reg, env.store, env.engine.auth, WithClock(env.clock), WithNotifier(env.events))

	env.clock.Set(400)
	_, err := eng.CancelStream(as(alice), id)
	assert.ErrorIs(t, err, errDiskFull)
	_, err = eng.CancelStreamAsAdmin(as(testAdmin), id)
	assert.ErrorIs(t, err, errDiskFull)

	assert.Equal(t, amount.New(9000), env.balance(alice))
	assert.Equal(t, amount.New(1000), env.balance(DefaultCustody))
	assert.Equal(t, domain.StatusActive, env.stream(id).Status)
	assert.Len(t, env.events.events, 1, "only the creation event")

	reg.armed = false
	refund, err := eng.CancelStream(as(alice), id)
	require.NoError(t, err)
	assert.Equal(t, amount.New(600), refund)
	assert.Equal(t, amount.New(9600), env.balance(alice))
	assert.Equal(t, amount.New(400), env.balance(DefaultCustody))
}

func TestPause_SaveFailureLeavesStatus(t *testing.T) {
	env := setupEngine(t)
	id := env.create(standard())
	reg := &failingRegistry{Registry: env.store, armed: true}
	eng := New(reg, env.store, env.engine.auth, WithClock(env.clock), WithNotifier(env.events))

	assert.ErrorIs(t, eng.PauseStream(as(alice), id), errDiskFull)
	assert.Equal(t, domain.StatusActive, env.stream(id).Status)
	assert.Len(t, env.events.events, 1)
}
