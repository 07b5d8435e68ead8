package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/fluxora/internal/accrual"
	"github.com/roach88/fluxora/internal/amount"
	"github.com/roach88/fluxora/internal/domain"
)

// Registry owns stream records, the id counter and the configuration.
// Implemented by store.Store.
type Registry interface {
	// Atomic runs fn as one unit. Registry and ValueTransfer calls made
	// with the context passed to fn commit together or not at all.
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
	// NextID returns the current counter value and increments it.
	NextID(ctx context.Context) (domain.StreamID, error)
	// LoadStream fails with domain.ErrStreamNotFound for unknown ids.
	LoadStream(ctx context.Context, id domain.StreamID) (domain.Stream, error)
	// SaveStream upserts the record and extends its retention.
	SaveStream(ctx context.Context, s domain.Stream) error
	// GetConfig fails with domain.ErrNotInitialized before SetConfig.
	GetConfig(ctx context.Context) (domain.Config, error)
	// SetConfig fails with domain.ErrAlreadyInitialized on the second call.
	SetConfig(ctx context.Context, cfg domain.Config) error
}

// ValueTransfer moves token balances. Implemented by store.Store's ledger.
type ValueTransfer interface {
	Balance(ctx context.Context, token, holder domain.Identity) (amount.Amount, error)
	// Transfer moves amt atomically or fails without partial effect.
	Transfer(ctx context.Context, token, from, to domain.Identity, amt amount.Amount) error
}

// Authorizer proves the caller controls an identity.
type Authorizer interface {
	// Caller returns the identity the current caller claims, or "".
	Caller(ctx context.Context) domain.Identity
	// RequireAuth fails with domain.ErrUnauthorized unless the caller
	// controls id.
	RequireAuth(ctx context.Context, id domain.Identity) error
}

// Notifier publishes lifecycle events. Delivery is best effort.
type Notifier interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// DefaultCustody is the identity holding deposited funds when none is
// configured.
const DefaultCustody domain.Identity = "fluxora:custody"

// Engine is the stream lifecycle engine.
//
// Engine keeps no mutable state; all of it lives behind the Registry, so
// an Engine is safe to share across serialized invocations.
type Engine struct {
	registry Registry
	transfer ValueTransfer
	auth     Authorizer
	notifier Notifier
	clock    Clock
	custody  domain.Identity
	logger   *slog.Logger
}

// EngineOption configures optional collaborators.
type EngineOption func(*Engine)

// WithNotifier sets the notification sink. Default: discard.
func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

// WithClock sets the time source. Default: SystemClock.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithCustody sets the identity that holds deposits. Default: DefaultCustody.
func WithCustody(id domain.Identity) EngineOption {
	return func(e *Engine) { e.custody = id }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

type discardNotifier struct{}

func (discardNotifier) Publish(context.Context, domain.Event) error { return nil }

// New creates an Engine over the given registry, ledger and authorizer.
func New(reg Registry, vt ValueTransfer, auth Authorizer, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: reg,
		transfer: vt,
		auth:     auth,
		notifier: discardNotifier{},
		clock:    SystemClock{},
		custody:  DefaultCustody,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Custody returns the identity that holds deposited funds.
func (e *Engine) Custody() domain.Identity { return e.custody }

// Initialize writes the configuration exactly once.
func (e *Engine) Initialize(ctx context.Context, token, admin domain.Identity) error {
	if token.IsZero() || admin.IsZero() {
		return opErr("init", fmt.Errorf("%w: token and admin are required", domain.ErrInvalidParams))
	}
	if err := e.registry.SetConfig(ctx, domain.Config{Token: token, Admin: admin}); err != nil {
		return opErr("init", err)
	}
	e.logger.Info("engine initialized", "token", token, "admin", admin)
	return nil
}

// CreateParams are the arguments of CreateStream.
type CreateParams struct {
	Sender    domain.Identity
	Recipient domain.Identity
	Deposit   amount.Amount
	Rate      amount.Amount
	Start     uint64
	Cliff     uint64
	End       uint64
}

func (p CreateParams) schedule() accrual.Schedule {
	return accrual.Schedule{Deposit: p.Deposit, Rate: p.Rate, Start: p.Start, Cliff: p.Cliff, End: p.End}
}

// CreateStream escrows the deposit and records a new Active stream. The
// escrow, the id and the record commit together.
func (e *Engine) CreateStream(ctx context.Context, p CreateParams) (domain.StreamID, error) {
	if err := e.auth.RequireAuth(ctx, p.Sender); err != nil {
		return 0, e.reject("create", err)
	}
	if p.Sender.IsZero() || p.Recipient.IsZero() {
		return 0, e.reject("create", fmt.Errorf("%w: sender and recipient are required", domain.ErrInvalidParams))
	}
	if p.Sender == p.Recipient {
		return 0, e.reject("create", fmt.Errorf("%w: sender and recipient must differ", domain.ErrInvalidParams))
	}
	if p.Sender == e.custody || p.Recipient == e.custody {
		return 0, e.reject("create", fmt.Errorf("%w: %s holds escrow and cannot be a stream party", domain.ErrInvalidParams, e.custody))
	}
	if err := accrual.ValidateSchedule(p.schedule()); err != nil {
		return 0, e.reject("create", err)
	}

	var s domain.Stream
	err := e.registry.Atomic(ctx, func(ctx context.Context) error {
		cfg, err := e.registry.GetConfig(ctx)
		if err != nil {
			return err
		}
		balance, err := e.transfer.Balance(ctx, cfg.Token, p.Sender)
		if err != nil {
			return err
		}
		if balance.Cmp(p.Deposit) < 0 {
			return fmt.Errorf("%w: balance %s below deposit %s", domain.ErrInsufficientBalance, balance, p.Deposit)
		}
		if err := e.transfer.Transfer(ctx, cfg.Token, p.Sender, e.custody, p.Deposit); err != nil {
			return fmt.Errorf("escrow deposit: %w", err)
		}

		id, err := e.registry.NextID(ctx)
		if err != nil {
			return err
		}
		s = domain.Stream{
			ID:        id,
			Sender:    p.Sender,
			Recipient: p.Recipient,
			Deposit:   p.Deposit,
			Rate:      p.Rate,
			Start:     p.Start,
			Cliff:     p.Cliff,
			End:       p.End,
			Withdrawn: amount.Zero,
			Status:    domain.StatusActive,
		}
		return e.registry.SaveStream(ctx, s)
	})
	if err != nil {
		return 0, e.reject("create", err)
	}

	snapshot := s
	e.publish(ctx, domain.Event{
		Topic:    domain.TopicCreated,
		StreamID: s.ID,
		Actor:    p.Sender,
		Amount:   p.Deposit,
		Stream:   &snapshot,
	})
	e.logger.Info("stream created", "stream_id", s.ID, "sender", p.Sender, "recipient", p.Recipient, "deposit", p.Deposit)
	return s.ID, nil
}

// PauseStream moves an Active stream to Paused. Caller: sender or admin.
func (e *Engine) PauseStream(ctx context.Context, id domain.StreamID) error {
	return e.flip(ctx, id, OpPause, domain.TopicPaused)
}

// ResumeStream moves a Paused stream back to Active. Caller: sender or admin.
func (e *Engine) ResumeStream(ctx context.Context, id domain.StreamID) error {
	return e.flip(ctx, id, OpResume, domain.TopicResumed)
}

func (e *Engine) flip(ctx context.Context, id domain.StreamID, op Op, topic domain.Topic) error {
	var actor domain.Identity
	err := e.registry.Atomic(ctx, func(ctx context.Context) error {
		s, err := e.registry.LoadStream(ctx, id)
		if err != nil {
			return err
		}
		if actor, err = e.requireSenderOrAdmin(ctx, s); err != nil {
			return err
		}
		if s.Status, err = Transition(s.Status, op); err != nil {
			return err
		}
		return e.registry.SaveStream(ctx, s)
	})
	if err != nil {
		return e.rejectStream(op.String(), id, err)
	}
	e.publish(ctx, domain.Event{Topic: topic, StreamID: id, Actor: actor})
	e.logger.Info("stream "+string(topic), "stream_id", id, "actor", actor)
	return nil
}

// CancelStream stops a stream and refunds the unvested part of the deposit
// to the sender. Caller: sender or admin. The vested but unwithdrawn part
// stays claimable by the recipient. Returns the refund.
func (e *Engine) CancelStream(ctx context.Context, id domain.StreamID) (amount.Amount, error) {
	return e.cancel(ctx, "cancel", id, func(ctx context.Context, s domain.Stream) (domain.Identity, error) {
		return e.requireSenderOrAdmin(ctx, s)
	})
}

// CancelStreamAsAdmin is the administrative override: it requires the
// administrator's own authentication and then cancels exactly like
// CancelStream.
func (e *Engine) CancelStreamAsAdmin(ctx context.Context, id domain.StreamID) (amount.Amount, error) {
	cfg, err := e.registry.GetConfig(ctx)
	if err != nil {
		return amount.Zero, e.rejectStream("cancel_as_admin", id, err)
	}
	if err := e.auth.RequireAuth(ctx, cfg.Admin); err != nil {
		return amount.Zero, e.rejectStream("cancel_as_admin", id, err)
	}
	return e.cancel(ctx, "cancel_as_admin", id, func(context.Context, domain.Stream) (domain.Identity, error) {
		return cfg.Admin, nil
	})
}

// authorizeFunc authenticates the caller of an operation on s and returns
// the identity recorded as its actor.
type authorizeFunc func(ctx context.Context, s domain.Stream) (domain.Identity, error)

func (e *Engine) cancel(ctx context.Context, op string, id domain.StreamID, authorize authorizeFunc) (amount.Amount, error) {
	now := e.clock.Now()
	var (
		actor   domain.Identity
		accrued amount.Amount
		refund  amount.Amount
	)
	err := e.registry.Atomic(ctx, func(ctx context.Context) error {
		s, err := e.registry.LoadStream(ctx, id)
		if err != nil {
			return err
		}
		if actor, err = authorize(ctx, s); err != nil {
			return err
		}
		next, err := Transition(s.Status, OpCancel)
		if err != nil {
			return err
		}
		accrued = accrual.Accrued(accrual.ScheduleOf(s), now)
		refund = accrual.Unstreamed(s.Deposit, accrued)

		if refund.Sign() > 0 {
			cfg, err := e.registry.GetConfig(ctx)
			if err != nil {
				return err
			}
			if err := e.transfer.Transfer(ctx, cfg.Token, e.custody, s.Sender, refund); err != nil {
				return fmt.Errorf("refund sender: %w", err)
			}
		}

		s.Status = next
		s.CancelledAt = now
		return e.registry.SaveStream(ctx, s)
	})
	if err != nil {
		return amount.Zero, e.rejectStream(op, id, err)
	}
	e.publishAt(ctx, now, domain.Event{Topic: domain.TopicCancelled, StreamID: id, Actor: actor, Amount: refund})
	e.logger.Info("stream cancelled", "stream_id", id, "actor", actor, "accrued", accrued, "refund", refund)
	return refund, nil
}

// Withdraw transfers everything vested and not yet withdrawn to the
// recipient, who must be the caller. A withdrawal that drains a fully vested
// Active stream completes it. Returns the amount transferred.
func (e *Engine) Withdraw(ctx context.Context, id domain.StreamID) (amount.Amount, error) {
	now := e.clock.Now()
	var (
		s            domain.Stream
		withdrawable amount.Amount
	)
	err := e.registry.Atomic(ctx, func(ctx context.Context) error {
		var err error
		if s, err = e.registry.LoadStream(ctx, id); err != nil {
			return err
		}
		if err := e.auth.RequireAuth(ctx, s.Recipient); err != nil {
			return err
		}
		if _, err := Transition(s.Status, OpWithdraw); err != nil {
			return err
		}

		accrued := accrual.StreamAccrued(s, now)
		withdrawable = accrual.Withdrawable(accrued, s.Withdrawn)
		if withdrawable.Sign() <= 0 {
			return fmt.Errorf("%w: accrued %s, withdrawn %s", domain.ErrNothingToWithdraw, accrued, s.Withdrawn)
		}

		cfg, err := e.registry.GetConfig(ctx)
		if err != nil {
			return err
		}
		if err := e.transfer.Transfer(ctx, cfg.Token, e.custody, s.Recipient, withdrawable); err != nil {
			return fmt.Errorf("pay recipient: %w", err)
		}

		s.Withdrawn = s.Withdrawn.SaturatingAdd(withdrawable)
		if completes(s, now) {
			s.Status = domain.StatusCompleted
		}
		return e.registry.SaveStream(ctx, s)
	})
	if err != nil {
		return amount.Zero, e.rejectStream("withdraw", id, err)
	}
	e.publishAt(ctx, now, domain.Event{Topic: domain.TopicWithdrew, StreamID: id, Actor: s.Recipient, Amount: withdrawable})
	e.logger.Info("stream withdrawn", "stream_id", id, "amount", withdrawable, "status", s.Status)
	return withdrawable, nil
}

// completes reports whether a just-updated stream has been drained after its
// end time.
func completes(s domain.Stream, now uint64) bool {
	if _, err := Transition(s.Status, OpComplete); err != nil {
		return false
	}
	return now >= s.End && s.Withdrawn.Equal(s.Deposit)
}

// CalculateAccrued returns the vested amount of a stream at the current
// time. Read-only; no authorization. A cancelled stream reports what had
// vested at cancellation.
func (e *Engine) CalculateAccrued(ctx context.Context, id domain.StreamID) (amount.Amount, error) {
	s, err := e.registry.LoadStream(ctx, id)
	if err != nil {
		return amount.Zero, streamErr("accrued", id, err)
	}
	return accrual.StreamAccrued(s, e.clock.Now()), nil
}

// Withdrawable returns what Withdraw would transfer right now, ignoring
// status and authorization.
func (e *Engine) Withdrawable(ctx context.Context, id domain.StreamID) (amount.Amount, error) {
	s, err := e.registry.LoadStream(ctx, id)
	if err != nil {
		return amount.Zero, streamErr("withdrawable", id, err)
	}
	accrued := accrual.StreamAccrued(s, e.clock.Now())
	return accrual.Withdrawable(accrued, s.Withdrawn), nil
}

// GetConfig returns the configuration.
func (e *Engine) GetConfig(ctx context.Context) (domain.Config, error) {
	cfg, err := e.registry.GetConfig(ctx)
	if err != nil {
		return domain.Config{}, opErr("config", err)
	}
	return cfg, nil
}

// GetStreamState returns the stored record.
func (e *Engine) GetStreamState(ctx context.Context, id domain.StreamID) (domain.Stream, error) {
	s, err := e.registry.LoadStream(ctx, id)
	if err != nil {
		return domain.Stream{}, streamErr("get", id, err)
	}
	return s, nil
}

// requireSenderOrAdmin authenticates the identity chosen by
// ResolveAuthorizer and returns it.
func (e *Engine) requireSenderOrAdmin(ctx context.Context, s domain.Stream) (domain.Identity, error) {
	cfg, err := e.registry.GetConfig(ctx)
	if err != nil {
		return "", err
	}
	role := ResolveAuthorizer(s, cfg.Admin, e.auth.Caller(ctx))
	who := identityFor(role, s, cfg.Admin)
	if err := e.auth.RequireAuth(ctx, who); err != nil {
		return "", err
	}
	return who, nil
}

func (e *Engine) publish(ctx context.Context, ev domain.Event) {
	e.publishAt(ctx, e.clock.Now(), ev)
}

// publishAt is fire-and-forget: the mutation is already committed, so a
// notifier failure is only logged.
func (e *Engine) publishAt(ctx context.Context, now uint64, ev domain.Event) {
	ev.Time = now
	if err := e.notifier.Publish(ctx, ev); err != nil {
		e.logger.Warn("publish failed", "topic", ev.Topic, "stream_id", ev.StreamID, "error", err)
	}
}

func (e *Engine) reject(op string, err error) error {
	e.logger.Debug("operation rejected", "op", op, "error", err)
	return opErr(op, err)
}

func (e *Engine) rejectStream(op string, id domain.StreamID, err error) error {
	e.logger.Debug("operation rejected", "op", op, "stream_id", id, "error", err)
	return streamErr(op, id, err)
}
