package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"

	"github.com/roach88/fluxora/internal/amount"
	"github.com/roach88/fluxora/internal/auth"
	"github.com/roach88/fluxora/internal/domain"
	"github.com/roach88/fluxora/internal/engine"
	"github.com/roach88/fluxora/internal/eventlog"
	"github.com/roach88/fluxora/internal/store"
	"github.com/roach88/fluxora/internal/testutil"
)

// Harness is the scenario execution engine.
// It drives a real Engine over an in-memory registry, ledger and event log
// with a manual clock, so runs are reproducible byte for byte.
type Harness struct {
	store  *store.Store
	log    *eventlog.Log
	engine *engine.Engine
	clock  *testutil.ManualClock
	logger *slog.Logger
	token  domain.Identity
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database and event log.
//
// Execution flow:
// 1. Open the in-memory store and log, initialize the engine
// 2. Mint setup balances
// 3. Execute steps, checking each expect clause
// 4. Verify the log replays to the registry
// 5. Evaluate assertions
//
// A step whose outcome differs from its expect clause fails the result but
// does not stop the run. Malformed step arguments abort it with an error.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	clock := testutil.NewManualClock(scenario.Setup.Time)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // keep test output quiet

	st, err := store.Open(":memory:", store.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	evlog, err := eventlog.OpenInMemory(
		eventlog.WithIDGenerator(testutil.NewSequentialIDs("ev")),
		eventlog.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory event log: %w", err)
	}
	defer evlog.Close()

	h := &Harness{
		store: st,
		log:   evlog,
		engine: engine.New(st, st, auth.ContextAuthorizer{},
			engine.WithNotifier(evlog),
			engine.WithClock(clock),
			engine.WithLogger(logger),
		),
		clock:  clock,
		logger: logger,
	}

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	events, err := h.log.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	result.Events = events

	streams, err := st.ListStreams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}
	result.Streams = streams

	mismatches, err := engine.VerifyReplay(ctx, st, events)
	if err != nil {
		result.AddError(fmt.Sprintf("event log does not replay: %v", err))
	}
	for _, m := range mismatches {
		result.AddError(fmt.Sprintf("stream %d: replayed record differs from registry", m.StreamID))
	}

	actx := &AssertionContext{
		Ctx:    ctx,
		Store:  st,
		Token:  h.token,
		Events: events,
	}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// executeSetup initializes the engine and mints balances in holder order.
func (h *Harness) executeSetup(ctx context.Context, setup Setup) error {
	token, err := domain.ParseIdentity(setup.Token)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	admin, err := domain.ParseIdentity(setup.Admin)
	if err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	if err := h.engine.Initialize(ctx, token, admin); err != nil {
		return err
	}
	h.token = token

	holders := make([]string, 0, len(setup.Mint))
	for holder := range setup.Mint {
		holders = append(holders, holder)
	}
	sort.Strings(holders)

	for _, holder := range holders {
		id, err := domain.ParseIdentity(holder)
		if err != nil {
			return fmt.Errorf("mint: %w", err)
		}
		amt, err := amount.Parse(setup.Mint[holder])
		if err != nil {
			return fmt.Errorf("mint[%s]: %w", holder, err)
		}
		if err := h.store.Mint(ctx, token, id, amt); err != nil {
			return fmt.Errorf("mint[%s]: %w", holder, err)
		}
	}
	return nil
}

// executeSteps runs every step and validates its expect clause.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		if step.At != nil {
			h.clock.Set(*step.At)
		}

		stepCtx := ctx
		if step.As != "" {
			id, err := domain.ParseIdentity(step.As)
			if err != nil {
				return fmt.Errorf("steps[%d]: as: %w", i, err)
			}
			p := auth.Trusted(id)
			if step.Unauthenticated {
				p = auth.Claimed(id)
			}
			stepCtx = auth.WithPrincipal(ctx, p)
		}

		out, err := h.invoke(stepCtx, step)
		if err != nil {
			return fmt.Errorf("steps[%d] %s: %w", i, step.Op, err)
		}

		trace := TraceStep{Index: i, Op: step.Op, At: h.clock.Now(), As: step.As}
		if out.err != nil {
			code := domain.CodeOf(out.err)
			if code == "" {
				return fmt.Errorf("steps[%d] %s: %w", i, step.Op, out.err)
			}
			trace.Error = code
		} else {
			trace.Result = out.result
		}
		result.AddStep(trace)

		if msg := checkExpect(i, step, trace); msg != "" {
			result.AddError(msg)
		}

		h.logger.Info("scenario step completed",
			"step", i,
			"op", step.Op,
			"at", trace.At,
			"error", trace.Error,
		)
	}
	return nil
}

// outcome is what an engine operation returned.
type outcome struct {
	result string
	err    error
}

// invoke dispatches one step. The returned error is a harness failure such
// as a malformed argument; the operation's own failure is in outcome.err.
func (h *Harness) invoke(ctx context.Context, step Step) (outcome, error) {
	args := stepArgs(step.Args)

	switch step.Op {
	case OpInit:
		token, err := args.identity("token", "")
		if err != nil {
			return outcome{}, err
		}
		admin, err := args.identity("admin", "")
		if err != nil {
			return outcome{}, err
		}
		return outcome{err: h.engine.Initialize(ctx, token, admin)}, nil

	case OpCreate:
		p, err := args.createParams(step.As)
		if err != nil {
			return outcome{}, err
		}
		id, err := h.engine.CreateStream(ctx, p)
		return outcome{result: strconv.FormatUint(uint64(id), 10), err: err}, nil
	}

	id, err := args.stream()
	if err != nil {
		return outcome{}, err
	}

	var amt amount.Amount
	switch step.Op {
	case OpPause:
		return outcome{err: h.engine.PauseStream(ctx, id)}, nil
	case OpResume:
		return outcome{err: h.engine.ResumeStream(ctx, id)}, nil
	case OpCancel:
		amt, err = h.engine.CancelStream(ctx, id)
	case OpCancelAdmin:
		amt, err = h.engine.CancelStreamAsAdmin(ctx, id)
	case OpWithdraw:
		amt, err = h.engine.Withdraw(ctx, id)
	case OpAccrued:
		amt, err = h.engine.CalculateAccrued(ctx, id)
	case OpWithdrawable:
		amt, err = h.engine.Withdrawable(ctx, id)
	default:
		return outcome{}, fmt.Errorf("unknown op %q", step.Op)
	}
	return outcome{result: amt.String(), err: err}, nil
}

// checkExpect compares a traced step with its expect clause and returns a
// failure message, or "" when it matches.
func checkExpect(index int, step Step, got TraceStep) string {
	want := Expect{}
	if step.Expect != nil {
		want = *step.Expect
	}

	switch {
	case want.Error == "" && got.Error != "":
		return fmt.Sprintf("steps[%d] %s: expected success, got %s", index, step.Op, got.Error)
	case want.Error != "" && got.Error == "":
		return fmt.Sprintf("steps[%d] %s: expected %s, got success (result %q)", index, step.Op, want.Error, got.Result)
	case want.Error != "" && want.Error != got.Error:
		return fmt.Sprintf("steps[%d] %s: expected %s, got %s", index, step.Op, want.Error, got.Error)
	case want.Result != "" && want.Result != got.Result:
		return fmt.Sprintf("steps[%d] %s: expected result %s, got %s", index, step.Op, want.Result, got.Result)
	}
	return ""
}

// stepArgs reads typed values out of YAML-decoded arguments.
type stepArgs map[string]interface{}

func (a stepArgs) stream() (domain.StreamID, error) {
	v, ok := a["stream"]
	if !ok {
		return 0, fmt.Errorf("args.stream is required")
	}
	n, err := toUint(v)
	if err != nil {
		return 0, fmt.Errorf("args.stream: %w", err)
	}
	return domain.StreamID(n), nil
}

// identity returns args[key], or def when the key is absent.
func (a stepArgs) identity(key string, def string) (domain.Identity, error) {
	v, ok := a[key]
	if !ok {
		if def == "" {
			return "", fmt.Errorf("args.%s is required", key)
		}
		return domain.ParseIdentity(def)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("args.%s: expected string, got %T", key, v)
	}
	return domain.ParseIdentity(s)
}

func (a stepArgs) amount(key string) (amount.Amount, error) {
	v, ok := a[key]
	if !ok {
		return amount.Zero, fmt.Errorf("args.%s is required", key)
	}
	switch val := v.(type) {
	case string:
		amt, err := amount.Parse(val)
		if err != nil {
			return amount.Zero, fmt.Errorf("args.%s: %w", key, err)
		}
		return amt, nil
	case int:
		return amount.New(int64(val)), nil
	case int64:
		return amount.New(val), nil
	case uint64:
		return amount.FromUint64(val), nil
	}
	return amount.Zero, fmt.Errorf("args.%s: unsupported type %T (quote large amounts)", key, v)
}

func (a stepArgs) time(key string, def *uint64) (uint64, error) {
	v, ok := a[key]
	if !ok {
		if def == nil {
			return 0, fmt.Errorf("args.%s is required", key)
		}
		return *def, nil
	}
	n, err := toUint(v)
	if err != nil {
		return 0, fmt.Errorf("args.%s: %w", key, err)
	}
	return n, nil
}

// createParams builds CreateStream arguments. The sender defaults to the
// caller and the cliff to the start time.
func (a stepArgs) createParams(caller string) (engine.CreateParams, error) {
	var p engine.CreateParams
	var err error
	if p.Sender, err = a.identity("sender", caller); err != nil {
		return p, err
	}
	if p.Recipient, err = a.identity("recipient", ""); err != nil {
		return p, err
	}
	if p.Deposit, err = a.amount("deposit"); err != nil {
		return p, err
	}
	if p.Rate, err = a.amount("rate"); err != nil {
		return p, err
	}
	if p.Start, err = a.time("start", nil); err != nil {
		return p, err
	}
	if p.Cliff, err = a.time("cliff", &p.Start); err != nil {
		return p, err
	}
	if p.End, err = a.time("end", nil); err != nil {
		return p, err
	}
	return p, nil
}

// toUint converts YAML integers (and decimal strings) to uint64.
func toUint(v interface{}) (uint64, error) {
	switch val := v.(type) {
	case int:
		if val < 0 {
			return 0, fmt.Errorf("negative value %d", val)
		}
		return uint64(val), nil
	case int64:
		if val < 0 {
			return 0, fmt.Errorf("negative value %d", val)
		}
		return uint64(val), nil
	case uint64:
		return val, nil
	case string:
		return strconv.ParseUint(val, 10, 64)
	}
	return 0, fmt.Errorf("unsupported type %T", v)
}
