package harness

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/fluxora/internal/amount"
	"github.com/roach88/fluxora/internal/domain"
	"github.com/roach88/fluxora/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Events   []domain.Event // Notification log for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Events) > 0 {
		fmt.Fprintf(&buf, "\nEvent log:\n")
		for _, ev := range e.Events {
			fmt.Fprintf(&buf, "  [%d] t=%d %s stream %d by %s amount %s\n",
				ev.Seq, ev.Time, ev.Topic, ev.StreamID, ev.Actor, ev.Amount)
		}
	}
	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx    context.Context
	Store  *store.Store
	Token  domain.Identity
	Events []domain.Event
}

// EvaluateAssertions evaluates all assertions.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertStream:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: stream requires a registry", i)
			} else {
				err = assertStream(actx.Ctx, actx.Store, assertion)
			}
		case AssertBalance:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: balance requires a ledger", i)
			} else {
				err = assertBalance(actx.Ctx, actx.Store, actx.Token, assertion)
			}
		case AssertEventCount:
			err = assertEventCount(eventsOf(actx), assertion)
		case AssertEventOrder:
			err = assertEventOrder(eventsOf(actx), assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func eventsOf(actx *AssertionContext) []domain.Event {
	if actx == nil {
		return nil
	}
	return actx.Events
}

// assertStream loads one stream and checks the listed fields (subset match).
// Fields are named as in the stream's JSON form and compared as text.
func assertStream(ctx context.Context, st *store.Store, assertion Assertion) error {
	id := domain.StreamID(*assertion.Stream)
	s, err := st.LoadStream(ctx, id)
	if err != nil {
		return &AssertionError{
			Type:     AssertStream,
			Expected: fmt.Sprintf("stream %d", id),
			Actual:   err.Error(),
		}
	}

	actual := streamFields(s)
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys) // report the first mismatch deterministically

	for _, key := range keys {
		want := assertion.Expect[key]
		got, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     AssertStream,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("stream fields: %s", strings.Join(sortedKeys(actual), ", ")),
			}
		}
		if got != want {
			return &AssertionError{
				Type:     AssertStream,
				Expected: fmt.Sprintf("stream %d %s = %s", id, key, want),
				Actual:   fmt.Sprintf("stream %d %s = %s", id, key, got),
			}
		}
	}
	return nil
}

// streamFields renders every stream field as text, keyed by JSON name.
func streamFields(s domain.Stream) map[string]string {
	obj := domain.StreamObject(s)
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		out[k] = fieldText(v)
	}
	return out
}

func fieldText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case domain.Identity:
		return string(val)
	case domain.Status:
		return val.String()
	case amount.Amount:
		return val.String()
	case domain.StreamID:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	}
	return fmt.Sprintf("%v", v)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// assertBalance checks a holder's balance of the configured token.
func assertBalance(ctx context.Context, st *store.Store, token domain.Identity, assertion Assertion) error {
	want, err := amount.Parse(assertion.Equals)
	if err != nil {
		return fmt.Errorf("balance assertion for %s: %w", assertion.Holder, err)
	}
	holder, err := domain.ParseIdentity(assertion.Holder)
	if err != nil {
		return fmt.Errorf("balance assertion: %w", err)
	}
	got, err := st.Balance(ctx, token, holder)
	if err != nil {
		return fmt.Errorf("balance of %s: %w", holder, err)
	}
	if !got.Equal(want) {
		return &AssertionError{
			Type:     AssertBalance,
			Expected: fmt.Sprintf("%s holds %s %s", holder, want, token),
			Actual:   fmt.Sprintf("%s holds %s %s", holder, got, token),
		}
	}
	return nil
}

// assertEventCount checks how many events carry the topic (all events when
// the topic is empty), optionally restricted to one stream.
func assertEventCount(events []domain.Event, assertion Assertion) error {
	count := 0
	for _, ev := range events {
		if assertion.Topic != "" && string(ev.Topic) != assertion.Topic {
			continue
		}
		if assertion.Stream != nil && uint64(ev.StreamID) != *assertion.Stream {
			continue
		}
		count++
	}

	if count != *assertion.Count {
		what := "events"
		if assertion.Topic != "" {
			what = assertion.Topic + " events"
		}
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s", *assertion.Count, what),
			Actual:   fmt.Sprintf("%d %s", count, what),
			Events:   events,
		}
	}
	return nil
}

// assertEventOrder checks the exact topic sequence of the log, optionally
// restricted to one stream.
func assertEventOrder(events []domain.Event, assertion Assertion) error {
	var topics []string
	for _, ev := range events {
		if assertion.Stream != nil && uint64(ev.StreamID) != *assertion.Stream {
			continue
		}
		topics = append(topics, string(ev.Topic))
	}

	if strings.Join(topics, ",") != strings.Join(assertion.Topics, ",") {
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: fmt.Sprintf("topics %v", assertion.Topics),
			Actual:   fmt.Sprintf("topics %v", topics),
			Events:   events,
		}
	}
	return nil
}
