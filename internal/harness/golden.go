package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/fluxora/internal/domain"
)

// TraceSnapshot captures everything observable about a scenario run.
// It is serialized with canonical JSON for byte-exact comparison.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceStep
	Events       []domain.Event
	Streams      []domain.Stream
}

// NewTraceSnapshot builds the snapshot of a finished run.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		Events:       result.Events,
		Streams:      result.Streams,
	}
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because domain.MarshalCanonical only handles domain types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, step := range s.Trace {
		m := map[string]any{
			"index": step.Index,
			"op":    step.Op,
			"at":    step.At,
		}
		if step.As != "" {
			m["as"] = step.As
		}
		if step.Result != "" {
			m["result"] = step.Result
		}
		if step.Error != "" {
			m["error"] = step.Error
		}
		trace[i] = m
	}

	events := make([]any, len(s.Events))
	for i, ev := range s.Events {
		m := map[string]any{
			"seq":       ev.Seq,
			"id":        ev.ID,
			"topic":     ev.Topic,
			"stream_id": ev.StreamID,
			"time":      ev.Time,
			"amount":    ev.Amount,
		}
		if !ev.Actor.IsZero() {
			m["actor"] = ev.Actor
		}
		events[i] = m
	}

	streams := make([]any, len(s.Streams))
	for i, st := range s.Streams {
		streams[i] = domain.StreamObject(st)
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"events":        events,
		"streams":       streams,
	}
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return domain.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := NewTraceSnapshot(scenarioName, result)
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
