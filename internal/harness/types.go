package harness

import "github.com/roach88/fluxora/internal/domain"

// TraceStep records what one scenario step did.
type TraceStep struct {
	Index int    `json:"index"`
	Op    string `json:"op"`
	At    uint64 `json:"at"`
	As    string `json:"as,omitempty"`

	// Result is the text form of the return value on success.
	Result string `json:"result,omitempty"`

	// Error is the taxonomy code on failure.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step matched its expect clause and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace has one entry per step, in order.
	Trace []TraceStep `json:"trace"`

	// Events is the notification log after the last step.
	Events []domain.Event `json:"events"`

	// Streams is the registry after the last step, ordered by id.
	Streams []domain.Stream `json:"streams"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceStep{},
		Events:  []domain.Event{},
		Streams: []domain.Stream{},
		Errors:  []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends a step to the trace.
func (r *Result) AddStep(step TraceStep) {
	r.Trace = append(r.Trace, step)
}
