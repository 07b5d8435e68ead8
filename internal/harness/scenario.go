package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run of the stream engine.
// Steps are executed in order against a fresh engine; assertions then check
// the final registry, balances and notification log.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup initializes the engine and funds accounts before any step runs.
	Setup Setup `yaml:"setup"`

	// Steps are engine operations with their expected outcomes.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	// Supported types: stream, balance, event_count, event_order
	Assertions []Assertion `yaml:"assertions"`
}

// Setup is the state every step starts from.
type Setup struct {
	// Token is the asset handle passed to Initialize.
	Token string `yaml:"token"`

	// Admin is the administrator passed to Initialize.
	Admin string `yaml:"admin"`

	// Mint credits each holder with an amount (decimal string or integer).
	Mint map[string]string `yaml:"mint,omitempty"`

	// Time is the clock reading before the first step. Default 0.
	Time uint64 `yaml:"time,omitempty"`
}

// Step is one engine operation.
type Step struct {
	// At moves the clock before the operation. Omit to keep the current time.
	At *uint64 `yaml:"at,omitempty"`

	// As is the caller identity. Empty means no principal at all.
	As string `yaml:"as,omitempty"`

	// Unauthenticated attaches As as a claim only, without proof.
	Unauthenticated bool `yaml:"unauthenticated,omitempty"`

	// Op names the operation (see the Op* constants).
	Op string `yaml:"op"`

	// Args are the operation arguments.
	Args map[string]interface{} `yaml:"args,omitempty"`

	// Expect checks the outcome. Nil means the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is the expected outcome of a step.
type Expect struct {
	// Error is the taxonomy code the step must fail with ("UNAUTHORIZED").
	// Empty means the step must succeed.
	Error string `yaml:"error,omitempty"`

	// Result is the expected return value in text form: the stream id for
	// create, the amount for cancel, withdraw and the read operations.
	Result string `yaml:"result,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Stream selects the record for stream assertions.
	Stream *uint64 `yaml:"stream,omitempty"`

	// Expect lists record fields by their JSON names (subset match).
	Expect map[string]string `yaml:"expect,omitempty"`

	// Holder and Equals are used by balance assertions.
	Holder string `yaml:"holder,omitempty"`
	Equals string `yaml:"equals,omitempty"`

	// Topic and Count are used by event_count; an empty topic counts all.
	Topic string `yaml:"topic,omitempty"`
	Count *int   `yaml:"count,omitempty"`

	// Topics is the expected full topic sequence for event_order.
	Topics []string `yaml:"topics,omitempty"`
}

// Operation names.
const (
	OpCreate       = "create"
	OpPause        = "pause"
	OpResume       = "resume"
	OpCancel       = "cancel"
	OpCancelAdmin  = "cancel_admin"
	OpWithdraw     = "withdraw"
	OpAccrued      = "accrued"
	OpWithdrawable = "withdrawable"
	OpInit         = "init"
)

var knownOps = map[string]bool{
	OpCreate:       true,
	OpPause:        true,
	OpResume:       true,
	OpCancel:       true,
	OpCancelAdmin:  true,
	OpWithdraw:     true,
	OpAccrued:      true,
	OpWithdrawable: true,
	OpInit:         true,
}

// Assertion type constants.
const (
	AssertStream     = "stream"
	AssertBalance    = "balance"
	AssertEventCount = "event_count"
	AssertEventOrder = "event_order"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarioDir loads every *.yaml file in dir, sorted by file name.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Setup.Token == "" {
		return fmt.Errorf("setup.token is required")
	}
	if s.Setup.Admin == "" {
		return fmt.Errorf("setup.admin is required")
	}
	for holder, amt := range s.Setup.Mint {
		if holder == "" {
			return fmt.Errorf("setup.mint: empty holder")
		}
		if amt == "" {
			return fmt.Errorf("setup.mint[%s]: amount is required", holder)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Op == "" {
			return fmt.Errorf("steps[%d]: op is required", i)
		}
		if !knownOps[step.Op] {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if step.Unauthenticated && step.As == "" {
			return fmt.Errorf("steps[%d]: unauthenticated requires as", i)
		}
		if step.Expect != nil && step.Expect.Error != "" && step.Expect.Result != "" {
			return fmt.Errorf("steps[%d].expect: error and result are mutually exclusive", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStream:
		if a.Stream == nil {
			return fmt.Errorf("assertions[%d]: stream is required for stream", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for stream", index)
		}
	case AssertBalance:
		if a.Holder == "" {
			return fmt.Errorf("assertions[%d]: holder is required for balance", index)
		}
		if a.Equals == "" {
			return fmt.Errorf("assertions[%d]: equals is required for balance", index)
		}
	case AssertEventCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for event_count", index)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertEventOrder:
		if len(a.Topics) == 0 {
			return fmt.Errorf("assertions[%d]: topics list is required for event_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
