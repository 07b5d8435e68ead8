// Package query selects streams with CEL expressions.
//
// Expressions see one stream at a time plus the evaluation time:
//
//	id, start, cliff, end, now             int (seconds; ids and times)
//	deposit, rate, withdrawn               int
//	accrued, withdrawable                  int (at now)
//	sender, recipient, status              string
//
// Amounts are 128-bit internally and are clamped to the int64 range here.
// Example: status == "Active" && withdrawable > 0
package query

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/roach88/fluxora/internal/accrual"
	"github.com/roach88/fluxora/internal/domain"
)

// Filter is a compiled stream predicate. The zero Filter and a Filter
// compiled from an empty expression match everything.
type Filter struct {
	prog    cel.Program
	enabled bool
	expr    string
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("id", cel.IntType),
		cel.Variable("sender", cel.StringType),
		cel.Variable("recipient", cel.StringType),
		cel.Variable("status", cel.StringType),
		cel.Variable("deposit", cel.IntType),
		cel.Variable("rate", cel.IntType),
		cel.Variable("withdrawn", cel.IntType),
		cel.Variable("start", cel.IntType),
		cel.Variable("cliff", cel.IntType),
		cel.Variable("end", cel.IntType),
		cel.Variable("accrued", cel.IntType),
		cel.Variable("withdrawable", cel.IntType),
		cel.Variable("now", cel.IntType),
	)
}

// Compile parses and type-checks expr. The expression must yield a bool.
func Compile(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &Filter{}, nil
	}
	env, err := newEnv()
	if err != nil {
		return nil, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("parse filter: %w", iss.Err())
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return nil, fmt.Errorf("check filter: %w", iss2.Err())
	}
	if !checked.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("filter must be a bool expression, got %s", checked.OutputType())
	}
	prog, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	return &Filter{prog: prog, enabled: true, expr: expr}, nil
}

// String returns the source expression.
func (f *Filter) String() string { return f.expr }

// Match evaluates the filter against s at now.
func (f *Filter) Match(s domain.Stream, now uint64) (bool, error) {
	if f == nil || !f.enabled {
		return true, nil
	}
	accrued := accrual.StreamAccrued(s, now)
	out, _, err := f.prog.Eval(map[string]any{
		"id":           clampUint(uint64(s.ID)),
		"sender":       string(s.Sender),
		"recipient":    string(s.Recipient),
		"status":       s.Status.String(),
		"deposit":      s.Deposit.ClampInt64(),
		"rate":         s.Rate.ClampInt64(),
		"withdrawn":    s.Withdrawn.ClampInt64(),
		"start":        clampUint(s.Start),
		"cliff":        clampUint(s.Cliff),
		"end":          clampUint(s.End),
		"accrued":      accrued.ClampInt64(),
		"withdrawable": accrual.Withdrawable(accrued, s.Withdrawn).ClampInt64(),
		"now":          clampUint(now),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate filter on stream %d: %w", s.ID, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter returned %T, want bool", out.Value())
	}
	return b, nil
}

// Select returns the streams that match, preserving order.
func (f *Filter) Select(streams []domain.Stream, now uint64) ([]domain.Stream, error) {
	out := make([]domain.Stream, 0, len(streams))
	for _, s := range streams {
		ok, err := f.Match(s, now)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func clampUint(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
