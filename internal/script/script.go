// Package script wraps the expression engine used for value
// transformations, scripted activation conditions and dynamic target
// selectors. Programs are compiled once and reused; a compile failure is
// reported to the caller, which degrades to identity/no-op behavior
// instead of failing the mapping.
package script

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Direction decides which transformation variable carries the input and
// which one the current output value.
type Direction int

const (
	// ControlDirection binds x to the incoming control value and y to the
	// current target value. The expression result becomes the new y.
	ControlDirection Direction = iota
	// FeedbackDirection binds y to the current target value and x to the
	// value about to be sent. The expression result becomes the new x.
	FeedbackDirection
)

// Transformation is a compiled numeric value transformation with the three
// conventional variables x, y and y_last.
type Transformation struct {
	program *vm.Program
}

// CompileTransformation compiles src. An empty script is an error so call
// sites can distinguish "no script configured" from "script broken".
func CompileTransformation(src string) (*Transformation, error) {
	if strings.TrimSpace(src) == "" {
		return nil, errors.New("script empty")
	}
	program, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile transformation: %w", err)
	}
	return &Transformation{program: program}, nil
}

// Transform evaluates the program. input and current are bound according to
// dir; yLast is the previous non-performance output value.
func (t *Transformation) Transform(input, current, yLast float64, dir Direction) (float64, error) {
	env := map[string]any{"y_last": yLast}
	switch dir {
	case ControlDirection:
		env["x"] = input
		env["y"] = current
	case FeedbackDirection:
		env["y"] = input
		env["x"] = current
	}
	out, err := expr.Run(t.program, env)
	if err != nil {
		return 0, fmt.Errorf("run transformation: %w", err)
	}
	f, err := toFloat(out)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("transformation produced a non-finite value")
	}
	return f, nil
}

// Condition is a compiled boolean condition over the parameter array.
type Condition struct {
	program *vm.Program
}

// CompileCondition compiles src. The parameter slots are exposed as p[0]
// through p[n-1]; any non-zero or true result counts as satisfied.
func CompileCondition(src string) (*Condition, error) {
	if strings.TrimSpace(src) == "" {
		return nil, errors.New("script empty")
	}
	program, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile condition: %w", err)
	}
	return &Condition{program: program}, nil
}

// Eval evaluates the condition against the given parameter slots.
func (c *Condition) Eval(params []float64) (bool, error) {
	out, err := expr.Run(c.program, map[string]any{"p": params})
	if err != nil {
		return false, fmt.Errorf("run condition: %w", err)
	}
	switch v := out.(type) {
	case bool:
		return v, nil
	default:
		f, err := toFloat(out)
		if err != nil {
			return false, err
		}
		return f != 0, nil
	}
}

// Index is a compiled dynamic index expression used by expression-based
// target selectors ("track number = p[0] * 8").
type Index struct {
	program *vm.Program
}

// CompileIndex compiles src with the parameter slots exposed as p.
func CompileIndex(src string) (*Index, error) {
	if strings.TrimSpace(src) == "" {
		return nil, errors.New("script empty")
	}
	program, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile index expression: %w", err)
	}
	return &Index{program: program}, nil
}

// Eval evaluates the expression and floors the result to a non-negative
// index.
func (i *Index) Eval(params []float64) (int, error) {
	out, err := expr.Run(i.program, map[string]any{"p": params})
	if err != nil {
		return 0, fmt.Errorf("run index expression: %w", err)
	}
	f, err := toFloat(out)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || f < 0 {
		return 0, errors.New("index expression produced a negative or invalid value")
	}
	return int(f), nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expression returned %T, expected a number", v)
	}
}
