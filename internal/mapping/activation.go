package mapping

import (
	"fmt"
	"math"

	"github.com/tilde-audio/remap/internal/script"
)

// ActivationKind discriminates activation conditions.
type ActivationKind int

const (
	// ActivationAlways is the absence of a condition.
	ActivationAlways ActivationKind = iota
	// ActivationModifier requires up to two parameter slots to be in a
	// given on/off state.
	ActivationModifier
	// ActivationBank requires a parameter slot to compute to a given bank
	// index.
	ActivationBank
	// ActivationExpr evaluates a scripted boolean over the parameter array.
	ActivationExpr
)

// ModifierState is one modifier requirement: the parameter slot must be on
// (non-zero) or off.
type ModifierState struct {
	ParamIndex int
	On         bool
}

// ActivationCondition gates whether a mapping (or group) is currently
// live. It is re-evaluated whenever a parameter in its compartment
// changes.
type ActivationCondition struct {
	Kind      ActivationKind
	Modifiers []ModifierState
	// BankParamIndex/BankIndex apply to ActivationBank.
	BankParamIndex int
	BankIndex      int
	Expr           string

	cond *script.Condition
}

// NewExprActivation compiles the expression once. The parameter slots are
// exposed as p[0]..p[99] (compartment-relative).
func NewExprActivation(expression string) (ActivationCondition, error) {
	c, err := script.CompileCondition(expression)
	if err != nil {
		return ActivationCondition{}, fmt.Errorf("activation condition: %w", err)
	}
	return ActivationCondition{Kind: ActivationExpr, Expr: expression, cond: c}, nil
}

// BankIndexOf converts a parameter slot value to a bank index.
func BankIndexOf(value float64) int {
	idx := int(math.Round(value * 100))
	if idx < 0 {
		return 0
	}
	return idx
}

// IsActive evaluates the condition against the compartment's parameter
// slots. A broken expression evaluates to inactive.
func (c ActivationCondition) IsActive(params []float64) bool {
	switch c.Kind {
	case ActivationModifier:
		for _, m := range c.Modifiers {
			if m.ParamIndex < 0 || m.ParamIndex >= len(params) {
				return false
			}
			if (params[m.ParamIndex] > 0) != m.On {
				return false
			}
		}
		return true
	case ActivationBank:
		if c.BankParamIndex < 0 || c.BankParamIndex >= len(params) {
			return false
		}
		return BankIndexOf(params[c.BankParamIndex]) == c.BankIndex
	case ActivationExpr:
		if c.cond == nil {
			return false
		}
		on, err := c.cond.Eval(params)
		return err == nil && on
	default:
		return true
	}
}

// DependsOnParameter reports whether a change of the given compartment
// slot can flip the condition.
func (c ActivationCondition) DependsOnParameter(i int) bool {
	switch c.Kind {
	case ActivationModifier:
		for _, m := range c.Modifiers {
			if m.ParamIndex == i {
				return true
			}
		}
		return false
	case ActivationBank:
		return c.BankParamIndex == i
	case ActivationExpr:
		// The expression can read any slot.
		return true
	default:
		return false
	}
}
