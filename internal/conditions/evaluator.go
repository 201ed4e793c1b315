// Package conditions evaluates process condition trees against live
// device state.
package conditions

import (
	"context"
	"fmt"

	"homehub/internal/models"
	"homehub/internal/values"
)

// ValueProvider resolves a condition operand to a concrete value.
type ValueProvider interface {
	Resolve(ctx context.Context, operand models.ConditionValue) (values.Value, error)
}

// Evaluator walks a condition tree and reports whether it is met.
// Malformed trees surface as errors to the caller; a broken rule must
// not take the engine down with it.
type Evaluator struct {
	provider ValueProvider
}

// NewEvaluator creates an evaluator resolving operands through the
// given provider.
func NewEvaluator(provider ValueProvider) *Evaluator {
	return &Evaluator{provider: provider}
}

// IsMet evaluates the condition tree rooted at node.
func (e *Evaluator) IsMet(ctx context.Context, node models.Comparable) (bool, error) {
	switch n := node.(type) {
	case models.BooleanGroup:
		return e.evaluateGroup(ctx, n)
	case models.ValueComparison:
		return e.evaluateComparison(ctx, n)
	default:
		return false, fmt.Errorf("conditions: unsupported condition node %T", node)
	}
}

func (e *Evaluator) evaluateGroup(ctx context.Context, group models.BooleanGroup) (bool, error) {
	switch group.Operator {
	case models.OpAnd:
		// Empty "and" is true.
		for _, operand := range group.Operands {
			met, err := e.IsMet(ctx, operand)
			if err != nil {
				return false, err
			}
			if !met {
				return false, nil
			}
		}
		return true, nil
	case models.OpOr:
		// Empty "or" is false.
		for _, operand := range group.Operands {
			met, err := e.IsMet(ctx, operand)
			if err != nil {
				return false, err
			}
			if met {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("conditions: unsupported logical operator %q", group.Operator)
	}
}

func (e *Evaluator) evaluateComparison(ctx context.Context, cmp models.ValueComparison) (bool, error) {
	left, err := e.provider.Resolve(ctx, cmp.Left)
	if err != nil {
		return false, err
	}
	right, err := e.provider.Resolve(ctx, cmp.Right)
	if err != nil {
		return false, err
	}

	switch cmp.Operator {
	case models.OpEqual:
		return values.Equal(left, right), nil
	case models.OpNotEqual:
		return !values.Equal(left, right), nil
	case models.OpGreaterThan, models.OpGreaterOrEqual, models.OpLessThan, models.OpLessOrEqual:
		// Ordering needs two numbers; anything else is simply not met.
		l, ok := left.Numeric()
		if !ok {
			return false, nil
		}
		r, ok := right.Numeric()
		if !ok {
			return false, nil
		}
		switch cmp.Operator {
		case models.OpGreaterThan:
			return l > r, nil
		case models.OpGreaterOrEqual:
			return l >= r, nil
		case models.OpLessThan:
			return l < r, nil
		default:
			return l <= r, nil
		}
	default:
		return false, fmt.Errorf("conditions: unsupported comparison operator %q", cmp.Operator)
	}
}
