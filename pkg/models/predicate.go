package models

import (
	"errors"
	"fmt"

	"github.com/spf13/cast"
)

// Operator compares the value read from the endpoint against the predicate value.
type Operator string

const (
	OperatorEqual          Operator = "eq"
	OperatorNotEqual       Operator = "ne"
	OperatorGreater        Operator = "gt"
	OperatorGreaterOrEqual Operator = "gte"
	OperatorLess           Operator = "lt"
	OperatorLessOrEqual    Operator = "lte"
)

var ErrUnsupportedOperator = errors.New("unsupported operator")

// Predicate is the branch selection rule of a condition step: the value at
// Address is compared with Value using Operator.
type Predicate struct {
	Address  string   `json:"address"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Evaluate compares actual against the predicate value. Value is either a
// float64 or a bool; actual is coerced to the same type.
func (p Predicate) Evaluate(actual any) (bool, error) {
	switch expected := p.Value.(type) {
	case bool:
		got, err := cast.ToBoolE(actual)
		if err != nil {
			return false, fmt.Errorf("cannot compare %v (%T) with boolean: %w", actual, actual, err)
		}

		switch p.Operator {
		case OperatorEqual:
			return got == expected, nil
		case OperatorNotEqual:
			return got != expected, nil
		default:
			return false, fmt.Errorf("%w %q for boolean values", ErrUnsupportedOperator, p.Operator)
		}
	case float64:
		got, err := cast.ToFloat64E(actual)
		if err != nil {
			return false, fmt.Errorf("cannot compare %v (%T) with number: %w", actual, actual, err)
		}

		switch p.Operator {
		case OperatorEqual:
			return got == expected, nil
		case OperatorNotEqual:
			return got != expected, nil
		case OperatorGreater:
			return got > expected, nil
		case OperatorGreaterOrEqual:
			return got >= expected, nil
		case OperatorLess:
			return got < expected, nil
		case OperatorLessOrEqual:
			return got <= expected, nil
		default:
			return false, fmt.Errorf("%w %q", ErrUnsupportedOperator, p.Operator)
		}
	default:
		return false, fmt.Errorf("predicate value %v has unsupported type %T", p.Value, p.Value)
	}
}
