package models

import (
	"math"
	"time"
)

// ValueType is the type of value a set-value step writes.
type ValueType string

const (
	ValueTypeNumeric ValueType = "numeric"
	ValueTypeBoolean ValueType = "boolean"
)

// WaitConfig configures a wait step.
type WaitConfig struct {
	DurationSeconds float64 `json:"duration_seconds"`
}

// Duration returns the configured wait as a time.Duration.
func (c WaitConfig) Duration() time.Duration {
	return secondsToDuration(c.DurationSeconds)
}

// ConditionConfig configures a condition step.
type ConditionConfig struct {
	Predicate Predicate `json:"predicate"`
}

// SetValueConfig configures a set-value step. StartValue and EndValue are
// float64 for numeric steps and bool for boolean steps.
type SetValueConfig struct {
	TargetAddress   string    `json:"target_address"`
	ValueType       ValueType `json:"value_type"`
	StartValue      any       `json:"start_value"`
	EndValue        any       `json:"end_value"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// Duration returns the ramp duration as a time.Duration.
func (c SetValueConfig) Duration() time.Duration {
	return secondsToDuration(c.DurationSeconds)
}

// MaxDurationSeconds is the longest duration a time.Duration can hold, in whole seconds.
const MaxDurationSeconds = math.MaxInt64 / int64(time.Second)

func secondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}

	if seconds >= float64(MaxDurationSeconds) {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(seconds * float64(time.Second))
}
