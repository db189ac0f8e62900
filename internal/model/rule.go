package model

import (
	"time"

	"github.com/google/uuid"
)

type RuleConditionKind string

// Closed set of rule condition kinds. Rules persisted with a kind
// outside this set evaluate as passing (fail-open for evaluation,
// fail-closed for scheduling: the resolver runs its own checks).
const (
	RuleTimeValidation RuleConditionKind = "time_validation"
	RuleConflictCheck  RuleConditionKind = "conflict_check"
	RuleCapacityCheck  RuleConditionKind = "capacity_check"
)

// RuleConditions is a tagged union keyed by Kind. Only the fields
// belonging to the tagged variant are meaningful.
type RuleConditions struct {
	Kind RuleConditionKind `json:"kind"`

	// time_validation
	BufferMinutes int `json:"buffer_minutes,omitempty"`

	// capacity_check
	MaxPerDay int `json:"max_per_day,omitempty"`
}

type BusinessRule struct {
	Base
	ClinicID   uuid.UUID      `db:"clinic_id" json:"clinic_id"`
	Name       string         `db:"name" json:"name"`
	Priority   int            `db:"priority" json:"priority"`
	IsActive   bool           `db:"is_active" json:"is_active"`
	Conditions RuleConditions `db:"conditions" json:"conditions"`
	Actions    []string       `db:"actions" json:"actions,omitempty"`
}

// RuleContext is the candidate appointment a rule set is evaluated
// against.
type RuleContext struct {
	ClinicID     uuid.UUID
	DoctorID     uuid.UUID
	Start        time.Time
	DurationMins int
}

// RuleEvaluation is the complete outcome of one evaluator pass. Every
// active rule is evaluated, so Violations always holds the full set.
type RuleEvaluation struct {
	Passed       bool     `json:"passed"`
	AppliedRules []string `json:"applied_rules"`
	Violations   []string `json:"violations"`
}
