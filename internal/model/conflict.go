package model

import (
	"time"

	"github.com/google/uuid"
)

type ConflictKind string

const (
	ConflictTimeOverlap       ConflictKind = "time_overlap"
	ConflictDoctorUnavailable ConflictKind = "doctor_unavailable"
	ConflictResource          ConflictKind = "resource_conflict"
	ConflictBusinessRule      ConflictKind = "business_rule"
	ConflictCapacityExceeded  ConflictKind = "capacity_exceeded"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the ordinal position of the severity, low first.
func (s Severity) Rank() int {
	return severityRank[s]
}

func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// ConflictRecord is produced, never mutated, by the detector.
type ConflictRecord struct {
	Kind         ConflictKind `json:"kind"`
	Severity     Severity     `json:"severity"`
	Description  string       `json:"description"`
	AffectedSlot *TimeSlot    `json:"affected_slot,omitempty"`
}

type SlotAvailability string

const (
	AvailabilityPreferred  SlotAvailability = "preferred"
	AvailabilityAvailable  SlotAvailability = "available"
	AvailabilitySuboptimal SlotAvailability = "suboptimal"
)

// AlternativeSlot carries a derived, re-computable score in [0,100].
type AlternativeSlot struct {
	Start        time.Time        `json:"start"`
	End          time.Time        `json:"end"`
	Score        int              `json:"score"`
	Availability SlotAvailability `json:"availability"`
}

type ResolutionStrategy string

const (
	StrategyAllow      ResolutionStrategy = "allow"
	StrategyOverride   ResolutionStrategy = "override"
	StrategyReschedule ResolutionStrategy = "reschedule"
	StrategyReject     ResolutionStrategy = "reject"
)

type ActionType string

const (
	ActionMoveAppointment ActionType = "move_appointment"
	ActionNotifyPatient   ActionType = "notify_patient"
	ActionEscalate        ActionType = "escalate"
	ActionShiftTime       ActionType = "shift_time"
	ActionExtendCapacity  ActionType = "extend_capacity"
)

type ResolutionAction struct {
	Type             ActionType `json:"type"`
	AppointmentID    *uuid.UUID `json:"appointment_id,omitempty"`
	RequiredApproval bool       `json:"required_approval"`
	Detail           string     `json:"detail,omitempty"`
}

// ResolutionDecision is the sole authoritative output of the resolver.
// Callers must not schedule an appointment whose CanSchedule is false.
type ResolutionDecision struct {
	CanSchedule  bool               `json:"can_schedule"`
	Strategy     ResolutionStrategy `json:"strategy"`
	Conflicts    []ConflictRecord   `json:"conflicts"`
	Alternatives []AlternativeSlot  `json:"alternatives"`
	Actions      []ResolutionAction `json:"actions"`
}

// ResolveOptions tune a single resolve call. The decision is advisory:
// the actual insert runs under a uniqueness constraint and a rejected
// insert must be retried against a fresh slot snapshot by the caller.
type ResolveOptions struct {
	BufferMinutes          int
	MaxAlternatives        int
	SuggestAlternatives    bool
	AllowEmergencyOverride bool
}
