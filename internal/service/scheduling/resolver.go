package scheduling

import (
	"context"
	"fmt"

	"github.com/medflow/scheduler-api/internal/model"
)

// Resolver is the single authoritative decision point for scheduling.
// Callers must not schedule an appointment whose decision has
// CanSchedule=false, and must not displace a conflicting appointment
// except through an override decision produced here.
type Resolver struct {
	detector *Detector
	ranker   *Ranker
}

func NewResolver(detector *Detector, ranker *Ranker) *Resolver {
	return &Resolver{
		detector: detector,
		ranker:   ranker,
	}
}

// Resolve produces one decision per request. The decision is advisory
// under concurrency: the caller persists under a uniqueness constraint
// and re-resolves against a fresh snapshot if the insert is rejected.
func (r *Resolver) Resolve(ctx context.Context, req *model.SchedulingRequest, existingSlots []model.TimeSlot, opts model.ResolveOptions) (*model.ResolutionDecision, error) {
	conflicts, err := r.detector.Detect(ctx, req, existingSlots, opts.BufferMinutes)
	if err != nil {
		return nil, err
	}

	decision := &model.ResolutionDecision{
		Conflicts:    conflicts,
		Alternatives: []model.AlternativeSlot{},
		Actions:      []model.ResolutionAction{},
	}

	switch {
	case len(conflicts) == 0:
		decision.Strategy = model.StrategyAllow
		decision.CanSchedule = true

	case req.Priority == model.PriorityEmergency && opts.AllowEmergencyOverride:
		decision.Strategy = model.StrategyOverride
		decision.CanSchedule = true
		decision.Actions = overrideActions(conflicts)

	case !hasSeverity(conflicts, model.SeverityCritical) && !hasKind(conflicts, model.ConflictDoctorUnavailable):
		decision.Strategy = model.StrategyReschedule
		decision.CanSchedule = true
		decision.Actions = rescheduleActions(conflicts)

	default:
		decision.Strategy = model.StrategyReject
		decision.CanSchedule = false
	}

	// Alternatives are computed independent of the chosen strategy; a
	// rejected request still receives them.
	if opts.SuggestAlternatives {
		alternatives, err := r.ranker.Rank(ctx, req, existingSlots, opts.BufferMinutes, opts.MaxAlternatives)
		if err != nil {
			return nil, err
		}
		if alternatives != nil {
			decision.Alternatives = alternatives
		}
	}

	return decision, nil
}

// overrideActions displaces each conflicting appointment behind an
// approval gate and escalates to a supervising role.
func overrideActions(conflicts []model.ConflictRecord) []model.ResolutionAction {
	actions := make([]model.ResolutionAction, 0, len(conflicts)+2)

	for _, c := range conflicts {
		if c.Kind != model.ConflictTimeOverlap || c.AffectedSlot == nil || c.AffectedSlot.AppointmentID == nil {
			continue
		}
		actions = append(actions, model.ResolutionAction{
			Type:             model.ActionMoveAppointment,
			AppointmentID:    c.AffectedSlot.AppointmentID,
			RequiredApproval: true,
			Detail:           "displaced by emergency override",
		})
	}

	actions = append(actions,
		model.ResolutionAction{
			Type:   model.ActionNotifyPatient,
			Detail: "notify displaced patients of the emergency override",
		},
		model.ResolutionAction{
			Type:   model.ActionEscalate,
			Detail: "escalate emergency override to the supervising clinician",
		},
	)
	return actions
}

// rescheduleActions emits a bounded follow-up per conflict kind.
func rescheduleActions(conflicts []model.ConflictRecord) []model.ResolutionAction {
	actions := make([]model.ResolutionAction, 0, len(conflicts))
	for _, c := range conflicts {
		switch c.Kind {
		case model.ConflictTimeOverlap, model.ConflictBusinessRule:
			actions = append(actions, model.ResolutionAction{
				Type:   model.ActionShiftTime,
				Detail: fmt.Sprintf("shift the requested window to clear a %s conflict", c.Kind),
			})
		case model.ConflictCapacityExceeded, model.ConflictResource:
			actions = append(actions, model.ResolutionAction{
				Type:             model.ActionExtendCapacity,
				RequiredApproval: true,
				Detail:           "extend clinic capacity for the day",
			})
		}
	}
	return actions
}

func hasSeverity(conflicts []model.ConflictRecord, severity model.Severity) bool {
	for _, c := range conflicts {
		if c.Severity.AtLeast(severity) {
			return true
		}
	}
	return false
}

func hasKind(conflicts []model.ConflictRecord, kind model.ConflictKind) bool {
	for _, c := range conflicts {
		if c.Kind == kind {
			return true
		}
	}
	return false
}
