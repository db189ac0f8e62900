package rule

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/medflow/scheduler-api/internal/model"
	"github.com/medflow/scheduler-api/internal/repository"
	apperrors "github.com/medflow/scheduler-api/pkg/errors"
	"github.com/medflow/scheduler-api/pkg/logger"
)

// Service evaluates per-clinic business rules against a candidate
// appointment. The rule cache is injected; its TTL and invalidation
// are owned by the caller, the evaluator only reads through it.
type Service struct {
	rules   repository.RuleRepository
	clinics repository.ClinicRepository
	slots   repository.SlotRepository
	cache   *gocache.Cache
	logger  *logger.Logger
}

func NewService(rules repository.RuleRepository, clinics repository.ClinicRepository, slots repository.SlotRepository, ruleCache *gocache.Cache, log *logger.Logger) *Service {
	return &Service{
		rules:   rules,
		clinics: clinics,
		slots:   slots,
		cache:   ruleCache,
		logger:  log,
	}
}

// LoadActiveRules returns the active rule set for a clinic, reading
// through the injected cache.
func (s *Service) LoadActiveRules(ctx context.Context, clinicID uuid.UUID) ([]model.BusinessRule, error) {
	key := clinicID.String()
	if cached, ok := s.cache.Get(key); ok {
		if rules, ok := cached.([]model.BusinessRule); ok {
			return rules, nil
		}
	}

	rules, err := s.rules.LoadActiveRules(ctx, clinicID)
	if err != nil {
		return nil, apperrors.NewDependency("rule lookup", err)
	}

	s.cache.Set(key, rules, gocache.DefaultExpiration)
	return rules, nil
}

// Evaluate runs every active rule; there is no short-circuit, so one
// pass always yields the complete violation set. A rule whose
// evaluation errors is recorded as failed rather than silently
// granting access.
func (s *Service) Evaluate(ctx context.Context, rules []model.BusinessRule, rctx *model.RuleContext) (*model.RuleEvaluation, error) {
	ordered := make([]model.BusinessRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	evaluation := &model.RuleEvaluation{
		AppliedRules: make([]string, 0, len(ordered)),
		Violations:   make([]string, 0),
	}

	for _, r := range ordered {
		if !r.IsActive {
			continue
		}

		evaluation.AppliedRules = append(evaluation.AppliedRules, r.Name)

		passed, reason, err := s.evaluateRule(ctx, &r, rctx)
		if err != nil {
			s.logger.Error(err, "rule evaluation failed", "rule", r.Name)
			evaluation.Violations = append(evaluation.Violations, fmt.Sprintf("%s: evaluation failed", r.Name))
			continue
		}
		if !passed {
			evaluation.Violations = append(evaluation.Violations, fmt.Sprintf("%s: %s", r.Name, reason))
		}
	}

	evaluation.Passed = len(evaluation.Violations) == 0
	return evaluation, nil
}

func (s *Service) evaluateRule(ctx context.Context, r *model.BusinessRule, rctx *model.RuleContext) (bool, string, error) {
	switch r.Conditions.Kind {
	case model.RuleTimeValidation:
		return s.checkTimeWindow(ctx, r, rctx)
	case model.RuleConflictCheck:
		return s.checkExistingSlots(ctx, rctx)
	case model.RuleCapacityCheck:
		return s.checkCapacity(ctx, r, rctx)
	default:
		// Unknown kinds pass: fail-open for evaluation, fail-closed
		// for scheduling; the resolver runs its own checks.
		return true, "", nil
	}
}

// checkTimeWindow verifies the appointment's wall-clock window lies
// within [open+buffer, close-buffer] of the clinic's working hours.
func (s *Service) checkTimeWindow(ctx context.Context, r *model.BusinessRule, rctx *model.RuleContext) (bool, string, error) {
	clinic, err := s.clinics.Get(ctx, rctx.ClinicID)
	if err != nil {
		return false, "", fmt.Errorf("clinic lookup: %w", err)
	}

	buffer := r.Conditions.BufferMinutes
	startMin := rctx.Start.Hour()*60 + rctx.Start.Minute()
	endMin := startMin + rctx.DurationMins

	if startMin < clinic.OpenMinute+buffer || endMin > clinic.CloseMinute-buffer {
		return false, "requested time is outside clinic working hours", nil
	}
	return true, "", nil
}

// checkExistingSlots is a coarse pre-filter: any committed slot for
// the doctor on the date fails the rule. The detector refines this.
func (s *Service) checkExistingSlots(ctx context.Context, rctx *model.RuleContext) (bool, string, error) {
	slots, err := s.slots.FindCommittedSlots(ctx, rctx.DoctorID, rctx.ClinicID, rctx.Start)
	if err != nil {
		return false, "", fmt.Errorf("slot lookup: %w", err)
	}
	if len(slots) > 0 {
		return false, "doctor already has appointments booked for the date", nil
	}
	return true, "", nil
}

func (s *Service) checkCapacity(ctx context.Context, r *model.BusinessRule, rctx *model.RuleContext) (bool, string, error) {
	count, err := s.slots.CountForClinicDay(ctx, rctx.ClinicID, rctx.Start)
	if err != nil {
		return false, "", fmt.Errorf("capacity lookup: %w", err)
	}

	capacity := r.Conditions.MaxPerDay
	if capacity <= 0 {
		clinic, err := s.clinics.Get(ctx, rctx.ClinicID)
		if err != nil {
			return false, "", fmt.Errorf("clinic lookup: %w", err)
		}
		capacity = clinic.DailyCapacity
	}

	if capacity > 0 && count >= capacity {
		return false, fmt.Sprintf("clinic capacity of %d appointments for the day is exhausted", capacity), nil
	}
	return true, "", nil
}
