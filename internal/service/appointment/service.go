package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/medflow/scheduler-api/internal/model"
	"github.com/medflow/scheduler-api/internal/repository"
	"github.com/medflow/scheduler-api/internal/service/event"
	"github.com/medflow/scheduler-api/internal/service/rule"
	"github.com/medflow/scheduler-api/internal/service/scheduling"
	"github.com/medflow/scheduler-api/internal/service/workflow"
	apperrors "github.com/medflow/scheduler-api/pkg/errors"
	"github.com/medflow/scheduler-api/pkg/logger"
	"github.com/medflow/scheduler-api/pkg/metrics"
)

// Emitter stages lifecycle events for asynchronous fan-out.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}

// Escalator delivers override escalations to a supervising role.
type Escalator interface {
	SendEscalation(ctx context.Context, to, subject, body string) error
}

type Config struct {
	BufferMinutes          int
	MaxAlternatives        int
	SuggestAlternatives    bool
	AllowEmergencyOverride bool
	EscalationAddress      string
}

type Service struct {
	repo     repository.AppointmentRepository
	slots    repository.SlotRepository
	rules    *rule.Service
	resolver *scheduling.Resolver
	workflow *workflow.Service
	events   Emitter
	escalate Escalator
	metrics  *metrics.Metrics
	logger   *logger.Logger
	cfg      Config
}

func NewService(
	repo repository.AppointmentRepository,
	slots repository.SlotRepository,
	rules *rule.Service,
	resolver *scheduling.Resolver,
	wf *workflow.Service,
	events Emitter,
	escalate Escalator,
	m *metrics.Metrics,
	log *logger.Logger,
	cfg Config,
) *Service {
	return &Service{
		repo:     repo,
		slots:    slots,
		rules:    rules,
		resolver: resolver,
		workflow: wf,
		events:   events,
		escalate: escalate,
		metrics:  m,
		logger:   log,
		cfg:      cfg,
	}
}

// Schedule runs the full decision pipeline for a request: rule
// evaluation, conflict resolution, then persistence and workflow
// initialization when the decision permits. A decision that cannot
// schedule is a normal result, not an error; callers branch on it.
func (s *Service) Schedule(ctx context.Context, req *model.SchedulingRequest, notes string) (*model.Appointment, *model.ResolutionDecision, error) {
	if err := validateRequest(req); err != nil {
		return nil, nil, err
	}

	rules, err := s.rules.LoadActiveRules(ctx, req.ClinicID)
	if err != nil {
		return nil, nil, err
	}

	evaluation, err := s.rules.Evaluate(ctx, rules, &model.RuleContext{
		ClinicID:     req.ClinicID,
		DoctorID:     req.DoctorID,
		Start:        req.RequestedStart,
		DurationMins: req.DurationMins,
	})
	if err != nil {
		return nil, nil, err
	}
	if !evaluation.Passed {
		decision := ruleRejection(evaluation)
		s.observeDecision(decision)
		return nil, decision, nil
	}

	decision, err := s.resolveOnce(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	s.observeDecision(decision)

	if !decision.CanSchedule {
		return nil, decision, nil
	}

	appointment, err := s.persist(ctx, req, notes)
	if errors.Is(err, repository.ErrSlotTaken) {
		// Lost the insert race: re-resolve against a fresh snapshot
		// once, then give up to the caller.
		s.metrics.InsertRetries.Inc()
		decision, err = s.resolveOnce(ctx, req)
		if err != nil {
			return nil, nil, err
		}
		s.observeDecision(decision)
		if !decision.CanSchedule {
			return nil, decision, nil
		}
		appointment, err = s.persist(ctx, req, notes)
	}
	if err != nil {
		return nil, nil, apperrors.NewDependency("appointment persistence", err)
	}

	if err := s.workflow.Initialize(ctx, appointment.ID, workflow.InitEventConfirmed); err != nil {
		return nil, nil, err
	}
	appointment.Status = model.AppointmentStatusScheduled

	if err := s.events.Emit(ctx, event.TypeAppointmentScheduled, appointment); err != nil {
		s.logger.Error(err, "failed to emit scheduled event", "appointment_id", appointment.ID.String())
	}

	if decision.Strategy == model.StrategyOverride {
		s.handleOverride(ctx, appointment, decision)
	}

	return appointment, decision, nil
}

func (s *Service) resolveOnce(ctx context.Context, req *model.SchedulingRequest) (*model.ResolutionDecision, error) {
	if s.metrics != nil {
		timer := prometheus.NewTimer(s.metrics.ResolveLatency)
		defer timer.ObserveDuration()
	}

	slots, err := s.slots.FindCommittedSlots(ctx, req.DoctorID, req.ClinicID, req.RequestedStart)
	if err != nil {
		return nil, apperrors.NewDependency("slot lookup", err)
	}

	return s.resolver.Resolve(ctx, req, slots, model.ResolveOptions{
		BufferMinutes:          s.cfg.BufferMinutes,
		MaxAlternatives:        s.cfg.MaxAlternatives,
		SuggestAlternatives:    s.cfg.SuggestAlternatives,
		AllowEmergencyOverride: s.cfg.AllowEmergencyOverride,
	})
}

func (s *Service) persist(ctx context.Context, req *model.SchedulingRequest, notes string) (*model.Appointment, error) {
	appointment := &model.Appointment{
		ClinicID:       req.ClinicID,
		DoctorID:       req.DoctorID,
		PatientID:      req.PatientID,
		ScheduledStart: req.RequestedStart,
		DurationMins:   req.DurationMins,
		Priority:       req.Priority,
		ServiceType:    req.ServiceType,
		Status:         model.AppointmentStatusPending,
		Notes:          notes,
	}
	if err := s.repo.Create(ctx, appointment); err != nil {
		return nil, err
	}
	return appointment, nil
}

func (s *Service) handleOverride(ctx context.Context, appointment *model.Appointment, decision *model.ResolutionDecision) {
	if err := s.events.Emit(ctx, event.TypeOverrideEscalated, map[string]interface{}{
		"appointment_id": appointment.ID,
		"actions":        decision.Actions,
	}); err != nil {
		s.logger.Error(err, "failed to emit override event", "appointment_id", appointment.ID.String())
	}

	if s.escalate == nil || s.cfg.EscalationAddress == "" {
		return
	}
	body := fmt.Sprintf(
		"Emergency appointment %s was scheduled by override; %d conflicting appointments require explicit resolution.",
		appointment.ID, len(decision.Conflicts))
	if err := s.escalate.SendEscalation(ctx, s.cfg.EscalationAddress, "Emergency scheduling override", body); err != nil {
		s.logger.Error(err, "failed to send escalation email", "appointment_id", appointment.ID.String())
	}
}

// Cancel rejects terminal-state appointments: completed appointments
// cannot be un-completed and cancelling twice is reported, not
// retried.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string, actorID uuid.UUID) error {
	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return apperrors.NewDependency("appointment lookup", err)
	}

	if !workflow.CanCancel(appointment.Status) {
		return apperrors.NewInvalidTransition(string(appointment.Status), string(model.AppointmentStatusCancelled))
	}

	if err := s.workflow.Transition(ctx, id, appointment.Status, model.AppointmentStatusCancelled, actorID); err != nil {
		return err
	}
	if err := s.repo.SetCancelReason(ctx, id, reason); err != nil {
		return apperrors.NewDependency("cancel reason persistence", err)
	}

	if err := s.events.Emit(ctx, event.TypeAppointmentCancelled, map[string]interface{}{
		"appointment_id": id,
		"reason":         reason,
	}); err != nil {
		s.logger.Error(err, "failed to emit cancelled event", "appointment_id", id.String())
	}
	return nil
}

// Transition moves an appointment along the status graph after
// checking that the caller's view of the current status is accurate.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, actorID uuid.UUID) error {
	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return apperrors.NewDependency("appointment lookup", err)
	}
	if appointment.Status != from {
		return apperrors.NewInvalidTransition(string(appointment.Status), string(to))
	}

	if err := s.workflow.Transition(ctx, id, from, to, actorID); err != nil {
		return err
	}

	if err := s.events.Emit(ctx, event.TypeStatusTransitioned, map[string]interface{}{
		"appointment_id": id,
		"from":           from,
		"to":             to,
	}); err != nil {
		s.logger.Error(err, "failed to emit transition event", "appointment_id", id.String())
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("appointment", err)
	}
	return appointment, nil
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	appointments, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, apperrors.NewDependency("appointment list", err)
	}
	return appointments, nil
}

func (s *Service) observeDecision(decision *model.ResolutionDecision) {
	if s.metrics == nil {
		return
	}
	s.metrics.SchedulingDecisions.WithLabelValues(string(decision.Strategy)).Inc()
	for _, c := range decision.Conflicts {
		s.metrics.ConflictsDetected.WithLabelValues(string(c.Kind), string(c.Severity)).Inc()
	}
	s.metrics.AlternativesOffered.Observe(float64(len(decision.Alternatives)))
}

func ruleRejection(evaluation *model.RuleEvaluation) *model.ResolutionDecision {
	conflicts := make([]model.ConflictRecord, 0, len(evaluation.Violations))
	for _, v := range evaluation.Violations {
		conflicts = append(conflicts, model.ConflictRecord{
			Kind:        model.ConflictBusinessRule,
			Severity:    model.SeverityMedium,
			Description: v,
		})
	}
	return &model.ResolutionDecision{
		CanSchedule:  false,
		Strategy:     model.StrategyReject,
		Conflicts:    conflicts,
		Alternatives: []model.AlternativeSlot{},
		Actions:      []model.ResolutionAction{},
	}
}

func validateRequest(req *model.SchedulingRequest) error {
	if req == nil {
		return apperrors.NewValidation("scheduling request is required")
	}
	if req.PatientID == uuid.Nil {
		return apperrors.NewValidation("patient ID is required")
	}
	if req.DoctorID == uuid.Nil {
		return apperrors.NewValidation("doctor ID is required")
	}
	if req.ClinicID == uuid.Nil {
		return apperrors.NewValidation("clinic ID is required")
	}
	if req.RequestedStart.IsZero() {
		return apperrors.NewValidation("requested start time is required")
	}
	if req.DurationMins <= 0 {
		return apperrors.NewValidation("duration must be positive")
	}
	switch req.Priority {
	case model.PriorityEmergency, model.PriorityVIP, model.PriorityRegular, model.PriorityFollowup:
	default:
		return apperrors.NewValidation("unknown priority")
	}
	return nil
}
