package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/scheduler-api/internal/model"
	"github.com/medflow/scheduler-api/internal/repository"
	"github.com/medflow/scheduler-api/internal/service/rule"
	"github.com/medflow/scheduler-api/internal/service/scheduling"
	"github.com/medflow/scheduler-api/internal/service/workflow"
	apperrors "github.com/medflow/scheduler-api/pkg/errors"
	"github.com/medflow/scheduler-api/pkg/logger"
	"github.com/medflow/scheduler-api/pkg/metrics"
)

// Registered once; promauto metrics cannot be registered per test.
var testMetrics = metrics.NewMetrics("medflow_test", "appointment")

var requestedStart = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type fakeAppointmentRepo struct {
	mu         sync.Mutex
	byID       map[uuid.UUID]*model.Appointment
	createErrs []error
	creates    int
}

func newFakeAppointmentRepo(createErrs ...error) *fakeAppointmentRepo {
	return &fakeAppointmentRepo{
		byID:       make(map[uuid.UUID]*model.Appointment),
		createErrs: createErrs,
	}
}

func (f *fakeAppointmentRepo) Create(_ context.Context, appointment *model.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	appointment.ID = uuid.New()
	f.byID[appointment.ID] = appointment
	return nil
}

func (f *fakeAppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appointment, ok := f.byID[id]
	if !ok {
		return nil, assert.AnError
	}
	return appointment, nil
}

func (f *fakeAppointmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.AppointmentStatus, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if appointment, ok := f.byID[id]; ok {
		appointment.Status = status
	}
	return nil
}

func (f *fakeAppointmentRepo) SetCancelReason(_ context.Context, id uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if appointment, ok := f.byID[id]; ok {
		appointment.CancelReason = &reason
	}
	return nil
}

func (f *fakeAppointmentRepo) List(_ context.Context, _ *model.AppointmentFilters) ([]*model.Appointment, error) {
	return nil, nil
}

type fakeSlotRepo struct {
	slots []model.TimeSlot
	count int
}

func (f *fakeSlotRepo) FindCommittedSlots(_ context.Context, _, _ uuid.UUID, _ time.Time) ([]model.TimeSlot, error) {
	return f.slots, nil
}

func (f *fakeSlotRepo) CountForClinicDay(_ context.Context, _ uuid.UUID, _ time.Time) (int, error) {
	return f.count, nil
}

type fakeRuleRepo struct {
	rules []model.BusinessRule
}

func (f *fakeRuleRepo) LoadActiveRules(_ context.Context, _ uuid.UUID) ([]model.BusinessRule, error) {
	return f.rules, nil
}

type fakeClinicRepo struct{}

func (f *fakeClinicRepo) Get(_ context.Context, _ uuid.UUID) (*model.Clinic, error) {
	return &model.Clinic{OpenMinute: 9 * 60, CloseMinute: 17 * 60}, nil
}

type fakeAvailabilityRepo struct{ available bool }

func (f *fakeAvailabilityRepo) IsDoctorAvailable(_ context.Context, _ uuid.UUID, _, _ time.Time) (bool, error) {
	return f.available, nil
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEmitter) Emit(_ context.Context, eventType string, _ interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return nil
}

type fakeEscalator struct {
	calls int
	to    string
}

func (f *fakeEscalator) SendEscalation(_ context.Context, to, _, _ string) error {
	f.calls++
	f.to = to
	return nil
}

type testHarness struct {
	service   *Service
	repo      *fakeAppointmentRepo
	emitter   *fakeEmitter
	escalator *fakeEscalator
}

func newHarness(repo *fakeAppointmentRepo, slots *fakeSlotRepo, rules []model.BusinessRule) *testHarness {
	log := logger.NewLogger(nil)

	clinics := &fakeClinicRepo{}
	ruleSvc := rule.NewService(&fakeRuleRepo{rules: rules}, clinics, slots, gocache.New(time.Minute, time.Minute), log)

	detector := scheduling.NewDetector(clinics, &fakeAvailabilityRepo{available: true}, slots)
	resolver := scheduling.NewResolver(detector, scheduling.NewRanker(detector, clinics))

	emitter := &fakeEmitter{}
	escalator := &fakeEscalator{}

	svc := NewService(
		repo,
		slots,
		ruleSvc,
		resolver,
		workflow.NewService(repo, log),
		emitter,
		escalator,
		testMetrics,
		log,
		Config{
			BufferMinutes:          10,
			MaxAlternatives:        3,
			SuggestAlternatives:    false,
			AllowEmergencyOverride: true,
			EscalationAddress:      "oncall@clinic.example",
		},
	)

	return &testHarness{service: svc, repo: repo, emitter: emitter, escalator: escalator}
}

func validRequest(priority model.Priority) *model.SchedulingRequest {
	return &model.SchedulingRequest{
		PatientID:      uuid.New(),
		DoctorID:       uuid.New(),
		ClinicID:       uuid.New(),
		RequestedStart: requestedStart,
		DurationMins:   30,
		Priority:       priority,
	}
}

func TestScheduleValidatesRequest(t *testing.T) {
	h := newHarness(newFakeAppointmentRepo(), &fakeSlotRepo{}, nil)

	tests := []struct {
		name   string
		mutate func(*model.SchedulingRequest)
	}{
		{"missing patient", func(r *model.SchedulingRequest) { r.PatientID = uuid.Nil }},
		{"missing doctor", func(r *model.SchedulingRequest) { r.DoctorID = uuid.Nil }},
		{"missing clinic", func(r *model.SchedulingRequest) { r.ClinicID = uuid.Nil }},
		{"zero start", func(r *model.SchedulingRequest) { r.RequestedStart = time.Time{} }},
		{"zero duration", func(r *model.SchedulingRequest) { r.DurationMins = 0 }},
		{"negative duration", func(r *model.SchedulingRequest) { r.DurationMins = -15 }},
		{"unknown priority", func(r *model.SchedulingRequest) { r.Priority = "urgent" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest(model.PriorityRegular)
			tt.mutate(req)

			_, _, err := h.service.Schedule(context.Background(), req, "")
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrValidation, apperrors.CodeOf(err))
		})
	}

	_, _, err := h.service.Schedule(context.Background(), nil, "")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrValidation, apperrors.CodeOf(err))
	assert.Zero(t, h.repo.creates)
}

func TestScheduleHappyPath(t *testing.T) {
	h := newHarness(newFakeAppointmentRepo(), &fakeSlotRepo{}, nil)

	appointment, decision, err := h.service.Schedule(context.Background(), validRequest(model.PriorityRegular), "first visit")
	require.NoError(t, err)
	require.NotNil(t, appointment)
	require.NotNil(t, decision)

	assert.True(t, decision.CanSchedule)
	assert.Equal(t, model.StrategyAllow, decision.Strategy)
	assert.Equal(t, model.AppointmentStatusScheduled, appointment.Status)
	assert.Equal(t, "first visit", appointment.Notes)
	assert.Equal(t, 1, h.repo.creates)
	assert.Contains(t, h.emitter.events, "appointment.scheduled")
	assert.Zero(t, h.escalator.calls)
}

func TestScheduleRejectedByRules(t *testing.T) {
	failing := model.BusinessRule{
		Name:       "no-double-booking",
		Priority:   1,
		IsActive:   true,
		Conditions: model.RuleConditions{Kind: model.RuleConflictCheck},
	}
	failing.ID = uuid.New()

	// One committed slot on the date makes the conflict-check rule fail.
	slots := &fakeSlotRepo{slots: []model.TimeSlot{{
		Start: requestedStart.Add(2 * time.Hour),
		End:   requestedStart.Add(2*time.Hour + 30*time.Minute),
	}}}
	h := newHarness(newFakeAppointmentRepo(), slots, []model.BusinessRule{failing})

	appointment, decision, err := h.service.Schedule(context.Background(), validRequest(model.PriorityRegular), "")
	require.NoError(t, err)
	assert.Nil(t, appointment)
	require.NotNil(t, decision)
	assert.False(t, decision.CanSchedule)
	assert.Equal(t, model.StrategyReject, decision.Strategy)
	require.NotEmpty(t, decision.Conflicts)
	assert.Equal(t, model.ConflictBusinessRule, decision.Conflicts[0].Kind)
	assert.Zero(t, h.repo.creates)
}

func TestScheduleRetriesOnceOnSlotTaken(t *testing.T) {
	repo := newFakeAppointmentRepo(repository.ErrSlotTaken)
	h := newHarness(repo, &fakeSlotRepo{}, nil)

	appointment, decision, err := h.service.Schedule(context.Background(), validRequest(model.PriorityRegular), "")
	require.NoError(t, err)
	require.NotNil(t, appointment)
	assert.True(t, decision.CanSchedule)
	assert.Equal(t, 2, repo.creates)
}

func TestScheduleEmergencyOverrideEscalates(t *testing.T) {
	req := validRequest(model.PriorityEmergency)

	displacedID := uuid.New()
	slots := &fakeSlotRepo{slots: []model.TimeSlot{{
		Start:         requestedStart,
		End:           requestedStart.Add(30 * time.Minute),
		DoctorID:      req.DoctorID,
		ClinicID:      req.ClinicID,
		AppointmentID: &displacedID,
	}}}
	h := newHarness(newFakeAppointmentRepo(), slots, nil)

	appointment, decision, err := h.service.Schedule(context.Background(), req, "")
	require.NoError(t, err)
	require.NotNil(t, appointment)
	assert.Equal(t, model.StrategyOverride, decision.Strategy)

	assert.Contains(t, h.emitter.events, "scheduling.override_escalated")
	assert.Equal(t, 1, h.escalator.calls)
	assert.Equal(t, "oncall@clinic.example", h.escalator.to)
}

func TestCancelRejectsTerminalStates(t *testing.T) {
	repo := newFakeAppointmentRepo()
	h := newHarness(repo, &fakeSlotRepo{}, nil)

	appointment := &model.Appointment{Status: model.AppointmentStatusCompleted}
	require.NoError(t, repo.Create(context.Background(), appointment))

	err := h.service.Cancel(context.Background(), appointment.ID, "patient request", uuid.New())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidTransition, apperrors.CodeOf(err))
}

func TestCancelRecordsReason(t *testing.T) {
	repo := newFakeAppointmentRepo()
	h := newHarness(repo, &fakeSlotRepo{}, nil)

	appointment := &model.Appointment{Status: model.AppointmentStatusScheduled}
	require.NoError(t, repo.Create(context.Background(), appointment))

	err := h.service.Cancel(context.Background(), appointment.ID, "patient request", uuid.New())
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, appointment.Status)
	require.NotNil(t, appointment.CancelReason)
	assert.Equal(t, "patient request", *appointment.CancelReason)
	assert.Contains(t, h.emitter.events, "appointment.cancelled")
}

func TestTransitionChecksCurrentStatus(t *testing.T) {
	repo := newFakeAppointmentRepo()
	h := newHarness(repo, &fakeSlotRepo{}, nil)

	appointment := &model.Appointment{Status: model.AppointmentStatusScheduled}
	require.NoError(t, repo.Create(context.Background(), appointment))

	// Caller's view of the current status is stale.
	err := h.service.Transition(context.Background(), appointment.ID, model.AppointmentStatusConfirmed, model.AppointmentStatusCheckedIn, uuid.New())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidTransition, apperrors.CodeOf(err))

	err = h.service.Transition(context.Background(), appointment.ID, model.AppointmentStatusScheduled, model.AppointmentStatusConfirmed, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, appointment.Status)
}
