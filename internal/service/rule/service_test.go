package rule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/scheduler-api/internal/model"
	"github.com/medflow/scheduler-api/pkg/logger"
)

type fakeRuleRepo struct {
	rules []model.BusinessRule
	calls int
	err   error
}

func (f *fakeRuleRepo) LoadActiveRules(_ context.Context, _ uuid.UUID) ([]model.BusinessRule, error) {
	f.calls++
	return f.rules, f.err
}

type fakeClinicRepo struct {
	clinic *model.Clinic
	err    error
}

func (f *fakeClinicRepo) Get(_ context.Context, _ uuid.UUID) (*model.Clinic, error) {
	return f.clinic, f.err
}

type fakeSlotRepo struct {
	slots []model.TimeSlot
	count int
	err   error
}

func (f *fakeSlotRepo) FindCommittedSlots(_ context.Context, _, _ uuid.UUID, _ time.Time) ([]model.TimeSlot, error) {
	return f.slots, f.err
}

func (f *fakeSlotRepo) CountForClinicDay(_ context.Context, _ uuid.UUID, _ time.Time) (int, error) {
	return f.count, f.err
}

func businessRule(name string, priority int, conditions model.RuleConditions) model.BusinessRule {
	r := model.BusinessRule{
		Name:       name,
		Priority:   priority,
		IsActive:   true,
		Conditions: conditions,
	}
	r.ID = uuid.New()
	return r
}

func newTestService(rules *fakeRuleRepo, clinics *fakeClinicRepo, slots *fakeSlotRepo) *Service {
	return NewService(rules, clinics, slots, gocache.New(time.Minute, time.Minute), logger.NewLogger(nil))
}

func testContext() *model.RuleContext {
	return &model.RuleContext{
		ClinicID:     uuid.New(),
		DoctorID:     uuid.New(),
		Start:        time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		DurationMins: 30,
	}
}

func openClinic() *model.Clinic {
	return &model.Clinic{
		OpenMinute:  9 * 60,
		CloseMinute: 17 * 60,
	}
}

func TestEvaluateAppliesEveryRule(t *testing.T) {
	clinics := &fakeClinicRepo{clinic: openClinic()}
	// One committed slot for the date fails the conflict check.
	slots := &fakeSlotRepo{slots: []model.TimeSlot{{}}, count: 1}
	svc := newTestService(&fakeRuleRepo{}, clinics, slots)

	rules := []model.BusinessRule{
		businessRule("working-hours", 1, model.RuleConditions{Kind: model.RuleTimeValidation}),
		businessRule("no-double-booking", 2, model.RuleConditions{Kind: model.RuleConflictCheck}),
		businessRule("daily-capacity", 3, model.RuleConditions{Kind: model.RuleCapacityCheck, MaxPerDay: 100}),
	}

	evaluation, err := svc.Evaluate(context.Background(), rules, testContext())
	require.NoError(t, err)

	// The failing middle rule does not stop later rules from running.
	assert.Equal(t, []string{"working-hours", "no-double-booking", "daily-capacity"}, evaluation.AppliedRules)
	require.Len(t, evaluation.Violations, 1)
	assert.Contains(t, evaluation.Violations[0], "no-double-booking")
	assert.False(t, evaluation.Passed)
}

func TestEvaluateOrdersByPriority(t *testing.T) {
	clinics := &fakeClinicRepo{clinic: openClinic()}
	svc := newTestService(&fakeRuleRepo{}, clinics, &fakeSlotRepo{})

	rules := []model.BusinessRule{
		businessRule("third", 30, model.RuleConditions{Kind: model.RuleTimeValidation}),
		businessRule("first", 10, model.RuleConditions{Kind: model.RuleTimeValidation}),
		businessRule("second", 20, model.RuleConditions{Kind: model.RuleTimeValidation}),
	}

	evaluation, err := svc.Evaluate(context.Background(), rules, testContext())
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, evaluation.AppliedRules)
	assert.True(t, evaluation.Passed)
}

func TestEvaluateSkipsInactiveRules(t *testing.T) {
	clinics := &fakeClinicRepo{clinic: openClinic()}
	svc := newTestService(&fakeRuleRepo{}, clinics, &fakeSlotRepo{})

	inactive := businessRule("disabled", 1, model.RuleConditions{Kind: model.RuleTimeValidation})
	inactive.IsActive = false

	evaluation, err := svc.Evaluate(context.Background(), []model.BusinessRule{inactive}, testContext())
	require.NoError(t, err)
	assert.Empty(t, evaluation.AppliedRules)
	assert.True(t, evaluation.Passed)
}

func TestEvaluateUnknownKindPasses(t *testing.T) {
	svc := newTestService(&fakeRuleRepo{}, &fakeClinicRepo{clinic: openClinic()}, &fakeSlotRepo{})

	rules := []model.BusinessRule{
		businessRule("weather-check", 1, model.RuleConditions{Kind: "weather_check"}),
	}

	evaluation, err := svc.Evaluate(context.Background(), rules, testContext())
	require.NoError(t, err)
	assert.Equal(t, []string{"weather-check"}, evaluation.AppliedRules)
	assert.True(t, evaluation.Passed)
}

func TestEvaluateErroredRuleIsRecordedAsFailed(t *testing.T) {
	clinics := &fakeClinicRepo{clinic: openClinic()}
	slots := &fakeSlotRepo{err: assert.AnError}
	svc := newTestService(&fakeRuleRepo{}, clinics, slots)

	rules := []model.BusinessRule{
		businessRule("no-double-booking", 1, model.RuleConditions{Kind: model.RuleConflictCheck}),
		businessRule("working-hours", 2, model.RuleConditions{Kind: model.RuleTimeValidation}),
	}

	evaluation, err := svc.Evaluate(context.Background(), rules, testContext())
	require.NoError(t, err)
	assert.False(t, evaluation.Passed)
	require.Len(t, evaluation.Violations, 1)
	assert.Equal(t, "no-double-booking: evaluation failed", evaluation.Violations[0])
	// The errored rule did not stop the rest of the pass.
	assert.Equal(t, []string{"no-double-booking", "working-hours"}, evaluation.AppliedRules)
}

func TestCheckTimeWindowHonorsBuffer(t *testing.T) {
	clinics := &fakeClinicRepo{clinic: openClinic()}
	svc := newTestService(&fakeRuleRepo{}, clinics, &fakeSlotRepo{})

	rules := []model.BusinessRule{
		businessRule("buffered-hours", 1, model.RuleConditions{Kind: model.RuleTimeValidation, BufferMinutes: 90}),
	}

	// 10:00 start is fine unbuffered but violates a 90-minute buffer
	// after the 9:00 opening.
	rctx := testContext()
	rctx.Start = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	evaluation, err := svc.Evaluate(context.Background(), rules, rctx)
	require.NoError(t, err)
	assert.False(t, evaluation.Passed)
}

func TestCapacityFallsBackToClinicDefault(t *testing.T) {
	clinic := openClinic()
	clinic.DailyCapacity = 2
	clinics := &fakeClinicRepo{clinic: clinic}
	slots := &fakeSlotRepo{count: 2}
	svc := newTestService(&fakeRuleRepo{}, clinics, slots)

	rules := []model.BusinessRule{
		businessRule("daily-capacity", 1, model.RuleConditions{Kind: model.RuleCapacityCheck}),
	}

	evaluation, err := svc.Evaluate(context.Background(), rules, testContext())
	require.NoError(t, err)
	assert.False(t, evaluation.Passed)
	assert.Contains(t, evaluation.Violations[0], "capacity of 2")
}

func TestLoadActiveRulesReadsThroughCache(t *testing.T) {
	repo := &fakeRuleRepo{rules: []model.BusinessRule{
		businessRule("working-hours", 1, model.RuleConditions{Kind: model.RuleTimeValidation}),
	}}
	svc := newTestService(repo, &fakeClinicRepo{clinic: openClinic()}, &fakeSlotRepo{})

	clinicID := uuid.New()

	first, err := svc.LoadActiveRules(context.Background(), clinicID)
	require.NoError(t, err)
	second, err := svc.LoadActiveRules(context.Background(), clinicID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.calls)
}

func TestLoadActiveRulesFailsClosed(t *testing.T) {
	repo := &fakeRuleRepo{err: assert.AnError}
	svc := newTestService(repo, &fakeClinicRepo{clinic: openClinic()}, &fakeSlotRepo{})

	rules, err := svc.LoadActiveRules(context.Background(), uuid.New())
	assert.Error(t, err)
	assert.Nil(t, rules)
}
