package workflow

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/scheduler-api/internal/model"
	apperrors "github.com/medflow/scheduler-api/pkg/errors"
	"github.com/medflow/scheduler-api/pkg/logger"
)

type fakeAppointmentRepo struct {
	appointment *model.Appointment
	getErr      error
	updates     []model.AppointmentStatus
}

func (f *fakeAppointmentRepo) Create(_ context.Context, _ *model.Appointment) error { return nil }

func (f *fakeAppointmentRepo) Get(_ context.Context, _ uuid.UUID) (*model.Appointment, error) {
	return f.appointment, f.getErr
}

func (f *fakeAppointmentRepo) UpdateStatus(_ context.Context, _ uuid.UUID, status model.AppointmentStatus, _ uuid.UUID) error {
	f.updates = append(f.updates, status)
	return nil
}

func (f *fakeAppointmentRepo) SetCancelReason(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}

func (f *fakeAppointmentRepo) List(_ context.Context, _ *model.AppointmentFilters) ([]*model.Appointment, error) {
	return nil, nil
}

func TestIsValidTransitionHappyPath(t *testing.T) {
	path := []model.AppointmentStatus{
		model.AppointmentStatusPending,
		model.AppointmentStatusScheduled,
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusCheckedIn,
		model.AppointmentStatusInProgress,
		model.AppointmentStatusCompleted,
	}
	for i := 1; i < len(path); i++ {
		assert.True(t, IsValidTransition(path[i-1], path[i]), "%s -> %s", path[i-1], path[i])
	}
}

func TestIsValidTransitionRejectsSkips(t *testing.T) {
	assert.False(t, IsValidTransition(model.AppointmentStatusPending, model.AppointmentStatusConfirmed))
	assert.False(t, IsValidTransition(model.AppointmentStatusScheduled, model.AppointmentStatusInProgress))
	assert.False(t, IsValidTransition(model.AppointmentStatusConfirmed, model.AppointmentStatusCompleted))
	assert.False(t, IsValidTransition(model.AppointmentStatusCheckedIn, model.AppointmentStatusScheduled))
}

func TestTerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	terminals := []model.AppointmentStatus{
		model.AppointmentStatusCompleted,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	}
	all := []model.AppointmentStatus{
		model.AppointmentStatusPending,
		model.AppointmentStatusScheduled,
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusCheckedIn,
		model.AppointmentStatusInProgress,
		model.AppointmentStatusCompleted,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	}
	for _, terminal := range terminals {
		assert.Empty(t, LegalTransitions(terminal), "%s must be terminal", terminal)
		for _, to := range all {
			assert.False(t, IsValidTransition(terminal, to), "%s -> %s must be invalid", terminal, to)
		}
	}
}

func TestTerminalEdgesFromEveryNonTerminalState(t *testing.T) {
	// Cancelled and no_show must be reachable from every non-terminal
	// state, including in_progress (a patient who walks out mid-visit
	// can still be recorded as a no-show).
	nonTerminals := []model.AppointmentStatus{
		model.AppointmentStatusPending,
		model.AppointmentStatusScheduled,
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusCheckedIn,
		model.AppointmentStatusInProgress,
	}
	for _, from := range nonTerminals {
		assert.True(t, IsValidTransition(from, model.AppointmentStatusCancelled), "%s -> cancelled", from)
		assert.True(t, IsValidTransition(from, model.AppointmentStatusNoShow), "%s -> no_show", from)
	}
}

func TestCanCancel(t *testing.T) {
	assert.True(t, CanCancel(model.AppointmentStatusPending))
	assert.True(t, CanCancel(model.AppointmentStatusScheduled))
	assert.True(t, CanCancel(model.AppointmentStatusCheckedIn))
	assert.False(t, CanCancel(model.AppointmentStatusCompleted))
	assert.False(t, CanCancel(model.AppointmentStatusCancelled))
	assert.False(t, CanCancel(model.AppointmentStatusNoShow))
}

func TestTransitionPersistsValidEdge(t *testing.T) {
	repo := &fakeAppointmentRepo{}
	svc := NewService(repo, logger.NewLogger(nil))

	err := svc.Transition(context.Background(), uuid.New(), model.AppointmentStatusScheduled, model.AppointmentStatusConfirmed, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, []model.AppointmentStatus{model.AppointmentStatusConfirmed}, repo.updates)
}

func TestTransitionRejectsInvalidEdgeWithoutWriting(t *testing.T) {
	repo := &fakeAppointmentRepo{}
	svc := NewService(repo, logger.NewLogger(nil))

	err := svc.Transition(context.Background(), uuid.New(), model.AppointmentStatusCompleted, model.AppointmentStatusScheduled, uuid.New())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidTransition, apperrors.CodeOf(err))
	assert.Empty(t, repo.updates)
}

func TestInitializeSetsInitialStatus(t *testing.T) {
	appointment := &model.Appointment{Status: model.AppointmentStatusPending}
	repo := &fakeAppointmentRepo{appointment: appointment}
	svc := NewService(repo, logger.NewLogger(nil))

	err := svc.Initialize(context.Background(), uuid.New(), InitEventConfirmed)
	require.NoError(t, err)
	assert.Equal(t, []model.AppointmentStatus{model.AppointmentStatusScheduled}, repo.updates)
}

func TestInitializeIsIdempotent(t *testing.T) {
	appointment := &model.Appointment{Status: model.AppointmentStatusScheduled}
	repo := &fakeAppointmentRepo{appointment: appointment}
	svc := NewService(repo, logger.NewLogger(nil))

	err := svc.Initialize(context.Background(), uuid.New(), InitEventConfirmed)
	require.NoError(t, err)
	assert.Empty(t, repo.updates)
}

func TestInitializeFailsPastPending(t *testing.T) {
	appointment := &model.Appointment{Status: model.AppointmentStatusCompleted}
	repo := &fakeAppointmentRepo{appointment: appointment}
	svc := NewService(repo, logger.NewLogger(nil))

	err := svc.Initialize(context.Background(), uuid.New(), InitEventConfirmed)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidTransition, apperrors.CodeOf(err))
	assert.Empty(t, repo.updates)
}
