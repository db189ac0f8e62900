package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medflow/scheduler-api/internal/model"
	"github.com/medflow/scheduler-api/internal/repository"
	apperrors "github.com/medflow/scheduler-api/pkg/errors"
	"github.com/medflow/scheduler-api/pkg/logger"
)

// InitEvent selects the initial workflow state for a new appointment.
type InitEvent string

const (
	InitEventRequested InitEvent = "booking_requested"
	InitEventConfirmed InitEvent = "booking_confirmed"
)

// transitions is the appointment status graph. The happy path is
// linear; cancelled and no_show are terminal and reachable from every
// non-terminal state. Terminal states have no outgoing edges.
var transitions = map[model.AppointmentStatus][]model.AppointmentStatus{
	model.AppointmentStatusPending: {
		model.AppointmentStatusScheduled,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	},
	model.AppointmentStatusScheduled: {
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	},
	model.AppointmentStatusConfirmed: {
		model.AppointmentStatusCheckedIn,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	},
	model.AppointmentStatusCheckedIn: {
		model.AppointmentStatusInProgress,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	},
	model.AppointmentStatusInProgress: {
		model.AppointmentStatusCompleted,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	},
	model.AppointmentStatusCompleted: {},
	model.AppointmentStatusCancelled: {},
	model.AppointmentStatusNoShow:    {},
}

// IsValidTransition reports whether from->to is an edge of the status
// graph. Skipping forward without an edge fails, as does any
// transition out of a terminal state.
func IsValidTransition(from, to model.AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// LegalTransitions returns the valid next states from a status, so
// callers can surface them on rejection.
func LegalTransitions(from model.AppointmentStatus) []model.AppointmentStatus {
	next := transitions[from]
	out := make([]model.AppointmentStatus, len(next))
	copy(out, next)
	return out
}

// CanCancel reports whether an appointment in the given status may be
// cancelled. Completed appointments cannot be un-completed, and
// cancelling an already-cancelled appointment is idempotent-false.
func CanCancel(status model.AppointmentStatus) bool {
	switch status {
	case model.AppointmentStatusCompleted,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow:
		return false
	default:
		return true
	}
}

// Service owns the legality check for status changes; the persistence
// collaborator owns the mutation itself.
type Service struct {
	repo   repository.AppointmentRepository
	logger *logger.Logger
}

func NewService(repo repository.AppointmentRepository, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: log,
	}
}

// Transition validates the edge and hands the mutation to the
// persistence collaborator. Invalid edges are reported, never retried.
func (s *Service) Transition(ctx context.Context, appointmentID uuid.UUID, from, to model.AppointmentStatus, actorID uuid.UUID) error {
	if !IsValidTransition(from, to) {
		return apperrors.NewInvalidTransition(string(from), string(to))
	}

	if err := s.repo.UpdateStatus(ctx, appointmentID, to, actorID); err != nil {
		return fmt.Errorf("failed to persist status transition: %w", err)
	}

	s.logger.Info("appointment status transitioned",
		"appointment_id", appointmentID.String(),
		"from", string(from),
		"to", string(to),
		"actor_id", actorID.String(),
	)
	return nil
}

// Initialize sets the initial state for a new appointment. Calling it
// again with identical arguments is a no-op; calling it on an
// appointment already past pending fails.
func (s *Service) Initialize(ctx context.Context, appointmentID uuid.UUID, event InitEvent) error {
	initial := model.AppointmentStatusPending
	if event == InitEventConfirmed {
		initial = model.AppointmentStatusScheduled
	}

	appointment, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		return apperrors.NewDependency("appointment lookup", err)
	}

	switch appointment.Status {
	case initial:
		// Idempotent re-initialization.
		return nil
	case "", model.AppointmentStatusPending:
		return s.repo.UpdateStatus(ctx, appointmentID, initial, uuid.Nil)
	default:
		return apperrors.NewInvalidTransition(string(appointment.Status), string(initial))
	}
}
