package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medflow/scheduler-api/internal/model"
	"github.com/medflow/scheduler-api/internal/repository"
	"github.com/medflow/scheduler-api/internal/service/workflow"
	apperrors "github.com/medflow/scheduler-api/pkg/errors"
	"github.com/medflow/scheduler-api/pkg/logger"
)

// Check-in is accepted from 30 minutes before through 2 hours after
// the scheduled start. Staff may force check-in outside this window
// with a mandatory reason.
const (
	earlyCheckInWindow = 30 * time.Minute
	lateCheckInWindow  = 2 * time.Hour
)

// Roles permitted to force check-in outside the window.
const (
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// EnqueueOptions carry the staff-override flag for out-of-window
// check-ins. An override without a staff role or without a reason is
// rejected: it is a logged business decision, not a silent exception.
type EnqueueOptions struct {
	Override       bool
	OverrideReason string
	ActorID        uuid.UUID
	ActorRole      string
}

type Service struct {
	locations      repository.LocationRepository
	queue          repository.QueueRepository
	counter        repository.QueueCounter
	appointments   repository.AppointmentRepository
	workflow       *workflow.Service
	logger         *logger.Logger
	minutesPerSlot int
	now            func() time.Time
}

func NewService(
	locations repository.LocationRepository,
	queue repository.QueueRepository,
	counter repository.QueueCounter,
	appointments repository.AppointmentRepository,
	wf *workflow.Service,
	log *logger.Logger,
	minutesPerSlot int,
) *Service {
	if minutesPerSlot <= 0 {
		minutesPerSlot = 15
	}
	return &Service{
		locations:      locations,
		queue:          queue,
		counter:        counter,
		appointments:   appointments,
		workflow:       wf,
		logger:         log,
		minutesPerSlot: minutesPerSlot,
		now:            time.Now,
	}
}

// ValidateLocation resolves the check-in location and runs the
// geofence check against it.
func (s *Service) ValidateLocation(ctx context.Context, patient model.Coordinates, locationID uuid.UUID) (model.GeofenceResult, error) {
	location, err := s.locations.GetCheckInLocation(ctx, locationID)
	if err != nil {
		return model.GeofenceResult{}, apperrors.NewDependency("check-in location lookup", err)
	}
	if !location.IsActive {
		return model.GeofenceResult{}, apperrors.NewValidation("check-in location is not active")
	}
	return ValidateLocation(patient, location), nil
}

// Enqueue assigns the next queue position for the location. The
// number comes from a single atomic increment per (location, window),
// so concurrent check-ins never share a position and completed
// entries never cause renumbering.
func (s *Service) Enqueue(ctx context.Context, appointmentID, locationID uuid.UUID, opts EnqueueOptions) (*model.QueueEntry, error) {
	appointment, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, apperrors.NewDependency("appointment lookup", err)
	}

	now := s.now()
	if err := s.checkWindow(appointment, now, opts); err != nil {
		return nil, err
	}

	existing, err := s.queue.ActiveEntryForAppointment(ctx, appointmentID)
	if err != nil {
		return nil, apperrors.NewDependency("queue lookup", err)
	}
	if existing != nil {
		return nil, apperrors.NewDuplicateCheckIn(
			fmt.Sprintf("appointment already checked in with queue number %d", existing.QueueNumber))
	}

	number, err := s.counter.Next(ctx, locationID, model.WindowKey(now))
	if err != nil {
		return nil, apperrors.NewDependency("queue number assignment", err)
	}

	entry := &model.QueueEntry{
		AppointmentID:     appointmentID,
		LocationID:        locationID,
		QueueNumber:       number,
		Status:            model.QueueStatusWaiting,
		EstimatedWaitMins: int(number) * s.minutesPerSlot,
		Override:          opts.Override,
	}
	if opts.Override {
		reason := opts.OverrideReason
		entry.OverrideReason = &reason
		entry.CheckedInBy = &opts.ActorID
	}

	if err := s.queue.Create(ctx, entry); err != nil {
		return nil, apperrors.NewDependency("queue entry persistence", err)
	}

	if err := s.workflow.Transition(ctx, appointmentID, appointment.Status, model.AppointmentStatusCheckedIn, opts.ActorID); err != nil {
		return nil, err
	}

	if opts.Override {
		s.logger.Warn("forced check-in outside the appointment window",
			"appointment_id", appointmentID.String(),
			"actor_id", opts.ActorID.String(),
			"reason", opts.OverrideReason,
		)
	}

	return entry, nil
}

// CompleteEntry marks a queue entry done and returns it. Remaining
// entries keep their numbers.
func (s *Service) CompleteEntry(ctx context.Context, entryID uuid.UUID) (*model.QueueEntry, error) {
	entry, err := s.queue.Get(ctx, entryID)
	if err != nil {
		return nil, apperrors.NewDependency("queue entry lookup", err)
	}
	if err := s.queue.UpdateStatus(ctx, entryID, model.QueueStatusDone); err != nil {
		return nil, apperrors.NewDependency("queue entry update", err)
	}
	entry.Status = model.QueueStatusDone
	return entry, nil
}

func (s *Service) checkWindow(appointment *model.Appointment, now time.Time, opts EnqueueOptions) error {
	windowStart := appointment.ScheduledStart.Add(-earlyCheckInWindow)
	windowEnd := appointment.ScheduledStart.Add(lateCheckInWindow)

	inWindow := !now.Before(windowStart) && !now.After(windowEnd)
	if inWindow {
		return nil
	}
	if !opts.Override {
		return apperrors.NewValidation(
			fmt.Sprintf("check-in is only accepted between %s and %s",
				windowStart.Format(time.RFC3339), windowEnd.Format(time.RFC3339)))
	}
	if opts.ActorRole != RoleStaff && opts.ActorRole != RoleAdmin {
		return apperrors.NewForbidden("only staff may force check-in outside the window")
	}
	if opts.OverrideReason == "" {
		return apperrors.NewValidation("an override reason is required for out-of-window check-in")
	}
	return nil
}
