package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medflow/scheduler-api/internal/model"
)

// ErrSlotTaken is returned by AppointmentRepository.Create when the
// store's uniqueness constraint on (doctor, buffered window) rejects
// the insert. The caller must re-resolve against a fresh slot snapshot.
var ErrSlotTaken = errors.New("slot already taken")

// All repository interfaces in one file
type (
	// AppointmentRepository owns appointment persistence. The workflow
	// service only validates transitions; writes land here.
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus, actorID uuid.UUID) error
		SetCancelReason(ctx context.Context, id uuid.UUID, reason string) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
	}

	// SlotRepository reads committed time slots for conflict analysis.
	SlotRepository interface {
		FindCommittedSlots(ctx context.Context, doctorID, clinicID uuid.UUID, date time.Time) ([]model.TimeSlot, error)
		CountForClinicDay(ctx context.Context, clinicID uuid.UUID, date time.Time) (int, error)
	}

	RuleRepository interface {
		LoadActiveRules(ctx context.Context, clinicID uuid.UUID) ([]model.BusinessRule, error)
	}

	ClinicRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
	}

	// AvailabilityRepository answers whether a doctor is on schedule
	// for a window. Pass/fail only; scheduling detail stays external.
	AvailabilityRepository interface {
		IsDoctorAvailable(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (bool, error)
	}

	LocationRepository interface {
		GetCheckInLocation(ctx context.Context, id uuid.UUID) (*model.CheckInLocation, error)
		ListActiveCheckInLocations(ctx context.Context) ([]*model.CheckInLocation, error)
	}

	QueueRepository interface {
		Create(ctx context.Context, entry *model.QueueEntry) error
		Get(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error)
		ActiveEntryForAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.QueueEntry, error)
		ActiveCount(ctx context.Context, locationID uuid.UUID) (int, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.QueueStatus) error
	}

	// QueueCounter hands out strictly increasing queue numbers per
	// (location, window) as a single atomic step. Reset is an explicit
	// collaborator-owned operation, never called during check-in.
	QueueCounter interface {
		Next(ctx context.Context, locationID uuid.UUID, window string) (int64, error)
		Reset(ctx context.Context, locationID uuid.UUID, window string) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
