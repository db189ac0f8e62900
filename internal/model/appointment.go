package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending    AppointmentStatus = "pending"
	AppointmentStatusScheduled  AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed  AppointmentStatus = "confirmed"
	AppointmentStatusCheckedIn  AppointmentStatus = "checked_in"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
	AppointmentStatusNoShow     AppointmentStatus = "no_show"
)

type Priority string

const (
	PriorityEmergency Priority = "emergency"
	PriorityVIP       Priority = "vip"
	PriorityRegular   Priority = "regular"
	PriorityFollowup  Priority = "followup"
)

type Appointment struct {
	Base
	ClinicID       uuid.UUID         `db:"clinic_id" json:"clinic_id"`
	DoctorID       uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	PatientID      uuid.UUID         `db:"patient_id" json:"patient_id"`
	ScheduledStart time.Time         `db:"scheduled_start" json:"scheduled_start"`
	DurationMins   int               `db:"duration_mins" json:"duration_mins"`
	Priority       Priority          `db:"priority" json:"priority"`
	ServiceType    string            `db:"service_type" json:"service_type"`
	Status         AppointmentStatus `db:"status" json:"status"`
	Notes          string            `db:"notes" json:"notes,omitempty"`
	CancelReason   *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
}

func (a *Appointment) ScheduledEnd() time.Time {
	return a.ScheduledStart.Add(time.Duration(a.DurationMins) * time.Minute)
}

// SchedulingRequest is the immutable input to conflict resolution.
// It is never persisted directly; a decision of canSchedule=true is
// what authorizes turning it into an Appointment.
type SchedulingRequest struct {
	PatientID      uuid.UUID `json:"patient_id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	ClinicID       uuid.UUID `json:"clinic_id"`
	RequestedStart time.Time `json:"requested_start"`
	DurationMins   int       `json:"duration_mins"`
	Priority       Priority  `json:"priority"`
	ServiceType    string    `json:"service_type"`
}

func (r *SchedulingRequest) RequestedEnd() time.Time {
	return r.RequestedStart.Add(time.Duration(r.DurationMins) * time.Minute)
}

// TimeSlot represents either a committed appointment window or a
// candidate window. Start < End always holds.
type TimeSlot struct {
	Start         time.Time  `db:"start_time" json:"start"`
	End           time.Time  `db:"end_time" json:"end"`
	DoctorID      uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	ClinicID      uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	BufferMins    int        `db:"buffer_mins" json:"buffer_mins"`
}

type ScheduleAppointmentRequest struct {
	PatientID      uuid.UUID `json:"patient_id" binding:"required"`
	DoctorID       uuid.UUID `json:"doctor_id" binding:"required"`
	ClinicID       uuid.UUID `json:"clinic_id" binding:"required"`
	RequestedStart time.Time `json:"requested_start" binding:"required,future"`
	DurationMins   int       `json:"duration_mins" binding:"required,gt=0"`
	Priority       string    `json:"priority" binding:"required,oneof=emergency vip regular followup"`
	ServiceType    string    `json:"service_type" binding:"max=100"`
	Notes          string    `json:"notes" binding:"max=1000"`
}

type UpdateStatusRequest struct {
	From AppointmentStatus `json:"from" binding:"required"`
	To   AppointmentStatus `json:"to" binding:"required"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

type AppointmentFilters struct {
	ClinicID  uuid.UUID
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Status    AppointmentStatus
	StartDate time.Time
	EndDate   time.Time
}
