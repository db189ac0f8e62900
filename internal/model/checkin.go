package model

import (
	"time"

	"github.com/google/uuid"
)

type Coordinates struct {
	Lat float64 `json:"lat" db:"lat"`
	Lng float64 `json:"lng" db:"lng"`
}

// CheckInLocation is immutable during a check-in operation.
type CheckInLocation struct {
	Base
	ClinicID     uuid.UUID   `db:"clinic_id" json:"clinic_id"`
	Name         string      `db:"name" json:"name"`
	Coordinates  Coordinates `json:"coordinates"`
	RadiusMeters float64     `db:"radius_meters" json:"radius_meters"`
	IsActive     bool        `db:"is_active" json:"is_active"`
}

type QueueStatus string

const (
	QueueStatusWaiting    QueueStatus = "waiting"
	QueueStatusInProgress QueueStatus = "in_progress"
	QueueStatusDone       QueueStatus = "done"
)

// QueueEntry holds a patient's position in a location's active queue
// window. Queue numbers are strictly increasing per (location, window)
// and are never renumbered when earlier entries complete.
type QueueEntry struct {
	Base
	AppointmentID     uuid.UUID   `db:"appointment_id" json:"appointment_id"`
	LocationID        uuid.UUID   `db:"location_id" json:"location_id"`
	QueueNumber       int64       `db:"queue_number" json:"queue_number"`
	Status            QueueStatus `db:"status" json:"status"`
	EstimatedWaitMins int         `db:"estimated_wait_mins" json:"estimated_wait_mins"`
	Override          bool        `db:"override" json:"override"`
	OverrideReason    *string     `db:"override_reason" json:"override_reason,omitempty"`
	CheckedInBy       *uuid.UUID  `db:"checked_in_by" json:"checked_in_by,omitempty"`
}

// GeofenceResult reports the measured distance so callers can surface
// "how far off" feedback on rejection.
type GeofenceResult struct {
	IsValid        bool    `json:"is_valid"`
	DistanceMeters float64 `json:"distance_meters"`
	RadiusMeters   float64 `json:"radius_meters"`
}

type CheckInRequest struct {
	AppointmentID  uuid.UUID `json:"appointment_id" binding:"required"`
	LocationID     uuid.UUID `json:"location_id" binding:"required"`
	Lat            float64   `json:"lat" binding:"required"`
	Lng            float64   `json:"lng" binding:"required"`
	Override       bool      `json:"override"`
	OverrideReason string    `json:"override_reason" binding:"max=500"`
}

type CheckInResult struct {
	Entry    *QueueEntry    `json:"entry"`
	Geofence GeofenceResult `json:"geofence"`
}

// WindowKey derives the active queue window for a check-in time.
// Resetting the underlying counter for a new window is an explicit
// collaborator-owned operation.
func WindowKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
