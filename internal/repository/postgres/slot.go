package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/medflow/scheduler-api/internal/model"
)

// Committed slots are appointments in a lifecycle state that still
// blocks the calendar. Cancelled and no-show appointments release
// their window.
var blockingStatuses = []string{
	string(model.AppointmentStatusPending),
	string(model.AppointmentStatusScheduled),
	string(model.AppointmentStatusConfirmed),
	string(model.AppointmentStatusCheckedIn),
	string(model.AppointmentStatusInProgress),
}

func (r *slotRepository) FindCommittedSlots(ctx context.Context, doctorID, clinicID uuid.UUID, date time.Time) ([]model.TimeSlot, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	query := `
		SELECT scheduled_start AS start_time,
			   scheduled_start + (duration_mins || ' minutes')::interval AS end_time,
			   doctor_id, clinic_id, id AS appointment_id, 0 AS buffer_mins
		FROM appointments
		WHERE doctor_id = $1
		  AND clinic_id = $2
		  AND scheduled_start >= $3 AND scheduled_start < $4
		  AND status = ANY($5)
		  AND deleted_at IS NULL
		ORDER BY scheduled_start ASC
	`

	rows, err := r.db.QueryxContext(ctx, query, doctorID, clinicID, dayStart, dayEnd, pq.Array(blockingStatuses))
	if err != nil {
		return nil, fmt.Errorf("failed to find committed slots: %w", err)
	}
	defer rows.Close()

	var slots []model.TimeSlot
	for rows.Next() {
		var slot model.TimeSlot
		if err := rows.StructScan(&slot); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate slots: %w", err)
	}
	return slots, nil
}

func (r *slotRepository) CountForClinicDay(ctx context.Context, clinicID uuid.UUID, date time.Time) (int, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	query := `
		SELECT COUNT(*)
		FROM appointments
		WHERE clinic_id = $1
		  AND scheduled_start >= $2 AND scheduled_start < $3
		  AND status = ANY($4)
		  AND deleted_at IS NULL
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query, clinicID, dayStart, dayEnd, pq.Array(blockingStatuses)); err != nil {
		return 0, fmt.Errorf("failed to count clinic appointments: %w", err)
	}
	return count, nil
}
