package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medflow/scheduler-api/internal/model"
)

func (r *clinicRepository) Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	query := `
		SELECT id, organization_id, name, timezone,
			   open_minute, close_minute, daily_capacity, status,
			   created_at, updated_at
		FROM clinics
		WHERE id = $1 AND deleted_at IS NULL
	`
	var clinic model.Clinic
	if err := r.db.GetContext(ctx, &clinic, query, id); err != nil {
		return nil, fmt.Errorf("failed to get clinic: %w", err)
	}
	return &clinic, nil
}

func (r *availabilityRepository) IsDoctorAvailable(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (bool, error) {
	// A doctor is available when a schedule row covers the whole window
	// and no absence overlaps it.
	query := `
		SELECT EXISTS (
			SELECT 1 FROM doctor_schedules
			WHERE doctor_id = $1
			  AND available_from <= $2
			  AND available_until >= $3
		) AND NOT EXISTS (
			SELECT 1 FROM doctor_absences
			WHERE doctor_id = $1
			  AND starts_at < $3
			  AND ends_at > $2
		)
	`
	var available bool
	if err := r.db.GetContext(ctx, &available, query, doctorID, start, end); err != nil {
		return false, fmt.Errorf("failed to check doctor availability: %w", err)
	}
	return available, nil
}
