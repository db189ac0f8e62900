package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/medflow/scheduler-api/internal/model"
	"github.com/medflow/scheduler-api/internal/repository"
)

// Postgres error codes for unique_violation and exclusion_violation.
// The appointments table carries an exclusion constraint on
// (doctor_id, buffered window); a rejected insert surfaces as
// repository.ErrSlotTaken so the caller can re-resolve.
const (
	pqUniqueViolation    = "23505"
	pqExclusionViolation = "23P01"
)

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, clinic_id, doctor_id, patient_id,
			scheduled_start, duration_mins, priority, service_type,
			status, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.ClinicID,
		appointment.DoctorID,
		appointment.PatientID,
		appointment.ScheduledStart,
		appointment.DurationMins,
		appointment.Priority,
		appointment.ServiceType,
		appointment.Status,
		appointment.Notes,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			if pqErr.Code == pqUniqueViolation || pqErr.Code == pqExclusionViolation {
				return repository.ErrSlotTaken
			}
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT id, clinic_id, doctor_id, patient_id,
			   scheduled_start, duration_mins, priority, service_type,
			   status, notes, cancel_reason, created_at, updated_at
		FROM appointments
		WHERE id = $1 AND deleted_at IS NULL
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus, actorID uuid.UUID) error {
	query := `
		UPDATE appointments
		SET status = $1, updated_by = $2, updated_at = $3
		WHERE id = $4 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, status, actorID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appointment not found")
	}
	return nil
}

func (r *appointmentRepository) SetCancelReason(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE appointments
		SET cancel_reason = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL
	`
	_, err := r.db.ExecContext(ctx, query, reason, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set cancel reason: %w", err)
	}
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `
		SELECT id, clinic_id, doctor_id, patient_id,
			   scheduled_start, duration_mins, priority, service_type,
			   status, notes, cancel_reason, created_at, updated_at
		FROM appointments
		WHERE clinic_id = $1 AND deleted_at IS NULL
	`
	args := []interface{}{filters.ClinicID}
	idx := 2

	if filters.DoctorID != uuid.Nil {
		query += fmt.Sprintf(" AND doctor_id = $%d", idx)
		args = append(args, filters.DoctorID)
		idx++
	}
	if filters.PatientID != uuid.Nil {
		query += fmt.Sprintf(" AND patient_id = $%d", idx)
		args = append(args, filters.PatientID)
		idx++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, filters.Status)
		idx++
	}
	if !filters.StartDate.IsZero() {
		query += fmt.Sprintf(" AND scheduled_start >= $%d", idx)
		args = append(args, filters.StartDate)
		idx++
	}
	if !filters.EndDate.IsZero() {
		query += fmt.Sprintf(" AND scheduled_start < $%d", idx)
		args = append(args, filters.EndDate)
	}

	query += " ORDER BY scheduled_start ASC"

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}
