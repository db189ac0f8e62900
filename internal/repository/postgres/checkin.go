package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/medflow/scheduler-api/internal/model"
)

type checkInLocationRow struct {
	ID           uuid.UUID `db:"id"`
	ClinicID     uuid.UUID `db:"clinic_id"`
	Name         string    `db:"name"`
	Lat          float64   `db:"lat"`
	Lng          float64   `db:"lng"`
	RadiusMeters float64   `db:"radius_meters"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r *locationRepository) GetCheckInLocation(ctx context.Context, id uuid.UUID) (*model.CheckInLocation, error) {
	query := `
		SELECT id, clinic_id, name, lat, lng, radius_meters, is_active,
			   created_at, updated_at
		FROM checkin_locations
		WHERE id = $1 AND deleted_at IS NULL
	`
	var row checkInLocationRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, fmt.Errorf("failed to get check-in location: %w", err)
	}

	location := &model.CheckInLocation{
		ClinicID:     row.ClinicID,
		Name:         row.Name,
		Coordinates:  model.Coordinates{Lat: row.Lat, Lng: row.Lng},
		RadiusMeters: row.RadiusMeters,
		IsActive:     row.IsActive,
	}
	location.ID = row.ID
	location.CreatedAt = row.CreatedAt
	location.UpdatedAt = row.UpdatedAt
	return location, nil
}

func (r *locationRepository) ListActiveCheckInLocations(ctx context.Context) ([]*model.CheckInLocation, error) {
	query := `
		SELECT id, clinic_id, name, lat, lng, radius_meters, is_active,
			   created_at, updated_at
		FROM checkin_locations
		WHERE is_active = true AND deleted_at IS NULL
	`
	var rows []checkInLocationRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list check-in locations: %w", err)
	}

	locations := make([]*model.CheckInLocation, 0, len(rows))
	for _, row := range rows {
		location := &model.CheckInLocation{
			ClinicID:     row.ClinicID,
			Name:         row.Name,
			Coordinates:  model.Coordinates{Lat: row.Lat, Lng: row.Lng},
			RadiusMeters: row.RadiusMeters,
			IsActive:     row.IsActive,
		}
		location.ID = row.ID
		location.CreatedAt = row.CreatedAt
		location.UpdatedAt = row.UpdatedAt
		locations = append(locations, location)
	}
	return locations, nil
}

var activeQueueStatuses = []string{
	string(model.QueueStatusWaiting),
	string(model.QueueStatusInProgress),
}

func (r *queueRepository) Create(ctx context.Context, entry *model.QueueEntry) error {
	query := `
		INSERT INTO queue_entries (
			id, appointment_id, location_id, queue_number, status,
			estimated_wait_mins, override, override_reason, checked_in_by,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.AppointmentID,
		entry.LocationID,
		entry.QueueNumber,
		entry.Status,
		entry.EstimatedWaitMins,
		entry.Override,
		entry.OverrideReason,
		entry.CheckedInBy,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create queue entry: %w", err)
	}
	return nil
}

func (r *queueRepository) Get(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error) {
	query := `
		SELECT id, appointment_id, location_id, queue_number, status,
			   estimated_wait_mins, override, override_reason, checked_in_by,
			   created_at, updated_at
		FROM queue_entries
		WHERE id = $1
	`
	var entry model.QueueEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	return &entry, nil
}

func (r *queueRepository) ActiveEntryForAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.QueueEntry, error) {
	query := `
		SELECT id, appointment_id, location_id, queue_number, status,
			   estimated_wait_mins, override, override_reason, checked_in_by,
			   created_at, updated_at
		FROM queue_entries
		WHERE appointment_id = $1 AND status = ANY($2)
	`
	var entry model.QueueEntry
	err := r.db.GetContext(ctx, &entry, query, appointmentID, pq.Array(activeQueueStatuses))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active queue entry: %w", err)
	}
	return &entry, nil
}

func (r *queueRepository) ActiveCount(ctx context.Context, locationID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM queue_entries
		WHERE location_id = $1 AND status = ANY($2)
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query, locationID, pq.Array(activeQueueStatuses)); err != nil {
		return 0, fmt.Errorf("failed to count active queue entries: %w", err)
	}
	return count, nil
}

func (r *queueRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.QueueStatus) error {
	query := `
		UPDATE queue_entries
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update queue entry status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("queue entry not found")
	}
	return nil
}
