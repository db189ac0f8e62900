package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/medflow/scheduler-api/internal/model"
	"github.com/medflow/scheduler-api/internal/repository"
	"github.com/medflow/scheduler-api/pkg/logger"
)

// Event types emitted by the scheduling core.
const (
	TypeAppointmentScheduled = "appointment.scheduled"
	TypeAppointmentCancelled = "appointment.cancelled"
	TypeStatusTransitioned   = "appointment.status_transitioned"
	TypeOverrideEscalated    = "scheduling.override_escalated"
	TypePatientCheckedIn     = "checkin.enqueued"
)

// Service stages events in the outbox table; the worker fans them out
// to the broker. Emission is fire-and-forget from the core's
// perspective.
type Service struct {
	outbox repository.OutboxRepository
	logger *logger.Logger
}

func NewService(outbox repository.OutboxRepository, log *logger.Logger) *Service {
	return &Service{
		outbox: outbox,
		logger: log,
	}
}

func (s *Service) Emit(ctx context.Context, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	evt := &model.OutboxEvent{
		EventType: eventType,
		Payload:   body,
	}
	if err := s.outbox.Create(ctx, evt); err != nil {
		return fmt.Errorf("failed to stage outbox event: %w", err)
	}

	s.logger.Debug("event staged", "event_type", eventType)
	return nil
}
