package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/medflow/scheduler-api/internal/model"
	"github.com/medflow/scheduler-api/internal/repository"
	apperrors "github.com/medflow/scheduler-api/pkg/errors"
)

// Overlap thresholds in minutes for severity classification. The
// unbuffered overlap decides the class; buffered-only overlaps fall
// through to low. A 15-minute overlap is already high: a half-slot
// collision displaces the patient either way.
const (
	criticalOverlapMins = 30
	highOverlapMins     = 15
	mediumOverlapMins   = 5
)

type Detector struct {
	clinics      repository.ClinicRepository
	availability repository.AvailabilityRepository
	slots        repository.SlotRepository
}

func NewDetector(clinics repository.ClinicRepository, availability repository.AvailabilityRepository, slots repository.SlotRepository) *Detector {
	return &Detector{
		clinics:      clinics,
		availability: availability,
		slots:        slots,
	}
}

// Detect finds every blocking condition for the request against the
// committed slots. Output order is deterministic: time overlaps in
// slot order, then business hours, then doctor availability, then
// clinic capacity.
func (d *Detector) Detect(ctx context.Context, req *model.SchedulingRequest, existingSlots []model.TimeSlot, bufferMinutes int) ([]model.ConflictRecord, error) {
	buffer := time.Duration(bufferMinutes) * time.Minute
	bufferedStart := req.RequestedStart.Add(-buffer)
	bufferedEnd := req.RequestedEnd().Add(buffer)

	conflicts := make([]model.ConflictRecord, 0)

	for i := range existingSlots {
		slot := existingSlots[i]
		if slot.DoctorID != req.DoctorID || slot.ClinicID != req.ClinicID {
			continue
		}
		if !(bufferedStart.Before(slot.End) && bufferedEnd.After(slot.Start)) {
			continue
		}

		overlap := unbufferedOverlapMinutes(req.RequestedStart, req.RequestedEnd(), slot.Start, slot.End)
		severity := severityForOverlap(overlap)
		if req.Priority == model.PriorityEmergency {
			// An emergency's own conflicts are expected to be
			// overridden; they are classified low but still resolved
			// explicitly, never silently.
			severity = model.SeverityLow
		}

		conflicts = append(conflicts, model.ConflictRecord{
			Kind:         model.ConflictTimeOverlap,
			Severity:     severity,
			Description:  fmt.Sprintf("requested window overlaps existing slot %s-%s by %.0f minutes", slot.Start.Format("15:04"), slot.End.Format("15:04"), overlap),
			AffectedSlot: &existingSlots[i],
		})
	}

	clinic, err := d.clinics.Get(ctx, req.ClinicID)
	if err != nil {
		return nil, apperrors.NewDependency("clinic lookup", err)
	}

	startMin := minutesSinceMidnight(req.RequestedStart)
	endMin := startMin + req.DurationMins
	if startMin < clinic.OpenMinute || endMin > clinic.CloseMinute {
		conflicts = append(conflicts, model.ConflictRecord{
			Kind:        model.ConflictBusinessRule,
			Severity:    model.SeverityMedium,
			Description: "requested time is outside clinic business hours",
		})
	}

	available, err := d.availability.IsDoctorAvailable(ctx, req.DoctorID, req.RequestedStart, req.RequestedEnd())
	if err != nil {
		return nil, apperrors.NewDependency("doctor availability check", err)
	}
	if !available {
		conflicts = append(conflicts, model.ConflictRecord{
			Kind:        model.ConflictDoctorUnavailable,
			Severity:    model.SeverityHigh,
			Description: "doctor is not scheduled to work during the requested window",
		})
	}

	count, err := d.slots.CountForClinicDay(ctx, req.ClinicID, req.RequestedStart)
	if err != nil {
		return nil, apperrors.NewDependency("clinic capacity check", err)
	}
	if clinic.DailyCapacity > 0 && count >= clinic.DailyCapacity {
		conflicts = append(conflicts, model.ConflictRecord{
			Kind:        model.ConflictCapacityExceeded,
			Severity:    model.SeverityMedium,
			Description: fmt.Sprintf("clinic has %d of %d appointments booked for the day", count, clinic.DailyCapacity),
		})
	}

	return conflicts, nil
}

func unbufferedOverlapMinutes(aStart, aEnd, bStart, bEnd time.Time) float64 {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Minutes()
}

func severityForOverlap(minutes float64) model.Severity {
	switch {
	case minutes > criticalOverlapMins:
		return model.SeverityCritical
	case minutes >= highOverlapMins:
		return model.SeverityHigh
	case minutes > mediumOverlapMins:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func minutesSinceMidnight(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
