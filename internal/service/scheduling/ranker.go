package scheduling

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/medflow/scheduler-api/internal/model"
	"github.com/medflow/scheduler-api/internal/repository"
	apperrors "github.com/medflow/scheduler-api/pkg/errors"
)

const (
	sameDayProbeStep = 30 * time.Minute
	nextDayProbeStep = time.Hour

	preferredThreshold = 80
	availableThreshold = 60
)

type Ranker struct {
	detector *Detector
	clinics  repository.ClinicRepository
}

func NewRanker(detector *Detector, clinics repository.ClinicRepository) *Ranker {
	return &Ranker{
		detector: detector,
		clinics:  clinics,
	}
}

// Rank probes candidate windows forward from the requested time and
// returns the best conflict-free alternatives, sorted by score
// descending. Ties keep probe order, so earlier slots win.
func (r *Ranker) Rank(ctx context.Context, req *model.SchedulingRequest, existingSlots []model.TimeSlot, bufferMinutes, maxAlternatives int) ([]model.AlternativeSlot, error) {
	if maxAlternatives <= 0 {
		return nil, nil
	}

	clinic, err := r.clinics.Get(ctx, req.ClinicID)
	if err != nil {
		return nil, apperrors.NewDependency("clinic lookup", err)
	}

	duration := time.Duration(req.DurationMins) * time.Minute
	dayStart := startOfDay(req.RequestedStart)
	closeAt := dayStart.Add(time.Duration(clinic.CloseMinute) * time.Minute)

	candidates := make([]model.AlternativeSlot, 0, maxAlternatives*2)

	// Same-day probes at fixed 30-minute increments forward from the
	// requested time.
	for t := req.RequestedStart.Add(sameDayProbeStep); !t.Add(duration).After(closeAt); t = t.Add(sameDayProbeStep) {
		slot, ok, err := r.probe(ctx, req, existingSlots, bufferMinutes, t)
		if err != nil {
			return nil, err
		}
		if ok {
			candidates = append(candidates, slot)
		}
	}

	// Fall back to next-day hourly probes within business hours.
	if len(candidates) < maxAlternatives {
		nextDay := dayStart.Add(24 * time.Hour)
		openAt := nextDay.Add(time.Duration(clinic.OpenMinute) * time.Minute)
		nextClose := nextDay.Add(time.Duration(clinic.CloseMinute) * time.Minute)

		for t := openAt; !t.Add(duration).After(nextClose); t = t.Add(nextDayProbeStep) {
			slot, ok, err := r.probe(ctx, req, existingSlots, bufferMinutes, t)
			if err != nil {
				return nil, err
			}
			if ok {
				candidates = append(candidates, slot)
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > maxAlternatives {
		candidates = candidates[:maxAlternatives]
	}
	return candidates, nil
}

// probe evaluates one candidate start time; only zero-conflict
// candidates are accepted.
func (r *Ranker) probe(ctx context.Context, req *model.SchedulingRequest, existingSlots []model.TimeSlot, bufferMinutes int, start time.Time) (model.AlternativeSlot, bool, error) {
	candidate := *req
	candidate.RequestedStart = start

	conflicts, err := r.detector.Detect(ctx, &candidate, existingSlots, bufferMinutes)
	if err != nil {
		return model.AlternativeSlot{}, false, err
	}
	if len(conflicts) > 0 {
		return model.AlternativeSlot{}, false, nil
	}

	score := scoreCandidate(req, start)
	return model.AlternativeSlot{
		Start:        start,
		End:          start.Add(time.Duration(req.DurationMins) * time.Minute),
		Score:        score,
		Availability: availabilityForScore(score),
	}, true, nil
}

// scoreCandidate starts at 100 and adjusts: -5 per hour of distance
// from the original request, +20 emergency / +10 vip priority, +10 for
// the clinically preferred 10-11am and 2-3pm starts, -20 outside
// 9am-5pm. Clamped to [0,100].
func scoreCandidate(req *model.SchedulingRequest, start time.Time) int {
	score := 100.0

	score -= 5 * math.Abs(start.Sub(req.RequestedStart).Hours())

	switch req.Priority {
	case model.PriorityEmergency:
		score += 20
	case model.PriorityVIP:
		score += 10
	}

	hour := start.Hour()
	if hour == 10 || hour == 14 {
		score += 10
	}
	if hour < 9 || hour >= 17 {
		score -= 20
	}

	rounded := int(math.Round(score))
	if rounded > 100 {
		return 100
	}
	if rounded < 0 {
		return 0
	}
	return rounded
}

func availabilityForScore(score int) model.SlotAvailability {
	switch {
	case score > preferredThreshold:
		return model.AvailabilityPreferred
	case score > availableThreshold:
		return model.AvailabilityAvailable
	default:
		return model.AvailabilitySuboptimal
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
