package worker

import (
	"context"
	"time"

	"github.com/medflow/scheduler-api/internal/model"
	"github.com/medflow/scheduler-api/internal/repository"
	"github.com/medflow/scheduler-api/pkg/logger"
)

// QueueResetWorker zeroes each location's queue counter at the start of
// a new window so the first check-in of the day gets number 1 even when
// a stale counter value survived from a previous run.
type QueueResetWorker struct {
	locations repository.LocationRepository
	counter   repository.QueueCounter
	logger    *logger.Logger
	interval  time.Duration
	now       func() time.Time
}

func NewQueueResetWorker(
	locations repository.LocationRepository,
	counter repository.QueueCounter,
	log *logger.Logger,
	interval time.Duration,
) *QueueResetWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &QueueResetWorker{
		locations: locations,
		counter:   counter,
		logger:    log,
		interval:  interval,
		now:       time.Now,
	}
}

func (w *QueueResetWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	lastWindow := model.WindowKey(w.now())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			window := model.WindowKey(w.now())
			if window == lastWindow {
				continue
			}
			if err := w.resetAll(ctx, window); err != nil {
				w.logger.Error(err, "failed to reset queue counters", "window", window)
				continue
			}
			lastWindow = window
		}
	}
}

func (w *QueueResetWorker) resetAll(ctx context.Context, window string) error {
	locations, err := w.locations.ListActiveCheckInLocations(ctx)
	if err != nil {
		return err
	}
	for _, location := range locations {
		if err := w.counter.Reset(ctx, location.ID, window); err != nil {
			w.logger.Error(err, "failed to reset queue counter",
				"location_id", location.ID.String(), "window", window)
			continue
		}
	}
	w.logger.Info("queue counters reset", "window", window, "locations", len(locations))
	return nil
}
