package scheduler

import (
	"context"
	"time"

	"github.com/ds124wfegd/crossedpaths/internal/service"

	"github.com/sirupsen/logrus"
)

// Scheduler closes events whose start time has passed so they stop admitting.
type Scheduler struct {
	eventService service.EventService
	interval     time.Duration
}

func NewScheduler(eventService service.EventService, interval time.Duration) *Scheduler {
	return &Scheduler{
		eventService: eventService,
		interval:     interval,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.eventService.CompleteStartedEvents(ctx); err != nil {
				logrus.WithError(err).Error("Error completing started events")
			}
		case <-ctx.Done():
			return
		}
	}
}
