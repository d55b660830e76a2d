package service

import (
	"context"
	"errors"
	"time"

	repository "github.com/ds124wfegd/crossedpaths/internal/database/postgres"
	"github.com/ds124wfegd/crossedpaths/internal/entity"
	"github.com/ds124wfegd/crossedpaths/internal/pair"

	"github.com/sirupsen/logrus"
)

type crossedPathService struct {
	visits   repository.VisitRepository
	store    repository.CrossedPathRepository
	notifier Notifier
	clock    Clock
	grace    time.Duration
}

// NewCrossedPathService builds the aggregator. grace keeps the backlog sweep
// away from visits whose admission cascade may still be running.
func NewCrossedPathService(
	visits repository.VisitRepository,
	store repository.CrossedPathRepository,
	notifier Notifier,
	clock Clock,
	grace time.Duration,
) CrossedPathService {
	return &crossedPathService{
		visits:   visits,
		store:    store,
		notifier: notifier,
		clock:    clock,
		grace:    grace,
	}
}

// Reconcile pairs the visit with every other user already reconciled at the
// venue and bumps their counters. The venue lock plus the reconciled mark make
// each co-location count exactly once: of two concurrent visits, only the one
// reconciled second sees the other. Reconciling an already reconciled visit is
// a no-op that returns no events.
func (s *crossedPathService) Reconcile(ctx context.Context, visit *entity.Visit) ([]*entity.MatchEvent, error) {
	now := s.clock.Now()

	var events []*entity.MatchEvent
	err := s.store.InVenueTx(ctx, visit.VenueID, now, func(tx repository.CrossedPathTx) error {
		events = nil

		current, err := tx.GetVisit(ctx, visit.ID)
		if err != nil {
			return err
		}
		if current.IsReconciled() {
			return nil
		}

		others, err := tx.ReconciledVisitors(ctx, current.VenueID, current.UserID)
		if err != nil {
			return err
		}

		for _, other := range others {
			key := pair.NewKey(current.UserID, other)
			if key.IsSelf() {
				continue
			}

			crossLog, err := tx.UpsertLog(ctx, key.Lo, key.Hi, current.VenueID, now)
			if err != nil {
				return err
			}
			match, err := tx.UpsertMatch(ctx, key.Lo, key.Hi, current.VenueID, crossLog.CrossCount == 1, now)
			if err != nil {
				return err
			}

			events = append(events, &entity.MatchEvent{
				UserLo:     key.Lo,
				UserHi:     key.Hi,
				VenueID:    current.VenueID,
				VisitID:    current.ID,
				CrossCount: crossLog.CrossCount,
				NewMatch:   crossLog.CrossCount == 1 && match.VenueCount == 1,
				MatchedAt:  match.MatchedAt,
				At:         now,
			})
		}

		return tx.MarkReconciled(ctx, current.ID, now)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"visit_id": visit.ID,
		"user_id":  visit.UserID,
		"venue_id": visit.VenueID,
		"pairs":    len(events),
	}).Info("visit reconciled")
	return events, nil
}

func (s *crossedPathService) ReconcileByID(ctx context.Context, visitID int64) ([]*entity.MatchEvent, error) {
	visit, err := s.visits.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}

	events, err := s.Reconcile(ctx, visit)
	if err != nil {
		return nil, err
	}
	s.notifyMatches(ctx, events)
	return events, nil
}

func (s *crossedPathService) ReconcileBacklog(ctx context.Context, limit int) (int, error) {
	before := s.clock.Now().Add(-s.grace)

	visits, err := s.visits.ListUnreconciled(ctx, before, limit)
	if err != nil {
		return 0, err
	}

	var (
		processed int
		errs      []error
	)
	for _, visit := range visits {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		events, err := s.Reconcile(ctx, visit)
		if err != nil {
			logrus.WithError(err).WithField("visit_id", visit.ID).Warn("backlog reconciliation failed")
			errs = append(errs, err)
			continue
		}
		s.notifyMatches(ctx, events)
		processed++
	}

	return processed, errors.Join(errs...)
}

func (s *crossedPathService) notifyMatches(ctx context.Context, events []*entity.MatchEvent) {
	for _, ev := range events {
		if err := s.notifier.NotifyMatch(ctx, ev); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"user_lo": ev.UserLo,
				"user_hi": ev.UserHi,
			}).Warn("match notification failed")
		}
	}
}
