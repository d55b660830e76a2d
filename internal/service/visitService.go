package service

import (
	"context"
	"fmt"
	"time"

	repository "github.com/ds124wfegd/crossedpaths/internal/database/postgres"
	"github.com/ds124wfegd/crossedpaths/internal/entity"

	"github.com/sirupsen/logrus"
)

type visitService struct {
	visits repository.VisitRepository
}

func NewVisitService(visits repository.VisitRepository) VisitService {
	return &visitService{visits: visits}
}

// Record appends a visit fact. There is no uniqueness: every admitted RSVP with
// a resolvable venue is its own visit.
func (s *visitService) Record(ctx context.Context, userID, venueID int64, eventID *int64, at time.Time) (*entity.Visit, error) {
	if userID <= 0 || venueID <= 0 {
		return nil, fmt.Errorf("%w: user and venue are required", entity.ErrInvalidInput)
	}

	visit := &entity.Visit{
		UserID:    userID,
		VenueID:   venueID,
		EventID:   eventID,
		VisitedAt: at,
	}
	if err := s.visits.Create(ctx, visit); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"visit_id": visit.ID,
		"user_id":  userID,
		"venue_id": venueID,
	}).Debug("visit recorded")
	return visit, nil
}
