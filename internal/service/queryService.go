package service

import (
	"context"
	"fmt"

	repository "github.com/ds124wfegd/crossedpaths/internal/database/postgres"
	"github.com/ds124wfegd/crossedpaths/internal/entity"
	"github.com/ds124wfegd/crossedpaths/internal/pair"
)

// PairDetail is the per-venue breakdown of a match.
type PairDetail struct {
	Match  *entity.CrossedPathMatch `json:"match"`
	Venues []*entity.CrossedPathLog `json:"venues"`
}

type queryService struct {
	repo *repository.Repository
}

func NewQueryService(repo *repository.Repository) QueryService {
	return &queryService{repo: repo}
}

func (s *queryService) ConfirmedCount(ctx context.Context, eventID int64) (int, error) {
	if _, err := s.repo.Events.GetByID(ctx, eventID); err != nil {
		return 0, err
	}
	return s.repo.RSVPs.CountConfirmed(ctx, eventID)
}

func (s *queryService) EventAttendees(ctx context.Context, eventID int64) ([]*entity.Attendee, error) {
	if _, err := s.repo.Events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.repo.RSVPs.GetAttendees(ctx, eventID)
}

func (s *queryService) UserRSVPs(ctx context.Context, userID int64) ([]*entity.RSVP, error) {
	if _, err := s.repo.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.RSVPs.GetByUserID(ctx, userID)
}

func (s *queryService) ActiveMatches(ctx context.Context, userID int64) ([]*entity.MatchView, error) {
	if _, err := s.repo.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.CrossedPaths.ActiveMatches(ctx, userID)
}

func (s *queryService) PairDetail(ctx context.Context, userID, otherID int64) (*PairDetail, error) {
	key := pair.NewKey(userID, otherID)
	if key.IsSelf() {
		return nil, fmt.Errorf("%w: a user cannot cross paths with themselves", entity.ErrInvalidInput)
	}

	match, err := s.repo.CrossedPaths.GetMatch(ctx, key.Lo, key.Hi)
	if err != nil {
		return nil, err
	}
	if match == nil || !match.IsActive {
		return nil, entity.ErrMatchNotFound
	}

	logs, err := s.repo.CrossedPaths.PairLogs(ctx, key.Lo, key.Hi)
	if err != nil {
		return nil, err
	}

	return &PairDetail{Match: match, Venues: logs}, nil
}
