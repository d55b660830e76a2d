package service

import (
	"context"
	"fmt"
	"time"

	repository "github.com/ds124wfegd/crossedpaths/internal/database/postgres"
	"github.com/ds124wfegd/crossedpaths/internal/entity"

	"github.com/sirupsen/logrus"
)

// CreateEventRequest represents the data needed to create an event
type CreateEventRequest struct {
	CreatorID    int64     `json:"creator_id" binding:"required"`
	VenueID      *int64    `json:"venue_id,omitempty"`
	Title        string    `json:"title" binding:"required,min=1,max=255"`
	Capacity     int       `json:"capacity" binding:"required,min=1,max=10000"`
	RSVPDeadline time.Time `json:"rsvp_deadline" binding:"required"`
	StartsAt     time.Time `json:"starts_at" binding:"required"`
	FeeCents     *int64    `json:"fee_cents,omitempty"`
}

type CreateVenueRequest struct {
	Name      string  `json:"name" binding:"required,min=1,max=255"`
	Latitude  float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude float64 `json:"longitude" binding:"min=-180,max=180"`
}

type eventService struct {
	events repository.EventRepository
	venues repository.VenueRepository
	users  repository.UserRepository
	clock  Clock
}

// NewEventService creates a new instance of EventService
func NewEventService(
	events repository.EventRepository,
	venues repository.VenueRepository,
	users repository.UserRepository,
	clock Clock,
) EventService {
	return &eventService{
		events: events,
		venues: venues,
		users:  users,
		clock:  clock,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, req *CreateEventRequest) (*entity.Event, error) {
	now := s.clock.Now()

	if req.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", entity.ErrInvalidInput)
	}
	if req.FeeCents != nil && *req.FeeCents < 0 {
		return nil, fmt.Errorf("%w: fee must not be negative", entity.ErrInvalidInput)
	}
	if req.StartsAt.Before(now) {
		return nil, fmt.Errorf("%w: event must start in the future", entity.ErrInvalidInput)
	}
	if req.RSVPDeadline.After(req.StartsAt) {
		return nil, fmt.Errorf("%w: rsvp deadline must not be after the start", entity.ErrInvalidInput)
	}

	if _, err := s.users.GetByID(ctx, req.CreatorID); err != nil {
		return nil, err
	}
	if req.VenueID != nil {
		if _, err := s.venues.GetByID(ctx, *req.VenueID); err != nil {
			return nil, err
		}
	}

	event := &entity.Event{
		CreatorID:    req.CreatorID,
		VenueID:      req.VenueID,
		Title:        req.Title,
		Capacity:     req.Capacity,
		RSVPDeadline: req.RSVPDeadline,
		StartsAt:     req.StartsAt,
		FeeCents:     req.FeeCents,
		Status:       entity.EventStatusActive,
	}

	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"event_id": event.ID,
		"capacity": event.Capacity,
		"paid":     event.IsPaid(),
	}).Info("event created")
	return event, nil
}

func (s *eventService) GetEvent(ctx context.Context, id int64) (*entity.Event, error) {
	return s.events.GetByID(ctx, id)
}

func (s *eventService) GetAllEvents(ctx context.Context) ([]*entity.Event, error) {
	events, err := s.events.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get all events: %w", err)
	}

	return events, nil
}

// CancelEvent closes the event for admission. RSVPs and crossed paths stay as they are.
func (s *eventService) CancelEvent(ctx context.Context, id int64) error {
	if err := s.events.Cancel(ctx, id, s.clock.Now()); err != nil {
		return err
	}

	logrus.WithField("event_id", id).Info("event cancelled")
	return nil
}

func (s *eventService) CompleteStartedEvents(ctx context.Context) (int64, error) {
	count, err := s.events.CompleteStarted(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}

	if count > 0 {
		logrus.WithField("count", count).Info("started events completed")
	}
	return count, nil
}

func (s *eventService) CreateVenue(ctx context.Context, req *CreateVenueRequest) (*entity.Venue, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: venue name is required", entity.ErrInvalidInput)
	}

	venue := &entity.Venue{
		Name:      req.Name,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}
	if err := s.venues.Create(ctx, venue); err != nil {
		return nil, err
	}
	return venue, nil
}

func (s *eventService) GetAllVenues(ctx context.Context) ([]*entity.Venue, error) {
	return s.venues.GetAll(ctx)
}
