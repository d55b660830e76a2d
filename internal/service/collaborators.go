package service

import (
	"context"
	"errors"

	repository "github.com/ds124wfegd/crossedpaths/internal/database/postgres"
	"github.com/ds124wfegd/crossedpaths/internal/entity"
)

// PaymentCollaborator reports the charge state for (event, user). The engine
// never computes payment state; it only reads it and flags refunds.
type PaymentCollaborator interface {
	// PaymentStatus returns nil, nil when no charge was ever started.
	PaymentStatus(ctx context.Context, eventID, userID int64) (*entity.Payment, error)
	MarkRefundPending(ctx context.Context, eventID, userID int64) (bool, error)
}

// SubscriptionCollaborator supplies the user's subscription. nil means free tier.
type SubscriptionCollaborator interface {
	Subscription(ctx context.Context, userID int64) (*entity.Subscription, error)
}

// VenueResolver maps an event to its venue. Returns entity.ErrVenueUnresolvable
// when the event has no venue or the venue record is gone.
type VenueResolver interface {
	ResolveVenue(ctx context.Context, event *entity.Event) (*entity.Venue, error)
}

type storePayments struct {
	payments repository.PaymentRepository
	clock    Clock
}

// NewStorePayments reads payment rows written by the gateway integration.
func NewStorePayments(payments repository.PaymentRepository, clock Clock) PaymentCollaborator {
	return &storePayments{payments: payments, clock: clock}
}

func (p *storePayments) PaymentStatus(ctx context.Context, eventID, userID int64) (*entity.Payment, error) {
	payment, err := p.payments.GetByEventAndUser(ctx, eventID, userID)
	if errors.Is(err, entity.ErrPaymentNotFound) {
		return nil, nil
	}
	return payment, err
}

func (p *storePayments) MarkRefundPending(ctx context.Context, eventID, userID int64) (bool, error) {
	return p.payments.MarkRefundPending(ctx, eventID, userID, p.clock.Now())
}

type storeSubscriptions struct {
	subscriptions repository.SubscriptionRepository
}

func NewStoreSubscriptions(subscriptions repository.SubscriptionRepository) SubscriptionCollaborator {
	return &storeSubscriptions{subscriptions: subscriptions}
}

func (s *storeSubscriptions) Subscription(ctx context.Context, userID int64) (*entity.Subscription, error) {
	return s.subscriptions.GetByUserID(ctx, userID)
}

type storeVenues struct {
	venues repository.VenueRepository
}

func NewStoreVenueResolver(venues repository.VenueRepository) VenueResolver {
	return &storeVenues{venues: venues}
}

func (v *storeVenues) ResolveVenue(ctx context.Context, event *entity.Event) (*entity.Venue, error) {
	if event.VenueID == nil {
		return nil, entity.ErrVenueUnresolvable
	}
	return v.venues.GetByID(ctx, *event.VenueID)
}
