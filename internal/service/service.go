package service

import (
	"context"
	"time"

	"github.com/ds124wfegd/crossedpaths/internal/entity"
)

// AdmissionService is the admission controller: it decides whether a user may
// join an event and runs the visit/matching cascade after a successful join.
type AdmissionService interface {
	TryAdmit(ctx context.Context, req *AdmitRequest) (*entity.AdmissionResult, error)
	Cancel(ctx context.Context, eventID, userID int64) (*entity.CancelResult, error)
	QuotaUsage(ctx context.Context, userID int64) (*entity.QuotaUsage, error)
}

// VisitService appends venue-visit facts.
type VisitService interface {
	Record(ctx context.Context, userID, venueID int64, eventID *int64, at time.Time) (*entity.Visit, error)
}

// CrossedPathService is the crossed-path aggregator.
type CrossedPathService interface {
	Reconcile(ctx context.Context, visit *entity.Visit) ([]*entity.MatchEvent, error)
	ReconcileByID(ctx context.Context, visitID int64) ([]*entity.MatchEvent, error)
	// ReconcileBacklog reconciles visits whose cascade never completed. Returns how many were processed.
	ReconcileBacklog(ctx context.Context, limit int) (int, error)
}

// QueryService is the read side consumed by presentation layers.
type QueryService interface {
	ConfirmedCount(ctx context.Context, eventID int64) (int, error)
	EventAttendees(ctx context.Context, eventID int64) ([]*entity.Attendee, error)
	UserRSVPs(ctx context.Context, userID int64) ([]*entity.RSVP, error)
	ActiveMatches(ctx context.Context, userID int64) ([]*entity.MatchView, error)
	PairDetail(ctx context.Context, userID, otherID int64) (*PairDetail, error)
}

type EventService interface {
	CreateEvent(ctx context.Context, req *CreateEventRequest) (*entity.Event, error)
	GetEvent(ctx context.Context, id int64) (*entity.Event, error)
	GetAllEvents(ctx context.Context) ([]*entity.Event, error)
	CancelEvent(ctx context.Context, id int64) error
	CompleteStartedEvents(ctx context.Context) (int64, error)

	CreateVenue(ctx context.Context, req *CreateVenueRequest) (*entity.Venue, error)
	GetAllVenues(ctx context.Context) ([]*entity.Venue, error)
}

// UserService covers users and the collaborator-owned records the engine reads
// (subscriptions written by billing, payments written by the gateway).
type UserService interface {
	RegisterUser(ctx context.Context, req *RegisterUserRequest) (*entity.User, error)
	GetUserByID(ctx context.Context, id int64) (*entity.User, error)
	GetAllUsers(ctx context.Context) ([]*entity.User, error)
	SetSubscription(ctx context.Context, userID int64, req *SubscriptionRequest) (*entity.Subscription, error)
	RecordPayment(ctx context.Context, eventID, userID int64, req *PaymentRequest) (*entity.Payment, error)
}

// Clock abstracts time so deadline and month-window checks are testable.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// TaskPublisher интерфейс для публикации задач в очередь
type TaskPublisher interface {
	Publish(ctx context.Context, task *Task) error
}

// Task представляет задачу для очереди
type Task struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	ExecuteAt  time.Time              `json:"execute_at"`
	MaxRetries int                    `json:"max_retries"`
	Attempts   int                    `json:"attempts"`
}

// Константы типов задач
const (
	TaskTypeReconcileVisit     = "reconcile_visit"
	TaskTypeNotifyAdmission    = "notify_admission"
	TaskTypeNotifyCancellation = "notify_cancellation"
	TaskTypeNotifyMatch        = "notify_match"
)
