package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ds124wfegd/crossedpaths/internal/entity"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetAll(ctx context.Context) ([]*entity.User, error)
}

type VenueRepository interface {
	Create(ctx context.Context, venue *entity.Venue) error
	GetByID(ctx context.Context, id int64) (*entity.Venue, error)
	GetAll(ctx context.Context) ([]*entity.Venue, error)
}

type EventRepository interface {
	Create(ctx context.Context, event *entity.Event) error
	GetByID(ctx context.Context, id int64) (*entity.Event, error)
	GetAll(ctx context.Context) ([]*entity.Event, error)

	// Lifecycle
	Cancel(ctx context.Context, id int64, at time.Time) error
	CompleteStarted(ctx context.Context, before time.Time) (int64, error)
}

// QuotaCheck asks Admit to enforce the free-admission cap inside the
// admission transaction. Window is [From, To).
type QuotaCheck struct {
	Cap  int
	From time.Time
	To   time.Time
}

type RSVPRepository interface {
	// Admit confirms the RSVP and takes a seat in one transaction.
	// Returns ErrEventNotFound, ErrUserNotFound, ErrEventClosed, ErrDeadlinePassed,
	// ErrEventFull, ErrAlreadyConfirmed or ErrQuotaExceeded without writing anything.
	Admit(ctx context.Context, rsvp *entity.RSVP, quota *QuotaCheck) error
	// Cancel flips a confirmed RSVP to cancelled and frees the seat.
	Cancel(ctx context.Context, eventID, userID int64, at time.Time) (*entity.RSVP, error)

	GetByEventAndUser(ctx context.Context, eventID, userID int64) (*entity.RSVP, error)
	GetByUserID(ctx context.Context, userID int64) ([]*entity.RSVP, error)
	GetAttendees(ctx context.Context, eventID int64) ([]*entity.Attendee, error)

	CountConfirmed(ctx context.Context, eventID int64) (int, error)
	CountFreeConfirmed(ctx context.Context, userID int64, from, to time.Time) (int, error)
}

type VisitRepository interface {
	Create(ctx context.Context, visit *entity.Visit) error
	GetByID(ctx context.Context, id int64) (*entity.Visit, error)
	GetByUserID(ctx context.Context, userID int64) ([]*entity.Visit, error)
	// ListUnreconciled returns visits recorded before the cutoff that were never reconciled, oldest first.
	ListUnreconciled(ctx context.Context, before time.Time, limit int) ([]*entity.Visit, error)
}

// CrossedPathTx is the set of writes a reconciliation performs. All of them
// run inside one transaction opened by CrossedPathRepository.InVenueTx.
type CrossedPathTx interface {
	GetVisit(ctx context.Context, id int64) (*entity.Visit, error)
	// ReconciledVisitors lists distinct users other than excludeUserID with a reconciled visit at the venue.
	ReconciledVisitors(ctx context.Context, venueID, excludeUserID int64) ([]int64, error)
	// UpsertLog bumps the per-venue counter for the canonical pair and returns the row.
	UpsertLog(ctx context.Context, lo, hi, venueID int64, at time.Time) (*entity.CrossedPathLog, error)
	// UpsertMatch creates the pair's match or refreshes its venue summary. matched_at never moves.
	UpsertMatch(ctx context.Context, lo, hi, venueID int64, newVenue bool, at time.Time) (*entity.CrossedPathMatch, error)
	MarkReconciled(ctx context.Context, visitID int64, at time.Time) error
}

type CrossedPathRepository interface {
	// InVenueTx runs fn in a transaction that holds the venue row lock.
	// Returns ErrVenueUnresolvable if the venue does not exist.
	InVenueTx(ctx context.Context, venueID int64, at time.Time, fn func(tx CrossedPathTx) error) error

	GetMatch(ctx context.Context, lo, hi int64) (*entity.CrossedPathMatch, error)
	GetLog(ctx context.Context, lo, hi, venueID int64) (*entity.CrossedPathLog, error)
	ActiveMatches(ctx context.Context, userID int64) ([]*entity.MatchView, error)
	PairLogs(ctx context.Context, lo, hi int64) ([]*entity.CrossedPathLog, error)
}

type PaymentRepository interface {
	Upsert(ctx context.Context, payment *entity.Payment) error
	GetByEventAndUser(ctx context.Context, eventID, userID int64) (*entity.Payment, error)
	// MarkRefundPending flags a completed payment for refund. Reports false when nothing was charged.
	MarkRefundPending(ctx context.Context, eventID, userID int64, at time.Time) (bool, error)
}

type SubscriptionRepository interface {
	Upsert(ctx context.Context, sub *entity.Subscription) error
	// GetByUserID returns nil, nil when the user never subscribed.
	GetByUserID(ctx context.Context, userID int64) (*entity.Subscription, error)
}

// Repository groups every store the engine uses.
type Repository struct {
	Users         UserRepository
	Venues        VenueRepository
	Events        EventRepository
	RSVPs         RSVPRepository
	Visits        VisitRepository
	CrossedPaths  CrossedPathRepository
	Payments      PaymentRepository
	Subscriptions SubscriptionRepository
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Users:         NewUserRepository(db),
		Venues:        NewVenueRepository(db),
		Events:        NewEventRepository(db),
		RSVPs:         NewRSVPRepository(db),
		Visits:        NewVisitRepository(db),
		CrossedPaths:  NewCrossedPathRepository(db),
		Payments:      NewPaymentRepository(db),
		Subscriptions: NewSubscriptionRepository(db),
	}
}

// dbTime normalizes timestamps before they are bound: UTC so SQLite text
// comparisons order correctly, microseconds to match Postgres precision.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// isUniqueViolation reports a UNIQUE constraint failure from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func nullInt64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
