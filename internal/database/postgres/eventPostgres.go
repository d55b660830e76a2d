package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/crossedpaths/internal/entity"
)

type eventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) EventRepository {
	return &eventRepository{db: db}
}

const eventColumns = `
	id, creator_id, venue_id, title, capacity, confirmed_count,
	rsvp_deadline, starts_at, fee_cents, status, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*entity.Event, error) {
	var (
		event   entity.Event
		venueID sql.NullInt64
		fee     sql.NullInt64
	)
	err := row.Scan(
		&event.ID,
		&event.CreatorID,
		&venueID,
		&event.Title,
		&event.Capacity,
		&event.ConfirmedCount,
		&event.RSVPDeadline,
		&event.StartsAt,
		&fee,
		&event.Status,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	event.VenueID = nullInt64Ptr(venueID)
	event.FeeCents = nullInt64Ptr(fee)
	return &event, nil
}

func (r *eventRepository) Create(ctx context.Context, event *entity.Event) error {
	query := `
		INSERT INTO events (
			creator_id, venue_id, title, capacity, confirmed_count,
			rsvp_deadline, starts_at, fee_cents, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $8, $9, $9)
		RETURNING id
	`

	now := dbTime(time.Now())
	if event.Status == "" {
		event.Status = entity.EventStatusActive
	}
	event.RSVPDeadline = dbTime(event.RSVPDeadline)
	event.StartsAt = dbTime(event.StartsAt)

	err := r.db.QueryRowContext(ctx, query,
		event.CreatorID,
		event.VenueID,
		event.Title,
		event.Capacity,
		event.RSVPDeadline,
		event.StartsAt,
		event.FeeCents,
		event.Status,
		now,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	event.ConfirmedCount = 0
	event.CreatedAt = now
	event.UpdatedAt = now
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id int64) (*entity.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

func (r *eventRepository) GetAll(ctx context.Context) ([]*entity.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY starts_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*entity.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// Cancel closes an active event. Existing RSVPs are kept for the audit trail.
func (r *eventRepository) Cancel(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE events SET status = 'cancelled', updated_at = $1 WHERE id = $2 AND status = 'active'`

	result, err := r.db.ExecContext(ctx, query, dbTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to cancel event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return entity.ErrEventClosed
}

// CompleteStarted marks every active event that started before the cutoff as completed.
func (r *eventRepository) CompleteStarted(ctx context.Context, before time.Time) (int64, error) {
	query := `UPDATE events SET status = 'completed', updated_at = $1 WHERE status = 'active' AND starts_at < $1`

	result, err := r.db.ExecContext(ctx, query, dbTime(before))
	if err != nil {
		return 0, fmt.Errorf("failed to complete started events: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
