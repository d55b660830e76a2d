package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/crossedpaths/internal/entity"
)

type rsvpRepository struct {
	db *sql.DB
}

func NewRSVPRepository(db *sql.DB) RSVPRepository {
	return &rsvpRepository{db: db}
}

// Admit confirms rsvp (EventID, UserID, Free, ConfirmedAt) under the event's
// capacity and, when quota is set, the user's free-admission cap. Nothing is
// written unless every condition holds at commit time.
func (r *rsvpRepository) Admit(ctx context.Context, rsvp *entity.RSVP, quota *QuotaCheck) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := dbTime(rsvp.ConfirmedAt)
	if now.IsZero() {
		now = dbTime(time.Now())
	}

	// Lock the user row: concurrent free admissions by one user serialize on the quota count.
	result, err := tx.ExecContext(ctx, `UPDATE users SET updated_at = $1 WHERE id = $2`, now, rsvp.UserID)
	if err != nil {
		return fmt.Errorf("failed to lock user: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return entity.ErrUserNotFound
	}

	if quota != nil && rsvp.Free {
		var used int
		query := `
			SELECT COUNT(*) FROM rsvps
			WHERE user_id = $1 AND status = 'confirmed' AND free = TRUE
			  AND confirmed_at >= $2 AND confirmed_at < $3
		`
		err = tx.QueryRowContext(ctx, query, rsvp.UserID, dbTime(quota.From), dbTime(quota.To)).Scan(&used)
		if err != nil {
			return fmt.Errorf("failed to count free rsvps: %w", err)
		}
		if used >= quota.Cap {
			return entity.ErrQuotaExceeded
		}
	}

	// Conditional seat take: the capacity bound is enforced by the row update itself.
	query := `
		UPDATE events
		SET confirmed_count = confirmed_count + 1, updated_at = $1
		WHERE id = $2 AND status = 'active' AND rsvp_deadline >= $1 AND confirmed_count < capacity
	`
	result, err = tx.ExecContext(ctx, query, now, rsvp.EventID)
	if err != nil {
		return fmt.Errorf("failed to take seat: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return seatRefusal(ctx, tx, rsvp.EventID, rsvp.UserID, now)
	}

	// A cancelled row is re-confirmed; a confirmed one is left alone and returns no id.
	query = `
		INSERT INTO rsvps (event_id, user_id, status, free, created_at, confirmed_at, updated_at)
		VALUES ($1, $2, 'confirmed', $3, $4, $4, $4)
		ON CONFLICT (event_id, user_id) DO UPDATE
		SET status = 'confirmed', free = EXCLUDED.free,
		    confirmed_at = EXCLUDED.confirmed_at, updated_at = EXCLUDED.updated_at
		WHERE rsvps.status = 'cancelled'
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, query, rsvp.EventID, rsvp.UserID, rsvp.Free, now).Scan(&rsvp.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ErrAlreadyConfirmed
	}
	if err != nil {
		return fmt.Errorf("failed to upsert rsvp: %w", err)
	}

	err = tx.QueryRowContext(ctx, `SELECT created_at FROM rsvps WHERE id = $1`, rsvp.ID).Scan(&rsvp.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to read rsvp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	rsvp.Status = entity.RSVPStatusConfirmed
	rsvp.ConfirmedAt = now
	rsvp.UpdatedAt = now
	return nil
}

// seatRefusal explains why the conditional seat update matched no row.
func seatRefusal(ctx context.Context, tx *sql.Tx, eventID, userID int64, now time.Time) error {
	var (
		status    entity.EventStatus
		deadline  time.Time
		confirmed int
		capacity  int
	)
	query := `SELECT status, rsvp_deadline, confirmed_count, capacity FROM events WHERE id = $1`
	err := tx.QueryRowContext(ctx, query, eventID).Scan(&status, &deadline, &confirmed, &capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ErrEventNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read event: %w", err)
	}

	switch {
	case status != entity.EventStatusActive:
		return entity.ErrEventClosed
	case now.After(deadline):
		return entity.ErrDeadlinePassed
	}

	var existing entity.RSVPStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM rsvps WHERE event_id = $1 AND user_id = $2`, eventID, userID,
	).Scan(&existing)
	if err == nil && existing == entity.RSVPStatusConfirmed {
		return entity.ErrAlreadyConfirmed
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read rsvp: %w", err)
	}

	return entity.ErrEventFull
}

func (r *rsvpRepository) Cancel(ctx context.Context, eventID, userID int64, at time.Time) (*entity.RSVP, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := dbTime(at)

	query := `
		UPDATE rsvps SET status = 'cancelled', updated_at = $1
		WHERE event_id = $2 AND user_id = $3 AND status = 'confirmed'
	`
	result, err := tx.ExecContext(ctx, query, now, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel rsvp: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return nil, entity.ErrNotConfirmed
	}

	query = `
		UPDATE events SET confirmed_count = confirmed_count - 1, updated_at = $1
		WHERE id = $2 AND confirmed_count > 0
	`
	if _, err := tx.ExecContext(ctx, query, now, eventID); err != nil {
		return nil, fmt.Errorf("failed to release seat: %w", err)
	}

	rsvp, err := scanRSVP(tx.QueryRowContext(ctx,
		`SELECT `+rsvpColumns+` FROM rsvps WHERE event_id = $1 AND user_id = $2`, eventID, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to read rsvp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return rsvp, nil
}

const rsvpColumns = `id, event_id, user_id, status, free, created_at, confirmed_at, updated_at`

func scanRSVP(row rowScanner) (*entity.RSVP, error) {
	var rsvp entity.RSVP
	err := row.Scan(
		&rsvp.ID,
		&rsvp.EventID,
		&rsvp.UserID,
		&rsvp.Status,
		&rsvp.Free,
		&rsvp.CreatedAt,
		&rsvp.ConfirmedAt,
		&rsvp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rsvp, nil
}

// GetByEventAndUser returns nil, nil when the user never RSVPed.
func (r *rsvpRepository) GetByEventAndUser(ctx context.Context, eventID, userID int64) (*entity.RSVP, error) {
	query := `SELECT ` + rsvpColumns + ` FROM rsvps WHERE event_id = $1 AND user_id = $2`

	rsvp, err := scanRSVP(r.db.QueryRowContext(ctx, query, eventID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rsvp: %w", err)
	}
	return rsvp, nil
}

func (r *rsvpRepository) GetByUserID(ctx context.Context, userID int64) ([]*entity.RSVP, error) {
	query := `SELECT ` + rsvpColumns + ` FROM rsvps WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rsvps by user: %w", err)
	}
	defer rows.Close()

	var rsvps []*entity.RSVP
	for rows.Next() {
		rsvp, err := scanRSVP(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rsvp: %w", err)
		}
		rsvps = append(rsvps, rsvp)
	}

	return rsvps, rows.Err()
}

func (r *rsvpRepository) GetAttendees(ctx context.Context, eventID int64) ([]*entity.Attendee, error) {
	query := `
		SELECT u.id, u.name, r.confirmed_at
		FROM rsvps r
		JOIN users u ON u.id = r.user_id
		WHERE r.event_id = $1 AND r.status = 'confirmed'
		ORDER BY r.confirmed_at, u.id
	`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendees: %w", err)
	}
	defer rows.Close()

	var attendees []*entity.Attendee
	for rows.Next() {
		var a entity.Attendee
		if err := rows.Scan(&a.UserID, &a.Name, &a.ConfirmedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendee: %w", err)
		}
		attendees = append(attendees, &a)
	}

	return attendees, rows.Err()
}

func (r *rsvpRepository) CountConfirmed(ctx context.Context, eventID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM rsvps WHERE event_id = $1 AND status = 'confirmed'`
	if err := r.db.QueryRowContext(ctx, query, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count confirmed rsvps: %w", err)
	}
	return count, nil
}

func (r *rsvpRepository) CountFreeConfirmed(ctx context.Context, userID int64, from, to time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM rsvps
		WHERE user_id = $1 AND status = 'confirmed' AND free = TRUE
		  AND confirmed_at >= $2 AND confirmed_at < $3
	`
	if err := r.db.QueryRowContext(ctx, query, userID, dbTime(from), dbTime(to)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count free rsvps: %w", err)
	}
	return count, nil
}
