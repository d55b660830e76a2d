package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/crossedpaths/internal/entity"
)

type crossedPathRepository struct {
	db *sql.DB
}

func NewCrossedPathRepository(db *sql.DB) CrossedPathRepository {
	return &crossedPathRepository{db: db}
}

func (r *crossedPathRepository) InVenueTx(ctx context.Context, venueID int64, at time.Time, fn func(tx CrossedPathTx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Row lock on the venue serializes reconciliations at one venue.
	result, err := tx.ExecContext(ctx, `UPDATE venues SET updated_at = $1 WHERE id = $2`, dbTime(at), venueID)
	if err != nil {
		return fmt.Errorf("failed to lock venue: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return entity.ErrVenueUnresolvable
	}

	if err := fn(&crossedPathTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type crossedPathTx struct {
	tx *sql.Tx
}

func (t *crossedPathTx) GetVisit(ctx context.Context, id int64) (*entity.Visit, error) {
	return getVisit(ctx, t.tx, id)
}

func (t *crossedPathTx) ReconciledVisitors(ctx context.Context, venueID, excludeUserID int64) ([]int64, error) {
	query := `
		SELECT DISTINCT user_id FROM visits
		WHERE venue_id = $1 AND user_id <> $2 AND reconciled_at IS NOT NULL
		ORDER BY user_id
	`

	rows, err := t.tx.QueryContext(ctx, query, venueID, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query venue visitors: %w", err)
	}
	defer rows.Close()

	var users []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan visitor: %w", err)
		}
		users = append(users, id)
	}

	return users, rows.Err()
}

func (t *crossedPathTx) UpsertLog(ctx context.Context, lo, hi, venueID int64, at time.Time) (*entity.CrossedPathLog, error) {
	query := `
		INSERT INTO crossed_path_logs (user_lo, user_hi, venue_id, cross_count, first_seen, last_seen)
		VALUES ($1, $2, $3, 1, $4, $4)
		ON CONFLICT (user_lo, user_hi, venue_id) DO UPDATE
		SET cross_count = crossed_path_logs.cross_count + 1, last_seen = EXCLUDED.last_seen
	`
	if _, err := t.tx.ExecContext(ctx, query, lo, hi, venueID, dbTime(at)); err != nil {
		return nil, fmt.Errorf("failed to upsert crossed path log: %w", err)
	}

	return getLog(ctx, t.tx, lo, hi, venueID)
}

func (t *crossedPathTx) UpsertMatch(ctx context.Context, lo, hi, venueID int64, newVenue bool, at time.Time) (*entity.CrossedPathMatch, error) {
	venueInc := 0
	if newVenue {
		venueInc = 1
	}

	query := `
		INSERT INTO crossed_path_matches (user_lo, user_hi, is_active, matched_at, venue_count, last_venue_id, last_crossed_at)
		VALUES ($1, $2, TRUE, $3, 1, $4, $3)
		ON CONFLICT (user_lo, user_hi) DO UPDATE
		SET venue_count = crossed_path_matches.venue_count + $5,
		    last_venue_id = EXCLUDED.last_venue_id,
		    last_crossed_at = EXCLUDED.last_crossed_at
	`
	if _, err := t.tx.ExecContext(ctx, query, lo, hi, dbTime(at), venueID, venueInc); err != nil {
		return nil, fmt.Errorf("failed to upsert crossed path match: %w", err)
	}

	return getMatch(ctx, t.tx, lo, hi)
}

func (t *crossedPathTx) MarkReconciled(ctx context.Context, visitID int64, at time.Time) error {
	query := `UPDATE visits SET reconciled_at = $1 WHERE id = $2 AND reconciled_at IS NULL`

	result, err := t.tx.ExecContext(ctx, query, dbTime(at), visitID)
	if err != nil {
		return fmt.Errorf("failed to mark visit reconciled: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return entity.ErrVisitNotFound
	}
	return nil
}

const matchColumns = `user_lo, user_hi, is_active, matched_at, venue_count, last_venue_id, last_crossed_at`

func scanMatch(row rowScanner) (*entity.CrossedPathMatch, error) {
	var m entity.CrossedPathMatch
	err := row.Scan(
		&m.UserLo,
		&m.UserHi,
		&m.IsActive,
		&m.MatchedAt,
		&m.VenueCount,
		&m.LastVenueID,
		&m.LastCrossedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func getMatch(ctx context.Context, q queryRower, lo, hi int64) (*entity.CrossedPathMatch, error) {
	query := `SELECT ` + matchColumns + ` FROM crossed_path_matches WHERE user_lo = $1 AND user_hi = $2`

	m, err := scanMatch(q.QueryRowContext(ctx, query, lo, hi))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crossed path match: %w", err)
	}
	return m, nil
}

func getLog(ctx context.Context, q queryRower, lo, hi, venueID int64) (*entity.CrossedPathLog, error) {
	query := `
		SELECT l.user_lo, l.user_hi, l.venue_id, v.name, l.cross_count, l.first_seen, l.last_seen
		FROM crossed_path_logs l
		JOIN venues v ON v.id = l.venue_id
		WHERE l.user_lo = $1 AND l.user_hi = $2 AND l.venue_id = $3
	`

	var l entity.CrossedPathLog
	err := q.QueryRowContext(ctx, query, lo, hi, venueID).Scan(
		&l.UserLo,
		&l.UserHi,
		&l.VenueID,
		&l.VenueName,
		&l.CrossCount,
		&l.FirstSeen,
		&l.LastSeen,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crossed path log: %w", err)
	}
	return &l, nil
}

// GetMatch returns nil, nil when the pair never crossed. lo must be below hi.
func (r *crossedPathRepository) GetMatch(ctx context.Context, lo, hi int64) (*entity.CrossedPathMatch, error) {
	return getMatch(ctx, r.db, lo, hi)
}

// GetLog returns nil, nil when the pair never crossed at the venue.
func (r *crossedPathRepository) GetLog(ctx context.Context, lo, hi, venueID int64) (*entity.CrossedPathLog, error) {
	return getLog(ctx, r.db, lo, hi, venueID)
}

func (r *crossedPathRepository) ActiveMatches(ctx context.Context, userID int64) ([]*entity.MatchView, error) {
	query := `
		SELECT u.id, u.name, m.matched_at, m.venue_count, m.last_venue_id, m.last_crossed_at
		FROM crossed_path_matches m
		JOIN users u ON u.id = CASE WHEN m.user_lo = $1 THEN m.user_hi ELSE m.user_lo END
		WHERE (m.user_lo = $1 OR m.user_hi = $1) AND m.is_active = TRUE
		ORDER BY m.last_crossed_at DESC, u.id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var views []*entity.MatchView
	for rows.Next() {
		var v entity.MatchView
		if err := rows.Scan(
			&v.OtherUserID,
			&v.OtherName,
			&v.MatchedAt,
			&v.VenueCount,
			&v.LastVenueID,
			&v.LastCrossedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		views = append(views, &v)
	}

	return views, rows.Err()
}

func (r *crossedPathRepository) PairLogs(ctx context.Context, lo, hi int64) ([]*entity.CrossedPathLog, error) {
	query := `
		SELECT l.user_lo, l.user_hi, l.venue_id, v.name, l.cross_count, l.first_seen, l.last_seen
		FROM crossed_path_logs l
		JOIN venues v ON v.id = l.venue_id
		WHERE l.user_lo = $1 AND l.user_hi = $2
		ORDER BY l.cross_count DESC, l.venue_id
	`

	rows, err := r.db.QueryContext(ctx, query, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("failed to query crossed path logs: %w", err)
	}
	defer rows.Close()

	var logs []*entity.CrossedPathLog
	for rows.Next() {
		var l entity.CrossedPathLog
		if err := rows.Scan(
			&l.UserLo,
			&l.UserHi,
			&l.VenueID,
			&l.VenueName,
			&l.CrossCount,
			&l.FirstSeen,
			&l.LastSeen,
		); err != nil {
			return nil, fmt.Errorf("failed to scan crossed path log: %w", err)
		}
		logs = append(logs, &l)
	}

	return logs, rows.Err()
}
