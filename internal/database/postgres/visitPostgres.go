package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/crossedpaths/internal/entity"
)

type visitRepository struct {
	db *sql.DB
}

func NewVisitRepository(db *sql.DB) VisitRepository {
	return &visitRepository{db: db}
}

const visitColumns = `id, user_id, venue_id, event_id, visited_at, reconciled_at`

func scanVisit(row rowScanner) (*entity.Visit, error) {
	var (
		visit        entity.Visit
		eventID      sql.NullInt64
		reconciledAt sql.NullTime
	)
	err := row.Scan(
		&visit.ID,
		&visit.UserID,
		&visit.VenueID,
		&eventID,
		&visit.VisitedAt,
		&reconciledAt,
	)
	if err != nil {
		return nil, err
	}
	visit.EventID = nullInt64Ptr(eventID)
	visit.ReconciledAt = nullTimePtr(reconciledAt)
	return &visit, nil
}

// Create appends a visit. Visits are never updated except for the reconciliation mark.
func (r *visitRepository) Create(ctx context.Context, visit *entity.Visit) error {
	query := `
		INSERT INTO visits (user_id, venue_id, event_id, visited_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	if visit.VisitedAt.IsZero() {
		visit.VisitedAt = time.Now()
	}
	visit.VisitedAt = dbTime(visit.VisitedAt)

	err := r.db.QueryRowContext(ctx, query,
		visit.UserID,
		visit.VenueID,
		visit.EventID,
		visit.VisitedAt,
	).Scan(&visit.ID)
	if err != nil {
		return fmt.Errorf("failed to create visit: %w", err)
	}
	return nil
}

func (r *visitRepository) GetByID(ctx context.Context, id int64) (*entity.Visit, error) {
	return getVisit(ctx, r.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getVisit(ctx context.Context, q queryRower, id int64) (*entity.Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE id = $1`

	visit, err := scanVisit(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrVisitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}
	return visit, nil
}

func (r *visitRepository) GetByUserID(ctx context.Context, userID int64) ([]*entity.Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE user_id = $1 ORDER BY visited_at DESC, id DESC`
	return r.list(ctx, query, userID)
}

func (r *visitRepository) ListUnreconciled(ctx context.Context, before time.Time, limit int) ([]*entity.Visit, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + visitColumns + `
		FROM visits
		WHERE reconciled_at IS NULL AND visited_at < $1
		ORDER BY visited_at ASC, id ASC
		LIMIT $2
	`
	return r.list(ctx, query, dbTime(before), limit)
}

func (r *visitRepository) list(ctx context.Context, query string, args ...any) ([]*entity.Visit, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	var visits []*entity.Visit
	for rows.Next() {
		visit, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, visit)
	}

	return visits, rows.Err()
}
