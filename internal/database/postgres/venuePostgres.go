package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/crossedpaths/internal/entity"
)

type venueRepository struct {
	db *sql.DB
}

func NewVenueRepository(db *sql.DB) VenueRepository {
	return &venueRepository{db: db}
}

func (r *venueRepository) Create(ctx context.Context, venue *entity.Venue) error {
	query := `
		INSERT INTO venues (name, latitude, longitude, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id
	`

	now := dbTime(time.Now())
	err := r.db.QueryRowContext(ctx, query,
		venue.Name,
		venue.Latitude,
		venue.Longitude,
		now,
	).Scan(&venue.ID)
	if err != nil {
		return fmt.Errorf("failed to create venue: %w", err)
	}

	venue.CreatedAt = now
	venue.UpdatedAt = now
	return nil
}

func (r *venueRepository) GetByID(ctx context.Context, id int64) (*entity.Venue, error) {
	query := `
		SELECT id, name, latitude, longitude, created_at, updated_at
		FROM venues
		WHERE id = $1
	`

	var venue entity.Venue
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&venue.ID,
		&venue.Name,
		&venue.Latitude,
		&venue.Longitude,
		&venue.CreatedAt,
		&venue.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrVenueUnresolvable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get venue: %w", err)
	}

	return &venue, nil
}

func (r *venueRepository) GetAll(ctx context.Context) ([]*entity.Venue, error) {
	query := `
		SELECT id, name, latitude, longitude, created_at, updated_at
		FROM venues
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query venues: %w", err)
	}
	defer rows.Close()

	var venues []*entity.Venue
	for rows.Next() {
		var venue entity.Venue
		if err := rows.Scan(
			&venue.ID,
			&venue.Name,
			&venue.Latitude,
			&venue.Longitude,
			&venue.CreatedAt,
			&venue.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan venue: %w", err)
		}
		venues = append(venues, &venue)
	}

	return venues, rows.Err()
}
