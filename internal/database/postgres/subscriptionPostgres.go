package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/crossedpaths/internal/entity"
)

type subscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Upsert(ctx context.Context, sub *entity.Subscription) error {
	query := `
		INSERT INTO subscriptions (user_id, tier, active_until, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET tier = EXCLUDED.tier, active_until = EXCLUDED.active_until, updated_at = EXCLUDED.updated_at
	`

	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = time.Now()
	}
	sub.UpdatedAt = dbTime(sub.UpdatedAt)

	var activeUntil sql.NullTime
	if sub.ActiveUntil != nil {
		activeUntil = sql.NullTime{Time: dbTime(*sub.ActiveUntil), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query, sub.UserID, sub.Tier, activeUntil, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepository) GetByUserID(ctx context.Context, userID int64) (*entity.Subscription, error) {
	query := `SELECT user_id, tier, active_until, updated_at FROM subscriptions WHERE user_id = $1`

	var (
		sub         entity.Subscription
		activeUntil sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&sub.UserID,
		&sub.Tier,
		&activeUntil,
		&sub.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	sub.ActiveUntil = nullTimePtr(activeUntil)
	return &sub, nil
}
