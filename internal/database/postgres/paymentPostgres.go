package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/crossedpaths/internal/entity"
)

type paymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Upsert records the gateway's view of a charge for (event, user).
func (r *paymentRepository) Upsert(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (event_id, user_id, reference, amount_cents, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id, user_id) DO UPDATE
		SET reference = EXCLUDED.reference, amount_cents = EXCLUDED.amount_cents,
		    status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
	`

	if payment.UpdatedAt.IsZero() {
		payment.UpdatedAt = time.Now()
	}
	payment.UpdatedAt = dbTime(payment.UpdatedAt)

	_, err := r.db.ExecContext(ctx, query,
		payment.EventID,
		payment.UserID,
		payment.Reference,
		payment.AmountCents,
		payment.Status,
		payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert payment: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM payments WHERE event_id = $1 AND user_id = $2`, payment.EventID, payment.UserID,
	).Scan(&payment.ID)
	if err != nil {
		return fmt.Errorf("failed to read payment id: %w", err)
	}
	return nil
}

func (r *paymentRepository) GetByEventAndUser(ctx context.Context, eventID, userID int64) (*entity.Payment, error) {
	query := `
		SELECT id, event_id, user_id, reference, amount_cents, status, updated_at
		FROM payments
		WHERE event_id = $1 AND user_id = $2
	`

	var p entity.Payment
	err := r.db.QueryRowContext(ctx, query, eventID, userID).Scan(
		&p.ID,
		&p.EventID,
		&p.UserID,
		&p.Reference,
		&p.AmountCents,
		&p.Status,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

func (r *paymentRepository) MarkRefundPending(ctx context.Context, eventID, userID int64, at time.Time) (bool, error) {
	query := `
		UPDATE payments SET status = 'refund_pending', updated_at = $1
		WHERE event_id = $2 AND user_id = $3 AND status = 'completed'
	`

	result, err := r.db.ExecContext(ctx, query, dbTime(at), eventID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark refund pending: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}
