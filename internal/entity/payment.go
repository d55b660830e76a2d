package entity

import "time"

type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "pending"
	PaymentStatusCompleted     PaymentStatus = "completed"
	PaymentStatusWaived        PaymentStatus = "waived"
	PaymentStatusRefundPending PaymentStatus = "refund_pending"
	PaymentStatusRefunded      PaymentStatus = "refunded"
)

// Payment is written by the payment gateway side. The engine reads the status
// and flags refunds on cancellation; it never computes charges.
type Payment struct {
	ID          int64         `json:"id" db:"id"`
	EventID     int64         `json:"event_id" db:"event_id"`
	UserID      int64         `json:"user_id" db:"user_id"`
	Reference   string        `json:"reference" db:"reference"`
	AmountCents int64         `json:"amount_cents" db:"amount_cents"`
	Status      PaymentStatus `json:"status" db:"status"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}
