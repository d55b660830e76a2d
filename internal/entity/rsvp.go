package entity

import (
	"time"
)

type RSVPStatus string

const (
	RSVPStatusConfirmed RSVPStatus = "confirmed"
	RSVPStatusCancelled RSVPStatus = "cancelled"
)

// RSVP is unique per (event, user). Cancellation flips the status; rows are never deleted.
type RSVP struct {
	ID          int64      `json:"id" db:"id"`
	EventID     int64      `json:"event_id" db:"event_id"`
	UserID      int64      `json:"user_id" db:"user_id"`
	Status      RSVPStatus `json:"status" db:"status"`
	Free        bool       `json:"free" db:"free"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ConfirmedAt time.Time  `json:"confirmed_at" db:"confirmed_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

type Attendee struct {
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}
