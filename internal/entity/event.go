package entity

import (
	"time"
)

type EventStatus string

const (
	EventStatusActive    EventStatus = "active"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

type Event struct {
	ID             int64       `json:"id" db:"id"`
	CreatorID      int64       `json:"creator_id" db:"creator_id"`
	VenueID        *int64      `json:"venue_id,omitempty" db:"venue_id"`
	Title          string      `json:"title" db:"title"`
	Capacity       int         `json:"capacity" db:"capacity"`
	ConfirmedCount int         `json:"confirmed_count" db:"confirmed_count"`
	RSVPDeadline   time.Time   `json:"rsvp_deadline" db:"rsvp_deadline"`
	StartsAt       time.Time   `json:"starts_at" db:"starts_at"`
	FeeCents       *int64      `json:"fee_cents,omitempty" db:"fee_cents"`
	Status         EventStatus `json:"status" db:"status"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

// IsPaid reports whether admission needs a completed charge. Null and zero fees are free.
func (e *Event) IsPaid() bool {
	return e.FeeCents != nil && *e.FeeCents > 0
}

// AvailableSeats returns capacity minus confirmed RSVPs.
func (e *Event) AvailableSeats() int {
	if e.ConfirmedCount >= e.Capacity {
		return 0
	}
	return e.Capacity - e.ConfirmedCount
}

type Venue struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Latitude  float64   `json:"latitude" db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
