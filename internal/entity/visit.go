package entity

import "time"

// Visit is an append-only fact: the user attended the venue. ReconciledAt is set
// once the visit has been matched against the venue's other visitors.
type Visit struct {
	ID           int64      `json:"id" db:"id"`
	UserID       int64      `json:"user_id" db:"user_id"`
	VenueID      int64      `json:"venue_id" db:"venue_id"`
	EventID      *int64     `json:"event_id,omitempty" db:"event_id"`
	VisitedAt    time.Time  `json:"visited_at" db:"visited_at"`
	ReconciledAt *time.Time `json:"reconciled_at,omitempty" db:"reconciled_at"`
}

func (v *Visit) IsReconciled() bool {
	return v.ReconciledAt != nil
}
