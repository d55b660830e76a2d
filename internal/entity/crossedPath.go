package entity

import "time"

// CrossedPathLog is the per-venue counter for a canonical pair (UserLo < UserHi).
type CrossedPathLog struct {
	UserLo     int64     `json:"user_lo" db:"user_lo"`
	UserHi     int64     `json:"user_hi" db:"user_hi"`
	VenueID    int64     `json:"venue_id" db:"venue_id"`
	VenueName  string    `json:"venue_name,omitempty"`
	CrossCount int       `json:"cross_count" db:"cross_count"`
	FirstSeen  time.Time `json:"first_seen" db:"first_seen"`
	LastSeen   time.Time `json:"last_seen" db:"last_seen"`
}

// CrossedPathMatch aggregates every venue a canonical pair has crossed at.
// MatchedAt is written once and never moves.
type CrossedPathMatch struct {
	UserLo        int64     `json:"user_lo" db:"user_lo"`
	UserHi        int64     `json:"user_hi" db:"user_hi"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	MatchedAt     time.Time `json:"matched_at" db:"matched_at"`
	VenueCount    int       `json:"venue_count" db:"venue_count"`
	LastVenueID   int64     `json:"last_venue_id" db:"last_venue_id"`
	LastCrossedAt time.Time `json:"last_crossed_at" db:"last_crossed_at"`
}

// Other returns the member of the pair that is not userID.
func (m *CrossedPathMatch) Other(userID int64) int64 {
	if m.UserLo == userID {
		return m.UserHi
	}
	return m.UserLo
}

// MatchView is a match as seen from one of its members.
type MatchView struct {
	OtherUserID   int64     `json:"other_user_id"`
	OtherName     string    `json:"other_name"`
	MatchedAt     time.Time `json:"matched_at"`
	VenueCount    int       `json:"venue_count"`
	LastVenueID   int64     `json:"last_venue_id"`
	LastCrossedAt time.Time `json:"last_crossed_at"`
}

// MatchEvent is emitted for every pair touched by a reconciliation.
type MatchEvent struct {
	UserLo     int64     `json:"user_lo"`
	UserHi     int64     `json:"user_hi"`
	VenueID    int64     `json:"venue_id"`
	VisitID    int64     `json:"visit_id"`
	CrossCount int       `json:"cross_count"`
	NewMatch   bool      `json:"new_match"`
	MatchedAt  time.Time `json:"matched_at"`
	At         time.Time `json:"at"`
}
