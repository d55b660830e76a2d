package entity

import "time"

type User struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Subscription is owned by the billing side; the engine only reads it.
type Subscription struct {
	UserID      int64      `json:"user_id" db:"user_id"`
	Tier        Tier       `json:"tier" db:"tier"`
	ActiveUntil *time.Time `json:"active_until,omitempty" db:"active_until"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the subscription grants its tier at the given time.
// A nil ActiveUntil means open-ended.
func (s *Subscription) IsActive(at time.Time) bool {
	if s == nil {
		return false
	}
	return s.ActiveUntil == nil || s.ActiveUntil.After(at)
}

// EffectiveTier is the tier that applies at the given time. Lapsed premium
// subscriptions fall back to free.
func (s *Subscription) EffectiveTier(at time.Time) Tier {
	if s == nil || s.Tier != TierPremium || !s.IsActive(at) {
		return TierFree
	}
	return TierPremium
}
