package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscription_EffectiveTier(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	var none *Subscription
	assert.Equal(t, TierFree, none.EffectiveTier(now))

	assert.Equal(t, TierPremium, (&Subscription{Tier: TierPremium}).EffectiveTier(now))
	assert.Equal(t, TierPremium, (&Subscription{Tier: TierPremium, ActiveUntil: &later}).EffectiveTier(now))
	assert.Equal(t, TierFree, (&Subscription{Tier: TierPremium, ActiveUntil: &earlier}).EffectiveTier(now))
	assert.Equal(t, TierFree, (&Subscription{Tier: TierFree}).EffectiveTier(now))
}

func TestEvent_IsPaid(t *testing.T) {
	zero, twenty := int64(0), int64(2000)

	assert.False(t, (&Event{}).IsPaid())
	assert.False(t, (&Event{FeeCents: &zero}).IsPaid())
	assert.True(t, (&Event{FeeCents: &twenty}).IsPaid())
}

func TestEvent_AvailableSeats(t *testing.T) {
	assert.Equal(t, 3, (&Event{Capacity: 5, ConfirmedCount: 2}).AvailableSeats())
	assert.Equal(t, 0, (&Event{Capacity: 2, ConfirmedCount: 2}).AvailableSeats())
}

func TestCrossedPathMatch_Other(t *testing.T) {
	m := &CrossedPathMatch{UserLo: 3, UserHi: 9}
	assert.Equal(t, int64(9), m.Other(3))
	assert.Equal(t, int64(3), m.Other(9))
}
