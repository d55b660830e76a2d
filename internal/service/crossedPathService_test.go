package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/crossedpaths/internal/entity"
	"github.com/ds124wfegd/crossedpaths/internal/pair"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrossedPaths_TwoUsersOneVenue(t *testing.T) {
	env := newTestEnv(t, AdmissionPolicy{})
	ctx := context.Background()
	host := env.user(t, "host")
	a := env.user(t, "alice")
	b := env.user(t, "bob")
	venue := env.venue(t, "Frenchie")

	first := env.event(t, host, venue, 10, nil)
	second := env.event(t, host, venue, 10, nil)
	third := env.event(t, host, venue, 10, nil)

	res := env.admit(t, first.ID, a.ID)
	require.Equal(t, entity.OutcomeConfirmed, res.Outcome)
	assert.Empty(t, res.Matches)

	res = env.admit(t, second.ID, b.ID)
	require.Equal(t, entity.OutcomeConfirmed, res.Outcome)
	require.Len(t, res.Matches, 1)
	assert.True(t, res.Matches[0].NewMatch)
	assert.Equal(t, 1, res.Matches[0].CrossCount)

	lo, hi := pair.Canonicalize(a.ID, b.ID)
	log, err := env.repo.CrossedPaths.GetLog(ctx, lo, hi, venue.ID)
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Equal(t, 1, log.CrossCount)

	match, err := env.repo.CrossedPaths.GetMatch(ctx, lo, hi)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.True(t, match.IsActive)
	matchedAt := match.MatchedAt

	env.clock.Advance(time.Hour)
	res = env.admit(t, third.ID, a.ID)
	require.Equal(t, entity.OutcomeConfirmed, res.Outcome)
	require.Len(t, res.Matches, 1)
	assert.False(t, res.Matches[0].NewMatch)
	assert.Equal(t, 2, res.Matches[0].CrossCount)

	log, err = env.repo.CrossedPaths.GetLog(ctx, lo, hi, venue.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, log.CrossCount)

	match, err = env.repo.CrossedPaths.GetMatch(ctx, lo, hi)
	require.NoError(t, err)
	assert.True(t, matchedAt.Equal(match.MatchedAt))
	assert.Equal(t, 1, match.VenueCount)

	forA, err := env.query.ActiveMatches(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, forA, 1)
	assert.Equal(t, b.ID, forA[0].OtherUserID)

	forB, err := env.query.ActiveMatches(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, forB, 1)
	assert.Equal(t, a.ID, forB[0].OtherUserID)

	assert.Equal(t, 2, env.notifier.matchCount())
}

func TestCrossedPaths_SecondVenueKeepsOneMatch(t *testing.T) {
	env := newTestEnv(t, AdmissionPolicy{})
	ctx := context.Background()
	host := env.user(t, "host")
	a := env.user(t, "alice")
	b := env.user(t, "bob")
	v1 := env.venue(t, "Frenchie")
	v2 := env.venue(t, "Verjus")

	for _, v := range []*entity.Venue{v1, v2} {
		ev := env.event(t, host, v, 10, nil)
		require.Equal(t, entity.OutcomeConfirmed, env.admit(t, ev.ID, a.ID).Outcome)
		require.Equal(t, entity.OutcomeConfirmed, env.admit(t, ev.ID, b.ID).Outcome)
	}

	detail, err := env.query.PairDetail(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.Match.VenueCount)
	assert.Equal(t, v2.ID, detail.Match.LastVenueID)
	assert.Len(t, detail.Venues, 2)

	matches, err := env.query.ActiveMatches(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestCrossedPaths_ReconcileIsIdempotent(t *testing.T) {
	env := newTestEnv(t, AdmissionPolicy{})
	ctx := context.Background()
	host := env.user(t, "host")
	a := env.user(t, "alice")
	b := env.user(t, "bob")
	venue := env.venue(t, "Frenchie")
	event := env.event(t, host, venue, 10, nil)

	require.Equal(t, entity.OutcomeConfirmed, env.admit(t, event.ID, a.ID).Outcome)
	res := env.admit(t, event.ID, b.ID)
	require.NotNil(t, res.Visit)

	again, err := env.crossed.ReconcileByID(ctx, res.Visit.ID)
	require.NoError(t, err)
	assert.Empty(t, again)

	again, err = env.crossed.Reconcile(ctx, res.Visit)
	require.NoError(t, err)
	assert.Empty(t, again)

	lo, hi := pair.Canonicalize(a.ID, b.ID)
	log, err := env.repo.CrossedPaths.GetLog(ctx, lo, hi, venue.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, log.CrossCount)
}

func TestCrossedPaths_SelfVisitsNeverPair(t *testing.T) {
	env := newTestEnv(t, AdmissionPolicy{})
	ctx := context.Background()
	host := env.user(t, "host")
	a := env.user(t, "alice")
	venue := env.venue(t, "Frenchie")

	for i := 0; i < 3; i++ {
		ev := env.event(t, host, venue, 10, nil)
		res := env.admit(t, ev.ID, a.ID)
		require.Equal(t, entity.OutcomeConfirmed, res.Outcome)
		assert.Empty(t, res.Matches)
	}

	matches, err := env.query.ActiveMatches(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = env.query.PairDetail(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
}

func TestCrossedPaths_ConcurrentReconcileCountsOnce(t *testing.T) {
	env := newTestEnv(t, AdmissionPolicy{})
	ctx := context.Background()
	a := env.user(t, "alice")
	b := env.user(t, "bob")
	venue := env.venue(t, "Frenchie")

	va, err := env.visits.Record(ctx, a.ID, venue.ID, nil, baseTime)
	require.NoError(t, err)
	vb, err := env.visits.Record(ctx, b.ID, venue.ID, nil, baseTime)
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		events []*entity.MatchEvent
		errs   []error
	)
	for _, v := range []*entity.Visit{va, vb, va, vb} {
		wg.Add(1)
		go func(v *entity.Visit) {
			defer wg.Done()
			got, err := env.crossed.Reconcile(ctx, v)
			mu.Lock()
			defer mu.Unlock()
			events = append(events, got...)
			if err != nil {
				errs = append(errs, err)
			}
		}(v)
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Len(t, events, 1)

	lo, hi := pair.Canonicalize(a.ID, b.ID)
	log, err := env.repo.CrossedPaths.GetLog(ctx, lo, hi, venue.ID)
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Equal(t, 1, log.CrossCount)
}

func TestCrossedPaths_UnknownVenue(t *testing.T) {
	env := newTestEnv(t, AdmissionPolicy{})

	_, err := env.crossed.Reconcile(context.Background(), &entity.Visit{ID: 1, UserID: 1, VenueID: 4242})
	assert.ErrorIs(t, err, entity.ErrVenueUnresolvable)
}

func TestCrossedPaths_ReconcileBacklog(t *testing.T) {
	env := newTestEnv(t, AdmissionPolicy{}, func(d *AdmissionDeps) {
		d.CrossedPaths = failingCrossedPaths{}
		d.Tasks = nil
	})
	ctx := context.Background()
	host := env.user(t, "host")
	a := env.user(t, "alice")
	b := env.user(t, "bob")
	venue := env.venue(t, "Frenchie")
	event := env.event(t, host, venue, 10, nil)

	require.Contains(t, env.admit(t, event.ID, a.ID).Warnings, entity.WarningMatchingFailed)
	require.Contains(t, env.admit(t, event.ID, b.ID).Warnings, entity.WarningMatchingFailed)

	// Inside the grace period nothing is picked up.
	n, err := env.crossed.ReconcileBacklog(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	env.clock.Advance(2 * time.Minute)
	n, err = env.crossed.ReconcileBacklog(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lo, hi := pair.Canonicalize(a.ID, b.ID)
	log, err := env.repo.CrossedPaths.GetLog(ctx, lo, hi, venue.ID)
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Equal(t, 1, log.CrossCount)
	assert.Equal(t, 1, env.notifier.matchCount())

	n, err = env.crossed.ReconcileBacklog(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQuery_PairDetailWithoutMatch(t *testing.T) {
	env := newTestEnv(t, AdmissionPolicy{})
	a := env.user(t, "alice")
	b := env.user(t, "bob")

	_, err := env.query.PairDetail(context.Background(), a.ID, b.ID)
	assert.ErrorIs(t, err, entity.ErrMatchNotFound)
}

func TestQuery_AttendeesAndRSVPs(t *testing.T) {
	env := newTestEnv(t, AdmissionPolicy{})
	ctx := context.Background()
	host := env.user(t, "host")
	a := env.user(t, "alice")
	b := env.user(t, "bob")
	event := env.event(t, host, nil, 10, nil)

	require.Equal(t, entity.OutcomeConfirmed, env.admit(t, event.ID, a.ID).Outcome)
	require.Equal(t, entity.OutcomeConfirmed, env.admit(t, event.ID, b.ID).Outcome)
	_, err := env.admission.Cancel(ctx, event.ID, b.ID)
	require.NoError(t, err)

	attendees, err := env.query.EventAttendees(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, attendees, 1)
	assert.Equal(t, a.ID, attendees[0].UserID)

	rsvps, err := env.query.UserRSVPs(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, rsvps, 1)
	assert.Equal(t, entity.RSVPStatusCancelled, rsvps[0].Status)

	_, err = env.query.EventAttendees(ctx, 9999)
	assert.ErrorIs(t, err, entity.ErrEventNotFound)
}
