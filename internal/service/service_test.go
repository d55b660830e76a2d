package service

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	repository "github.com/ds124wfegd/crossedpaths/internal/database/postgres"
	"github.com/ds124wfegd/crossedpaths/internal/entity"
	"github.com/ds124wfegd/crossedpaths/pkg/database"

	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu            sync.Mutex
	admissions    []*entity.AdmissionResult
	cancellations []*entity.CancelResult
	matches       []*entity.MatchEvent
	err           error
}

func (n *recordingNotifier) NotifyAdmission(ctx context.Context, result *entity.AdmissionResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.admissions = append(n.admissions, result)
	return n.err
}

func (n *recordingNotifier) NotifyCancellation(ctx context.Context, result *entity.CancelResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancellations = append(n.cancellations, result)
	return n.err
}

func (n *recordingNotifier) NotifyMatch(ctx context.Context, event *entity.MatchEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.matches = append(n.matches, event)
	return n.err
}

func (n *recordingNotifier) matchCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.matches)
}

// stallingNotifier holds every call until its context ends or hold passes.
type stallingNotifier struct {
	hold time.Duration
}

func (n stallingNotifier) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(n.hold):
		return nil
	}
}

func (n stallingNotifier) NotifyAdmission(ctx context.Context, result *entity.AdmissionResult) error {
	return n.wait(ctx)
}

func (n stallingNotifier) NotifyCancellation(ctx context.Context, result *entity.CancelResult) error {
	return n.wait(ctx)
}

func (n stallingNotifier) NotifyMatch(ctx context.Context, event *entity.MatchEvent) error {
	return n.wait(ctx)
}

type recordingTasks struct {
	mu    sync.Mutex
	tasks []*Task
	err   error
}

func (p *recordingTasks) Publish(ctx context.Context, task *Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.tasks = append(p.tasks, task)
	return nil
}

// failingCrossedPaths stands in for an aggregator whose store is down.
type failingCrossedPaths struct{}

func (failingCrossedPaths) Reconcile(ctx context.Context, visit *entity.Visit) ([]*entity.MatchEvent, error) {
	return nil, errors.New("connection reset")
}

func (failingCrossedPaths) ReconcileByID(ctx context.Context, visitID int64) ([]*entity.MatchEvent, error) {
	return nil, errors.New("connection reset")
}

func (failingCrossedPaths) ReconcileBacklog(ctx context.Context, limit int) (int, error) {
	return 0, errors.New("connection reset")
}

type testEnv struct {
	db        *sql.DB
	repo      *repository.Repository
	clock     *fakeClock
	notifier  *recordingNotifier
	tasks     *recordingTasks
	admission AdmissionService
	visits    VisitService
	crossed   CrossedPathService
	events    EventService
	users     UserService
	query     QueryService
}

type envOption func(*AdmissionDeps)

func defaultPolicy() AdmissionPolicy {
	return AdmissionPolicy{FreeMonthlyCap: 2, QuotaLocation: time.UTC}
}

func newTestEnv(t *testing.T, policy AdmissionPolicy, opts ...envOption) *testEnv {
	t.Helper()

	db, err := database.NewSQLiteDB(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(db, database.DriverSQLite))

	env := &testEnv{
		db:       db,
		repo:     repository.NewRepository(db),
		clock:    &fakeClock{now: baseTime},
		notifier: &recordingNotifier{},
		tasks:    &recordingTasks{},
	}
	env.visits = NewVisitService(env.repo.Visits)
	env.crossed = NewCrossedPathService(env.repo.Visits, env.repo.CrossedPaths, env.notifier, env.clock, time.Minute)
	env.events = NewEventService(env.repo.Events, env.repo.Venues, env.repo.Users, env.clock)
	env.users = NewUserService(env.repo, env.clock)
	env.query = NewQueryService(env.repo)

	deps := AdmissionDeps{
		Repo:          env.repo,
		Payments:      NewStorePayments(env.repo.Payments, env.clock),
		Subscriptions: NewStoreSubscriptions(env.repo.Subscriptions),
		Venues:        NewStoreVenueResolver(env.repo.Venues),
		Visits:        env.visits,
		CrossedPaths:  env.crossed,
		Notifier:      env.notifier,
		Tasks:         env.tasks,
		Clock:         env.clock,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	env.admission = NewAdmissionService(deps, policy)
	return env
}

func (e *testEnv) user(t *testing.T, name string) *entity.User {
	t.Helper()
	u, err := e.users.RegisterUser(context.Background(), &RegisterUserRequest{Name: name, Email: name + "@example.com"})
	require.NoError(t, err)
	return u
}

func (e *testEnv) venue(t *testing.T, name string) *entity.Venue {
	t.Helper()
	v, err := e.events.CreateVenue(context.Background(), &CreateVenueRequest{Name: name, Latitude: 48.85, Longitude: 2.35})
	require.NoError(t, err)
	return v
}

func (e *testEnv) event(t *testing.T, host *entity.User, venue *entity.Venue, capacity int, fee *int64) *entity.Event {
	t.Helper()
	req := &CreateEventRequest{
		CreatorID:    host.ID,
		Title:        "Dinner",
		Capacity:     capacity,
		RSVPDeadline: baseTime.Add(60 * 24 * time.Hour),
		StartsAt:     baseTime.Add(61 * 24 * time.Hour),
		FeeCents:     fee,
	}
	if venue != nil {
		req.VenueID = &venue.ID
	}
	ev, err := e.events.CreateEvent(context.Background(), req)
	require.NoError(t, err)
	return ev
}

func (e *testEnv) admit(t *testing.T, eventID, userID int64) *entity.AdmissionResult {
	t.Helper()
	res, err := e.admission.TryAdmit(context.Background(), &AdmitRequest{EventID: eventID, UserID: userID})
	require.NoError(t, err)
	return res
}

func (e *testEnv) premium(t *testing.T, userID int64) {
	t.Helper()
	_, err := e.users.SetSubscription(context.Background(), userID, &SubscriptionRequest{Tier: entity.TierPremium})
	require.NoError(t, err)
}

func fee(cents int64) *int64 {
	return &cents
}
