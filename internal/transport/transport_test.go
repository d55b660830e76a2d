package transport

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	repository "github.com/ds124wfegd/crossedpaths/internal/database/postgres"
	"github.com/ds124wfegd/crossedpaths/internal/entity"
	"github.com/ds124wfegd/crossedpaths/internal/service"
	"github.com/ds124wfegd/crossedpaths/pkg/database"
	"github.com/ds124wfegd/crossedpaths/pkg/queue"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnv struct {
	db     *sql.DB
	router *gin.Engine
}

func newAPI(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewSQLiteDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(db, database.DriverSQLite))

	repo := repository.NewRepository(db)
	clock := service.SystemClock{}
	visits := service.NewVisitService(repo.Visits)
	crossed := service.NewCrossedPathService(repo.Visits, repo.CrossedPaths, service.LogNotifier{}, clock, time.Minute)
	admission := service.NewAdmissionService(service.AdmissionDeps{
		Repo:          repo,
		Payments:      service.NewStorePayments(repo.Payments, clock),
		Subscriptions: service.NewStoreSubscriptions(repo.Subscriptions),
		Venues:        service.NewStoreVenueResolver(repo.Venues),
		Visits:        visits,
		CrossedPaths:  crossed,
		Clock:         clock,
	}, service.AdmissionPolicy{FreeMonthlyCap: 2})
	events := service.NewEventService(repo.Events, repo.Venues, repo.Users, clock)
	users := service.NewUserService(repo, clock)
	queries := service.NewQueryService(repo)

	router := InitRoutes(&Handlers{
		Events: NewEventHandler(events, queries),
		RSVPs:  NewRSVPHandler(admission),
		Users:  NewUserHandler(users, queries, admission),
		Admin:  NewAdminHandler(nil),
		Health: map[string]HealthFunc{"database": db.PingContext},
	}, 5*time.Second)

	return &apiEnv{db: db, router: router}
}

func (e *apiEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func (e *apiEnv) createUser(t *testing.T, name string) int64 {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/users", gin.H{"name": name, "email": name + "@example.com"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[entity.User](t, w).ID
}

func (e *apiEnv) createVenue(t *testing.T, name string) int64 {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/venues", gin.H{"name": name, "latitude": 41.39, "longitude": 2.17})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[entity.Venue](t, w).ID
}

func (e *apiEnv) createEvent(t *testing.T, creator, venue int64, capacity int, fee int64) int64 {
	t.Helper()
	body := gin.H{
		"creator_id":    creator,
		"venue_id":      venue,
		"title":         "Tapas night",
		"capacity":      capacity,
		"rsvp_deadline": time.Now().Add(24 * time.Hour),
		"starts_at":     time.Now().Add(48 * time.Hour),
	}
	if fee > 0 {
		body["fee_cents"] = fee
	}
	w := e.do(t, http.MethodPost, "/api/v1/events", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[entity.Event](t, w).ID
}

func TestAPI_AdmissionFlow(t *testing.T) {
	api := newAPI(t)
	host := api.createUser(t, "host")
	alice := api.createUser(t, "alice")
	bob := api.createUser(t, "bob")
	carol := api.createUser(t, "carol")
	venue := api.createVenue(t, "Tickets")
	event := api.createEvent(t, host, venue, 2, 0)
	rsvps := fmt.Sprintf("/api/v1/events/%d/rsvps", event)

	w := api.do(t, http.MethodPost, rsvps, gin.H{"user_id": alice})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, entity.OutcomeConfirmed, decode[entity.AdmissionResult](t, w).Outcome)

	w = api.do(t, http.MethodPost, rsvps, gin.H{"user_id": alice})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, entity.OutcomeAlreadyConfirmed, decode[entity.AdmissionResult](t, w).Outcome)

	w = api.do(t, http.MethodPost, rsvps, gin.H{"user_id": bob})
	require.Equal(t, http.StatusCreated, w.Code)
	result := decode[entity.AdmissionResult](t, w)
	require.Len(t, result.Matches, 1)
	assert.True(t, result.Matches[0].NewMatch)

	w = api.do(t, http.MethodPost, rsvps, gin.H{"user_id": carol})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, entity.OutcomeEventFull, decode[entity.AdmissionResult](t, w).Outcome)

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/events/%d/count", event), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode[map[string]interface{}](t, w)["confirmed"])

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/matches", alice), nil)
	require.Equal(t, http.StatusOK, w.Code)
	matches := decode[[]entity.MatchView](t, w)
	require.Len(t, matches, 1)
	assert.Equal(t, bob, matches[0].OtherUserID)

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/matches/%d/venues", bob, alice), nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[service.PairDetail](t, w)
	require.Len(t, detail.Venues, 1)
	assert.Equal(t, venue, detail.Venues[0].VenueID)

	w = api.do(t, http.MethodDelete, fmt.Sprintf("%s/%d", rsvps, alice), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.OutcomeCancelled, decode[entity.CancelResult](t, w).Outcome)

	w = api.do(t, http.MethodDelete, fmt.Sprintf("%s/%d", rsvps, alice), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/quota", alice), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[entity.QuotaUsage](t, w).Cap)
}

func TestAPI_PaidEvent(t *testing.T) {
	api := newAPI(t)
	host := api.createUser(t, "host")
	guest := api.createUser(t, "guest")
	venue := api.createVenue(t, "Disfrutar")
	event := api.createEvent(t, host, venue, 4, 2500)
	rsvps := fmt.Sprintf("/api/v1/events/%d/rsvps", event)

	w := api.do(t, http.MethodPost, rsvps, gin.H{"user_id": guest})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/events/%d/payments/%d", event, guest), gin.H{
		"reference": "ch_42", "amount_cents": 2500, "status": "completed",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodPost, rsvps, gin.H{"user_id": guest, "payment_ref": "ch_42"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = api.do(t, http.MethodDelete, fmt.Sprintf("%s/%d", rsvps, guest), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[entity.CancelResult](t, w).RefundPending)
}

func TestAPI_Errors(t *testing.T) {
	api := newAPI(t)
	host := api.createUser(t, "host")
	alice := api.createUser(t, "alice")

	w := api.do(t, http.MethodGet, "/api/v1/events/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/events/999/count", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/events/999/rsvps", gin.H{"user_id": alice})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/events/1/rsvps", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/users", gin.H{"name": "dup", "email": "host@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/matches/%d/venues", host, alice), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/admin/dlq", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAPI_ClosedEvent(t *testing.T) {
	api := newAPI(t)
	host := api.createUser(t, "host")
	guest := api.createUser(t, "guest")
	venue := api.createVenue(t, "Bar Mut")
	event := api.createEvent(t, host, venue, 4, 0)

	w := api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/events/%d/cancel", event), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/events/%d/cancel", event), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/events/%d/rsvps", event), gin.H{"user_id": guest})
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestAPI_StoreUnavailable(t *testing.T) {
	api := newAPI(t)
	require.NoError(t, api.db.Close())

	w := api.do(t, http.MethodPost, "/api/v1/events/1/rsvps", gin.H{"user_id": 1})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, retryAfterSeconds, w.Header().Get("Retry-After"))

	w = api.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAPI_Health(t *testing.T) {
	api := newAPI(t)

	w := api.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, map[string]interface{}{"database": "ok"}, body["checks"])
}

type fakeQueueAdmin struct {
	dlq *fakeDLQ
}

func (f *fakeQueueAdmin) DLQ() queue.DLQHandler { return f.dlq }

func (f *fakeQueueAdmin) GetQueueStats(ctx context.Context) (*queue.QueueStats, error) {
	return &queue.QueueStats{MainQueue: 3}, nil
}

type fakeDLQ struct {
	queue.DLQHandler
	requeued []string
}

func (f *fakeDLQ) GetFailedTasks(ctx context.Context, limit int) ([]*queue.FailedTask, error) {
	return []*queue.FailedTask{{Task: &queue.Task{ID: "t1"}, Error: "boom"}}, nil
}

func (f *fakeDLQ) RequeueFailedTask(ctx context.Context, taskID string) error {
	if taskID != "t1" {
		return fmt.Errorf("%w: %s", queue.ErrTaskNotFound, taskID)
	}
	f.requeued = append(f.requeued, taskID)
	return nil
}

func TestAdminHandler_DLQ(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dlq := &fakeDLQ{}
	h := NewAdminHandler(&fakeQueueAdmin{dlq: dlq})

	router := gin.New()
	router.GET("/dlq", h.GetFailedTasks)
	router.GET("/queue", h.GetQueueStats)
	router.POST("/dlq/:task_id/requeue", h.RequeueFailedTask)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dlq", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]queue.FailedTask](t, w), 1)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/queue", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/dlq/t1/requeue", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"t1"}, dlq.requeued)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/dlq/nope/requeue", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOutcomeStatus(t *testing.T) {
	cases := map[entity.Outcome]int{
		entity.OutcomeConfirmed:            http.StatusCreated,
		entity.OutcomeCancelled:            http.StatusOK,
		entity.OutcomeNotFound:             http.StatusNotFound,
		entity.OutcomeEventFull:            http.StatusConflict,
		entity.OutcomePaymentRequired:      http.StatusPaymentRequired,
		entity.OutcomeQuotaExceeded:        http.StatusForbidden,
		entity.OutcomeSubscriptionRequired: http.StatusForbidden,
		entity.OutcomeDeadlinePassed:       http.StatusGone,
		entity.OutcomeNotConfirmed:         http.StatusConflict,
	}
	for outcome, want := range cases {
		assert.Equal(t, want, outcomeStatus(outcome), string(outcome))
	}
}
