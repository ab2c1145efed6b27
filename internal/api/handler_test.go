package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mergington-activities/internal/activities"
	"mergington-activities/internal/cache"
	apperrors "mergington-activities/internal/common/errors"
	"mergington-activities/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeAudit struct {
	mu         sync.Mutex
	changes    []activities.Change
	requestIDs []string
	err        error
}

func (f *fakeAudit) Record(_ context.Context, change activities.Change, requestID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, change)
	f.requestIDs = append(f.requestIDs, requestID)
	return f.err
}

type fakeNotifier struct {
	mu      sync.Mutex
	changes []activities.Change
	err     error
}

func (f *fakeNotifier) MembershipChanged(_ context.Context, change activities.Change, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, change)
	return f.err
}

func newTestHandler(t *testing.T, mutate func(*HandlerOptions)) (*Handler, http.Handler) {
	t.Helper()
	opts := HandlerOptions{
		Registry: activities.NewRegistry(activities.DefaultCatalog()),
		Logger:   logger.NewTestLogger(t),
	}
	if mutate != nil {
		mutate(&opts)
	}
	h, err := NewHandler(opts)
	require.NoError(t, err)
	return h, h.Routes()
}

func do(t *testing.T, srv http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func membershipPath(activity, op, email string) string {
	return "/activities/" + url.PathEscape(activity) + "/" + op + "?email=" + url.QueryEscape(email)
}

func decodeCatalog(t *testing.T, rec *httptest.ResponseRecorder) *activities.Catalog {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code)
	var c activities.Catalog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	return &c
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body apperrors.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

// ==========================
// Listing
// ==========================

func TestListActivities_ReturnsSeedInOrder(t *testing.T) {
	_, srv := newTestHandler(t, nil)

	rec := do(t, srv, http.MethodGet, "/activities")

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	c := decodeCatalog(t, rec)
	assert.Equal(t, []string{
		"Soccer Team", "Basketball Team", "Drama Club", "Art Class", "Science Club",
		"Debate Team", "Chess Club", "Programming Class", "Gym Class",
	}, c.Names())

	var raw map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, "Learn strategies and compete in chess tournaments", raw["Chess Club"]["description"])
	assert.EqualValues(t, 12, raw["Chess Club"]["max_participants"])
}

func TestListActivities_IsIdempotent(t *testing.T) {
	_, srv := newTestHandler(t, nil)

	first := do(t, srv, http.MethodGet, "/activities")
	second := do(t, srv, http.MethodGet, "/activities")

	assert.Equal(t, first.Body.String(), second.Body.String())
}

// ==========================
// Signup / Unregister
// ==========================

func TestSignup_Success(t *testing.T) {
	_, srv := newTestHandler(t, nil)

	rec := do(t, srv, http.MethodPost, membershipPath("Soccer Team", "signup", "newstudent@mergington.edu"))

	require.Equal(t, http.StatusOK, rec.Code)
	msg := decodeMessage(t, rec)
	assert.Contains(t, msg, "newstudent@mergington.edu")
	assert.Contains(t, msg, "Soccer Team")

	soccer, ok := decodeCatalog(t, do(t, srv, http.MethodGet, "/activities")).Get("Soccer Team")
	require.True(t, ok)
	assert.Equal(t, "newstudent@mergington.edu", soccer.Participants[len(soccer.Participants)-1])
}

func TestSignup_Duplicate(t *testing.T) {
	_, srv := newTestHandler(t, nil)
	path := membershipPath("Soccer Team", "signup", "duplicate@mergington.edu")

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, path).Code)
	rec := do(t, srv, http.MethodPost, path)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, strings.ToLower(decodeDetail(t, rec)), "already signed up")

	soccer, _ := decodeCatalog(t, do(t, srv, http.MethodGet, "/activities")).Get("Soccer Team")
	count := 0
	for _, p := range soccer.Participants {
		if p == "duplicate@mergington.edu" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestSignup_SeedParticipantIsDuplicate(t *testing.T) {
	_, srv := newTestHandler(t, nil)

	rec := do(t, srv, http.MethodPost, membershipPath("Soccer Team", "signup", "alex@mergington.edu"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Student is already signed up", decodeDetail(t, rec))
}

func TestUnregister_Success(t *testing.T) {
	_, srv := newTestHandler(t, nil)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, membershipPath("Basketball Team", "signup", "temp@mergington.edu")).Code)

	rec := do(t, srv, http.MethodDelete, membershipPath("Basketball Team", "unregister", "temp@mergington.edu"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Unregistered temp@mergington.edu from Basketball Team", decodeMessage(t, rec))

	team, _ := decodeCatalog(t, do(t, srv, http.MethodGet, "/activities")).Get("Basketball Team")
	assert.NotContains(t, team.Participants, "temp@mergington.edu")
	assert.Equal(t, []string{"james@mergington.edu"}, team.Participants)
}

func TestUnregister_NotSignedUp(t *testing.T) {
	_, srv := newTestHandler(t, nil)

	rec := do(t, srv, http.MethodDelete, membershipPath("Soccer Team", "unregister", "notregistered@mergington.edu"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, strings.ToLower(decodeDetail(t, rec)), "not signed up")
}

func TestUnknownActivity_BothOperations(t *testing.T) {
	_, srv := newTestHandler(t, nil)
	before := do(t, srv, http.MethodGet, "/activities").Body.String()

	for _, tc := range []struct{ method, op string }{
		{http.MethodPost, "signup"},
		{http.MethodDelete, "unregister"},
	} {
		rec := do(t, srv, tc.method, membershipPath("Nonexistent Activity", tc.op, "test@mergington.edu"))
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.op)
		assert.Equal(t, "Activity not found", decodeDetail(t, rec), tc.op)
	}

	assert.Equal(t, before, do(t, srv, http.MethodGet, "/activities").Body.String())
}

func TestActivityNameIsCaseSensitive(t *testing.T) {
	_, srv := newTestHandler(t, nil)

	rec := do(t, srv, http.MethodPost, membershipPath("soccer team", "signup", "a@mergington.edu"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMissingEmail_Is422(t *testing.T) {
	_, srv := newTestHandler(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/activities/Chess%20Club/signup"},
		{http.MethodDelete, "/activities/Chess%20Club/unregister"},
	} {
		rec := do(t, srv, tc.method, tc.path)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, tc.path)

		var body apperrors.ValidationErrorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Detail, 1, tc.path)
		assert.Equal(t, []string{"query", "email"}, body.Detail[0].Loc)
		assert.Equal(t, "missing", body.Detail[0].Type)
	}
}

func TestEmptyEmailIsAnOpaqueIdentifier(t *testing.T) {
	_, srv := newTestHandler(t, nil)

	rec := do(t, srv, http.MethodPost, "/activities/Chess%20Club/signup?email=")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCrossActivityIndependence(t *testing.T) {
	_, srv := newTestHandler(t, nil)
	before := decodeCatalog(t, do(t, srv, http.MethodGet, "/activities"))

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, membershipPath("Debate Team", "signup", "speaker@x.edu")).Code)

	after := decodeCatalog(t, do(t, srv, http.MethodGet, "/activities"))
	for _, name := range before.Names() {
		if name == "Debate Team" {
			continue
		}
		b, _ := before.Get(name)
		a, _ := after.Get(name)
		assert.Equal(t, b, a, name)
	}
}

func TestSignup_CapacityEnforced(t *testing.T) {
	_, srv := newTestHandler(t, func(o *HandlerOptions) {
		o.Registry = activities.NewRegistry(
			activities.NewCatalog(activities.Activity{Name: "Tiny Club", MaxParticipants: 1}),
			activities.WithCapacityEnforcement(true),
		)
	})

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, membershipPath("Tiny Club", "signup", "one@x.edu")).Code)
	rec := do(t, srv, http.MethodPost, membershipPath("Tiny Club", "signup", "two@x.edu"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Activity is full", decodeDetail(t, rec))
}

func TestConcurrentDuplicateSignups(t *testing.T) {
	_, srv := newTestHandler(t, nil)

	const workers = 32
	codes := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- do(t, srv, http.MethodPost, membershipPath("Programming Class", "signup", "racer@x.edu")).Code
		}()
	}
	wg.Wait()
	close(codes)

	ok := 0
	for code := range codes {
		if code == http.StatusOK {
			ok++
		} else {
			assert.Equal(t, http.StatusBadRequest, code)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestWrongMethodIsRejected(t *testing.T) {
	_, srv := newTestHandler(t, nil)

	rec := do(t, srv, http.MethodGet, membershipPath("Chess Club", "signup", "a@x.edu"))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// ==========================
// Root, static files and probes
// ==========================

func TestRootRedirectsToStaticIndex(t *testing.T) {
	_, srv := newTestHandler(t, nil)

	rec := do(t, srv, http.MethodGet, "/")

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/static/index.html", rec.Header().Get("Location"))
}

func TestStaticFilesAreServed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log('hi')"), 0o644))
	_, srv := newTestHandler(t, func(o *HandlerOptions) { o.StaticDir = dir })

	rec := do(t, srv, http.MethodGet, "/static/app.js")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log('hi')", rec.Body.String())
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/static/missing.css").Code)
}

func TestStaticIndexIsServedAtItsOwnPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Activities</h1>"), 0o644))
	_, srv := newTestHandler(t, func(o *HandlerOptions) { o.StaticDir = dir })

	rec := do(t, srv, http.MethodGet, "/static/index.html")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<h1>Activities</h1>", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestStaticIndexMissing_Is404(t *testing.T) {
	_, srv := newTestHandler(t, func(o *HandlerOptions) { o.StaticDir = t.TempDir() })

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/static/index.html").Code)
}

func TestHealth(t *testing.T) {
	_, srv := newTestHandler(t, nil)

	rec := do(t, srv, http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestReady_ReportsFailingChecks(t *testing.T) {
	_, srv := newTestHandler(t, func(o *HandlerOptions) {
		o.Readiness = map[string]ReadinessCheck{
			"redis":    func(context.Context) error { return nil },
			"postgres": func(context.Context) error { return errors.New("connection refused") },
		}
	})

	rec := do(t, srv, http.MethodGet, "/ready")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body.Status)
	assert.Equal(t, map[string]string{"redis": "ok", "postgres": "connection refused"}, body.Checks)
}

func TestReady_NoChecks(t *testing.T) {
	_, srv := newTestHandler(t, nil)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/ready").Code)
}

func TestMetricsEndpointExposesRequestCounters(t *testing.T) {
	_, srv := newTestHandler(t, nil)
	do(t, srv, http.MethodGet, "/activities")

	rec := do(t, srv, http.MethodGet, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `activities_http_requests_total{method="GET",route="GET /activities",status="200"}`)
	assert.Contains(t, rec.Body.String(), "activities_participants")
}

// ==========================
// Request IDs
// ==========================

func TestRequestID_GeneratedAndEchoed(t *testing.T) {
	_, srv := newTestHandler(t, nil)

	generated := do(t, srv, http.MethodGet, "/activities").Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "caller-123")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, "caller-123", rec.Header().Get(RequestIDHeader))
}

// ==========================
// Side effects
// ==========================

func TestSideEffects_ReceiveCommittedChange(t *testing.T) {
	audit, notifier := &fakeAudit{}, &fakeNotifier{}
	_, srv := newTestHandler(t, func(o *HandlerOptions) {
		o.Audit = audit
		o.Notifier = notifier
	})

	req := httptest.NewRequest(http.MethodPost, membershipPath("Art Class", "signup", "painter@x.edu"), nil)
	req.Header.Set(RequestIDHeader, "req-7")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, audit.changes, 1)
	assert.Equal(t, activities.OpSignup, audit.changes[0].Operation)
	assert.Equal(t, "Art Class", audit.changes[0].Activity)
	assert.Equal(t, "painter@x.edu", audit.changes[0].Email)
	assert.Equal(t, 2, audit.changes[0].Participants)
	assert.Equal(t, []string{"req-7"}, audit.requestIDs)
	require.Len(t, notifier.changes, 1)

	do(t, srv, http.MethodPost, membershipPath("Art Class", "signup", "painter@x.edu"))
	assert.Len(t, audit.changes, 1, "rejected operations are not audited")
}

func TestSideEffects_FailuresDoNotFailRequest(t *testing.T) {
	_, srv := newTestHandler(t, func(o *HandlerOptions) {
		o.Audit = &fakeAudit{err: errors.New("db down")}
		o.Notifier = &fakeNotifier{err: errors.New("sns throttled")}
	})

	rec := do(t, srv, http.MethodDelete, membershipPath("Gym Class", "unregister", "john@mergington.edu"))

	assert.Equal(t, http.StatusOK, rec.Code)
}

// ==========================
// Listing cache
// ==========================

func newCachedHandler(t *testing.T) (*miniredis.Miniredis, *cache.ListingCache, http.Handler) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lc := cache.NewListingCache(client, time.Minute, "test")
	_, srv := newTestHandler(t, func(o *HandlerOptions) { o.Cache = lc })
	return mr, lc, srv
}

func TestListingCache_ServesAndRefreshesAfterMutation(t *testing.T) {
	mr, lc, srv := newCachedHandler(t)

	first := do(t, srv, http.MethodGet, "/activities")
	require.Equal(t, http.StatusOK, first.Code)
	assert.True(t, mr.Exists(lc.Key(0)))

	second := do(t, srv, http.MethodGet, "/activities")
	assert.Equal(t, first.Body.String(), second.Body.String())

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, membershipPath("Drama Club", "signup", "actor@x.edu")).Code)
	assert.False(t, mr.Exists(lc.Key(0)), "superseded listing is dropped")

	drama, _ := decodeCatalog(t, do(t, srv, http.MethodGet, "/activities")).Get("Drama Club")
	assert.Contains(t, drama.Participants, "actor@x.edu")
	assert.True(t, mr.Exists(lc.Key(1)))
}

func TestListingCache_ServesCachedBodyForCurrentVersion(t *testing.T) {
	mr, lc, srv := newCachedHandler(t)
	require.NoError(t, mr.Set(lc.Key(0), `{"Cached":{"description":"","schedule":"","max_participants":1,"participants":[]}}`))

	c := decodeCatalog(t, do(t, srv, http.MethodGet, "/activities"))

	assert.Equal(t, []string{"Cached"}, c.Names())
}

func TestListingCache_RedisDownFallsBackToRegistry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, srv := newTestHandler(t, func(o *HandlerOptions) {
		o.Cache = cache.NewListingCache(client, time.Minute, "test")
	})

	c := decodeCatalog(t, do(t, srv, http.MethodGet, "/activities"))
	assert.Equal(t, 9, c.Len())

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, membershipPath("Chess Club", "signup", "a@x.edu")).Code)
}

func TestNewHandler_RequiresRegistry(t *testing.T) {
	_, err := NewHandler(HandlerOptions{})
	assert.Error(t, err)
}
