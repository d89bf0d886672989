package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TerraFitLab/terrafit/backend/internal/auth"
	"github.com/TerraFitLab/terrafit/backend/internal/community"
	"github.com/TerraFitLab/terrafit/backend/internal/scoring"
	"github.com/TerraFitLab/terrafit/backend/internal/stats"
)

const testTriggerSecret = "trigger-secret"

var routerClock = func() time.Time {
	return time.Date(2026, time.January, 7, 12, 0, 0, 0, time.UTC)
}

type stubEngine struct {
	summary scoring.BatchSummary
	err     error
	calls   int
}

func (e *stubEngine) RunAll(context.Context) (scoring.BatchSummary, error) {
	e.calls++
	return e.summary, e.err
}

type stubLeaderboards struct {
	entries     []scoring.LeaderboardEntry
	err         error
	groupID     community.GroupID
	period      scoring.Period
	periodStart time.Time
}

func (r *stubLeaderboards) Leaderboard(_ context.Context, groupID community.GroupID, period scoring.Period, periodStart time.Time) ([]scoring.LeaderboardEntry, error) {
	r.groupID = groupID
	r.period = period
	r.periodStart = periodStart
	return r.entries, r.err
}

type stubStats struct {
	snapshot    stats.GroupStats
	err         error
	invalidated []community.GroupID
}

func (s *stubStats) GroupStats(context.Context, community.GroupID) (stats.GroupStats, error) {
	return s.snapshot, s.err
}

func (s *stubStats) Invalidate(groupID community.GroupID) {
	s.invalidated = append(s.invalidated, groupID)
}

type routerFixture struct {
	handler      http.Handler
	engine       *stubEngine
	leaderboards *stubLeaderboards
	stats        *stubStats
	tokens       *auth.ServiceTokens
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	guard, err := auth.NewSharedSecretGuard(testTriggerSecret)
	if err != nil {
		t.Fatalf("failed to construct guard: %v", err)
	}
	tokens := auth.NewServiceTokens(auth.ServiceTokensConfig{
		SigningSecret: []byte("router-test-secret"),
		Issuer:        "terrafit-engine",
		Audience:      "terrafit-api",
		Clock:         routerClock,
	})

	fixture := &routerFixture{
		engine:       &stubEngine{},
		leaderboards: &stubLeaderboards{},
		stats:        &stubStats{},
		tokens:       tokens,
	}
	handler, err := NewHTTPHandler(Dependencies{
		TriggerGuard: guard,
		Tokens:       tokens,
		Engine:       fixture.engine,
		Leaderboards: fixture.leaderboards,
		Stats:        fixture.stats,
		Clock:        routerClock,
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}
	fixture.handler = handler
	return fixture
}

func (f *routerFixture) serve(t *testing.T, method, target, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(method, target, nil)
	if bearer != "" {
		request.Header.Set("Authorization", "Bearer "+bearer)
	}
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)
	return recorder
}

func (f *routerFixture) serviceToken(t *testing.T) string {
	t.Helper()
	token, _, err := f.tokens.Issue("router-test")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

func TestHealthEndpointIsPublic(t *testing.T) {
	fixture := newRouterFixture(t)
	response := fixture.serve(t, http.MethodGet, "/healthz", "")
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", response.Code)
	}
}

func TestTriggerRejectsUnauthorizedBeforeAnyWork(t *testing.T) {
	fixture := newRouterFixture(t)

	for _, bearer := range []string{"", "wrong-secret"} {
		response := fixture.serve(t, http.MethodPost, "/internal/leaderboard/run", bearer)
		if response.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for bearer %q, got %d", bearer, response.Code)
		}
	}
	if fixture.engine.calls != 0 {
		t.Fatalf("engine must not run for unauthorized calls, ran %d times", fixture.engine.calls)
	}
}

func TestTriggerRunsEngineAndReturnsSummary(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.engine.summary = scoring.BatchSummary{GroupsProcessed: 3, EntriesUpdated: 12}

	response := fixture.serve(t, http.MethodPost, "/internal/leaderboard/run", testTriggerSecret)
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}

	var summary scoring.BatchSummary
	if err := json.Unmarshal(response.Body.Bytes(), &summary); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	if summary.GroupsProcessed != 3 || summary.EntriesUpdated != 12 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestTriggerReportsEngineFailure(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.engine.err = context.DeadlineExceeded

	response := fixture.serve(t, http.MethodPost, "/internal/leaderboard/run", testTriggerSecret)
	if response.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", response.Code)
	}
}

func TestStatsInvalidateRequiresTriggerSecret(t *testing.T) {
	fixture := newRouterFixture(t)

	response := fixture.serve(t, http.MethodPost, "/internal/groups/group-1/stats/invalidate", "wrong-secret")
	if response.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", response.Code)
	}
	if len(fixture.stats.invalidated) != 0 {
		t.Fatalf("cache must not be touched by unauthorized calls")
	}

	response = fixture.serve(t, http.MethodPost, "/internal/groups/group-1/stats/invalidate", testTriggerSecret)
	if response.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", response.Code)
	}
	if len(fixture.stats.invalidated) != 1 || fixture.stats.invalidated[0] != "group-1" {
		t.Fatalf("expected invalidation for group-1, got %v", fixture.stats.invalidated)
	}
}

func TestLeaderboardReadRequiresServiceToken(t *testing.T) {
	fixture := newRouterFixture(t)

	response := fixture.serve(t, http.MethodGet, "/api/groups/group-1/leaderboard", "")
	if response.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", response.Code)
	}
	response = fixture.serve(t, http.MethodGet, "/api/groups/group-1/leaderboard", "not-a-jwt")
	if response.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for malformed token, got %d", response.Code)
	}
}

func TestLeaderboardReadDefaultsToCurrentWeeklyWindow(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.leaderboards.entries = []scoring.LeaderboardEntry{
		{UserID: "user-a", Rank: 1, TotalScore: 117},
		{UserID: "user-b", Rank: 2},
	}

	response := fixture.serve(t, http.MethodGet, "/api/groups/group-1/leaderboard", fixture.serviceToken(t))
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}

	if fixture.leaderboards.period != scoring.PeriodWeekly {
		t.Fatalf("expected default WEEKLY period, got %s", fixture.leaderboards.period)
	}
	expectedStart := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)
	if !fixture.leaderboards.periodStart.Equal(expectedStart) {
		t.Fatalf("expected current window start %v, got %v", expectedStart, fixture.leaderboards.periodStart)
	}

	var payload leaderboardResponsePayload
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.GroupID != "group-1" || payload.Period != "WEEKLY" {
		t.Fatalf("unexpected payload header: %+v", payload)
	}
	if len(payload.Entries) != 2 || payload.Entries[0].UserID != "user-a" || payload.Entries[0].TotalScore != 117 {
		t.Fatalf("unexpected entries: %+v", payload.Entries)
	}
}

func TestLeaderboardReadHonorsExplicitWindow(t *testing.T) {
	fixture := newRouterFixture(t)

	historicalStart := time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)
	target := "/api/groups/group-1/leaderboard?period=MONTHLY&period_start=" +
		strconv.FormatInt(historicalStart.Unix(), 10)

	response := fixture.serve(t, http.MethodGet, target, fixture.serviceToken(t))
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}
	if fixture.leaderboards.period != scoring.PeriodMonthly {
		t.Fatalf("expected MONTHLY period, got %s", fixture.leaderboards.period)
	}
	if !fixture.leaderboards.periodStart.Equal(historicalStart) {
		t.Fatalf("expected explicit start %v, got %v", historicalStart, fixture.leaderboards.periodStart)
	}
}

func TestLeaderboardReadRejectsBadParameters(t *testing.T) {
	fixture := newRouterFixture(t)
	token := fixture.serviceToken(t)

	response := fixture.serve(t, http.MethodGet, "/api/groups/group-1/leaderboard?period=DAILY", token)
	if response.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown period, got %d", response.Code)
	}
	response = fixture.serve(t, http.MethodGet, "/api/groups/group-1/leaderboard?period_start=not-a-number", token)
	if response.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad period_start, got %d", response.Code)
	}
}

func TestGroupStatsRead(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.stats.snapshot = stats.GroupStats{
		GroupID:               "group-1",
		TotalMembers:          10,
		ActiveMembers:         4,
		TotalWeightLossKg:     12.5,
		AvgWeightLossKg:       2.5,
		TotalPosts:            40,
		TotalMessages:         100,
		ActiveRate:            0.4,
		LastCalculatedSeconds: routerClock().Unix(),
	}

	response := fixture.serve(t, http.MethodGet, "/api/groups/group-1/stats", fixture.serviceToken(t))
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}

	var payload groupStatsResponsePayload
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.TotalMembers != 10 || payload.ActiveRate != 0.4 || payload.TotalWeightLossKg != 12.5 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestGroupStatsReadUnknownGroup(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.stats.err = stats.ErrUnknownGroup

	response := fixture.serve(t, http.MethodGet, "/api/groups/missing/stats", fixture.serviceToken(t))
	if response.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", response.Code)
	}
}
