package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourname/sleepcat/internal"
	"github.com/yourname/sleepcat/internal/registry"
	"github.com/yourname/sleepcat/internal/service"
	"github.com/yourname/sleepcat/internal/storage"
)

type envelope struct {
	Data  json.RawMessage    `json:"data"`
	Meta  map[string]any     `json:"meta"`
	Error *internal.AppError `json:"error"`
}

type testServer struct {
	router *gin.Engine
	now    time.Time
}

func setupRouter(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	store, err := storage.NewFileStorage(filepath.Join(dir, "sessions.json"), filepath.Join(dir, "coins.json"), internal.NopLogger())
	require.NoError(t, err)

	ts := &testServer{now: time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)}
	lc := service.NewLifecycle(store, store, registry.NewMemoryRegistry(), internal.NopLogger(),
		service.WithClock(func() time.Time { return ts.now }))
	app := NewApp(internal.NopLogger(), lc, service.NewHistory(store, time.UTC), service.NewShop(store))
	ts.router = NewRouter(app)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, user, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestSleepCycle(t *testing.T) {
	ts := setupRouter(t)

	rec, env := ts.do(t, "POST", "/sleep/start", "u1", "")
	require.Equal(t, 201, rec.Code)
	var session internal.SleepSession
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, "u1", session.UserID)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, env = ts.do(t, "GET", "/sleep/pending", "u1", "")
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, true, env.Meta["sleeping"])

	rec, _ = ts.do(t, "POST", "/sleep/start", "u1", "")
	assert.Equal(t, 409, rec.Code)

	ts.now = ts.now.Add(8*time.Hour + 30*time.Minute)
	rec, env = ts.do(t, "POST", "/sleep/end", "u1", "")
	require.Equal(t, 200, rec.Code)
	var result service.EndResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, session.ID, result.SessionID)
	assert.Equal(t, 510, result.DurationMinutes)
	assert.Equal(t, 510, result.RewardCoins)

	rec, env = ts.do(t, "POST", "/sleep/end", "u1", `{"session_id":"`+session.ID+`"}`)
	assert.Equal(t, 409, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, 409, env.Error.Code)

	rec, env = ts.do(t, "GET", "/coins", "u1", "")
	assert.Equal(t, 200, rec.Code)
	var balance internal.CoinBalance
	require.NoError(t, json.Unmarshal(env.Data, &balance))
	assert.Equal(t, 510, balance.Coins)

	rec, env = ts.do(t, "GET", "/sleep?date=2024-01-01", "u1", "")
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, float64(510), env.Meta["total_minutes"])
}

func TestEndSleep_Errors(t *testing.T) {
	ts := setupRouter(t)

	rec, _ := ts.do(t, "POST", "/sleep/end", "u1", "")
	assert.Equal(t, 404, rec.Code)

	rec, _ = ts.do(t, "POST", "/sleep/end", "u1", `{"session_id":"missing"}`)
	assert.Equal(t, 404, rec.Code)

	rec, _ = ts.do(t, "POST", "/sleep/end", "u1", `{"session_id":`)
	assert.Equal(t, 400, rec.Code)

	// another user's session is invisible
	rec, env := ts.do(t, "POST", "/sleep/start", "u2", "")
	require.Equal(t, 201, rec.Code)
	var session internal.SleepSession
	require.NoError(t, json.Unmarshal(env.Data, &session))
	ts.now = ts.now.Add(time.Hour)
	rec, _ = ts.do(t, "POST", "/sleep/end", "u1", `{"session_id":"`+session.ID+`"}`)
	assert.Equal(t, 404, rec.Code)
}

func TestEndSleep_InvalidInterval(t *testing.T) {
	ts := setupRouter(t)

	rec, _ := ts.do(t, "POST", "/sleep/start", "u1", "")
	require.Equal(t, 201, rec.Code)
	ts.now = ts.now.Add(-time.Minute)
	rec, _ = ts.do(t, "POST", "/sleep/end", "u1", "")
	assert.Equal(t, 422, rec.Code)

	_, env := ts.do(t, "GET", "/coins", "u1", "")
	var balance internal.CoinBalance
	require.NoError(t, json.Unmarshal(env.Data, &balance))
	assert.Equal(t, 0, balance.Coins)
}

func TestStore(t *testing.T) {
	ts := setupRouter(t)

	rec, env := ts.do(t, "GET", "/store/items", "u1", "")
	assert.Equal(t, 200, rec.Code)
	var items []service.CatalogEntry
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 8)

	rec, _ = ts.do(t, "POST", "/store/purchase", "u1", `{"item_id":"yarn"}`)
	assert.Equal(t, 402, rec.Code)

	ts.do(t, "POST", "/sleep/start", "u1", "")
	ts.now = ts.now.Add(15 * time.Minute)
	rec, _ = ts.do(t, "POST", "/sleep/end", "u1", "")
	require.Equal(t, 200, rec.Code)

	rec, env = ts.do(t, "POST", "/store/purchase", "u1", `{"item_id":"yarn"}`)
	assert.Equal(t, 200, rec.Code)
	var balance internal.CoinBalance
	require.NoError(t, json.Unmarshal(env.Data, &balance))
	assert.Equal(t, 5, balance.Coins)

	rec, _ = ts.do(t, "POST", "/store/purchase", "u1", `{"item_id":"yarn"}`)
	assert.Equal(t, 409, rec.Code)
	rec, _ = ts.do(t, "POST", "/store/purchase", "u1", `{"item_id":"unicorn"}`)
	assert.Equal(t, 404, rec.Code)
	rec, _ = ts.do(t, "POST", "/store/purchase", "u1", `{}`)
	assert.Equal(t, 400, rec.Code)
}

func TestGetSleepDay_BadDate(t *testing.T) {
	ts := setupRouter(t)
	rec, _ := ts.do(t, "GET", "/sleep?date=yesterday", "u1", "")
	assert.Equal(t, 400, rec.Code)
}

func TestUserMiddleware(t *testing.T) {
	ts := setupRouter(t)
	rec, env := ts.do(t, "GET", "/coins", "", "")
	assert.Equal(t, 401, rec.Code)
	require.NotNil(t, env.Error)

	rec, _ = ts.do(t, "GET", "/coins", "café", "")
	assert.Equal(t, 400, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{internal.ErrSessionNotFound, 404},
		{internal.ErrNoPendingSession, 404},
		{internal.ErrAlreadyClosed, 409},
		{internal.ErrAlreadySleeping, 409},
		{internal.ErrInvalidInterval, 422},
		{internal.ErrSessionTooLong, 422},
		{internal.ErrUserRequired, 400},
		{internal.ErrInsufficientCoins, 402},
		{internal.StoreFailure("insert", assert.AnError), 503},
		{assert.AnError, 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestPostSleep(t *testing.T) {
	ts := setupRouter(t)

	rec, env := ts.do(t, "POST", "/sleep", "u1", `{"sleep_time":"2024-01-01T23:00:00Z","wake_time":"2024-01-02T06:00:00Z"}`)
	require.Equal(t, 201, rec.Code)
	var session internal.SleepSession
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, "2024-01-01", session.Date)
	require.NotNil(t, session.DurationMinutes)
	assert.Equal(t, 420, *session.DurationMinutes)

	_, env = ts.do(t, "GET", "/sleep?date=2024-01-01", "u1", "")
	assert.Equal(t, float64(420), env.Meta["total_minutes"])

	_, env = ts.do(t, "GET", "/coins", "u1", "")
	var balance internal.CoinBalance
	require.NoError(t, json.Unmarshal(env.Data, &balance))
	assert.Equal(t, 0, balance.Coins)

	// a hand-entered session does not make the user asleep
	_, env = ts.do(t, "GET", "/sleep/pending", "u1", "")
	assert.Equal(t, false, env.Meta["sleeping"])
}

func TestPostSleep_Rejects(t *testing.T) {
	ts := setupRouter(t)

	rec, _ := ts.do(t, "POST", "/sleep", "u1", `{"sleep_time":"2024-01-02T06:00:00Z","wake_time":"2024-01-01T23:00:00Z"}`)
	assert.Equal(t, 422, rec.Code)

	rec, _ = ts.do(t, "POST", "/sleep", "u1", `{"sleep_time":"2024-01-01T06:00:00Z","wake_time":"2024-01-02T06:01:00Z"}`)
	assert.Equal(t, 422, rec.Code)

	rec, _ = ts.do(t, "POST", "/sleep", "u1", `{"sleep_time":"2024-01-01T06:00:00Z"}`)
	assert.Equal(t, 400, rec.Code)

	rec, _ = ts.do(t, "POST", "/sleep", "u1", `{"sleep_time":"last night"}`)
	assert.Equal(t, 400, rec.Code)
}
