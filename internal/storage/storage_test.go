package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourname/sleepcat/internal"
	"github.com/yourname/sleepcat/internal/config"
)

var (
	night = time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)
	scarf = internal.Item{ID: "scarf", Name: "Scarf", Price: 25}
)

func newSession(id, userID string, sleep time.Time) *internal.SleepSession {
	return &internal.SleepSession{
		ID:        id,
		UserID:    userID,
		Date:      sleep.Format(internal.DateLayout),
		SleepTime: sleep,
		CreatedAt: sleep,
	}
}

// testBackend runs the repository contract every backend must satisfy.
func testBackend(t *testing.T, b Backend) {
	t.Run("insert and get", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, b.InsertSession(ctx, newSession("get-1", "u-get", night)))

		got, err := b.GetSession(ctx, "get-1")
		require.NoError(t, err)
		assert.Equal(t, "u-get", got.UserID)
		assert.Equal(t, "2024-01-01", got.Date)
		assert.True(t, got.SleepTime.Equal(night))
		assert.True(t, got.IsOpen())
		assert.Nil(t, got.DurationMinutes)

		_, err = b.GetSession(ctx, "missing")
		assert.ErrorIs(t, err, internal.ErrSessionNotFound)
	})

	t.Run("close persists duration once", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, b.InsertSession(ctx, newSession("close-1", "u-close", night)))

		wake := night.Add(8*time.Hour + 30*time.Minute)
		closed, err := b.CloseSession(ctx, "close-1", wake)
		require.NoError(t, err)
		require.NotNil(t, closed.WakeTime)
		assert.True(t, closed.WakeTime.Equal(wake))
		require.NotNil(t, closed.DurationMinutes)
		assert.Equal(t, 510, *closed.DurationMinutes)
		assert.False(t, closed.Flagged)

		reread, err := b.GetSession(ctx, "close-1")
		require.NoError(t, err)
		require.NotNil(t, reread.DurationMinutes)
		assert.Equal(t, 510, *reread.DurationMinutes)

		_, err = b.CloseSession(ctx, "close-1", wake.Add(time.Hour))
		assert.ErrorIs(t, err, internal.ErrAlreadyClosed)

		_, err = b.CloseSession(ctx, "missing", wake)
		assert.ErrorIs(t, err, internal.ErrSessionNotFound)
	})

	t.Run("close before sleep flags session", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, b.InsertSession(ctx, newSession("flag-1", "u-flag", night)))

		closed, err := b.CloseSession(ctx, "flag-1", night.Add(-time.Minute))
		require.NoError(t, err)
		assert.True(t, closed.Flagged)
		assert.Nil(t, closed.DurationMinutes)
		assert.False(t, closed.IsOpen())
	})

	t.Run("insert closed session computes duration", func(t *testing.T) {
		ctx := context.Background()
		ss := newSession("manual-1", "u-manual", night)
		wake := night.Add(7*time.Hour + 15*time.Minute)
		ss.WakeTime = &wake

		stored, err := b.InsertClosedSession(ctx, ss)
		require.NoError(t, err)
		assert.False(t, stored.IsOpen())
		assert.False(t, stored.Flagged)
		require.NotNil(t, stored.DurationMinutes)
		assert.Equal(t, 435, *stored.DurationMinutes)

		reread, err := b.GetSession(ctx, "manual-1")
		require.NoError(t, err)
		require.NotNil(t, reread.DurationMinutes)
		assert.Equal(t, 435, *reread.DurationMinutes)

		_, err = b.CloseSession(ctx, "manual-1", wake.Add(time.Hour))
		assert.ErrorIs(t, err, internal.ErrAlreadyClosed)

		bad := newSession("manual-2", "u-manual", night)
		before := night.Add(-time.Minute)
		bad.WakeTime = &before
		_, err = b.InsertClosedSession(ctx, bad)
		assert.ErrorIs(t, err, internal.ErrInvalidInterval)
		_, err = b.GetSession(ctx, "manual-2")
		assert.ErrorIs(t, err, internal.ErrSessionNotFound)
	})

	t.Run("delete only open sessions", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, b.InsertSession(ctx, newSession("del-1", "u-del", night)))
		require.NoError(t, b.InsertSession(ctx, newSession("del-2", "u-del", night.Add(time.Hour))))
		_, err := b.CloseSession(ctx, "del-2", night.Add(3*time.Hour))
		require.NoError(t, err)

		require.NoError(t, b.DeleteOpenSession(ctx, "del-1"))
		_, err = b.GetSession(ctx, "del-1")
		assert.ErrorIs(t, err, internal.ErrSessionNotFound)

		assert.ErrorIs(t, b.DeleteOpenSession(ctx, "del-2"), internal.ErrAlreadyClosed)
		assert.ErrorIs(t, b.DeleteOpenSession(ctx, "del-1"), internal.ErrSessionNotFound)
	})

	t.Run("list by sleep time range", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, b.InsertSession(ctx, newSession("list-2", "u-list", night.Add(2*time.Hour))))
		require.NoError(t, b.InsertSession(ctx, newSession("list-1", "u-list", night)))
		require.NoError(t, b.InsertSession(ctx, newSession("list-3", "u-list", night.Add(26*time.Hour))))
		require.NoError(t, b.InsertSession(ctx, newSession("list-x", "u-other", night)))

		got, err := b.ListSessions(ctx, "u-list", night, night.Add(24*time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "list-1", got[0].ID)
		assert.Equal(t, "list-2", got[1].ID)

		got, err = b.ListSessions(ctx, "nobody", night, night.Add(24*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("balance defaults to zero and increments", func(t *testing.T) {
		ctx := context.Background()
		bal, err := b.GetBalance(ctx, "u-coins")
		require.NoError(t, err)
		assert.Equal(t, 0, bal.Coins)

		bal, err = b.AddCoins(ctx, "u-coins", 510)
		require.NoError(t, err)
		assert.Equal(t, 510, bal.Coins)

		bal, err = b.AddCoins(ctx, "u-coins", 15)
		require.NoError(t, err)
		assert.Equal(t, 525, bal.Coins)

		bal, err = b.GetBalance(ctx, "u-coins")
		require.NoError(t, err)
		assert.Equal(t, 525, bal.Coins)

		_, err = b.AddCoins(ctx, "u-coins", -1)
		assert.Error(t, err)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := b.AddCoins(ctx, "u-race", 3)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		bal, err := b.GetBalance(ctx, "u-race")
		require.NoError(t, err)
		assert.Equal(t, 60, bal.Coins)
	})

	t.Run("purchase", func(t *testing.T) {
		ctx := context.Background()
		_, err := b.Purchase(ctx, "u-shop", scarf)
		assert.ErrorIs(t, err, internal.ErrInsufficientCoins)

		_, err = b.AddCoins(ctx, "u-shop", 30)
		require.NoError(t, err)

		bal, err := b.Purchase(ctx, "u-shop", scarf)
		require.NoError(t, err)
		assert.Equal(t, 5, bal.Coins)

		_, err = b.Purchase(ctx, "u-shop", scarf)
		assert.ErrorIs(t, err, internal.ErrAlreadyOwned)

		_, err = b.Purchase(ctx, "u-shop", internal.Item{ID: "balloon", Price: 20})
		assert.ErrorIs(t, err, internal.ErrInsufficientCoins)

		owned, err := b.ListOwnedItems(ctx, "u-shop")
		require.NoError(t, err)
		require.Len(t, owned, 1)
		assert.Equal(t, "scarf", owned[0].ItemID)
		assert.Equal(t, 25, owned[0].Price)

		bal, err = b.GetBalance(ctx, "u-shop")
		require.NoError(t, err)
		assert.Equal(t, 5, bal.Coins)
	})
}

func TestFileStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage(filepath.Join(dir, "sessions.json"), filepath.Join(dir, "coins.json"), internal.NopLogger())
	require.NoError(t, err)
	defer s.Close()
	testBackend(t, s)
}

func TestFileStorage_Reload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	sessionsFile := filepath.Join(dir, "sessions.json")
	coinsFile := filepath.Join(dir, "coins.json")

	s, err := NewFileStorage(sessionsFile, coinsFile, internal.NopLogger())
	require.NoError(t, err)
	require.NoError(t, s.InsertSession(ctx, newSession("r-1", "u1", night)))
	_, err = s.CloseSession(ctx, "r-1", night.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, s.InsertSession(ctx, newSession("r-2", "u1", night.Add(48*time.Hour))))
	_, err = s.AddCoins(ctx, "u1", 60)
	require.NoError(t, err)
	_, err = s.Purchase(ctx, "u1", scarf)
	require.NoError(t, err)

	// no Close: every mutation must already be on disk
	s2, err := NewFileStorage(sessionsFile, coinsFile, internal.NopLogger())
	require.NoError(t, err)

	closed, err := s2.GetSession(ctx, "r-1")
	require.NoError(t, err)
	require.NotNil(t, closed.DurationMinutes)
	assert.Equal(t, 60, *closed.DurationMinutes)

	open, err := s2.GetSession(ctx, "r-2")
	require.NoError(t, err)
	assert.True(t, open.IsOpen())

	bal, err := s2.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 35, bal.Coins)

	owned, err := s2.ListOwnedItems(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

func TestFileStorage_WriteFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStorage(filepath.Join(dir, "sessions.json"), filepath.Join(dir, "coins.json"), internal.NopLogger())
	require.NoError(t, err)
	require.NoError(t, s.InsertSession(ctx, newSession("w-1", "u1", night)))

	// a directory where the temp file should go makes every write fail
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sessions.json.tmp"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "coins.json.tmp"), 0755))

	_, err = s.CloseSession(ctx, "w-1", night.Add(time.Hour))
	assert.Error(t, err)
	got, err := s.GetSession(ctx, "w-1")
	require.NoError(t, err)
	assert.True(t, got.IsOpen())

	assert.Error(t, s.InsertSession(ctx, newSession("w-2", "u1", night)))
	_, err = s.GetSession(ctx, "w-2")
	assert.ErrorIs(t, err, internal.ErrSessionNotFound)

	_, err = s.AddCoins(ctx, "u1", 10)
	assert.Error(t, err)
	bal, err := s.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, bal.Coins)
}

func TestSQLiteStorage(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "sleepcat.db"), internal.NopLogger())
	require.NoError(t, err)
	defer s.Close()
	testBackend(t, s)
}

func TestPostgresStorage(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	p, err := NewPostgresStorage(ctx, dsn, internal.NopLogger())
	require.NoError(t, err)
	defer p.Close()
	for _, table := range []string{"sleep_sessions", "coins", "user_items"} {
		_, err := p.pool.Exec(ctx, "TRUNCATE "+table)
		require.NoError(t, err)
	}
	testBackend(t, p)
}

func TestNewBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := config.Defaults()
	cfg.FileSessions = filepath.Join(dir, "s.json")
	cfg.FileCoins = filepath.Join(dir, "c.json")
	b, err := NewBackend(ctx, cfg, internal.NopLogger())
	require.NoError(t, err)
	assert.IsType(t, &FileStorage{}, b)
	require.NoError(t, b.Close())

	cfg.DBType = "sqlite"
	cfg.SQLitePath = filepath.Join(dir, "db", "s.db")
	b, err = NewBackend(ctx, cfg, internal.NopLogger())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStorage{}, b)
	require.NoError(t, b.Close())

	cfg.DBType = "cassandra"
	_, err = NewBackend(ctx, cfg, internal.NopLogger())
	assert.Error(t, err)
}
