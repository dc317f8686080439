package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yourname/sleepcat/internal"
)

// sqliteTime is fixed width so that stored timestamps compare correctly as text.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

type SQLiteStorage struct {
	db     *sql.DB
	logger internal.Logger
	now    func() time.Time
}

// OpenSQLite opens (and creates if missing) the SQLite database at path and migrates it.
func OpenSQLite(ctx context.Context, path string, logger internal.Logger) (*SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps SQLITE_BUSY out of the ledger paths
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		logger.Errorf("sqlite migration failed: %v", err)
		return nil, err
	}
	return &SQLiteStorage{db: db, logger: logger, now: time.Now}, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sleep_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			date TEXT NOT NULL,
			sleep_time TEXT NOT NULL,
			wake_time TEXT,
			duration_minutes INTEGER,
			flagged INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS coins (
			user_id TEXT PRIMARY KEY,
			coins INTEGER NOT NULL DEFAULT 0 CHECK (coins >= 0),
			updated_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS user_items (
			user_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			price INTEGER NOT NULL,
			bought_at TEXT NOT NULL,
			PRIMARY KEY (user_id, item_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sleep_sessions_user_sleep ON sleep_sessions(user_id, sleep_time);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func parseSQLiteTime(v string) (time.Time, error) {
	return time.Parse(sqliteTime, v)
}

const sqliteSessionColumns = `id, user_id, date, sleep_time, wake_time, duration_minutes, flagged, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSession(row rowScanner) (*internal.SleepSession, error) {
	var (
		ss        internal.SleepSession
		sleepTime string
		createdAt string
		wakeTime  sql.NullString
		duration  sql.NullInt64
		flagged   int
	)
	if err := row.Scan(&ss.ID, &ss.UserID, &ss.Date, &sleepTime, &wakeTime, &duration, &flagged, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if ss.SleepTime, err = parseSQLiteTime(sleepTime); err != nil {
		return nil, fmt.Errorf("sleep_time: %w", err)
	}
	if ss.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if wakeTime.Valid {
		w, err := parseSQLiteTime(wakeTime.String)
		if err != nil {
			return nil, fmt.Errorf("wake_time: %w", err)
		}
		ss.WakeTime = &w
	}
	if duration.Valid {
		d := int(duration.Int64)
		ss.DurationMinutes = &d
	}
	ss.Flagged = flagged != 0
	return &ss, nil
}

func (s *SQLiteStorage) getSession(ctx context.Context, q querier, id string) (*internal.SleepSession, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sqliteSessionColumns+` FROM sleep_sessions WHERE id = ?`, id)
	ss, err := scanSQLiteSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internal.ErrSessionNotFound
		}
		return nil, fmt.Errorf("session get: %w", err)
	}
	return ss, nil
}

// --- SleepSessionRepository ---
func (s *SQLiteStorage) InsertSession(ctx context.Context, ss *internal.SleepSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sleep_sessions (id, user_id, date, sleep_time, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, ss.ID, ss.UserID, ss.Date, formatSQLiteTime(ss.SleepTime), formatSQLiteTime(ss.CreatedAt))
	if err != nil {
		s.logger.Errorf("failed to insert sleep session: %v", err)
		return fmt.Errorf("session insert: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) InsertClosedSession(ctx context.Context, ss *internal.SleepSession) (*internal.SleepSession, error) {
	if ss.WakeTime == nil {
		return nil, fmt.Errorf("session insert: %s has no wake time", ss.ID)
	}
	minutes, err := internal.DurationMinutes(ss.SleepTime, *ss.WakeTime)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sleep_sessions (id, user_id, date, sleep_time, wake_time, duration_minutes, flagged, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`, ss.ID, ss.UserID, ss.Date, formatSQLiteTime(ss.SleepTime), formatSQLiteTime(*ss.WakeTime), minutes, formatSQLiteTime(ss.CreatedAt))
	if err != nil {
		s.logger.Errorf("failed to insert closed sleep session: %v", err)
		return nil, fmt.Errorf("session insert: %w", err)
	}
	return s.getSession(ctx, s.db, ss.ID)
}

func (s *SQLiteStorage) GetSession(ctx context.Context, id string) (*internal.SleepSession, error) {
	return s.getSession(ctx, s.db, id)
}

func (s *SQLiteStorage) CloseSession(ctx context.Context, id string, wake time.Time) (*internal.SleepSession, error) {
	var closed *internal.SleepSession
	err := WithTx(ctx, s.db, func(tx *sql.Tx) error {
		ss, err := s.getSession(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ss.IsOpen() {
			return internal.ErrAlreadyClosed
		}

		var duration sql.NullInt64
		flagged := 0
		if minutes, err := internal.DurationMinutes(ss.SleepTime, wake); err != nil {
			flagged = 1
		} else {
			duration = sql.NullInt64{Int64: int64(minutes), Valid: true}
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE sleep_sessions
			SET wake_time = ?, duration_minutes = ?, flagged = ?
			WHERE id = ? AND wake_time IS NULL
		`, formatSQLiteTime(wake), duration, flagged, id)
		if err != nil {
			return fmt.Errorf("session close: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("session close: %w", err)
		} else if n == 0 {
			return internal.ErrAlreadyClosed
		}

		closed, err = s.getSession(ctx, tx, id)
		return err
	})
	if err != nil {
		if !internal.IsDomainError(err) {
			s.logger.Errorf("failed to close sleep session %s: %v", id, err)
		}
		return nil, err
	}
	return closed, nil
}

func (s *SQLiteStorage) DeleteOpenSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sleep_sessions WHERE id = ? AND wake_time IS NULL`, id)
	if err != nil {
		s.logger.Errorf("failed to delete sleep session %s: %v", id, err)
		return fmt.Errorf("session delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	if n == 0 {
		if _, err := s.getSession(ctx, s.db, id); err != nil {
			return err
		}
		return internal.ErrAlreadyClosed
	}
	return nil
}

func (s *SQLiteStorage) ListSessions(ctx context.Context, userID string, from, to time.Time) ([]internal.SleepSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteSessionColumns+`
		FROM sleep_sessions
		WHERE user_id = ? AND sleep_time >= ? AND sleep_time < ?
		ORDER BY sleep_time ASC
	`, userID, formatSQLiteTime(from), formatSQLiteTime(to))
	if err != nil {
		s.logger.Errorf("failed to query sleep sessions: %v", err)
		return nil, fmt.Errorf("session list: %w", err)
	}
	defer rows.Close()

	out := []internal.SleepSession{}
	for rows.Next() {
		ss, err := scanSQLiteSession(rows)
		if err != nil {
			s.logger.Errorf("failed to scan sleep session: %v", err)
			return nil, fmt.Errorf("session list: %w", err)
		}
		out = append(out, *ss)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session list: %w", err)
	}
	return out, nil
}

// --- CoinRepository ---
func scanSQLiteBalance(row rowScanner, userID string) (*internal.CoinBalance, error) {
	b := internal.CoinBalance{UserID: userID}
	var updatedAt sql.NullString
	if err := row.Scan(&b.Coins, &updatedAt); err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		t, err := parseSQLiteTime(updatedAt.String)
		if err != nil {
			return nil, fmt.Errorf("updated_at: %w", err)
		}
		b.UpdatedAt = t
	}
	return &b, nil
}

func (s *SQLiteStorage) getBalance(ctx context.Context, q querier, userID string) (*internal.CoinBalance, error) {
	row := q.QueryRowContext(ctx, `SELECT coins, updated_at FROM coins WHERE user_id = ?`, userID)
	b, err := scanSQLiteBalance(row, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &internal.CoinBalance{UserID: userID}, nil
		}
		return nil, fmt.Errorf("balance get: %w", err)
	}
	return b, nil
}

func (s *SQLiteStorage) GetBalance(ctx context.Context, userID string) (*internal.CoinBalance, error) {
	return s.getBalance(ctx, s.db, userID)
}

func (s *SQLiteStorage) AddCoins(ctx context.Context, userID string, amount int) (*internal.CoinBalance, error) {
	if amount < 0 {
		return nil, fmt.Errorf("balance add: negative amount %d", amount)
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO coins (user_id, coins, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET coins = coins + excluded.coins, updated_at = excluded.updated_at
		RETURNING coins, updated_at
	`, userID, amount, formatSQLiteTime(s.now()))
	b, err := scanSQLiteBalance(row, userID)
	if err != nil {
		s.logger.Errorf("failed to add coins for %s: %v", userID, err)
		return nil, fmt.Errorf("balance add: %w", err)
	}
	return b, nil
}

func (s *SQLiteStorage) Purchase(ctx context.Context, userID string, item internal.Item) (*internal.CoinBalance, error) {
	var balance *internal.CoinBalance
	err := WithTx(ctx, s.db, func(tx *sql.Tx) error {
		now := formatSQLiteTime(s.now())
		res, err := tx.ExecContext(ctx, `
			INSERT INTO user_items (user_id, item_id, price, bought_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id, item_id) DO NOTHING
		`, userID, item.ID, item.Price, now)
		if err != nil {
			return fmt.Errorf("item insert: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("item insert: %w", err)
		} else if n == 0 {
			return internal.ErrAlreadyOwned
		}

		res, err = tx.ExecContext(ctx, `
			UPDATE coins SET coins = coins - ?, updated_at = ?
			WHERE user_id = ? AND coins >= ?
		`, item.Price, now, userID, item.Price)
		if err != nil {
			return fmt.Errorf("balance debit: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("balance debit: %w", err)
		} else if n == 0 {
			return internal.ErrInsufficientCoins
		}

		balance, err = s.getBalance(ctx, tx, userID)
		return err
	})
	if err != nil {
		if !internal.IsDomainError(err) {
			s.logger.Errorf("failed to purchase %s for %s: %v", item.ID, userID, err)
		}
		return nil, err
	}
	return balance, nil
}

func (s *SQLiteStorage) ListOwnedItems(ctx context.Context, userID string) ([]internal.OwnedItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, price, bought_at FROM user_items WHERE user_id = ? ORDER BY item_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("items list: %w", err)
	}
	defer rows.Close()

	out := []internal.OwnedItem{}
	for rows.Next() {
		it := internal.OwnedItem{UserID: userID}
		var boughtAt string
		if err := rows.Scan(&it.ItemID, &it.Price, &boughtAt); err != nil {
			return nil, fmt.Errorf("items list: %w", err)
		}
		if it.BoughtAt, err = parseSQLiteTime(boughtAt); err != nil {
			return nil, fmt.Errorf("bought_at: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// --- Compile-time assertions ---
var _ SleepSessionRepository = (*SQLiteStorage)(nil)
var _ CoinRepository = (*SQLiteStorage)(nil)
var _ Backend = (*SQLiteStorage)(nil)
