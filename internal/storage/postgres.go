package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourname/sleepcat/internal"
)

type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger internal.Logger
}

func NewPostgresStorage(ctx context.Context, dsn string, logger internal.Logger) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Errorf("failed to connect to postgres: %v", err)
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Errorf("failed to ping postgres: %v", err)
		return nil, err
	}
	p := &PostgresStorage{pool: pool, logger: logger}
	if err := p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Migrate creates the tables used by the lifecycle and the store. The session's
// elapsed interval and its flag are generated columns, so the database is the
// only place duration is computed.
func (p *PostgresStorage) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sleep_sessions (
			id text PRIMARY KEY,
			user_id text NOT NULL,
			date date NOT NULL,
			sleep_time timestamptz NOT NULL,
			wake_time timestamptz,
			total_sleep_duration interval GENERATED ALWAYS AS (wake_time - sleep_time) STORED,
			flagged boolean GENERATED ALWAYS AS (wake_time IS NOT NULL AND wake_time <= sleep_time) STORED,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sleep_sessions_user_sleep ON sleep_sessions (user_id, sleep_time)`,
		`CREATE TABLE IF NOT EXISTS coins (
			user_id text PRIMARY KEY,
			coins integer NOT NULL DEFAULT 0 CHECK (coins >= 0),
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS user_items (
			user_id text NOT NULL,
			item_id text NOT NULL,
			price integer NOT NULL,
			bought_at timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, item_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			p.logger.Errorf("postgres migration failed: %v", err)
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

const pgSessionColumns = `id, user_id, date::text, sleep_time, wake_time, total_sleep_duration::text, flagged, created_at`

func scanPgSession(row pgx.Row) (*internal.SleepSession, error) {
	var (
		ss       internal.SleepSession
		wake     *time.Time
		interval *string
	)
	if err := row.Scan(&ss.ID, &ss.UserID, &ss.Date, &ss.SleepTime, &wake, &interval, &ss.Flagged, &ss.CreatedAt); err != nil {
		return nil, err
	}
	ss.WakeTime = wake
	if interval != nil && !ss.Flagged {
		minutes, err := internal.IntervalMinutes(*interval)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", ss.ID, err)
		}
		ss.DurationMinutes = &minutes
	}
	return &ss, nil
}

// --- SleepSessionRepository ---
func (p *PostgresStorage) InsertSession(ctx context.Context, ss *internal.SleepSession) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO sleep_sessions (id, user_id, date, sleep_time, created_at) VALUES ($1, $2, $3, $4, $5)`,
		ss.ID, ss.UserID, ss.Date, ss.SleepTime, ss.CreatedAt)
	if err != nil {
		p.logger.Errorf("failed to insert sleep session: %v", err)
		return err
	}
	return nil
}

func (p *PostgresStorage) InsertClosedSession(ctx context.Context, ss *internal.SleepSession) (*internal.SleepSession, error) {
	if ss.WakeTime == nil {
		return nil, fmt.Errorf("insert session %s: no wake time", ss.ID)
	}
	if _, err := internal.DurationMinutes(ss.SleepTime, *ss.WakeTime); err != nil {
		return nil, err
	}
	row := p.pool.QueryRow(ctx, `
		INSERT INTO sleep_sessions (id, user_id, date, sleep_time, wake_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+pgSessionColumns, ss.ID, ss.UserID, ss.Date, ss.SleepTime, *ss.WakeTime, ss.CreatedAt)
	stored, err := scanPgSession(row)
	if err != nil {
		p.logger.Errorf("failed to insert closed sleep session: %v", err)
		return nil, err
	}
	return stored, nil
}

func (p *PostgresStorage) GetSession(ctx context.Context, id string) (*internal.SleepSession, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+pgSessionColumns+` FROM sleep_sessions WHERE id = $1`, id)
	ss, err := scanPgSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, internal.ErrSessionNotFound
		}
		p.logger.Errorf("failed to get sleep session %s: %v", id, err)
		return nil, err
	}
	return ss, nil
}

func (p *PostgresStorage) CloseSession(ctx context.Context, id string, wake time.Time) (*internal.SleepSession, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE sleep_sessions SET wake_time = $2
		WHERE id = $1 AND wake_time IS NULL
		RETURNING `+pgSessionColumns, id, wake)
	ss, err := scanPgSession(row)
	if err == nil {
		return ss, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		p.logger.Errorf("failed to close sleep session %s: %v", id, err)
		return nil, err
	}
	// nothing updated: either the id is unknown or the session is closed
	if _, err := p.GetSession(ctx, id); err != nil {
		return nil, err
	}
	return nil, internal.ErrAlreadyClosed
}

func (p *PostgresStorage) DeleteOpenSession(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM sleep_sessions WHERE id = $1 AND wake_time IS NULL`, id)
	if err != nil {
		p.logger.Errorf("failed to delete sleep session %s: %v", id, err)
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := p.GetSession(ctx, id); err != nil {
			return err
		}
		return internal.ErrAlreadyClosed
	}
	return nil
}

func (p *PostgresStorage) ListSessions(ctx context.Context, userID string, from, to time.Time) ([]internal.SleepSession, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+pgSessionColumns+` FROM sleep_sessions WHERE user_id = $1 AND sleep_time >= $2 AND sleep_time < $3 ORDER BY sleep_time ASC`,
		userID, from, to)
	if err != nil {
		p.logger.Errorf("failed to query sleep sessions: %v", err)
		return nil, err
	}
	defer rows.Close()

	out := []internal.SleepSession{}
	for rows.Next() {
		ss, err := scanPgSession(rows)
		if err != nil {
			p.logger.Errorf("failed to scan sleep session: %v", err)
			return nil, err
		}
		out = append(out, *ss)
	}
	return out, rows.Err()
}

// --- CoinRepository ---
func (p *PostgresStorage) GetBalance(ctx context.Context, userID string) (*internal.CoinBalance, error) {
	b := internal.CoinBalance{UserID: userID}
	err := p.pool.QueryRow(ctx, `SELECT coins, updated_at FROM coins WHERE user_id = $1`, userID).Scan(&b.Coins, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &internal.CoinBalance{UserID: userID}, nil
		}
		p.logger.Errorf("failed to get balance for %s: %v", userID, err)
		return nil, err
	}
	return &b, nil
}

func (p *PostgresStorage) AddCoins(ctx context.Context, userID string, amount int) (*internal.CoinBalance, error) {
	if amount < 0 {
		return nil, fmt.Errorf("balance add: negative amount %d", amount)
	}
	b := internal.CoinBalance{UserID: userID}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO coins (user_id, coins, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET coins = coins.coins + EXCLUDED.coins, updated_at = EXCLUDED.updated_at
		RETURNING coins, updated_at`, userID, amount).Scan(&b.Coins, &b.UpdatedAt)
	if err != nil {
		p.logger.Errorf("failed to add coins for %s: %v", userID, err)
		return nil, err
	}
	return &b, nil
}

func (p *PostgresStorage) Purchase(ctx context.Context, userID string, item internal.Item) (*internal.CoinBalance, error) {
	b := internal.CoinBalance{UserID: userID}
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `INSERT INTO user_items (user_id, item_id, price) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			userID, item.ID, item.Price)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return internal.ErrAlreadyOwned
		}
		err = tx.QueryRow(ctx, `
			UPDATE coins SET coins = coins - $2, updated_at = now()
			WHERE user_id = $1 AND coins >= $2
			RETURNING coins, updated_at`, userID, item.Price).Scan(&b.Coins, &b.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return internal.ErrInsufficientCoins
		}
		return err
	})
	if err != nil {
		if !internal.IsDomainError(err) {
			p.logger.Errorf("failed to purchase %s for %s: %v", item.ID, userID, err)
		}
		return nil, err
	}
	return &b, nil
}

func (p *PostgresStorage) ListOwnedItems(ctx context.Context, userID string) ([]internal.OwnedItem, error) {
	rows, err := p.pool.Query(ctx, `SELECT item_id, price, bought_at FROM user_items WHERE user_id = $1 ORDER BY item_id`, userID)
	if err != nil {
		p.logger.Errorf("failed to list items for %s: %v", userID, err)
		return nil, err
	}
	defer rows.Close()

	out := []internal.OwnedItem{}
	for rows.Next() {
		it := internal.OwnedItem{UserID: userID}
		if err := rows.Scan(&it.ItemID, &it.Price, &it.BoughtAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// --- Compile-time assertions ---
var _ SleepSessionRepository = (*PostgresStorage)(nil)
var _ CoinRepository = (*PostgresStorage)(nil)
var _ Backend = (*PostgresStorage)(nil)
