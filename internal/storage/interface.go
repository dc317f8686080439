package storage

import (
	"context"
	"time"

	"github.com/yourname/sleepcat/internal"
)

type SleepSessionRepository interface {
	InsertSession(ctx context.Context, s *internal.SleepSession) error
	// InsertClosedSession stores a session entered after the fact. Its duration is
	// computed from WakeTime in the same write; wake <= sleep is internal.ErrInvalidInterval.
	InsertClosedSession(ctx context.Context, s *internal.SleepSession) (*internal.SleepSession, error)
	GetSession(ctx context.Context, id string) (*internal.SleepSession, error)
	// CloseSession sets the wake time of an open session and persists its duration
	// in the same write. Returns internal.ErrAlreadyClosed if wake time was already set.
	CloseSession(ctx context.Context, id string, wake time.Time) (*internal.SleepSession, error)
	// DeleteOpenSession removes a session that was never closed.
	DeleteOpenSession(ctx context.Context, id string) error
	// ListSessions returns sessions with sleep time in [from, to), oldest first.
	ListSessions(ctx context.Context, userID string, from, to time.Time) ([]internal.SleepSession, error)
}

type CoinRepository interface {
	// GetBalance returns a zero balance for users that never earned coins.
	GetBalance(ctx context.Context, userID string) (*internal.CoinBalance, error)
	// AddCoins atomically increments the balance.
	AddCoins(ctx context.Context, userID string, amount int) (*internal.CoinBalance, error)
	// Purchase debits item.Price and records ownership atomically.
	Purchase(ctx context.Context, userID string, item internal.Item) (*internal.CoinBalance, error)
	ListOwnedItems(ctx context.Context, userID string) ([]internal.OwnedItem, error)
}

type Backend interface {
	SleepSessionRepository
	CoinRepository
	Close() error
}
