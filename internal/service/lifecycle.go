package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yourname/sleepcat/internal"
	"github.com/yourname/sleepcat/internal/registry"
	"github.com/yourname/sleepcat/internal/storage"
)

// EndResult describes a session closed by Lifecycle.End.
type EndResult struct {
	SessionID       string `json:"session_id"`
	UserID          string `json:"user_id"`
	DurationMinutes int    `json:"duration_minutes"`
	RewardCoins     int    `json:"reward_coins"`
	Balance         int    `json:"balance"`
}

// Lifecycle pairs a sleep action with the following wake action and pays the
// reward. A user is Idle while the registry is empty and Sleeping while it
// names an open session.
type Lifecycle struct {
	sessions storage.SleepSessionRepository
	coins    storage.CoinRepository
	pending  registry.Registry
	logger   internal.Logger
	policy   RewardPolicy
	now      func() time.Time
	newID    func() string
	loc      *time.Location
	users    sync.Map // userID -> *sync.Mutex
}

type Option func(*Lifecycle)

func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) { l.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(l *Lifecycle) { l.newID = newID }
}

func WithRewardPolicy(p RewardPolicy) Option {
	return func(l *Lifecycle) { l.policy = p }
}

// WithLocation sets the time zone used to attribute a session to a calendar date.
func WithLocation(loc *time.Location) Option {
	return func(l *Lifecycle) { l.loc = loc }
}

func NewLifecycle(sessions storage.SleepSessionRepository, coins storage.CoinRepository, pending registry.Registry, logger internal.Logger, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		sessions: sessions,
		coins:    coins,
		pending:  pending,
		logger:   logger,
		policy:   PerMinute{},
		now:      time.Now,
		newID:    uuid.NewString,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// lockUser serializes the registry check-then-set for one user. It does not
// coordinate separate processes sharing a store.
func (l *Lifecycle) lockUser(userID string) func() {
	mu, _ := l.users.LoadOrStore(userID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Start opens a session for userID and records it as pending.
//
// A user already sleeping gets internal.ErrAlreadySleeping. A marker naming a
// session that is gone or already closed is stale and gets replaced.
func (l *Lifecycle) Start(ctx context.Context, userID string) (*internal.SleepSession, error) {
	if userID == "" {
		return nil, internal.ErrUserRequired
	}

	defer l.lockUser(userID)()

	current, err := l.pendingLocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, fmt.Errorf("%w: session %s", internal.ErrAlreadySleeping, current.ID)
	}

	now := l.now()
	session := &internal.SleepSession{
		ID:        l.newID(),
		UserID:    userID,
		Date:      now.In(l.loc).Format(internal.DateLayout),
		SleepTime: now,
		CreatedAt: now,
	}
	if err := l.sessions.InsertSession(ctx, session); err != nil {
		l.logger.Errorf("start: insert session for %s: %v", userID, err)
		return nil, internal.StoreFailure("insert session", err)
	}

	if err := l.pending.Set(ctx, userID, session.ID); err != nil {
		l.logger.Errorf("start: record pending session %s: %v", session.ID, err)
		// the store must not keep an open session nobody can find
		if derr := l.sessions.DeleteOpenSession(ctx, session.ID); derr != nil {
			l.logger.Errorf("start: discard session %s: %v", session.ID, derr)
		}
		return nil, internal.StoreFailure("record pending session", err)
	}

	l.logger.Infof("user %s is sleeping (session %s)", userID, session.ID)
	return session, nil
}

// End closes the session, pays the reward and clears the pending marker, in
// that order. Calling End on a closed session never pays twice.
func (l *Lifecycle) End(ctx context.Context, sessionID string) (*EndResult, error) {
	// 1. resolve the owner
	session, err := l.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, internal.StoreFailure("get session", err)
	}
	userID := session.UserID
	defer l.lockUser(userID)()

	if !session.IsOpen() {
		l.clearPending(ctx, userID, sessionID)
		return nil, fmt.Errorf("%w: session %s", internal.ErrAlreadyClosed, sessionID)
	}

	// 2. one-way transition, durably committed before anything is paid
	closed, err := l.sessions.CloseSession(ctx, sessionID, l.now())
	if err != nil {
		if errors.Is(err, internal.ErrAlreadyClosed) {
			l.clearPending(ctx, userID, sessionID)
		}
		return nil, internal.StoreFailure("close session", err)
	}

	// 3. the stored duration is the only one we trust
	if closed.Flagged || closed.DurationMinutes == nil {
		l.logger.Warnf("session %s closed with non-positive duration, no reward", sessionID)
		if err := l.clearPendingStrict(ctx, userID, sessionID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: session %s", internal.ErrInvalidInterval, sessionID)
	}
	duration := *closed.DurationMinutes

	// 4.
	reward := l.policy.Reward(duration)

	// 5.
	balance, err := l.coins.AddCoins(ctx, userID, reward)
	if err != nil {
		l.logger.Errorf("session %s closed but %d coins not credited to %s: %v", sessionID, reward, userID, err)
		return nil, internal.StoreFailure("credit coins", err)
	}

	// 6.
	if err := l.clearPendingStrict(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	l.logger.Infof("user %s woke after %d minutes, earned %d coins (balance %d)", userID, duration, reward, balance.Coins)
	return &EndResult{
		SessionID:       sessionID,
		UserID:          userID,
		DurationMinutes: duration,
		RewardCoins:     reward,
		Balance:         balance.Coins,
	}, nil
}

// EndOwned is End for a caller who must own the session. Sessions of other
// users are reported as not found.
func (l *Lifecycle) EndOwned(ctx context.Context, userID, sessionID string) (*EndResult, error) {
	session, err := l.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, internal.StoreFailure("get session", err)
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("%w: session %s", internal.ErrSessionNotFound, sessionID)
	}
	return l.End(ctx, sessionID)
}

// EndPending ends whatever session the registry holds for userID.
func (l *Lifecycle) EndPending(ctx context.Context, userID string) (*EndResult, error) {
	id, err := l.pending.Get(ctx, userID)
	if err != nil {
		return nil, internal.StoreFailure("read pending session", err)
	}
	if id == "" {
		return nil, internal.ErrNoPendingSession
	}
	return l.End(ctx, id)
}

// Pending returns the open session recorded for userID, or nil when the user
// is idle. Stale markers are cleared on the way.
func (l *Lifecycle) Pending(ctx context.Context, userID string) (*internal.SleepSession, error) {
	defer l.lockUser(userID)()
	return l.pendingLocked(ctx, userID)
}

func (l *Lifecycle) pendingLocked(ctx context.Context, userID string) (*internal.SleepSession, error) {
	id, err := l.pending.Get(ctx, userID)
	if err != nil {
		return nil, internal.StoreFailure("read pending session", err)
	}
	if id == "" {
		return nil, nil
	}

	session, err := l.sessions.GetSession(ctx, id)
	switch {
	case errors.Is(err, internal.ErrSessionNotFound):
		l.logger.Warnf("pending session %s for %s no longer exists", id, userID)
		return nil, l.clearPendingStrict(ctx, userID, id)
	case err != nil:
		return nil, internal.StoreFailure("get session", err)
	case !session.IsOpen():
		l.logger.Warnf("pending session %s for %s is already closed", id, userID)
		return nil, l.clearPendingStrict(ctx, userID, id)
	}
	return session, nil
}

// clearPendingStrict clears the user's marker if it still names sessionID.
// The caller holds the user's lock.
func (l *Lifecycle) clearPendingStrict(ctx context.Context, userID, sessionID string) error {
	id, err := l.pending.Get(ctx, userID)
	if err != nil {
		return internal.StoreFailure("read pending session", err)
	}
	if id != sessionID {
		return nil
	}
	if err := l.pending.Clear(ctx, userID); err != nil {
		l.logger.Errorf("clear pending session %s: %v", sessionID, err)
		return internal.StoreFailure("clear pending session", err)
	}
	return nil
}

// clearPending is clearPendingStrict for paths that already carry an error.
func (l *Lifecycle) clearPending(ctx context.Context, userID, sessionID string) {
	if err := l.clearPendingStrict(ctx, userID, sessionID); err != nil {
		l.logger.Warnf("stale pending session %s left in place: %v", sessionID, err)
	}
}
