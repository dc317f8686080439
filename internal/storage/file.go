package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/yourname/sleepcat/internal"
)

// wallet is the on-disk layout of the coins file.
type wallet struct {
	Balances []*internal.CoinBalance `json:"balances"`
	Items    []*internal.OwnedItem   `json:"items"`
}

// FileStorage keeps everything in memory and rewrites the JSON files after
// every mutation. A mutation whose write fails is rolled back in memory.
type FileStorage struct {
	sessions         map[string]*internal.SleepSession   // id -> session
	userSessionIndex map[string][]*internal.SleepSession // userID -> sessions (sorted descending)
	balances         map[string]*internal.CoinBalance    // userID -> balance
	owned            map[string]map[string]*internal.OwnedItem
	mu               sync.RWMutex
	sessionsFile     string
	coinsFile        string
	logger           internal.Logger
	now              func() time.Time
}

func NewFileStorage(sessionsFile, coinsFile string, logger internal.Logger) (*FileStorage, error) {
	s := &FileStorage{
		sessions:         make(map[string]*internal.SleepSession),
		userSessionIndex: make(map[string][]*internal.SleepSession),
		balances:         make(map[string]*internal.CoinBalance),
		owned:            make(map[string]map[string]*internal.OwnedItem),
		sessionsFile:     sessionsFile,
		coinsFile:        coinsFile,
		logger:           logger,
		now:              time.Now,
	}

	for _, f := range []string{sessionsFile, coinsFile} {
		if err := os.MkdirAll(filepath.Dir(f), 0755); err != nil {
			return nil, fmt.Errorf("storage: create data dir: %w", err)
		}
	}
	if err := s.loadSessions(); err != nil {
		logger.Errorf("storage: failed to load sleep sessions: %v", err)
		return nil, err
	}
	if err := s.loadWallet(); err != nil {
		logger.Errorf("storage: failed to load coins: %v", err)
		return nil, err
	}

	return s, nil
}

func (s *FileStorage) loadSessions() error {
	file, err := os.Open(s.sessionsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	var sessions []*internal.SleepSession
	if err := json.NewDecoder(file).Decode(&sessions); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ss := range sessions {
		s.sessions[ss.ID] = ss
		s.userSessionIndex[ss.UserID] = append(s.userSessionIndex[ss.UserID], ss)
	}

	// Sort each user's sessions descending by SleepTime
	for userID := range s.userSessionIndex {
		sort.Slice(s.userSessionIndex[userID], func(i, j int) bool {
			return s.userSessionIndex[userID][i].SleepTime.After(s.userSessionIndex[userID][j].SleepTime)
		})
	}

	return nil
}

func (s *FileStorage) loadWallet() error {
	file, err := os.Open(s.coinsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	var w wallet
	if err := json.NewDecoder(file).Decode(&w); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range w.Balances {
		s.balances[b.UserID] = b
	}
	for _, it := range w.Items {
		if s.owned[it.UserID] == nil {
			s.owned[it.UserID] = make(map[string]*internal.OwnedItem)
		}
		s.owned[it.UserID][it.ItemID] = it
	}

	return nil
}

func atomicWriteFileJSON(filePath string, data interface{}) error {
	tempFile := filePath + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, filePath)
}

// saveSessionsLocked expects s.mu to be held.
func (s *FileStorage) saveSessionsLocked() error {
	sessions := make([]*internal.SleepSession, 0, len(s.sessions))
	for _, ss := range s.sessions {
		sessions = append(sessions, ss)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].SleepTime.Before(sessions[j].SleepTime)
	})
	if err := atomicWriteFileJSON(s.sessionsFile, sessions); err != nil {
		s.logger.Errorf("storage: error saving sleep sessions: %v", err)
		return err
	}
	return nil
}

// saveWalletLocked expects s.mu to be held.
func (s *FileStorage) saveWalletLocked() error {
	w := wallet{
		Balances: make([]*internal.CoinBalance, 0, len(s.balances)),
		Items:    make([]*internal.OwnedItem, 0),
	}
	for _, b := range s.balances {
		w.Balances = append(w.Balances, b)
	}
	for _, items := range s.owned {
		for _, it := range items {
			w.Items = append(w.Items, it)
		}
	}
	if err := atomicWriteFileJSON(s.coinsFile, w); err != nil {
		s.logger.Errorf("storage: error saving coins: %v", err)
		return err
	}
	return nil
}

func (s *FileStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveSessionsLocked(); err != nil {
		return err
	}
	return s.saveWalletLocked()
}

func cloneSession(ss *internal.SleepSession) *internal.SleepSession {
	c := *ss
	if ss.WakeTime != nil {
		w := *ss.WakeTime
		c.WakeTime = &w
	}
	if ss.DurationMinutes != nil {
		d := *ss.DurationMinutes
		c.DurationMinutes = &d
	}
	return &c
}

// --- SleepSessionRepository ---
func (s *FileStorage) InsertSession(ctx context.Context, ss *internal.SleepSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(cloneSession(ss))
}

func (s *FileStorage) InsertClosedSession(ctx context.Context, ss *internal.SleepSession) (*internal.SleepSession, error) {
	if ss.WakeTime == nil {
		return nil, fmt.Errorf("storage: session %s has no wake time", ss.ID)
	}
	minutes, err := internal.DurationMinutes(ss.SleepTime, *ss.WakeTime)
	if err != nil {
		return nil, err
	}
	stored := cloneSession(ss)
	stored.DurationMinutes = &minutes
	stored.Flagged = false

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.insertLocked(stored); err != nil {
		return nil, err
	}
	return cloneSession(stored), nil
}

// insertLocked takes ownership of stored and expects s.mu to be held.
func (s *FileStorage) insertLocked(stored *internal.SleepSession) error {
	if _, ok := s.sessions[stored.ID]; ok {
		return fmt.Errorf("storage: duplicate sleep session id %s", stored.ID)
	}
	s.sessions[stored.ID] = stored
	prevIndex := s.userSessionIndex[stored.UserID]
	logs := append([]*internal.SleepSession(nil), prevIndex...)
	inserted := false
	for i, existing := range logs {
		if existing.SleepTime.Before(stored.SleepTime) {
			logs = append(logs[:i], append([]*internal.SleepSession{stored}, logs[i:]...)...)
			inserted = true
			break
		}
	}
	if !inserted {
		logs = append(logs, stored)
	}
	s.userSessionIndex[stored.UserID] = logs

	if err := s.saveSessionsLocked(); err != nil {
		delete(s.sessions, stored.ID)
		s.userSessionIndex[stored.UserID] = prevIndex
		return err
	}
	return nil
}

func (s *FileStorage) GetSession(ctx context.Context, id string) (*internal.SleepSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ss, ok := s.sessions[id]
	if !ok {
		return nil, internal.ErrSessionNotFound
	}
	return cloneSession(ss), nil
}

func (s *FileStorage) CloseSession(ctx context.Context, id string, wake time.Time) (*internal.SleepSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss, ok := s.sessions[id]
	if !ok {
		return nil, internal.ErrSessionNotFound
	}
	if !ss.IsOpen() {
		return nil, internal.ErrAlreadyClosed
	}

	prev := *ss
	w := wake
	ss.WakeTime = &w
	if minutes, err := internal.DurationMinutes(ss.SleepTime, wake); err != nil {
		ss.Flagged = true
	} else {
		ss.DurationMinutes = &minutes
	}

	if err := s.saveSessionsLocked(); err != nil {
		*ss = prev
		return nil, err
	}
	return cloneSession(ss), nil
}

func (s *FileStorage) DeleteOpenSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss, ok := s.sessions[id]
	if !ok {
		return internal.ErrSessionNotFound
	}
	if !ss.IsOpen() {
		return internal.ErrAlreadyClosed
	}

	prevIndex := s.userSessionIndex[ss.UserID]
	logs := make([]*internal.SleepSession, 0, len(prevIndex))
	for _, existing := range prevIndex {
		if existing.ID != id {
			logs = append(logs, existing)
		}
	}
	delete(s.sessions, id)
	s.userSessionIndex[ss.UserID] = logs

	if err := s.saveSessionsLocked(); err != nil {
		s.sessions[id] = ss
		s.userSessionIndex[ss.UserID] = prevIndex
		return err
	}
	return nil
}

func (s *FileStorage) ListSessions(ctx context.Context, userID string, from, to time.Time) ([]internal.SleepSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logsPtr := s.userSessionIndex[userID]
	out := []internal.SleepSession{}
	// index is descending, walk it backwards for oldest first
	for i := len(logsPtr) - 1; i >= 0; i-- {
		ss := logsPtr[i]
		if ss.SleepTime.Before(from) || !ss.SleepTime.Before(to) {
			continue
		}
		out = append(out, *cloneSession(ss))
	}
	return out, nil
}

// --- CoinRepository ---
func (s *FileStorage) GetBalance(ctx context.Context, userID string) (*internal.CoinBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.balances[userID]; ok {
		c := *b
		return &c, nil
	}
	return &internal.CoinBalance{UserID: userID}, nil
}

func (s *FileStorage) AddCoins(ctx context.Context, userID string, amount int) (*internal.CoinBalance, error) {
	if amount < 0 {
		return nil, fmt.Errorf("storage: negative coin amount %d", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, existed := s.balances[userID]
	if !existed {
		b = &internal.CoinBalance{UserID: userID}
		s.balances[userID] = b
	}
	prev := *b
	b.Coins += amount
	b.UpdatedAt = s.now().UTC()

	if err := s.saveWalletLocked(); err != nil {
		if existed {
			*b = prev
		} else {
			delete(s.balances, userID)
		}
		return nil, err
	}
	c := *b
	return &c, nil
}

func (s *FileStorage) Purchase(ctx context.Context, userID string, item internal.Item) (*internal.CoinBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.owned[userID][item.ID]; ok {
		return nil, internal.ErrAlreadyOwned
	}
	b, ok := s.balances[userID]
	if !ok || b.Coins < item.Price {
		return nil, internal.ErrInsufficientCoins
	}

	prev := *b
	now := s.now().UTC()
	b.Coins -= item.Price
	b.UpdatedAt = now
	if s.owned[userID] == nil {
		s.owned[userID] = make(map[string]*internal.OwnedItem)
	}
	s.owned[userID][item.ID] = &internal.OwnedItem{UserID: userID, ItemID: item.ID, Price: item.Price, BoughtAt: now}

	if err := s.saveWalletLocked(); err != nil {
		*b = prev
		delete(s.owned[userID], item.ID)
		return nil, err
	}
	c := *b
	return &c, nil
}

func (s *FileStorage) ListOwnedItems(ctx context.Context, userID string) ([]internal.OwnedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []internal.OwnedItem{}
	for _, it := range s.owned[userID] {
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

// --- Compile-time assertions ---
var _ SleepSessionRepository = (*FileStorage)(nil)
var _ CoinRepository = (*FileStorage)(nil)
var _ Backend = (*FileStorage)(nil)
