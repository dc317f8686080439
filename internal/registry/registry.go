// Package registry records which sleep session is in flight for each user.
// The marker survives process restarts so an app killed mid-sleep can still
// close the right session on relaunch.
package registry

import (
	"context"
	"sync"
)

// Registry holds at most one pending session id per user.
// Registry must be safe for use by concurrent goroutines.
type Registry interface {
	// Set records sessionID as the user's pending session, replacing any previous value.
	Set(ctx context.Context, userID, sessionID string) error
	// Get returns the pending session id, or "" when none is recorded.
	Get(ctx context.Context, userID string) (string, error)
	// Clear removes the marker. Clearing an empty slot is not an error.
	Clear(ctx context.Context, userID string) error
}

type memoryRegistry struct {
	pending map[string]string
	mutex   *sync.RWMutex
}

// NewMemoryRegistry creates a registry that lives only as long as the process.
func NewMemoryRegistry() Registry {
	return &memoryRegistry{
		pending: make(map[string]string),
		mutex:   &sync.RWMutex{},
	}
}

func (m *memoryRegistry) Set(ctx context.Context, userID, sessionID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.pending[userID] = sessionID
	return nil
}

func (m *memoryRegistry) Get(ctx context.Context, userID string) (string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.pending[userID], nil
}

func (m *memoryRegistry) Clear(ctx context.Context, userID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.pending, userID)
	return nil
}
