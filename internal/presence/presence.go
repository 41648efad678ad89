package presence

import (
	"context"
	"sync"
)

// Tracker counts live sockets per user so callers can tell the first
// connection and the last disconnection apart from the rest.
type Tracker interface {
	Connect(ctx context.Context, userID, socketID string) (first bool, err error)
	Disconnect(ctx context.Context, userID, socketID string) (last bool, err error)
	Online(ctx context.Context, userID string) (bool, error)
}

type MemoryTracker struct {
	mu      sync.Mutex
	sockets map[string]map[string]struct{}
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{sockets: map[string]map[string]struct{}{}}
}

func (m *MemoryTracker) Connect(_ context.Context, userID, socketID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sockets[userID]
	if !ok {
		set = map[string]struct{}{}
		m.sockets[userID] = set
	}
	set[socketID] = struct{}{}
	return len(set) == 1, nil
}

func (m *MemoryTracker) Disconnect(_ context.Context, userID, socketID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sockets[userID]
	if !ok {
		return false, nil
	}
	if _, had := set[socketID]; !had {
		return false, nil
	}
	delete(set, socketID)
	if len(set) == 0 {
		delete(m.sockets, userID)
		return true, nil
	}
	return false, nil
}

func (m *MemoryTracker) Online(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sockets[userID]) > 0, nil
}
