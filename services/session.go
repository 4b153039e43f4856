package services

import (
	"sync"
	"time"

	"course-assistant-platform/models"
)

// SessionStore holds per-caller conversational state. Implementations must
// apply each update atomically per session key; orchestration logic never
// touches the map directly, so a sharded or externally-backed store can be
// swapped in.
type SessionStore interface {
	// Snapshot returns a copy of the caller's session, creating it lazily.
	// An idle-expired session is reset before being returned.
	Snapshot(userID string) models.Session
	// Update applies fn to the caller's session under the store's lock.
	Update(userID string, fn func(*models.Session))
	// Clear removes the caller's session entirely.
	Clear(userID string)
	// SweepIdle resets sessions idle beyond the timeout; returns the count.
	SweepIdle() int
}

// MemorySessionStore is the default in-memory implementation.
type MemorySessionStore struct {
	mu          sync.Mutex
	sessions    map[string]*models.Session
	maxHistory  int
	idleTimeout time.Duration
}

func NewMemorySessionStore(maxHistory int, idleTimeout time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		sessions:    make(map[string]*models.Session),
		maxHistory:  maxHistory,
		idleTimeout: idleTimeout,
	}
}

func (ms *MemorySessionStore) Snapshot(userID string) models.Session {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	session := ms.loadLocked(userID)
	copied := *session
	copied.History = append([]models.HistoryEntry(nil), session.History...)
	return copied
}

func (ms *MemorySessionStore) Update(userID string, fn func(*models.Session)) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	session := ms.loadLocked(userID)
	fn(session)
	// Trim FIFO to the last N entries; history never exceeds the bound.
	if overflow := len(session.History) - ms.maxHistory; overflow > 0 {
		session.History = append([]models.HistoryEntry(nil), session.History[overflow:]...)
	}
	session.UpdatedAt = time.Now()
}

func (ms *MemorySessionStore) Clear(userID string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.sessions, userID)
}

func (ms *MemorySessionStore) SweepIdle() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	swept := 0
	for userID, session := range ms.sessions {
		if time.Since(session.UpdatedAt) > ms.idleTimeout {
			delete(ms.sessions, userID)
			swept++
		}
	}
	return swept
}

// loadLocked fetches or lazily creates the session, resetting it when the
// idle timeout has elapsed. Caller holds the lock.
func (ms *MemorySessionStore) loadLocked(userID string) *models.Session {
	session, ok := ms.sessions[userID]
	if ok && time.Since(session.UpdatedAt) > ms.idleTimeout {
		ok = false
	}
	if !ok {
		now := time.Now()
		session = &models.Session{CreatedAt: now, UpdatedAt: now}
		ms.sessions[userID] = session
	}
	return session
}
