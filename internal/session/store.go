// Package session keeps the per-session workspace: the extracted text of the
// current document and the last generated summary.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"notesai/internal/models"
)

// ErrEmptySessionID is returned for operations without a session id.
var ErrEmptySessionID = errors.New("session id required")

// Store holds one workspace per session. Get never returns nil: unknown sessions
// yield an empty workspace. Update applies fn to a copy and persists it atomically
// with respect to other updates of the same session.
type Store interface {
	Get(ctx context.Context, sessionID string) (*models.Workspace, error)
	Update(ctx context.Context, sessionID string, fn func(ws *models.Workspace) error) (*models.Workspace, error)
	Delete(ctx context.Context, sessionID string) error
}

type memoryEntry struct {
	ws        models.Workspace
	expiresAt time.Time
}

// MemoryStore is an in-process Store. Entries expire ttl after their last update.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*models.Workspace, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[sessionID]
	if !ok || s.expired(entry) {
		return &models.Workspace{SessionID: sessionID}, nil
	}
	ws := entry.ws
	return &ws, nil
}

func (s *MemoryStore) Update(ctx context.Context, sessionID string, fn func(ws *models.Workspace) error) (*models.Workspace, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ws := models.Workspace{SessionID: sessionID}
	if entry, ok := s.entries[sessionID]; ok && !s.expired(entry) {
		ws = entry.ws
	}
	if err := fn(&ws); err != nil {
		return nil, err
	}
	ws.SessionID = sessionID
	ws.UpdatedAt = s.now()

	entry := &memoryEntry{ws: ws}
	if s.ttl > 0 {
		entry.expiresAt = ws.UpdatedAt.Add(s.ttl)
	}
	s.entries[sessionID] = entry
	out := ws
	return &out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.entries, sessionID)
	s.mu.Unlock()
	return nil
}

// Sweep drops expired workspaces and reports how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.entries {
		if s.expired(entry) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live workspaces.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, entry := range s.entries {
		if !s.expired(entry) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) expired(entry *memoryEntry) bool {
	return !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt)
}
