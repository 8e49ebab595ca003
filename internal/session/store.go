// Package session keeps per-user conversation state in memory.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gritsenko31/ai-chat-bot/internal/history"
)

// Session is the conversation state of one chat participant.
//
// The relay holds the session lock for a whole exchange so that concurrent
// messages from the same user are applied one after another.
type Session struct {
	UserID    int64
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	history      []history.Turn
	messageCount int
	updatedAt    time.Time
}

// Lock acquires the session for a read-modify-write exchange.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// Snapshot returns a copy of the history. Caller must hold the lock.
func (s *Session) Snapshot() []history.Turn {
	out := make([]history.Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Commit appends complete turns, trims the history to the window and counts
// one finished exchange. Caller must hold the lock.
func (s *Session) Commit(w history.Window, turns ...history.Turn) {
	s.history = w.Trim(append(s.history, turns...))
	s.messageCount++
	s.updatedAt = time.Now()
}

// MessageCount returns the number of completed exchanges. Caller must hold the lock.
func (s *Session) MessageCount() int {
	return s.messageCount
}

// UpdatedAt returns the time of the last commit. Caller must hold the lock.
func (s *Session) UpdatedAt() time.Time {
	return s.updatedAt
}

// Store maps user IDs to sessions. Sessions live for the process lifetime and
// are only removed by Clear.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// GetOrCreate returns the user's session, registering an empty one if absent.
func (s *Store) GetOrCreate(userID int64) *Session {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		return sess
	}
	now := time.Now()
	sess = &Session{
		UserID:    userID,
		ID:        uuid.NewString(),
		CreatedAt: now,
		updatedAt: now,
	}
	s.sessions[userID] = sess
	return sess
}

// Get returns the user's session if one exists.
func (s *Store) Get(userID int64) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// Clear removes the user's session. Clearing an absent session is a no-op.
// It returns the removed session's ID.
func (s *Store) Clear(userID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return "", false
	}
	delete(s.sessions, userID)
	return sess.ID, true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
