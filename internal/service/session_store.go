package service

import (
	"sync"
	"time"

	"github.com/cloo-solutions/tubeqa/internal/domain"
)

// SessionStore holds the single live session. Every ingestion takes a generation
// ticket; only the newest ticket may install its session.
type SessionStore struct {
	mu           sync.RWMutex
	session      *domain.Session
	generation   uint64
	lastActivity time.Time
	now          func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{now: time.Now}
}

// BeginIngestion invalidates every earlier ticket and returns a new one.
func (s *SessionStore) BeginIngestion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

// Replace installs session if ticket is still the newest. The previous session is discarded.
func (s *SessionStore) Replace(ticket uint64, session *domain.Session) error {
	if err := domain.ValidateSession(session); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket != s.generation {
		return domain.ErrIngestionSuperseded
	}
	session.Generation = ticket
	s.session = session
	s.lastActivity = s.now()
	return nil
}

// Clear drops the live session and invalidates in-flight ingestions.
func (s *SessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	s.generation++
	s.lastActivity = time.Time{}
}

// Snapshot returns a copy of the live session, or nil when idle.
func (s *SessionStore) Snapshot() *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Clone()
}

// Active reports whether a session is loaded
func (s *SessionStore) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil
}

// AppendMessages adds messages to the session installed with generation. It
// fails if that session has since been replaced or cleared, even when the
// replacement is for the same video.
func (s *SessionStore) AppendMessages(generation uint64, msgs ...domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return domain.ErrNoActiveSession
	}
	if s.session.Generation != generation {
		return domain.ErrIngestionSuperseded
	}
	s.session.Messages = append(s.session.Messages, msgs...)
	s.lastActivity = s.now()
	return nil
}

// Messages returns a copy of the message history
func (s *SessionStore) Messages() []domain.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return []domain.ChatMessage{}
	}
	return append([]domain.ChatMessage{}, s.session.Messages...)
}

// Touch records activity on the live session
func (s *SessionStore) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.lastActivity = s.now()
	}
}

// ExpireIdle clears the session if it has been inactive for at least ttl.
func (s *SessionStore) ExpireIdle(ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil || ttl <= 0 {
		return false
	}
	if s.now().Sub(s.lastActivity) < ttl {
		return false
	}
	s.session = nil
	s.generation++
	s.lastActivity = time.Time{}
	return true
}
