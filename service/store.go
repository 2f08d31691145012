package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sphllzulu/QuickPactv2/config"
)

// SessionStore is an in-memory store for contract sessions. Nothing is
// persisted; sessions disappear on expiry or process exit.
type SessionStore struct {
	sessions    map[string]*Session
	mu          sync.RWMutex
	maxSessions int // Maximum sessions to keep, 0 = unlimited
	ttl         time.Duration
	now         func() time.Time
}

func NewSessionStore(cfg *config.SessionConfig) *SessionStore {
	maxSessions := cfg.MaxSessions
	if maxSessions < 0 {
		maxSessions = 0
	}
	slog.Info("session store initialized", "max_sessions", maxSessions, "ttl_minutes", cfg.TTLMinutes)
	return &SessionStore{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		ttl:         time.Duration(cfg.TTLMinutes) * time.Minute,
		now:         time.Now,
	}
}

// Create starts a new session with default fields
func (s *SessionStore) Create() *Session {
	sess := NewSession(uuid.New().String(), s.now())
	s.Save(sess)
	return sess
}

func (s *SessionStore) Save(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = sess

	// Cleanup if exceeds max
	s.cleanupIfNeeded()
}

func (s *SessionStore) Get(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// Delete removes the session and abandons any in-flight generation
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		sess.Abandon()
	}
}

// Sweep removes sessions idle for longer than the TTL and returns how many were removed
func (s *SessionStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if sess.LastActive().Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		slog.Info("session expired", "session_id", sess.ID)
		sess.Abandon()
	}
	return len(expired)
}

// RunSweeper calls Sweep every interval until ctx is done
func (s *SessionStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// cleanupIfNeeded removes the least recently active sessions if store exceeds maxSessions
// Must be called with lock held
func (s *SessionStore) cleanupIfNeeded() {
	if s.maxSessions <= 0 {
		return // Unlimited
	}

	if len(s.sessions) <= s.maxSessions {
		return
	}

	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActive().Before(sessions[j].LastActive())
	})

	removeCount := len(sessions) - s.maxSessions
	for i := 0; i < removeCount; i++ {
		slog.Info("evicting idle session",
			"session_id", sessions[i].ID,
			"last_active", sessions[i].LastActive(),
		)
		delete(s.sessions, sessions[i].ID)
		sessions[i].Abandon()
	}
}

// Count returns the number of sessions in the store
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
