package history

import (
	"context"
	"sync"
	"time"
)

// Turn is one answered question in a conversation.
type Turn struct {
	Question string
	Answer   string
	At       time.Time
}

type session struct {
	turns    []Turn
	lastSeen time.Time
}

// Store keeps recent conversation turns per session in memory.
// It is safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*session
	maxTurns    int
	ttl         time.Duration
	maxSessions int
	now         func() time.Time
}

// NewStore creates a Store holding at most maxTurns turns per session and at most
// maxSessions sessions. Sessions idle for longer than ttl are dropped.
func NewStore(maxTurns int, ttl time.Duration, maxSessions int) *Store {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	if maxSessions <= 0 {
		maxSessions = 1000
	}
	return &Store{
		sessions:    make(map[string]*session),
		maxTurns:    maxTurns,
		ttl:         ttl,
		maxSessions: maxSessions,
		now:         time.Now,
	}
}

// Turns returns a copy of the session's turns, oldest first.
// An unknown or expired session has no turns.
func (s *Store) Turns(sessionID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.live(sessionID)
	if !ok {
		return nil
	}
	sess.lastSeen = s.now()

	out := make([]Turn, len(sess.turns))
	copy(out, sess.turns)
	return out
}

// Append records a turn, keeping only the most recent maxTurns.
func (s *Store) Append(sessionID string, turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if turn.At.IsZero() {
		turn.At = now
	}

	sess, ok := s.live(sessionID)
	if !ok {
		if len(s.sessions) >= s.maxSessions {
			s.pruneLocked(now)
		}
		if len(s.sessions) >= s.maxSessions {
			s.evictOldestLocked()
		}
		sess = &session{}
		s.sessions[sessionID] = sess
	}

	sess.turns = append(sess.turns, turn)
	if over := len(sess.turns) - s.maxTurns; over > 0 {
		sess.turns = append([]Turn(nil), sess.turns[over:]...)
	}
	sess.lastSeen = now
}

// Prune drops every expired session and returns how many were removed.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(s.now())
}

// RunPruner calls Prune every interval until ctx is done.
func (s *Store) RunPruner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Prune()
		}
	}
}

// Len returns the number of sessions currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// live returns the session if it exists and has not expired. Expired sessions are removed.
func (s *Store) live(sessionID string) (*session, bool) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	if s.expired(sess, s.now()) {
		delete(s.sessions, sessionID)
		return nil, false
	}
	return sess, true
}

func (s *Store) expired(sess *session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.lastSeen) > s.ttl
}

func (s *Store) pruneLocked(now time.Time) int {
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Store) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, sess := range s.sessions {
		if oldestID == "" || sess.lastSeen.Before(oldest) {
			oldestID, oldest = id, sess.lastSeen
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
	}
}
