package bot

import (
	"sync"
	"time"

	"sumibot/internal/upload"
)

type session struct {
	ctrl *upload.Controller
	view *chatView
}

// Sessions holds one upload controller per chat. Sessions are created on first
// use and dropped by Sweep once idle.
type Sessions struct {
	mu         sync.Mutex
	items      map[int64]*session
	newSession func(chatID int64) *session
}

func newSessions(newSession func(chatID int64) *session) *Sessions {
	return &Sessions{
		items:      make(map[int64]*session),
		newSession: newSession,
	}
}

func (s *Sessions) get(chatID int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.items[chatID]
	if !ok {
		sess = s.newSession(chatID)
		s.items[chatID] = sess
	}

	return sess
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}

// Sweep drops sessions idle for at least idleTTL and returns how many were
// dropped. Sessions with an upload in flight are kept.
func (s *Sessions) Sweep(now time.Time, idleTTL time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0

	for chatID, sess := range s.items {
		if sess.ctrl.Busy() {
			continue
		}

		if now.Sub(sess.ctrl.LastActive()) < idleTTL {
			continue
		}

		delete(s.items, chatID)
		evicted++
	}

	return evicted
}
