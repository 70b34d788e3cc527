package finder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store keeps sessions in memory only. Sessions idle for longer than ttl are evicted by Sweep.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	greeting string
	ttl      time.Duration
	now      func() time.Time
}

func NewStore(greeting string, ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		greeting: greeting,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (st *Store) Create() *Session {
	s := NewSession(uuid.NewString(), st.greeting)
	s.touchedAt = st.now()

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()

	return s
}

func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()

	if ok {
		s.touch(st.now())
	}

	return s, ok
}

func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if ok {
		s.close()
	}

	return ok
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return len(st.sessions)
}

// Sweep evicts idle sessions that have nothing in flight and returns how many were removed.
func (st *Store) Sweep() int {
	if st.ttl <= 0 {
		return 0
	}

	now := st.now()

	st.mu.Lock()
	var expired []*Session
	for id, s := range st.sessions {
		idle, busy := s.idleSince(now)
		if busy || idle < st.ttl {
			continue
		}
		expired = append(expired, s)
		delete(st.sessions, id)
	}
	st.mu.Unlock()

	for _, s := range expired {
		s.close()
	}

	return len(expired)
}

// Run sweeps on every tick until ctx is done.
func (st *Store) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				slog.Info("evicted idle sessions", "count", n, "remaining", st.Len())
			}
		}
	}
}
