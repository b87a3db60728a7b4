package gateway

import (
	"context"
	"sort"
	"sync"
)

// Registry tracks live sessions. It is mutated by connection accept and
// disconnect and read by the relay monitor and the admin API, so every
// access goes through one mutex.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session // session id -> session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session. At most one session per account is kept; an
// existing session for the same account is closed and replaced, so each
// remote account has exactly one live feed consumer.
func (r *Registry) Add(s *Session) {
	var evicted *Session

	r.mu.Lock()
	for id, old := range r.sessions {
		if old.Account() == s.Account() {
			delete(r.sessions, id)
			evicted = old
			break
		}
	}
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	if evicted != nil {
		_ = evicted.Close()
	}
}

// Remove drops a session by id. Removing an id that was already evicted is
// a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// GetByAccount returns the session authenticated as account.
func (r *Registry) GetByAccount(account string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.Account() == account {
			return s, true
		}
	}
	return nil, false
}

// Sessions returns a snapshot of all live sessions.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account() < out[j].Account() })
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Channels returns the aggregate channel list across all sessions,
// deduplicated.
func (r *Registry) Channels(ctx context.Context) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range r.Sessions() {
		channels, err := s.Channels(ctx)
		if err != nil {
			continue
		}
		for _, ch := range channels {
			if _, dup := seen[ch]; dup {
				continue
			}
			seen[ch] = struct{}{}
			out = append(out, ch)
		}
	}
	return out
}
