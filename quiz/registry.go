package quiz

import "sync"

const defaultRegistrySize = 100

// SessionInfo is a point-in-time copy of a session as exposed to operators.
type SessionInfo struct {
	Session
	Diagnostic *Diagnostic `json:"diagnostic,omitempty"`
}

// Registry remembers running sessions and the most recent finished ones.
// Nothing survives a restart.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*SessionInfo
	limit   int
}

// NewRegistry keeps up to limit finished sessions (100 when limit <= 0).
func NewRegistry(limit int) *Registry {
	if limit <= 0 {
		limit = defaultRegistrySize
	}
	return &Registry{entries: make(map[string]*SessionInfo), limit: limit}
}

func (r *Registry) put(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[s.ID]; ok {
		e.Session = s
		r.evictLocked()
		return
	}
	r.entries[s.ID] = &SessionInfo{Session: s}
	r.order = append(r.order, s.ID)
	r.evictLocked()
}

func (r *Registry) attachDiagnostic(id string, d *Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.Diagnostic = d
	}
}

// evictLocked drops the oldest finished sessions beyond the limit. Live
// sessions are never dropped.
func (r *Registry) evictLocked() {
	for i := 0; len(r.order) > r.limit && i < len(r.order); {
		id := r.order[i]
		if !r.entries[id].Done() {
			i++
			continue
		}
		delete(r.entries, id)
		r.order = append(r.order[:i], r.order[i+1:]...)
	}
}

// Get returns a copy of one session.
func (r *Registry) Get(id string) (SessionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return SessionInfo{}, false
	}
	return *e, true
}

// List returns copies of all sessions, newest first.
func (r *Registry) List() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionInfo, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, *r.entries[r.order[i]])
	}
	return out
}

// Active counts sessions still running.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if !e.Done() {
			n++
		}
	}
	return n
}
