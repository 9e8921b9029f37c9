package match

import (
	"errors"
	"log/slog"
	"sync"
)

// MaxMatches is the size of the fixed match table. Ids are reused as
// matches are disposed, matching the client's 16-bit match id space.
const MaxMatches = 64

// ErrNoFreeMatches is returned by Create when every table entry is
// occupied.
var ErrNoFreeMatches = errors.New("match: no free match slots")

// ErrMatchNotFound is returned when a match id resolves to nothing.
var ErrMatchNotFound = errors.New("match: not found")

// Registry is the fixed-size table of live matches. Create assigns the
// lowest free id, so disposed ids are recycled immediately.
type Registry struct {
	mu      sync.RWMutex
	entries [MaxMatches]*Match
	logger  *slog.Logger
}

// NewRegistry creates an empty match table.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger.With("component", "matches")}
}

// Create inserts m into the first free table entry and assigns its id.
func (r *Registry) Create(m *Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		if r.entries[i] == nil {
			m.ID = int16(i)
			r.entries[i] = m
			r.logger.Info("match created", "match_id", m.ID, "name", m.Name())
			return nil
		}
	}
	return ErrNoFreeMatches
}

// Get returns the match with the given id, or nil.
func (r *Registry) Get(id int16) *Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || int(id) >= MaxMatches {
		return nil
	}
	return r.entries[id]
}

// Remove frees the match's table entry. Removing an id that is empty or
// holds a different match is a no-op.
func (r *Registry) Remove(m *Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m == nil || m.ID < 0 || int(m.ID) >= MaxMatches {
		return
	}
	if r.entries[m.ID] != m {
		return
	}
	r.entries[m.ID] = nil
	r.logger.Info("match disposed", "match_id", m.ID)
}

// All returns the live matches in id order.
func (r *Registry) All() []*Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Match, 0, 8)
	for _, m := range r.entries {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// Count returns the number of live matches.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, m := range r.entries {
		if m != nil {
			n++
		}
	}
	return n
}
