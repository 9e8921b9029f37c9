package session

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Registry errors.
var (
	// ErrNameOnline is returned by Add when a live session already holds
	// the player's name.
	ErrNameOnline = errors.New("session: name already online")

	// ErrTokenTaken is returned by Add on a token collision. With random
	// tokens this indicates a caller bug, not bad luck.
	ErrTokenTaken = errors.New("session: token already registered")
)

// Registry is the authoritative set of online players, indexed by token,
// numeric id, and safe name. The three indices mutate together under one
// lock and can never disagree.
type Registry struct {
	mu      sync.RWMutex
	byToken map[string]*Player
	byID    map[int32]*Player
	byName  map[string]*Player

	// nameLocks serializes the login check-then-create path per account
	// name. Entries are created lazily and never removed; the map is
	// bounded by the number of distinct accounts seen.
	nameMu    sync.Mutex
	nameLocks map[string]*sync.Mutex

	totalLogins atomic.Uint64
	peak        int

	logger *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byToken:   make(map[string]*Player),
		byID:      make(map[int32]*Player),
		byName:    make(map[string]*Player),
		nameLocks: make(map[string]*sync.Mutex),
		logger:    logger.With("component", "session_registry"),
	}
}

// NameLock returns the mutex serializing logins for the given name.
// The login pipeline holds it across its online-check and Add.
func (r *Registry) NameLock(name string) *sync.Mutex {
	safe := MakeSafeName(name)
	r.nameMu.Lock()
	defer r.nameMu.Unlock()
	l, ok := r.nameLocks[safe]
	if !ok {
		l = &sync.Mutex{}
		r.nameLocks[safe] = l
	}
	return l
}

// Add inserts a player into all three indices.
func (r *Registry) Add(p *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[p.SafeName]; ok {
		return ErrNameOnline
	}
	if _, ok := r.byToken[p.Token]; ok {
		return ErrTokenTaken
	}

	r.byToken[p.Token] = p
	r.byID[p.ID] = p
	r.byName[p.SafeName] = p

	r.totalLogins.Add(1)
	if n := len(r.byToken); n > r.peak {
		r.peak = n
	}

	r.logger.Info("session added",
		"user_id", p.ID,
		"name", p.Name,
		"online", len(r.byToken))
	return nil
}

// Remove deletes a player from all indices. Idempotent: removing a
// player twice, or a player that was already evicted, is a no-op.
// Returns true if the player was present.
//
// Remove only detaches the session; cascading cleanup of channels,
// match slots, and spectator references is the server's job and happens
// before this call.
func (r *Registry) Remove(p *Player) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byToken[p.Token]
	if !ok || cur != p {
		return false
	}

	delete(r.byToken, p.Token)
	delete(r.byID, p.ID)
	delete(r.byName, p.SafeName)

	r.logger.Info("session removed",
		"user_id", p.ID,
		"name", p.Name,
		"online", len(r.byToken))
	return true
}

// ByToken resolves a session token, nil if offline.
func (r *Registry) ByToken(token string) *Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byToken[token]
}

// ByID resolves a numeric user id, nil if offline.
func (r *Registry) ByID(id int32) *Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// ByName resolves a display name (case-insensitive), nil if offline.
func (r *Registry) ByName(name string) *Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[MakeSafeName(name)]
}

// Count returns the number of online players.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byToken)
}

// Peak returns the highest concurrent session count seen.
func (r *Registry) Peak() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peak
}

// TotalLogins returns the process-lifetime login count.
func (r *Registry) TotalLogins() uint64 {
	return r.totalLogins.Load()
}

// Snapshot returns all online players. Callers iterate the snapshot, so
// concurrent add/remove neither double-delivers nor trips iteration.
func (r *Registry) Snapshot() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Player, 0, len(r.byToken))
	for _, p := range r.byToken {
		out = append(out, p)
	}
	return out
}

// Broadcast enqueues data on every online player except those excluded.
func (r *Registry) Broadcast(data []byte, exclude ...int32) {
	var skip map[int32]struct{}
	if len(exclude) > 0 {
		skip = make(map[int32]struct{}, len(exclude))
		for _, id := range exclude {
			skip[id] = struct{}{}
		}
	}
	for _, p := range r.Snapshot() {
		if _, ok := skip[p.ID]; ok {
			continue
		}
		p.Enqueue(data)
	}
}

// BroadcastUnrestricted enqueues data on every unrestricted player
// except those excluded; presence fan-out uses this so restricted
// accounts stay invisible.
func (r *Registry) BroadcastUnrestricted(data []byte, exclude ...int32) {
	var skip map[int32]struct{}
	if len(exclude) > 0 {
		skip = make(map[int32]struct{}, len(exclude))
		for _, id := range exclude {
			skip[id] = struct{}{}
		}
	}
	for _, p := range r.Snapshot() {
		if _, ok := skip[p.ID]; ok {
			continue
		}
		if p.Restricted() {
			continue
		}
		p.Enqueue(data)
	}
}

// Stale returns players whose last activity predates the cutoff.
func (r *Registry) Stale(cutoff time.Time) []*Player {
	var out []*Player
	for _, p := range r.Snapshot() {
		if p.LastActivity().Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}
