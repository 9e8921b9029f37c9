package channel

import (
	"log/slog"
	"sync"

	"github.com/bancho-go/bancho/pkg/session"
)

// Registry is the server-wide set of channels, keyed by real name
// (instance channels by their "#multi_N" style names, not the display
// aliases).
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel

	logger *slog.Logger
}

// NewRegistry creates an empty channel registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		channels: make(map[string]*Channel),
		logger:   logger.With("component", "channel_registry"),
	}
}

// Add registers a channel. Returns false if the name is taken.
func (r *Registry) Add(c *Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[c.Name]; ok {
		return false
	}
	r.channels[c.Name] = c
	r.logger.Debug("channel added", "name", c.Name, "instance", c.Instance)
	return true
}

// Get resolves a channel by real name, nil if absent.
func (r *Registry) Get(name string) *Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channels[name]
}

// Remove deletes a channel after kicking all remaining members, keeping
// the membership invariant intact. Idempotent.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	c, ok := r.channels[name]
	if ok {
		delete(r.channels, name)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	for _, m := range c.Members() {
		c.Part(m)
	}
	r.logger.Debug("channel removed", "name", name)
}

// All returns a snapshot of every channel.
func (r *Registry) All() []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Channel, 0, len(r.channels))
	for _, c := range r.channels {
		out = append(out, c)
	}
	return out
}

// Visible returns channels the given player may see listed: non-instance
// channels whose read gate the player's privileges satisfy.
func (r *Registry) Visible(p *session.Player) []*Channel {
	privs := p.Privileges()
	var out []*Channel
	for _, c := range r.All() {
		if c.Instance {
			continue
		}
		if c.CanRead(privs) {
			out = append(out, c)
		}
	}
	return out
}

// PartAll removes the player from every channel they are a member of,
// the cascading-removal step for logouts.
func (r *Registry) PartAll(p *session.Player) {
	for _, name := range p.Channels() {
		if c := r.Get(name); c != nil {
			c.Part(p)
		} else {
			// Channel already destroyed; clear the dangling reference.
			p.LeftChannel(name)
		}
	}
}
