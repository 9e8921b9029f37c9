// Package channel implements named chat channels with privilege-gated
// membership and the registry that owns them.
package channel

import (
	"fmt"
	"sync"

	"github.com/bancho-go/bancho/pkg/privileges"
	"github.com/bancho-go/bancho/pkg/protocol"
	"github.com/bancho-go/bancho/pkg/session"
)

// MaxMessageLength is the hard cap applied to chat text; longer messages
// are truncated, not rejected.
const MaxMessageLength = 2000

// Channel is one chat channel. Membership is tracked both here and on the
// player (Player.JoinedChannel); Join/Part keep the two in sync so the
// bidirectional invariant holds.
type Channel struct {
	Name      string
	Topic     string
	ReadPriv  privileges.Privileges
	WritePriv privileges.Privileges
	AutoJoin  bool
	// Instance marks an ephemeral channel (per-match, per-spectator
	// host) that is destroyed along with its owner.
	Instance bool

	mu      sync.RWMutex
	members map[int32]*session.Player
}

// New creates a channel with no members.
func New(name, topic string, read, write privileges.Privileges, autoJoin, instance bool) *Channel {
	return &Channel{
		Name:      name,
		Topic:     topic,
		ReadPriv:  read,
		WritePriv: write,
		AutoJoin:  autoJoin,
		Instance:  instance,
		members:   make(map[int32]*session.Player),
	}
}

// CanRead reports whether the privilege mask satisfies the read gate.
func (c *Channel) CanRead(p privileges.Privileges) bool {
	return c.ReadPriv == 0 || p.Has(c.ReadPriv)
}

// CanWrite reports whether the privilege mask satisfies the write gate.
func (c *Channel) CanWrite(p privileges.Privileges) bool {
	return c.WritePriv == 0 || p.Has(c.WritePriv)
}

// DisplayName is the name shown to clients. Multiplayer and spectator
// instance channels present under their generic aliases.
func (c *Channel) DisplayName() string {
	if !c.Instance {
		return c.Name
	}
	switch {
	case len(c.Name) > 6 && c.Name[:6] == "#multi":
		return "#multiplayer"
	case len(c.Name) > 6 && c.Name[:6] == "#spect":
		return "#spectator"
	}
	return c.Name
}

// Join adds the player to the channel. It fails when the player lacks
// read privilege or is already a member.
func (c *Channel) Join(p *session.Player) bool {
	if !c.CanRead(p.Privileges()) {
		return false
	}

	c.mu.Lock()
	if _, ok := c.members[p.ID]; ok {
		c.mu.Unlock()
		return false
	}
	c.members[p.ID] = p
	c.mu.Unlock()

	p.JoinedChannel(c.Name)
	return true
}

// Part removes the player. Idempotent.
func (c *Channel) Part(p *session.Player) {
	c.mu.Lock()
	_, ok := c.members[p.ID]
	if ok {
		delete(c.members, p.ID)
	}
	c.mu.Unlock()

	if ok {
		p.LeftChannel(c.Name)
	}
}

// HasMember reports membership by player id.
func (c *Channel) HasMember(id int32) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.members[id]
	return ok
}

// MemberCount returns the number of members.
func (c *Channel) MemberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members)
}

// Members returns a snapshot of the member set.
func (c *Channel) Members() []*session.Player {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*session.Player, 0, len(c.members))
	for _, p := range c.members {
		out = append(out, p)
	}
	return out
}

// Send fans a message from a member out to every other member. The write
// gate is enforced here; text beyond MaxMessageLength is truncated.
// Returns false when the sender lacks write privilege or membership.
func (c *Channel) Send(from *session.Player, text string) bool {
	if !c.CanWrite(from.Privileges()) {
		return false
	}
	if !c.HasMember(from.ID) {
		return false
	}
	if len(text) > MaxMessageLength {
		text = text[:MaxMessageLength]
	}

	data := protocol.WriteMessage(protocol.Message{
		Sender:    from.Name,
		Text:      text,
		Recipient: c.DisplayName(),
		SenderID:  from.ID,
	})
	for _, m := range c.Members() {
		if m.ID != from.ID {
			m.Enqueue(data)
		}
	}
	return true
}

// SendSelective delivers a message to an explicit recipient subset,
// bypassing the membership fan-out (used for staff-only notices and
// scrim referee chatter).
func (c *Channel) SendSelective(from *session.Player, text string, recipients []*session.Player) {
	if len(text) > MaxMessageLength {
		text = text[:MaxMessageLength]
	}
	data := protocol.WriteMessage(protocol.Message{
		Sender:    from.Name,
		Text:      text,
		Recipient: c.DisplayName(),
		SenderID:  from.ID,
	})
	for _, m := range recipients {
		if m.ID != from.ID {
			m.Enqueue(data)
		}
	}
}

// Info assembles the channel listing entry packet body values.
func (c *Channel) Info() (name, topic string, members int16) {
	return c.DisplayName(), c.Topic, int16(c.MemberCount())
}

// MatchChannelName returns the instanced channel name for a match id.
func MatchChannelName(matchID int16) string {
	return fmt.Sprintf("#multi_%d", matchID)
}

// SpectatorChannelName returns the instanced channel name for a
// spectator host id.
func SpectatorChannelName(hostID int32) string {
	return fmt.Sprintf("#spect_%d", hostID)
}
