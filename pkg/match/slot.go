// Package match implements the multiplayer match state machine: 16-slot
// matches with team/scoring modes, freemod semantics, scrims, and the
// fixed-capacity registry that assigns match ids.
package match

import (
	"github.com/bancho-go/bancho/pkg/mods"
	"github.com/bancho-go/bancho/pkg/protocol"
)

// Slot is one of the 16 seats in a match. A zero PlayerID means empty.
// Slots are owned by exactly one Match and only mutated under its lock.
type Slot struct {
	PlayerID int32
	Status   protocol.SlotStatus
	Team     protocol.SlotTeam
	Mods     mods.Mods
	Loaded   bool
	Skipped  bool
}

// Empty reports whether no player occupies the slot.
func (s *Slot) Empty() bool {
	return !s.Status.HasPlayer()
}

// Reset returns the slot to open with all per-player state cleared.
// Locked slots stay locked unless unlock is set.
func (s *Slot) Reset(unlock bool) {
	locked := s.Status == protocol.SlotLocked && !unlock
	*s = Slot{Status: protocol.SlotOpen}
	if locked {
		s.Status = protocol.SlotLocked
	}
}

// copyFrom moves another slot's occupant here (slot-change operation).
func (s *Slot) copyFrom(o *Slot) {
	s.PlayerID = o.PlayerID
	s.Status = o.Status
	s.Team = o.Team
	s.Mods = o.Mods
	s.Loaded = o.Loaded
	s.Skipped = o.Skipped
}
