// Package privileges defines the server-side privilege bitmask and its
// projection onto the smaller bitmask the client understands.
package privileges

// Privileges is the server-side privilege bitmask stored per account.
// The bit positions are a persistence and wire contract; do not reorder.
type Privileges uint32

const (
	// Unrestricted is an account in good standing; without it the player
	// is restricted (invisible to the public, no score submission).
	Unrestricted Privileges = 1 << 0

	// Verified is set once the account has completed its first login.
	Verified Privileges = 1 << 1

	// Whitelisted accounts bypass automated flagging.
	Whitelisted Privileges = 1 << 2

	Supporter Privileges = 1 << 4
	Premium   Privileges = 1 << 5
	Alumni    Privileges = 1 << 7

	TourneyManager Privileges = 1 << 10
	Nominator      Privileges = 1 << 13
	Moderator      Privileges = 1 << 14
	Administrator  Privileges = 1 << 16
	Developer      Privileges = 1 << 18
)

const (
	Donator = Supporter | Premium
	Staff   = Moderator | Administrator | Developer
)

// Has returns true if all bits of p2 are set in p.
func (p Privileges) Has(p2 Privileges) bool {
	return p&p2 == p2
}

// HasAny returns true if any bit of p2 is set in p.
func (p Privileges) HasAny(p2 Privileges) bool {
	return p&p2 != 0
}

// ClientPrivileges is the reduced bitmask sent to the client in the
// login bootstrap and presence packets.
type ClientPrivileges uint8

// The client packs its presence byte as privileges in bits 0-4 and the
// play mode in bits 5-7, so nothing here may reach bit 5.
const (
	ClientPlayer    ClientPrivileges = 1 << 0
	ClientModerator ClientPrivileges = 1 << 1
	ClientSupporter ClientPrivileges = 1 << 2
	ClientOwner     ClientPrivileges = 1 << 3
	ClientDeveloper ClientPrivileges = 1 << 4
)

// ToClient projects the server bitmask onto the client bitmask.
// Restricted accounts still present as players to themselves; hiding them
// from everyone else is the session registry's concern.
func (p Privileges) ToClient() ClientPrivileges {
	c := ClientPlayer
	if p.HasAny(Donator) {
		c |= ClientSupporter
	}
	if p.HasAny(Staff) {
		c |= ClientModerator
	}
	if p.Has(Administrator) {
		c |= ClientOwner
	}
	if p.Has(Developer) {
		c |= ClientDeveloper
	}
	return c
}
