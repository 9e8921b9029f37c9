package protocol

import (
	"github.com/bancho-go/bancho/pkg/mods"
)

// MaxMatchSlots is the number of slots in every multiplayer match.
const MaxMatchSlots = 16

// SlotStatus is the per-slot state bitmask as sent on the wire.
type SlotStatus uint8

const (
	SlotOpen     SlotStatus = 1 << 0
	SlotLocked   SlotStatus = 1 << 1
	SlotNotReady SlotStatus = 1 << 2
	SlotReady    SlotStatus = 1 << 3
	SlotNoMap    SlotStatus = 1 << 4
	SlotPlaying  SlotStatus = 1 << 5
	SlotComplete SlotStatus = 1 << 6
	SlotQuit     SlotStatus = 1 << 7
)

// SlotHasPlayer is the derived OR of every occupied primitive state; it is
// a query mask, never a state a slot is set to.
const SlotHasPlayer = SlotNotReady | SlotReady | SlotNoMap | SlotPlaying | SlotComplete

// HasPlayer reports whether the status denotes an occupied slot.
func (s SlotStatus) HasPlayer() bool {
	return s&SlotHasPlayer != 0
}

// SlotTeam is the per-slot team assignment.
type SlotTeam uint8

const (
	TeamNeutral SlotTeam = 0
	TeamBlue    SlotTeam = 1
	TeamRed     SlotTeam = 2
)

// TeamType is the match's team arrangement.
type TeamType uint8

const (
	TeamTypeHeadToHead TeamType = 0
	TeamTypeTagCoop    TeamType = 1
	TeamTypeTeamVs     TeamType = 2
	TeamTypeTagTeamVs  TeamType = 3
)

// Teamed reports whether the arrangement splits players into red/blue.
func (t TeamType) Teamed() bool {
	return t == TeamTypeTeamVs || t == TeamTypeTagTeamVs
}

// WinCondition is the match's scoring rule.
type WinCondition uint8

const (
	WinScore    WinCondition = 0
	WinAccuracy WinCondition = 1
	WinCombo    WinCondition = 2
	WinScoreV2  WinCondition = 3

	// WinPP is a server-side extension that is only legal while a scrim
	// is running; it never reaches the client as-is.
	WinPP WinCondition = 4
)

// GameMode is the play mode (osu!/taiko/catch/mania).
type GameMode uint8

const (
	ModeOsu   GameMode = 0
	ModeTaiko GameMode = 1
	ModeCatch GameMode = 2
	ModeMania GameMode = 3
)

// MatchSnapshot is the full multiplayer match composite. The field order
// below is the wire order and must round-trip byte-for-byte:
//
//	u16 id, bool in-progress, u8 match type, u32 mods,
//	string name, string password, string map name, i32 map id,
//	string map md5, 16×u8 slot statuses, 16×u8 slot teams,
//	i32 player id per occupied slot, i32 host id,
//	u8 mode, u8 win condition, u8 team type, bool freemod,
//	16×u32 slot mods when freemod, i32 seed.
type MatchSnapshot struct {
	ID         uint16
	InProgress bool
	MatchType  uint8 // legacy "powerplay" byte, always 0
	Mods       mods.Mods
	Name       string
	Password   string
	MapName    string
	MapID      int32
	MapMD5     string

	SlotStatuses [MaxMatchSlots]SlotStatus
	SlotTeams    [MaxMatchSlots]SlotTeam
	// SlotPlayerIDs is indexed by slot; only occupied slots are written.
	SlotPlayerIDs [MaxMatchSlots]int32

	HostID       int32
	Mode         GameMode
	WinCondition WinCondition
	TeamType     TeamType
	Freemod      bool
	// SlotMods is written only while freemod is enabled.
	SlotMods [MaxMatchSlots]mods.Mods

	Seed int32
}

// EncodeTo encodes the snapshot using the provided encoder.
// When sendPassword is false a set password is written as a present-but-
// empty string so lobby listings reveal that a password exists without
// leaking it.
func (m *MatchSnapshot) EncodeTo(e *Encoder, sendPassword bool) {
	e.WriteUint16(m.ID)
	e.WriteBool(m.InProgress)
	e.WriteByte(m.MatchType)
	e.WriteUint32(uint32(m.Mods))
	e.WriteString(m.Name)
	if m.Password != "" && !sendPassword {
		e.WriteByte(stringPresent)
		e.WriteUleb128(0)
	} else {
		e.WriteString(m.Password)
	}
	e.WriteString(m.MapName)
	e.WriteInt32(m.MapID)
	e.WriteString(m.MapMD5)
	for _, s := range m.SlotStatuses {
		e.WriteByte(byte(s))
	}
	for _, t := range m.SlotTeams {
		e.WriteByte(byte(t))
	}
	for i, s := range m.SlotStatuses {
		if s.HasPlayer() {
			e.WriteInt32(m.SlotPlayerIDs[i])
		}
	}
	e.WriteInt32(m.HostID)
	e.WriteByte(byte(m.Mode))
	e.WriteByte(byte(m.WinCondition))
	e.WriteByte(byte(m.TeamType))
	e.WriteBool(m.Freemod)
	if m.Freemod {
		for _, sm := range m.SlotMods {
			e.WriteUint32(uint32(sm))
		}
	}
	e.WriteInt32(m.Seed)
}

// DecodeMatchFrom decodes a match snapshot from a decoder.
func DecodeMatchFrom(d *Decoder) (MatchSnapshot, error) {
	var m MatchSnapshot
	var err error
	if m.ID, err = d.ReadUint16(); err != nil {
		return MatchSnapshot{}, err
	}
	if m.InProgress, err = d.ReadBool(); err != nil {
		return MatchSnapshot{}, err
	}
	if m.MatchType, err = d.ReadByte(); err != nil {
		return MatchSnapshot{}, err
	}
	var raw uint32
	if raw, err = d.ReadUint32(); err != nil {
		return MatchSnapshot{}, err
	}
	m.Mods = mods.Mods(raw)
	if m.Name, err = d.ReadString(); err != nil {
		return MatchSnapshot{}, err
	}
	if m.Password, err = d.ReadString(); err != nil {
		return MatchSnapshot{}, err
	}
	if m.MapName, err = d.ReadString(); err != nil {
		return MatchSnapshot{}, err
	}
	if m.MapID, err = d.ReadInt32(); err != nil {
		return MatchSnapshot{}, err
	}
	if m.MapMD5, err = d.ReadString(); err != nil {
		return MatchSnapshot{}, err
	}
	for i := range m.SlotStatuses {
		b, err := d.ReadByte()
		if err != nil {
			return MatchSnapshot{}, err
		}
		m.SlotStatuses[i] = SlotStatus(b)
	}
	for i := range m.SlotTeams {
		b, err := d.ReadByte()
		if err != nil {
			return MatchSnapshot{}, err
		}
		m.SlotTeams[i] = SlotTeam(b)
	}
	for i, s := range m.SlotStatuses {
		if !s.HasPlayer() {
			continue
		}
		if m.SlotPlayerIDs[i], err = d.ReadInt32(); err != nil {
			return MatchSnapshot{}, err
		}
	}
	if m.HostID, err = d.ReadInt32(); err != nil {
		return MatchSnapshot{}, err
	}
	var b byte
	if b, err = d.ReadByte(); err != nil {
		return MatchSnapshot{}, err
	}
	m.Mode = GameMode(b)
	if b, err = d.ReadByte(); err != nil {
		return MatchSnapshot{}, err
	}
	m.WinCondition = WinCondition(b)
	if b, err = d.ReadByte(); err != nil {
		return MatchSnapshot{}, err
	}
	m.TeamType = TeamType(b)
	if m.Freemod, err = d.ReadBool(); err != nil {
		return MatchSnapshot{}, err
	}
	if m.Freemod {
		for i := range m.SlotMods {
			raw, err := d.ReadUint32()
			if err != nil {
				return MatchSnapshot{}, err
			}
			m.SlotMods[i] = mods.Mods(raw)
		}
	}
	if m.Seed, err = d.ReadInt32(); err != nil {
		return MatchSnapshot{}, err
	}
	return m, nil
}
