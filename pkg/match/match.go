package match

import (
	"errors"
	"sync"

	"github.com/bancho-go/bancho/pkg/mods"
	"github.com/bancho-go/bancho/pkg/protocol"
)

// State machine precondition violations. These surface to the caller and
// leave match state untouched.
var (
	ErrMatchFull       = errors.New("match: no open slot")
	ErrBadPassword     = errors.New("match: wrong password")
	ErrAlreadyJoined   = errors.New("match: player already in match")
	ErrNotInMatch      = errors.New("match: player not in match")
	ErrSlotUnavailable = errors.New("match: slot locked or occupied")
	ErrPlayersNotReady = errors.New("match: players are not ready")
	ErrAlreadyStarted  = errors.New("match: already in progress")
	ErrNotStarted      = errors.New("match: not in progress")
	ErrScrimActive     = errors.New("match: not allowed during a scrim")
	ErrScrimOnly       = errors.New("match: only allowed during a scrim")
	ErrBestOfEven      = errors.New("match: best-of must be odd")
	ErrNoPointsAwarded = errors.New("match: no points to roll back")
	ErrLastPointWasTie = errors.New("match: most recent point was a tie")
)

// TieWinner records a tied map in the scrim winners log.
const TieWinner int32 = -1

// Beatmap is the non-owning beatmap identity a match points at.
type Beatmap struct {
	ID   int32
	MD5  string
	Name string
}

// Settings is the host-adjustable portion of a match, decoded from a
// ClientMatchChangeSettings snapshot.
type Settings struct {
	Name         string
	Password     string
	Map          Beatmap
	Mode         protocol.GameMode
	WinCondition protocol.WinCondition
	TeamType     protocol.TeamType
}

// Match is one multiplayer match. All state is guarded by mu; every
// exported method is atomic with respect to concurrent mutations.
//
// A match holds player ids only, never Player references; the server
// resolves ids through the session registry when broadcasting.
type Match struct {
	ID int16

	mu         sync.Mutex
	name       string
	password   string
	hostID     int32
	beatmap    Beatmap
	mods       mods.Mods
	freemod    bool
	mode       protocol.GameMode
	winCond    protocol.WinCondition
	teamType   protocol.TeamType
	inProgress bool
	seed       int32
	slots      [protocol.MaxMatchSlots]Slot

	refs map[int32]struct{}

	// Scrim state. winners is the ordered log of per-map outcomes
	// (player id or TieWinner).
	scrimming     bool
	bestOf        int
	winningPoints int
	winners       []int32
}

// New creates a match hosted by hostID. The id is assigned by the
// registry on Create.
func New(name, password string, hostID int32, bm Beatmap, mode protocol.GameMode, seed int32) *Match {
	m := &Match{
		name:     name,
		password: password,
		hostID:   hostID,
		beatmap:  bm,
		mode:     mode,
		winCond:  protocol.WinScore,
		teamType: protocol.TeamTypeHeadToHead,
		seed:     seed,
		refs:     make(map[int32]struct{}),
	}
	for i := range m.slots {
		m.slots[i].Status = protocol.SlotOpen
	}
	return m
}

// HostID returns the current host's player id.
func (m *Match) HostID() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hostID
}

// Name returns the match name.
func (m *Match) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// Password returns the join password ("" = open).
func (m *Match) Password() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.password
}

// InProgress reports whether gameplay is running.
func (m *Match) InProgress() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inProgress
}

// Freemod reports whether per-slot mods are enabled.
func (m *Match) Freemod() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.freemod
}

// Mods returns the match-level mods.
func (m *Match) Mods() mods.Mods {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mods
}

// IsRef reports whether id is the host or an appointed referee.
// The host is implicitly a referee at all times.
func (m *Match) IsRef(id int32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRefLocked(id)
}

func (m *Match) isRefLocked(id int32) bool {
	if id == m.hostID {
		return true
	}
	_, ok := m.refs[id]
	return ok
}

// AddRef appoints a referee.
func (m *Match) AddRef(id int32) {
	m.mu.Lock()
	m.refs[id] = struct{}{}
	m.mu.Unlock()
}

// RemoveRef removes an appointed referee; the host cannot be removed.
func (m *Match) RemoveRef(id int32) {
	m.mu.Lock()
	delete(m.refs, id)
	m.mu.Unlock()
}

// SlotOf returns the slot index occupied by the player, -1 if absent.
func (m *Match) SlotOf(playerID int32) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slotOfLocked(playerID)
}

func (m *Match) slotOfLocked(playerID int32) int {
	for i := range m.slots {
		if !m.slots[i].Empty() && m.slots[i].PlayerID == playerID {
			return i
		}
	}
	return -1
}

// PlayerIDs returns the ids of every slot occupant.
func (m *Match) PlayerIDs() []int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int32
	for i := range m.slots {
		if !m.slots[i].Empty() {
			out = append(out, m.slots[i].PlayerID)
		}
	}
	return out
}

// PlayerCount returns the number of occupied slots.
func (m *Match) PlayerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range m.slots {
		if !m.slots[i].Empty() {
			n++
		}
	}
	return n
}

// Join seats the player in the first open slot. Referees bypass the
// password. Joining twice is rejected; the player keeps their seat.
func (m *Match) Join(playerID int32, password string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.password != "" && password != m.password && !m.isRefLocked(playerID) {
		return -1, ErrBadPassword
	}
	if m.slotOfLocked(playerID) != -1 {
		return -1, ErrAlreadyJoined
	}

	for i := range m.slots {
		if m.slots[i].Status != protocol.SlotOpen {
			continue
		}
		m.slots[i] = Slot{
			PlayerID: playerID,
			Status:   protocol.SlotNotReady,
			Team:     m.defaultTeamLocked(),
		}
		return i, nil
	}
	return -1, ErrMatchFull
}

func (m *Match) defaultTeamLocked() protocol.SlotTeam {
	if m.teamType.Teamed() {
		return protocol.TeamRed
	}
	return protocol.TeamNeutral
}

// Leave vacates the player's slot. Returns the departed slot index,
// whether the match is now empty, and whether the departure finished an
// in-progress match (the leaver held the last playing slot). Leaving a
// match you are not in is a no-op (idempotent, for cascading logout).
func (m *Match) Leave(playerID int32) (slot int, empty, finished bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.slotOfLocked(playerID)
	if idx == -1 {
		return -1, false, false
	}
	m.slots[idx].Reset(false)
	finished = m.finishIfDoneLocked()

	for i := range m.slots {
		if !m.slots[i].Empty() {
			return idx, false, finished
		}
	}
	return idx, true, finished
}

// ChangeSlot moves the player to the target open slot.
func (m *Match) ChangeSlot(playerID int32, target int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if target < 0 || target >= protocol.MaxMatchSlots {
		return ErrSlotUnavailable
	}
	cur := m.slotOfLocked(playerID)
	if cur == -1 {
		return ErrNotInMatch
	}
	if cur == target {
		return nil
	}
	if m.slots[target].Status != protocol.SlotOpen {
		return ErrSlotUnavailable
	}

	m.slots[target].copyFrom(&m.slots[cur])
	m.slots[cur].Reset(false)
	return nil
}

// ToggleSlotLock locks an open slot or unlocks a locked one. Locking an
// occupied slot kicks its occupant; the kicked player id is returned so
// the server can notify them. The host's own slot cannot be locked.
// finished reports that kicking the last playing slot ended an
// in-progress match.
func (m *Match) ToggleSlotLock(idx int) (kicked int32, finished bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx < 0 || idx >= protocol.MaxMatchSlots {
		return 0, false
	}
	s := &m.slots[idx]
	switch {
	case s.Status == protocol.SlotLocked:
		s.Status = protocol.SlotOpen
	case s.Empty():
		s.Status = protocol.SlotLocked
	case s.PlayerID == m.hostID:
		return 0, false
	default:
		kicked = s.PlayerID
		s.Reset(false)
		s.Status = protocol.SlotLocked
		finished = m.finishIfDoneLocked()
	}
	return kicked, finished
}

// setStatus transitions the player's slot between occupied states.
func (m *Match) setStatus(playerID int32, st protocol.SlotStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.slotOfLocked(playerID)
	if idx == -1 {
		return ErrNotInMatch
	}
	m.slots[idx].Status = st
	return nil
}

// Ready marks the player's slot ready.
func (m *Match) Ready(playerID int32) error {
	return m.setStatus(playerID, protocol.SlotReady)
}

// Unready returns the player's slot to not-ready.
func (m *Match) Unready(playerID int32) error {
	return m.setStatus(playerID, protocol.SlotNotReady)
}

// NoMap marks the player as missing the selected beatmap.
func (m *Match) NoMap(playerID int32) error {
	return m.setStatus(playerID, protocol.SlotNoMap)
}

// HasMap clears the missing-map marker.
func (m *Match) HasMap(playerID int32) error {
	return m.setStatus(playerID, protocol.SlotNotReady)
}

// ChangeTeam flips the player between red and blue. Rejected for
// non-team arrangements.
func (m *Match) ChangeTeam(playerID int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.teamType.Teamed() {
		return ErrSlotUnavailable
	}
	idx := m.slotOfLocked(playerID)
	if idx == -1 {
		return ErrNotInMatch
	}
	if m.slots[idx].Team == protocol.TeamBlue {
		m.slots[idx].Team = protocol.TeamRed
	} else {
		m.slots[idx].Team = protocol.TeamBlue
	}
	return nil
}

// SetHost transfers the host seat. The new host must be in the match.
func (m *Match) SetHost(playerID int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slotOfLocked(playerID) == -1 {
		return ErrNotInMatch
	}
	m.hostID = playerID
	return nil
}

// SetPassword replaces the join password.
func (m *Match) SetPassword(pw string) {
	m.mu.Lock()
	m.password = pw
	m.mu.Unlock()
}

// SetBeatmap points the match at a new beatmap and forces every ready
// slot back to not-ready.
func (m *Match) SetBeatmap(bm Beatmap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setBeatmapLocked(bm)
}

func (m *Match) setBeatmapLocked(bm Beatmap) {
	m.beatmap = bm
	for i := range m.slots {
		if m.slots[i].Status == protocol.SlotReady {
			m.slots[i].Status = protocol.SlotNotReady
		}
	}
}

// Beatmap returns the current beatmap identity.
func (m *Match) Beatmap() Beatmap {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beatmap
}

// ChangeSettings applies a host settings snapshot. Team type changes are
// rejected mid-scrim (ForceTeamType is the explicit admin path); the pp
// win condition is only legal while scrimming.
func (m *Match) ChangeSettings(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.WinCondition == protocol.WinPP && !m.scrimming {
		return ErrScrimOnly
	}
	if s.TeamType != m.teamType && m.scrimming {
		return ErrScrimActive
	}

	m.name = s.Name
	if s.Password != "" {
		m.password = s.Password
	}
	m.mode = s.Mode
	m.winCond = s.WinCondition
	if s.Map.MD5 != m.beatmap.MD5 {
		m.setBeatmapLocked(s.Map)
	}
	if s.TeamType != m.teamType {
		m.applyTeamTypeLocked(s.TeamType)
	}
	return nil
}

// ForceTeamType applies a team type change regardless of scrim state and
// wipes any awarded scrim points, the explicit admin override.
func (m *Match) ForceTeamType(t protocol.TeamType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyTeamTypeLocked(t)
	m.winners = nil
}

// applyTeamTypeLocked re-assigns every occupied slot to the new
// arrangement's default team.
func (m *Match) applyTeamTypeLocked(t protocol.TeamType) {
	m.teamType = t
	def := protocol.TeamNeutral
	if t.Teamed() {
		def = protocol.TeamRed
	}
	for i := range m.slots {
		if !m.slots[i].Empty() {
			m.slots[i].Team = def
		}
	}
}

// TeamType returns the current team arrangement.
func (m *Match) TeamType() protocol.TeamType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.teamType
}

// WinCondition returns the current scoring rule.
func (m *Match) WinCondition() protocol.WinCondition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.winCond
}

// SetFreemod toggles freemod.
//
// Turning it ON copies the match's non-speed mods into every occupied
// slot and reduces match mods to the speed subset. Turning it OFF sets
// match mods to (match speed mods | host slot mods) and clears every
// slot's mods. With no intermediate edits the two operations are exact
// inverses.
func (m *Match) SetFreemod(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if on == m.freemod {
		return
	}
	m.freemod = on

	if on {
		shared := m.mods.WithoutSpeed()
		for i := range m.slots {
			if !m.slots[i].Empty() {
				m.slots[i].Mods = shared
			}
		}
		m.mods = m.mods.Speed()
		return
	}

	hostMods := mods.NoMod
	if idx := m.slotOfLocked(m.hostID); idx != -1 {
		hostMods = m.slots[idx].Mods
	}
	m.mods = m.mods.Speed() | hostMods
	for i := range m.slots {
		m.slots[i].Mods = mods.NoMod
	}
}

// ChangeMods applies a mod change from the given player.
//
// Freemod OFF: only the host may change mods, at match level.
// Freemod ON: the host may adjust the match-level speed subset; every
// player controls their own slot's non-speed mods.
func (m *Match) ChangeMods(playerID int32, newMods mods.Mods) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.freemod {
		if playerID != m.hostID {
			return ErrNotInMatch
		}
		m.mods = newMods
		return nil
	}

	if playerID == m.hostID {
		m.mods = newMods.Speed()
	}
	idx := m.slotOfLocked(playerID)
	if idx == -1 {
		return ErrNotInMatch
	}
	m.slots[idx].Mods = newMods.WithoutSpeed()
	return nil
}

// Start begins gameplay: every ready slot transitions to playing.
// Without force, occupied not-ready slots block the start; force leaves
// them behind (the host's escape hatch). No-map slots never block.
func (m *Match) Start(force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inProgress {
		return ErrAlreadyStarted
	}
	if !force {
		for i := range m.slots {
			if m.slots[i].Status == protocol.SlotNotReady {
				return ErrPlayersNotReady
			}
		}
	}

	started := 0
	for i := range m.slots {
		if m.slots[i].Status == protocol.SlotReady {
			m.slots[i].Status = protocol.SlotPlaying
			m.slots[i].Loaded = false
			m.slots[i].Skipped = false
			started++
		}
	}
	if started == 0 {
		return ErrPlayersNotReady
	}
	m.inProgress = true
	return nil
}

// PlayerLoaded records the player's map load. Returns true once every
// playing slot is loaded.
func (m *Match) PlayerLoaded(playerID int32) (all bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.slotOfLocked(playerID)
	if idx == -1 {
		return false, ErrNotInMatch
	}
	m.slots[idx].Loaded = true

	for i := range m.slots {
		if m.slots[i].Status == protocol.SlotPlaying && !m.slots[i].Loaded {
			return false, nil
		}
	}
	return true, nil
}

// PlayerSkipped records a skip request. Returns true once every playing
// slot has requested the skip.
func (m *Match) PlayerSkipped(playerID int32) (all bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.slotOfLocked(playerID)
	if idx == -1 {
		return false, ErrNotInMatch
	}
	m.slots[idx].Skipped = true

	for i := range m.slots {
		if m.slots[i].Status == protocol.SlotPlaying && !m.slots[i].Skipped {
			return false, nil
		}
	}
	return true, nil
}

// Complete moves the player's slot from playing to complete. Once no
// playing slots remain the match leaves in-progress and every complete
// slot resets to not-ready; finished reports that flip. Slots that never
// entered playing (not-ready stragglers, no-map) are untouched and
// excluded from completion tracking.
func (m *Match) Complete(playerID int32) (finished bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.inProgress {
		return false, ErrNotStarted
	}
	idx := m.slotOfLocked(playerID)
	if idx == -1 {
		return false, ErrNotInMatch
	}
	if m.slots[idx].Status != protocol.SlotPlaying {
		return false, nil
	}
	m.slots[idx].Status = protocol.SlotComplete
	return m.finishIfDoneLocked(), nil
}

// finishIfDoneLocked flips an in-progress match back to idle once no
// playing slot remains, resetting complete slots to not-ready. Every
// code path that can vacate a playing slot (completion, leave, lock
// kick) runs this so a mid-play departure cannot wedge the match.
func (m *Match) finishIfDoneLocked() bool {
	if !m.inProgress {
		return false
	}
	for i := range m.slots {
		if m.slots[i].Status == protocol.SlotPlaying {
			return false
		}
	}

	m.inProgress = false
	for i := range m.slots {
		if m.slots[i].Status == protocol.SlotComplete {
			m.slots[i].Status = protocol.SlotNotReady
		}
		m.slots[i].Loaded = false
		m.slots[i].Skipped = false
	}
	return true
}

// Abort cancels in-progress gameplay, returning playing slots to
// not-ready.
func (m *Match) Abort() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.inProgress {
		return ErrNotStarted
	}
	m.inProgress = false
	for i := range m.slots {
		if m.slots[i].Status == protocol.SlotPlaying || m.slots[i].Status == protocol.SlotComplete {
			m.slots[i].Status = protocol.SlotNotReady
		}
		m.slots[i].Loaded = false
		m.slots[i].Skipped = false
	}
	return nil
}

// Snapshot assembles the wire composite under the match lock.
func (m *Match) Snapshot() protocol.MatchSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := protocol.MatchSnapshot{
		ID:           uint16(m.ID),
		InProgress:   m.inProgress,
		Mods:         m.mods,
		Name:         m.name,
		Password:     m.password,
		MapName:      m.beatmap.Name,
		MapID:        m.beatmap.ID,
		MapMD5:       m.beatmap.MD5,
		HostID:       m.hostID,
		Mode:         m.mode,
		WinCondition: m.winCond,
		TeamType:     m.teamType,
		Freemod:      m.freemod,
		Seed:         m.seed,
	}
	if snap.WinCondition == protocol.WinPP {
		// The client has no pp condition; present scrims as scorev2.
		snap.WinCondition = protocol.WinScoreV2
	}
	for i := range m.slots {
		snap.SlotStatuses[i] = m.slots[i].Status
		snap.SlotTeams[i] = m.slots[i].Team
		snap.SlotPlayerIDs[i] = m.slots[i].PlayerID
		snap.SlotMods[i] = m.slots[i].Mods
	}
	return snap
}
