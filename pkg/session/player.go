package session

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bancho-go/bancho/pkg/privileges"
	"github.com/bancho-go/bancho/pkg/protocol"
)

// NoMatch marks a player who is not in any multiplayer match.
const NoMatch = int16(-1)

// Stats is the per-mode ranking data shown in presence/stats packets.
// The values come from the persistence collaborator at login and are
// updated externally; the engine only relays them.
type Stats struct {
	RankedScore int64
	Accuracy    float32
	PlayCount   int32
	TotalScore  int64
	GlobalRank  int32
	PP          int16
}

// Player is one online session. Exactly one Player exists per token; the
// registry keeps token, id, and name indices in sync.
//
// Mutable cross-connection state (queue, status, membership sets) is
// guarded by the player's own mutex; identity fields are immutable after
// construction.
type Player struct {
	ID        int32
	Name      string
	SafeName  string
	Token     string
	UTCOffset int8
	CountryID uint8

	mu         sync.Mutex
	privs      privileges.Privileges
	status     protocol.UserStatus
	stats      Stats
	queue      []byte
	channels   map[string]struct{}
	friends    map[int32]struct{}
	spectators map[int32]struct{}
	spectating int32 // host id, 0 = not spectating
	matchID    int16
	awayMsg    string
	pmPrivate  bool
	silenceEnd int64 // unix seconds, 0 = not silenced

	lastActivity atomic.Int64 // unix nanos
	loginTime    time.Time
}

// NewPlayer constructs a Player with a fresh session token.
func NewPlayer(id int32, name string, privs privileges.Privileges) *Player {
	p := &Player{
		ID:         id,
		Name:       name,
		SafeName:   MakeSafeName(name),
		Token:      uuid.NewString(),
		privs:      privs,
		channels:   make(map[string]struct{}),
		friends:    make(map[int32]struct{}),
		spectators: make(map[int32]struct{}),
		matchID:    NoMatch,
		loginTime:  time.Now(),
	}
	p.Touch()
	return p
}

// MakeSafeName normalizes a name for the case-insensitive name index:
// lowercased with spaces folded to underscores.
func MakeSafeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// Touch refreshes the last-activity timestamp.
func (p *Player) Touch() {
	p.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the time of the last inbound packet.
func (p *Player) LastActivity() time.Time {
	return time.Unix(0, p.lastActivity.Load())
}

// LoginTime returns when the session was created.
func (p *Player) LoginTime() time.Time {
	return p.loginTime
}

// Enqueue appends server packet bytes to the player's outbound queue.
// Order of enqueues is the order the client will receive them.
func (p *Player) Enqueue(b []byte) {
	if len(b) == 0 {
		return
	}
	p.mu.Lock()
	p.queue = append(p.queue, b...)
	p.mu.Unlock()
}

// Dequeue drains and returns the outbound queue (oldest bytes first).
// Returns nil when the queue is empty.
func (p *Player) Dequeue() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil
	}
	out := p.queue
	p.queue = nil
	return out
}

// QueueLen returns the number of pending outbound bytes.
func (p *Player) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Privileges returns the current privilege bitmask.
func (p *Player) Privileges() privileges.Privileges {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.privs
}

// SetPrivileges replaces the privilege bitmask.
func (p *Player) SetPrivileges(v privileges.Privileges) {
	p.mu.Lock()
	p.privs = v
	p.mu.Unlock()
}

// Restricted reports whether the account is restricted (hidden from the
// public and excluded from broadcasts to other players).
func (p *Player) Restricted() bool {
	return !p.Privileges().Has(privileges.Unrestricted)
}

// Status returns the current presence status.
func (p *Player) Status() protocol.UserStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// SetStatus replaces the presence status.
func (p *Player) SetStatus(s protocol.UserStatus) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

// Stats returns the relayed ranking data.
func (p *Player) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// SetStats replaces the relayed ranking data.
func (p *Player) SetStats(s Stats) {
	p.mu.Lock()
	p.stats = s
	p.mu.Unlock()
}

// AwayMessage returns the away auto-reply, empty when unset.
func (p *Player) AwayMessage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.awayMsg
}

// SetAwayMessage sets the away auto-reply.
func (p *Player) SetAwayMessage(msg string) {
	p.mu.Lock()
	p.awayMsg = msg
	p.mu.Unlock()
}

// PMPrivate reports whether the player blocks DMs from non-friends.
func (p *Player) PMPrivate() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pmPrivate
}

// SetPMPrivate toggles blocking DMs from non-friends.
func (p *Player) SetPMPrivate(v bool) {
	p.mu.Lock()
	p.pmPrivate = v
	p.mu.Unlock()
}

// SilenceEnd returns when the current silence expires, in unix seconds.
func (p *Player) SilenceEnd() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.silenceEnd
}

// SetSilenceEnd records the silence expiry (0 to clear).
func (p *Player) SetSilenceEnd(unix int64) {
	p.mu.Lock()
	p.silenceEnd = unix
	p.mu.Unlock()
}

// Silenced reports whether the player is currently silenced.
func (p *Player) Silenced() bool {
	end := p.SilenceEnd()
	return end != 0 && time.Now().Unix() < end
}

// Friends returns a snapshot of the friends list.
func (p *Player) Friends() []int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int32, 0, len(p.friends))
	for id := range p.friends {
		out = append(out, id)
	}
	return out
}

// IsFriend reports whether id is on the friends list.
func (p *Player) IsFriend(id int32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.friends[id]
	return ok
}

// AddFriend adds id to the friends list.
func (p *Player) AddFriend(id int32) {
	p.mu.Lock()
	p.friends[id] = struct{}{}
	p.mu.Unlock()
}

// RemoveFriend removes id from the friends list.
func (p *Player) RemoveFriend(id int32) {
	p.mu.Lock()
	delete(p.friends, id)
	p.mu.Unlock()
}

// SetFriends replaces the friends list wholesale (login bootstrap).
func (p *Player) SetFriends(ids []int32) {
	p.mu.Lock()
	p.friends = make(map[int32]struct{}, len(ids))
	for _, id := range ids {
		p.friends[id] = struct{}{}
	}
	p.mu.Unlock()
}

// JoinedChannel records membership in the named channel.
func (p *Player) JoinedChannel(name string) {
	p.mu.Lock()
	p.channels[name] = struct{}{}
	p.mu.Unlock()
}

// LeftChannel clears membership in the named channel.
func (p *Player) LeftChannel(name string) {
	p.mu.Lock()
	delete(p.channels, name)
	p.mu.Unlock()
}

// InChannel reports membership in the named channel.
func (p *Player) InChannel(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.channels[name]
	return ok
}

// Channels returns a snapshot of channel membership names.
func (p *Player) Channels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.channels))
	for name := range p.channels {
		out = append(out, name)
	}
	return out
}

// MatchID returns the current match id, or NoMatch.
func (p *Player) MatchID() int16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.matchID
}

// SetMatchID records the current match id (NoMatch to clear).
func (p *Player) SetMatchID(id int16) {
	p.mu.Lock()
	p.matchID = id
	p.mu.Unlock()
}

// Spectating returns the id of the spectated host, 0 when not spectating.
func (p *Player) Spectating() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spectating
}

// SetSpectating records the spectated host id (0 to clear).
func (p *Player) SetSpectating(hostID int32) {
	p.mu.Lock()
	p.spectating = hostID
	p.mu.Unlock()
}

// AddSpectator records a spectator's back-reference on the host.
func (p *Player) AddSpectator(id int32) {
	p.mu.Lock()
	p.spectators[id] = struct{}{}
	p.mu.Unlock()
}

// RemoveSpectator clears a spectator's back-reference.
func (p *Player) RemoveSpectator(id int32) {
	p.mu.Lock()
	delete(p.spectators, id)
	p.mu.Unlock()
}

// Spectators returns a snapshot of spectator ids.
func (p *Player) Spectators() []int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int32, 0, len(p.spectators))
	for id := range p.spectators {
		out = append(out, id)
	}
	return out
}

// Presence assembles the wire presence for this player.
func (p *Player) Presence() protocol.UserPresence {
	p.mu.Lock()
	defer p.mu.Unlock()
	return protocol.UserPresence{
		UserID:     p.ID,
		Name:       p.Name,
		UTCOffset:  p.UTCOffset,
		CountryID:  p.CountryID,
		Bancho:     uint8(p.privs.ToClient()) | uint8(p.status.Mode)<<5,
		GlobalRank: p.stats.GlobalRank,
	}
}

// StatsPacket assembles the wire stats for this player.
func (p *Player) StatsPacket() protocol.UserStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return protocol.UserStats{
		UserID:      p.ID,
		Status:      p.status,
		RankedScore: p.stats.RankedScore,
		Accuracy:    p.stats.Accuracy,
		PlayCount:   p.stats.PlayCount,
		TotalScore:  p.stats.TotalScore,
		GlobalRank:  p.stats.GlobalRank,
		PP:          p.stats.PP,
	}
}
