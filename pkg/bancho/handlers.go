package bancho

import (
	"context"
	"fmt"
	"time"

	"github.com/bancho-go/bancho/pkg/channel"
	"github.com/bancho-go/bancho/pkg/match"
	"github.com/bancho-go/bancho/pkg/mods"
	"github.com/bancho-go/bancho/pkg/protocol"
	"github.com/bancho-go/bancho/pkg/session"
	"github.com/bancho-go/bancho/pkg/store"
)

func (s *Server) handleNoop(context.Context, *session.Player, *protocol.Decoder) error {
	return nil
}

func (s *Server) handlePing(_ context.Context, p *session.Player, _ *protocol.Decoder) error {
	s.enqueue(p, protocol.WritePong())
	return nil
}

func (s *Server) handleChangeAction(_ context.Context, p *session.Player, d *protocol.Decoder) error {
	st, err := protocol.DecodeUserStatusFrom(d)
	if err != nil {
		return err
	}
	p.SetStatus(st)
	if !p.Restricted() {
		s.sessions.Broadcast(protocol.WriteUserStats(p.StatsPacket()))
	} else {
		s.enqueue(p, protocol.WriteUserStats(p.StatsPacket()))
	}
	return nil
}

func (s *Server) handleRequestStatusUpdate(_ context.Context, p *session.Player, _ *protocol.Decoder) error {
	s.enqueue(p, protocol.WriteUserStats(p.StatsPacket()))
	return nil
}

func (s *Server) handleLogout(_ context.Context, p *session.Player, d *protocol.Decoder) error {
	if _, err := d.ReadInt32(); err != nil {
		return err
	}
	// The client fires a logout right after a successful login when it
	// reorders its startup requests; ignore those.
	if time.Since(p.LoginTime()) < time.Second {
		return nil
	}
	s.Logout(p)
	return nil
}

// resolveChannel maps a client-facing channel name to the real one,
// translating the instanced aliases.
func (s *Server) resolveChannel(p *session.Player, name string) *channel.Channel {
	switch name {
	case "#multiplayer":
		if p.MatchID() == session.NoMatch {
			return nil
		}
		return s.channels.Get(channel.MatchChannelName(p.MatchID()))
	case "#spectator":
		hostID := p.Spectating()
		if hostID == 0 {
			if len(p.Spectators()) == 0 {
				return nil
			}
			hostID = p.ID
		}
		return s.channels.Get(channel.SpectatorChannelName(hostID))
	default:
		return s.channels.Get(name)
	}
}

func (s *Server) handlePublicMessage(_ context.Context, p *session.Player, d *protocol.Decoder) error {
	msg, err := protocol.DecodeMessageFrom(d)
	if err != nil {
		return err
	}
	if p.Silenced() {
		return nil
	}
	ch := s.resolveChannel(p, msg.Recipient)
	if ch == nil {
		s.logger.Debug("message to unknown channel", "user_id", p.ID, "channel", msg.Recipient)
		return nil
	}
	if !ch.Send(p, msg.Text) {
		s.enqueue(p, protocol.WriteChannelKick(ch.DisplayName()))
	}
	return nil
}

func (s *Server) handlePrivateMessage(ctx context.Context, p *session.Player, d *protocol.Decoder) error {
	msg, err := protocol.DecodeMessageFrom(d)
	if err != nil {
		return err
	}
	if p.Silenced() {
		return nil
	}
	text := msg.Text
	if len(text) > channel.MaxMessageLength {
		text = text[:channel.MaxMessageLength]
	}

	target := s.sessions.ByName(session.MakeSafeName(msg.Recipient))
	if target == nil {
		// Offline: store as mail for their next login.
		err := s.store.Send(ctx, store.Mail{
			SenderID:   p.ID,
			SenderName: p.Name,
			TargetName: session.MakeSafeName(msg.Recipient),
			Body:       text,
			SentAt:     time.Now().Unix(),
		})
		if err != nil {
			s.enqueue(p, protocol.WriteNotification(fmt.Sprintf("%s is not online.", msg.Recipient)))
		}
		return nil
	}

	if target.PMPrivate() && !target.IsFriend(p.ID) {
		s.enqueue(p, protocol.WriteUserDMBlocked(target.Name))
		return nil
	}
	if target.Silenced() {
		s.enqueue(p, protocol.WriteTargetIsSilenced(target.Name))
		return nil
	}

	s.enqueue(target, protocol.WriteMessage(protocol.Message{
		Sender:    p.Name,
		Text:      text,
		Recipient: target.Name,
		SenderID:  p.ID,
	}))

	if away := target.AwayMessage(); away != "" {
		s.enqueue(p, protocol.WriteMessage(protocol.Message{
			Sender:    target.Name,
			Text:      away,
			Recipient: p.Name,
			SenderID:  target.ID,
		}))
	}
	return nil
}

func (s *Server) handleSetAwayMessage(_ context.Context, p *session.Player, d *protocol.Decoder) error {
	msg, err := protocol.DecodeMessageFrom(d)
	if err != nil {
		return err
	}
	p.SetAwayMessage(msg.Text)
	if msg.Text == "" {
		s.enqueue(p, protocol.WriteNotification("Away message cleared."))
	} else {
		s.enqueue(p, protocol.WriteNotification("Away message set."))
	}
	return nil
}

// ----------------------------------------------------------------------------
// Channels
// ----------------------------------------------------------------------------

func (s *Server) handleChannelJoin(_ context.Context, p *session.Player, d *protocol.Decoder) error {
	name, err := d.ReadString()
	if err != nil {
		return err
	}
	ch := s.resolveChannel(p, name)
	if ch == nil || !ch.Join(p) {
		s.enqueue(p, protocol.WriteChannelKick(name))
		return nil
	}
	s.enqueue(p, protocol.WriteChannelJoinSuccess(ch.DisplayName()))
	return nil
}

func (s *Server) handleChannelPart(_ context.Context, p *session.Player, d *protocol.Decoder) error {
	name, err := d.ReadString()
	if err != nil {
		return err
	}
	if ch := s.resolveChannel(p, name); ch != nil {
		ch.Part(p)
	}
	return nil
}

// ----------------------------------------------------------------------------
// Friends & Presence
// ----------------------------------------------------------------------------

func (s *Server) handleFriendAdd(ctx context.Context, p *session.Player, d *protocol.Decoder) error {
	id, err := d.ReadInt32()
	if err != nil {
		return err
	}
	p.AddFriend(id)
	if err := s.store.AddFriend(ctx, p.ID, id); err != nil {
		s.logger.Warn("persist friend add", "user_id", p.ID, "friend_id", id, "err", err)
	}
	return nil
}

func (s *Server) handleFriendRemove(ctx context.Context, p *session.Player, d *protocol.Decoder) error {
	id, err := d.ReadInt32()
	if err != nil {
		return err
	}
	p.RemoveFriend(id)
	if err := s.store.RemoveFriend(ctx, p.ID, id); err != nil {
		s.logger.Warn("persist friend remove", "user_id", p.ID, "friend_id", id, "err", err)
	}
	return nil
}

func (s *Server) handleUserStatsRequest(_ context.Context, p *session.Player, d *protocol.Decoder) error {
	ids, err := d.ReadIntList()
	if err != nil {
		return err
	}
	for _, id := range ids {
		other := s.sessions.ByID(id)
		if other == nil || other.ID == p.ID || other.Restricted() {
			continue
		}
		s.enqueue(p, protocol.WriteUserStats(other.StatsPacket()))
	}
	return nil
}

func (s *Server) handleUserPresenceRequest(_ context.Context, p *session.Player, d *protocol.Decoder) error {
	ids, err := d.ReadIntList()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if other := s.sessions.ByID(id); other != nil && !other.Restricted() {
			s.enqueue(p, protocol.WriteUserPresence(other.Presence()))
		}
	}
	return nil
}

func (s *Server) handleUserPresenceRequestAll(_ context.Context, p *session.Player, _ *protocol.Decoder) error {
	for _, other := range s.sessions.Snapshot() {
		if !other.Restricted() {
			s.enqueue(p, protocol.WriteUserPresence(other.Presence()))
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Spectating
// ----------------------------------------------------------------------------

func (s *Server) handleStartSpectating(_ context.Context, p *session.Player, d *protocol.Decoder) error {
	hostID, err := d.ReadInt32()
	if err != nil {
		return err
	}
	host := s.sessions.ByID(hostID)
	if host == nil {
		s.stopSpectating(p)
		return nil
	}
	s.startSpectating(p, host)
	return nil
}

func (s *Server) handleStopSpectating(_ context.Context, p *session.Player, _ *protocol.Decoder) error {
	s.stopSpectating(p)
	return nil
}

func (s *Server) handleSpectateFrames(_ context.Context, p *session.Player, d *protocol.Decoder) error {
	// Replay frames are an opaque relay; the codec never interprets
	// them.
	data := protocol.WriteSpectateFrames(d.ReadRest())
	for _, specID := range p.Spectators() {
		if spec := s.sessions.ByID(specID); spec != nil {
			s.enqueue(spec, data)
		}
	}
	return nil
}

func (s *Server) handleCantSpectate(_ context.Context, p *session.Player, _ *protocol.Decoder) error {
	hostID := p.Spectating()
	if hostID == 0 {
		return nil
	}
	host := s.sessions.ByID(hostID)
	if host == nil {
		return nil
	}
	data := protocol.WriteSpectatorCantSpectate(p.ID)
	s.enqueue(host, data)
	for _, fellowID := range host.Spectators() {
		if fellow := s.sessions.ByID(fellowID); fellow != nil && fellow.ID != p.ID {
			s.enqueue(fellow, data)
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Lobby
// ----------------------------------------------------------------------------

func (s *Server) handleJoinLobby(_ context.Context, p *session.Player, _ *protocol.Decoder) error {
	if lobby := s.channels.Get("#lobby"); lobby != nil {
		lobby.Join(p)
	}
	for _, m := range s.matches.All() {
		s.enqueue(p, protocol.WriteNewMatch(m.Snapshot(), false))
	}
	return nil
}

func (s *Server) handlePartLobby(_ context.Context, p *session.Player, _ *protocol.Decoder) error {
	if lobby := s.channels.Get("#lobby"); lobby != nil {
		lobby.Part(p)
	}
	return nil
}

// ----------------------------------------------------------------------------
// Matches
// ----------------------------------------------------------------------------

// currentMatch resolves the player's match, nil when not in one.
func (s *Server) currentMatch(p *session.Player) *match.Match {
	id := p.MatchID()
	if id == session.NoMatch {
		return nil
	}
	return s.matches.Get(id)
}

// sendToMatch enqueues data to every seated member.
func (s *Server) sendToMatch(m *match.Match, data []byte) {
	for _, id := range m.PlayerIDs() {
		if p := s.sessions.ByID(id); p != nil {
			s.enqueue(p, data)
		}
	}
}

func (s *Server) handleCreateMatch(_ context.Context, p *session.Player, d *protocol.Decoder) error {
	snap, err := protocol.DecodeMatchFrom(d)
	if err != nil {
		return err
	}

	m := match.New(snap.Name, snap.Password, p.ID, match.Beatmap{
		ID:   snap.MapID,
		MD5:  snap.MapMD5,
		Name: snap.MapName,
	}, snap.Mode, snap.Seed)

	if err := s.matches.Create(m); err != nil {
		s.enqueue(p, protocol.WriteNotification("No more matches available."))
		s.enqueue(p, protocol.WriteMatchJoinFail())
		return nil
	}
	s.metrics.activeMatches.Set(float64(s.matches.Count()))

	ch := channel.New(channel.MatchChannelName(m.ID), "Match chat.", 0, 0, false, true)
	s.channels.Add(ch)

	s.joinMatch(p, m, snap.Password)

	created := protocol.WriteNewMatch(m.Snapshot(), false)
	for _, lp := range s.lobbyPlayers() {
		if lp.ID != p.ID {
			s.enqueue(lp, created)
		}
	}
	return nil
}

func (s *Server) handleJoinMatch(_ context.Context, p *session.Player, d *protocol.Decoder) error {
	id, err := d.ReadInt32()
	if err != nil {
		return err
	}
	password, err := d.ReadString()
	if err != nil {
		return err
	}
	m := s.matches.Get(int16(id))
	if m == nil {
		s.enqueue(p, protocol.WriteMatchJoinFail())
		return nil
	}
	s.joinMatch(p, m, password)
	return nil
}

func (s *Server) handlePartMatch(_ context.Context, p *session.Player, _ *protocol.Decoder) error {
	s.leaveMatch(p)
	return nil
}

func (s *Server) handleMatchChangeSlot(_ context.Context, p *session.Player, d *protocol.Decoder) error {
	target, err := d.ReadInt32()
	if err != nil {
		return err
	}
	m := s.currentMatch(p)
	if m == nil {
		return nil
	}
	if err := m.ChangeSlot(p.ID, int(target)); err != nil {
		return nil
	}
	s.broadcastMatch(m)
	return nil
}

func (s *Server) handleMatchReady(_ context.Context, p *session.Player, _ *protocol.Decoder) error {
	if m := s.currentMatch(p); m != nil && m.Ready(p.ID) == nil {
		s.broadcastMatch(m)
	}
	return nil
}

func (s *Server) handleMatchNotReady(_ context.Context, p *session.Player, _ *protocol.Decoder) error {
	if m := s.currentMatch(p); m != nil && m.Unready(p.ID) == nil {
		s.broadcastMatch(m)
	}
	return nil
}

func (s *Server) handleMatchNoBeatmap(_ context.Context, p *session.Player, _ *protocol.Decoder) error {
	if m := s.currentMatch(p); m != nil && m.NoMap(p.ID) == nil {
		s.broadcastMatch(m)
	}
	return nil
}

func (s *Server) handleMatchHasBeatmap(_ context.Context, p *session.Player, _ *protocol.Decoder) error {
	if m := s.currentMatch(p); m != nil && m.HasMap(p.ID) == nil {
		s.broadcastMatch(m)
	}
	return nil
}

func (s *Server) handleMatchLock(_ context.Context, p *session.Player, d *protocol.Decoder) error {
	slot, err := d.ReadInt32()
	if err != nil {
		return err
	}
	m := s.currentMatch(p)
	if m == nil || !m.IsRef(p.ID) {
		return nil
	}

	kicked, finished := m.ToggleSlotLock(int(slot))
	if kicked != 0 {
		if kp := s.sessions.ByID(kicked); kp != nil {
			kp.SetMatchID(session.NoMatch)
			if ch := s.channels.Get(channel.MatchChannelName(m.ID)); ch != nil {
				ch.Part(kp)
				s.enqueue(kp, protocol.WriteChannelKick(ch.DisplayName()))
			}
			s.enqueue(kp, protocol.WriteMatchJoinFail())
		}
	}
	if finished {
		s.sendToMatch(m, protocol.WriteMatchComplete())
	}
	s.broadcastMatch(m)
	return nil
}

func (s *Server) handleMatchChangeSettings(ctx context.Context, p *session.Player, d *protocol.Decoder) error {
	snap, err := protocol.DecodeMatchFrom(d)
	if err != nil {
		return err
	}
	m := s.currentMatch(p)
	if m == nil || m.HostID() != p.ID {
		return nil
	}

	bm := match.Beatmap{ID: snap.MapID, MD5: snap.MapMD5, Name: snap.MapName}
	if snap.MapMD5 != m.Beatmap().MD5 && snap.MapID != -1 {
		// The host's client reports what it believes about the map;
		// the directory is authoritative when it knows the md5.
		if info, err := s.store.BeatmapByMD5(ctx, snap.MapMD5); err == nil {
			bm = match.Beatmap{ID: info.ID, MD5: info.MD5, Name: info.Name}
		}
	}

	err = m.ChangeSettings(match.Settings{
		Name:         snap.Name,
		Password:     snap.Password,
		Map:          bm,
		Mode:         snap.Mode,
		WinCondition: snap.WinCondition,
		TeamType:     snap.TeamType,
	})
	if err != nil {
		// A rejected snapshot must not apply any of its parts.
		s.enqueue(p, protocol.WriteNotification("Those settings cannot be applied right now."))
	} else if snap.Freemod != m.Freemod() {
		m.SetFreemod(snap.Freemod)
	}
	s.broadcastMatch(m)
	return nil
}

func (s *Server) handleMatchChangeMods(_ context.Context, p *session.Player, d *protocol.Decoder) error {
	v, err := d.ReadInt32()
	if err != nil {
		return err
	}
	m := s.currentMatch(p)
	if m == nil {
		return nil
	}
	if err := m.ChangeMods(p.ID, mods.Mods(uint32(v))); err != nil {
		return nil
	}
	s.broadcastMatch(m)
	return nil
}

func (s *Server) handleMatchChangeTeam(_ context.Context, p *session.Player, _ *protocol.Decoder) error {
	if m := s.currentMatch(p); m != nil && m.ChangeTeam(p.ID) == nil {
		s.broadcastMatch(m)
	}
	return nil
}

func (s *Server) handleMatchStart(_ context.Context, p *session.Player, _ *protocol.Decoder) error {
	m := s.currentMatch(p)
	if m == nil || m.HostID() != p.ID {
		return nil
	}
	// The client shows its own "not everyone is ready" dialog before
	// sending this, so unready stragglers are left behind.
	if err := m.Start(true); err != nil {
		s.enqueue(p, protocol.WriteNotification("The match could not be started."))
		return nil
	}
	s.sendToMatch(m, protocol.WriteMatchStart(m.Snapshot()))
	s.broadcastMatch(m)
	return nil
}

func (s *Server) handleMatchLoadComplete(_ context.Context, p *session.Player, _ *protocol.Decoder) error {
	m := s.currentMatch(p)
	if m == nil {
		return nil
	}
	all, err := m.PlayerLoaded(p.ID)
	if err != nil {
		return nil
	}
	if all {
		s.sendToMatch(m, protocol.WriteMatchAllPlayersLoaded())
	}
	return nil
}

func (s *Server) handleMatchScoreUpdate(_ context.Context, p *session.Player, d *protocol.Decoder) error {
	m := s.currentMatch(p)
	if m == nil {
		return nil
	}
	frame := d.ReadRest()
	slot := m.SlotOf(p.ID)
	if slot == -1 {
		return nil
	}
	// The score frame's slot byte is client-relative; stamp the
	// sender's real slot before relaying.
	if len(frame) > 4 {
		frame[4] = byte(slot)
	}
	data := protocol.WriteMatchScoreUpdate(frame)
	for _, id := range m.PlayerIDs() {
		if id == p.ID {
			continue
		}
		if member := s.sessions.ByID(id); member != nil {
			s.enqueue(member, data)
		}
	}
	return nil
}

func (s *Server) handleMatchFailed(_ context.Context, p *session.Player, _ *protocol.Decoder) error {
	m := s.currentMatch(p)
	if m == nil {
		return nil
	}
	slot := m.SlotOf(p.ID)
	if slot == -1 {
		return nil
	}
	s.sendToMatch(m, protocol.WriteMatchPlayerFailed(int32(slot)))
	return nil
}

func (s *Server) handleMatchComplete(_ context.Context, p *session.Player, _ *protocol.Decoder) error {
	m := s.currentMatch(p)
	if m == nil {
		return nil
	}
	finished, err := m.Complete(p.ID)
	if err != nil {
		return nil
	}
	if finished {
		s.sendToMatch(m, protocol.WriteMatchComplete())
		s.broadcastMatch(m)
	}
	return nil
}

func (s *Server) handleMatchSkipRequest(_ context.Context, p *session.Player, _ *protocol.Decoder) error {
	m := s.currentMatch(p)
	if m == nil {
		return nil
	}
	all, err := m.PlayerSkipped(p.ID)
	if err != nil {
		return nil
	}
	if slot := m.SlotOf(p.ID); slot != -1 {
		s.sendToMatch(m, protocol.WriteMatchPlayerSkipped(int32(slot)))
	}
	if all {
		s.sendToMatch(m, protocol.WriteMatchSkip())
	}
	return nil
}

func (s *Server) handleMatchTransferHost(_ context.Context, p *session.Player, d *protocol.Decoder) error {
	slot, err := d.ReadInt32()
	if err != nil {
		return err
	}
	m := s.currentMatch(p)
	if m == nil || m.HostID() != p.ID {
		return nil
	}

	snap := m.Snapshot()
	if slot < 0 || slot >= protocol.MaxMatchSlots || !snap.SlotStatuses[slot].HasPlayer() {
		return nil
	}
	newHostID := snap.SlotPlayerIDs[slot]
	if err := m.SetHost(newHostID); err != nil {
		return nil
	}
	if newHost := s.sessions.ByID(newHostID); newHost != nil {
		s.enqueue(newHost, protocol.WriteMatchTransferHost())
	}
	s.broadcastMatch(m)
	return nil
}

func (s *Server) handleMatchChangePassword(_ context.Context, p *session.Player, d *protocol.Decoder) error {
	snap, err := protocol.DecodeMatchFrom(d)
	if err != nil {
		return err
	}
	m := s.currentMatch(p)
	if m == nil || m.HostID() != p.ID {
		return nil
	}
	m.SetPassword(snap.Password)
	s.sendToMatch(m, protocol.WriteMatchChangePassword(snap.Password))
	s.broadcastMatch(m)
	return nil
}

func (s *Server) handleMatchInvite(_ context.Context, p *session.Player, d *protocol.Decoder) error {
	targetID, err := d.ReadInt32()
	if err != nil {
		return err
	}
	m := s.currentMatch(p)
	if m == nil {
		return nil
	}
	target := s.sessions.ByID(targetID)
	if target == nil {
		s.enqueue(p, protocol.WriteNotification("That player is not online."))
		return nil
	}
	if target.PMPrivate() && !target.IsFriend(p.ID) {
		s.enqueue(p, protocol.WriteUserDMBlocked(target.Name))
		return nil
	}

	link := fmt.Sprintf("osump://%d/%s", m.ID, m.Password())
	s.enqueue(target, protocol.WriteMatchInvite(protocol.Message{
		Sender:    p.Name,
		Text:      fmt.Sprintf("Come join my game: [%s %s].", link, m.Name()),
		Recipient: target.Name,
		SenderID:  p.ID,
	}))
	return nil
}
