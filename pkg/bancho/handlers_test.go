package bancho

import (
	"context"
	"testing"
	"time"

	"github.com/bancho-go/bancho/internal/config"
	"github.com/bancho-go/bancho/pkg/channel"
	"github.com/bancho-go/bancho/pkg/protocol"
	"github.com/bancho-go/bancho/pkg/session"
	"github.com/bancho-go/bancho/pkg/store"
)

// twoPlayers logs in the seeded account plus a second one.
func twoPlayers(t *testing.T, s *Server) (p1, p2 *session.Player, token1, token2 string) {
	t.Helper()
	p1, token1 = loggedInPlayer(t, s)
	token2, _ = s.Login(context.Background(), loginPayload("Observer", testPasswordMD5()))
	if token2 == NoToken {
		t.Fatal("observer login failed")
	}
	p2 = s.sessions.ByToken(token2)
	p1.Dequeue()
	p2.Dequeue()
	return p1, p2, token1, token2
}

func encodeString(s string) []byte {
	e := protocol.NewEncoder()
	e.WriteString(s)
	return e.Bytes()
}

func encodeMessage(m protocol.Message) []byte {
	e := protocol.NewEncoder()
	m.EncodeTo(e)
	return e.Bytes()
}

func hasPacket(t *testing.T, data []byte, want protocol.ServerPacketID) bool {
	t.Helper()
	for _, pkt := range readPackets(t, data) {
		if protocol.ServerPacketID(pkt.ID) == want {
			return true
		}
	}
	return false
}

func TestPublicMessageFanOut(t *testing.T) {
	s, mem := newTestServer(t)
	seedSecondAccount(t, mem, 10, "Observer")
	p1, p2, token1, _ := twoPlayers(t, s)

	// Both players auto-joined #osu at login.
	s.Handle(context.Background(), token1, clientPacket(protocol.ClientSendPublicMessage,
		encodeMessage(protocol.Message{Recipient: "#osu", Text: "hello world"})))

	var got protocol.Message
	found := false
	for _, pkt := range readPackets(t, p2.Dequeue()) {
		if protocol.ServerPacketID(pkt.ID) == protocol.ServerSendMessage {
			m, err := protocol.DecodeMessageFrom(protocol.NewDecoder(pkt.Payload))
			if err != nil {
				t.Fatal(err)
			}
			got = m
			found = true
		}
	}
	if !found {
		t.Fatal("channel message did not reach the other member")
	}
	if got.Text != "hello world" || got.Recipient != "#osu" || got.SenderID != p1.ID {
		t.Fatalf("message = %+v", got)
	}
	// The sender does not echo.
	if hasPacket(t, p1.Dequeue(), protocol.ServerSendMessage) {
		t.Fatal("sender received their own message")
	}
}

func TestPrivateMessageAndAway(t *testing.T) {
	s, mem := newTestServer(t)
	seedSecondAccount(t, mem, 10, "Observer")
	p1, p2, token1, token2 := twoPlayers(t, s)

	// p2 sets an away message.
	s.Handle(context.Background(), token2, clientPacket(protocol.ClientSetAwayMessage,
		encodeMessage(protocol.Message{Text: "brb food"})))
	p2.Dequeue()

	// p1 messages p2: delivered, and p1 gets the away auto-reply.
	s.Handle(context.Background(), token1, clientPacket(protocol.ClientSendPrivateMessage,
		encodeMessage(protocol.Message{Recipient: "Observer", Text: "hi"})))

	if !hasPacket(t, p2.Dequeue(), protocol.ServerSendMessage) {
		t.Fatal("private message not delivered")
	}
	var away bool
	for _, pkt := range readPackets(t, p1.Dequeue()) {
		if protocol.ServerPacketID(pkt.ID) == protocol.ServerSendMessage {
			m, _ := protocol.DecodeMessageFrom(protocol.NewDecoder(pkt.Payload))
			if m.Text == "brb food" {
				away = true
			}
		}
	}
	if !away {
		t.Fatal("away auto-reply missing")
	}
}

func TestPrivateMessageBlocked(t *testing.T) {
	s, mem := newTestServer(t)
	seedSecondAccount(t, mem, 10, "Observer")
	p1, p2, token1, _ := twoPlayers(t, s)

	p2.SetPMPrivate(true)
	s.Handle(context.Background(), token1, clientPacket(protocol.ClientSendPrivateMessage,
		encodeMessage(protocol.Message{Recipient: "Observer", Text: "hi"})))

	if !hasPacket(t, p1.Dequeue(), protocol.ServerUserDMBlocked) {
		t.Fatal("blocked DM did not notify the sender")
	}
	if hasPacket(t, p2.Dequeue(), protocol.ServerSendMessage) {
		t.Fatal("blocked DM was delivered")
	}

	// Friends bypass the block.
	p2.AddFriend(p1.ID)
	s.Handle(context.Background(), token1, clientPacket(protocol.ClientSendPrivateMessage,
		encodeMessage(protocol.Message{Recipient: "Observer", Text: "hi again"})))
	if !hasPacket(t, p2.Dequeue(), protocol.ServerSendMessage) {
		t.Fatal("friend's DM blocked")
	}
}

func TestPrivateMessageOfflineMail(t *testing.T) {
	s, mem := newTestServer(t)
	seedSecondAccount(t, mem, 10, "Observer")
	_, token1 := loggedInPlayer(t, s)

	s.Handle(context.Background(), token1, clientPacket(protocol.ClientSendPrivateMessage,
		encodeMessage(protocol.Message{Recipient: "Observer", Text: "read this later"})))

	mail, err := mem.Unread(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(mail) != 1 || mail[0].Body != "read this later" {
		t.Fatalf("mail = %+v", mail)
	}

	// The recipient sees it in their login bootstrap.
	token2, body := s.Login(context.Background(), loginPayload("Observer", testPasswordMD5()))
	if token2 == NoToken {
		t.Fatal("login failed")
	}
	if !hasPacket(t, body, protocol.ServerSendMessage) {
		t.Fatal("offline mail missing from bootstrap")
	}
	// And it is not delivered twice.
	mail, _ = mem.Unread(context.Background(), 10)
	if len(mail) != 0 {
		t.Fatal("mail not marked read after delivery")
	}
}

func TestChannelJoinPart(t *testing.T) {
	s, _ := newTestServer(t)
	p, token := loggedInPlayer(t, s)
	p.Dequeue()

	s.Handle(context.Background(), token, clientPacket(protocol.ClientChannelJoin, encodeString("#lobby")))
	if !p.InChannel("#lobby") {
		t.Fatal("join did not register")
	}

	// Joining a nonexistent channel kicks.
	body := s.Handle(context.Background(), token, clientPacket(protocol.ClientChannelJoin, encodeString("#secret")))
	if !hasPacket(t, body, protocol.ServerChannelKick) {
		t.Fatal("unknown channel join did not kick")
	}

	s.Handle(context.Background(), token, clientPacket(protocol.ClientChannelPart, encodeString("#lobby")))
	if p.InChannel("#lobby") {
		t.Fatal("part did not register")
	}
}

func TestSpectateFlow(t *testing.T) {
	s, mem := newTestServer(t)
	seedSecondAccount(t, mem, 10, "Observer")
	host, spec, hostToken, specToken := twoPlayers(t, s)

	// Observer starts spectating the host.
	e := protocol.NewEncoder()
	e.WriteInt32(host.ID)
	s.Handle(context.Background(), specToken, clientPacket(protocol.ClientStartSpectating, e.Bytes()))

	if spec.Spectating() != host.ID {
		t.Fatal("spectating link not set")
	}
	if !hasPacket(t, host.Dequeue(), protocol.ServerSpectatorJoined) {
		t.Fatal("host not notified of spectator")
	}
	if s.channels.Get(channel.SpectatorChannelName(host.ID)) == nil {
		t.Fatal("spectator channel not created")
	}

	// Host's frames relay to the spectator.
	frames := []byte{1, 2, 3, 4, 5}
	s.Handle(context.Background(), hostToken, clientPacket(protocol.ClientSpectateFrames, frames))
	var relayed bool
	for _, pkt := range readPackets(t, spec.Dequeue()) {
		if protocol.ServerPacketID(pkt.ID) == protocol.ServerSpectateFrames {
			relayed = true
			if string(pkt.Payload) != string(frames) {
				t.Fatalf("frames mangled: %v", pkt.Payload)
			}
		}
	}
	if !relayed {
		t.Fatal("frames not relayed")
	}

	// Stop: link cleared, instanced channel destroyed with its last
	// spectator.
	s.Handle(context.Background(), specToken, clientPacket(protocol.ClientStopSpectating, nil))
	if spec.Spectating() != 0 {
		t.Fatal("spectating link not cleared")
	}
	if s.channels.Get(channel.SpectatorChannelName(host.ID)) != nil {
		t.Fatal("spectator channel not destroyed")
	}
	if !hasPacket(t, host.Dequeue(), protocol.ServerSpectatorLeft) {
		t.Fatal("host not notified of departure")
	}
}

func TestMatchJoinFlow(t *testing.T) {
	s, mem := newTestServer(t)
	seedSecondAccount(t, mem, 10, "Observer")
	host, joiner, hostToken, joinerToken := twoPlayers(t, s)

	// Host creates a password-protected match.
	e := protocol.NewEncoder()
	snap := protocol.MatchSnapshot{Name: "scrim room", Password: "sekrit", Mode: protocol.ModeOsu}
	snap.EncodeTo(e, true)
	body := s.Handle(context.Background(), hostToken, clientPacket(protocol.ClientCreateMatch, e.Bytes()))
	if !hasPacket(t, body, protocol.ServerMatchJoinSuccess) {
		t.Fatal("host join-success missing")
	}
	m := s.matches.Get(host.MatchID())
	if m == nil {
		t.Fatal("match not registered")
	}

	// Wrong password fails.
	e = protocol.NewEncoder()
	e.WriteInt32(int32(m.ID))
	e.WriteString("wrong")
	body = s.Handle(context.Background(), joinerToken, clientPacket(protocol.ClientJoinMatch, e.Bytes()))
	if !hasPacket(t, body, protocol.ServerMatchJoinFail) {
		t.Fatal("wrong password did not fail")
	}

	// Right password seats the joiner and notifies the host.
	e = protocol.NewEncoder()
	e.WriteInt32(int32(m.ID))
	e.WriteString("sekrit")
	body = s.Handle(context.Background(), joinerToken, clientPacket(protocol.ClientJoinMatch, e.Bytes()))
	if !hasPacket(t, body, protocol.ServerMatchJoinSuccess) {
		t.Fatal("join with password failed")
	}
	if joiner.MatchID() != m.ID {
		t.Fatal("joiner match reference not set")
	}
	if !hasPacket(t, host.Dequeue(), protocol.ServerUpdateMatch) {
		t.Fatal("host did not get the updated snapshot")
	}

	// Parting the last player disposes the match and its channel.
	s.Handle(context.Background(), joinerToken, clientPacket(protocol.ClientPartMatch, nil))
	s.Handle(context.Background(), hostToken, clientPacket(protocol.ClientPartMatch, nil))
	if s.matches.Get(m.ID) != nil {
		t.Fatal("empty match not disposed")
	}
	if s.channels.Get(channel.MatchChannelName(m.ID)) != nil {
		t.Fatal("match channel not destroyed")
	}
}

func TestMatchHostLeaveTransfersHost(t *testing.T) {
	s, mem := newTestServer(t)
	seedSecondAccount(t, mem, 10, "Observer")
	host, joiner, hostToken, joinerToken := twoPlayers(t, s)

	e := protocol.NewEncoder()
	snap := protocol.MatchSnapshot{Name: "room", Mode: protocol.ModeOsu}
	snap.EncodeTo(e, true)
	s.Handle(context.Background(), hostToken, clientPacket(protocol.ClientCreateMatch, e.Bytes()))
	m := s.matches.Get(host.MatchID())

	e = protocol.NewEncoder()
	e.WriteInt32(int32(m.ID))
	e.WriteString("")
	s.Handle(context.Background(), joinerToken, clientPacket(protocol.ClientJoinMatch, e.Bytes()))
	joiner.Dequeue()

	s.Handle(context.Background(), hostToken, clientPacket(protocol.ClientPartMatch, nil))

	if m.HostID() != joiner.ID {
		t.Fatalf("host = %d, want %d", m.HostID(), joiner.ID)
	}
	if !hasPacket(t, joiner.Dequeue(), protocol.ServerMatchTransferHost) {
		t.Fatal("new host not notified")
	}
}

func TestMatchInvite(t *testing.T) {
	s, mem := newTestServer(t)
	seedSecondAccount(t, mem, 10, "Observer")
	host, target, hostToken, _ := twoPlayers(t, s)

	e := protocol.NewEncoder()
	snap := protocol.MatchSnapshot{Name: "room", Mode: protocol.ModeOsu}
	snap.EncodeTo(e, true)
	s.Handle(context.Background(), hostToken, clientPacket(protocol.ClientCreateMatch, e.Bytes()))
	_ = host

	e = protocol.NewEncoder()
	e.WriteInt32(target.ID)
	s.Handle(context.Background(), hostToken, clientPacket(protocol.ClientMatchInvite, e.Bytes()))

	if !hasPacket(t, target.Dequeue(), protocol.ServerMatchInvite) {
		t.Fatal("invite not delivered")
	}
}

func TestLivenessSweep(t *testing.T) {
	s, _ := newTestServer(t)
	s.cfg.LivenessWindowSeconds = 1
	p, _ := loggedInPlayer(t, s)

	// Fresh sessions survive the sweep.
	s.sweepStale()
	if s.sessions.ByID(p.ID) == nil {
		t.Fatal("fresh session swept")
	}

	time.Sleep(1100 * time.Millisecond)
	s.sweepStale()
	if s.sessions.ByID(p.ID) != nil {
		t.Fatal("silent session not swept")
	}
}

func TestConfigChannelsCreated(t *testing.T) {
	cfg := config.Default()
	s := New(cfg, store.NewMemory(), nil)
	for _, cc := range cfg.Channels {
		if s.channels.Get(cc.Name) == nil {
			t.Errorf("configured channel %s missing", cc.Name)
		}
	}
}

func TestSilencedPlayerMuted(t *testing.T) {
	s, mem := newTestServer(t)
	seedSecondAccount(t, mem, 10, "Observer")
	p1, p2, token1, token2 := twoPlayers(t, s)

	p1.SetSilenceEnd(time.Now().Unix() + 60)

	s.Handle(context.Background(), token1, clientPacket(protocol.ClientSendPublicMessage,
		encodeMessage(protocol.Message{Recipient: "#osu", Text: "muted"})))
	if hasPacket(t, p2.Dequeue(), protocol.ServerSendMessage) {
		t.Fatal("silenced player's channel message was delivered")
	}

	s.Handle(context.Background(), token1, clientPacket(protocol.ClientSendPrivateMessage,
		encodeMessage(protocol.Message{Recipient: p2.Name, Text: "muted"})))
	if hasPacket(t, p2.Dequeue(), protocol.ServerSendMessage) {
		t.Fatal("silenced player's DM was delivered")
	}

	// DMs aimed at a silenced target bounce with an explanation.
	s.Handle(context.Background(), token2, clientPacket(protocol.ClientSendPrivateMessage,
		encodeMessage(protocol.Message{Recipient: p1.Name, Text: "hello"})))
	if !hasPacket(t, p2.Dequeue(), protocol.ServerTargetIsSilenced) {
		t.Fatal("expected target-is-silenced reply")
	}
}

func TestRejectedSettingsLeaveFreemodUntouched(t *testing.T) {
	s, _ := newTestServer(t)
	host, hostToken := loggedInPlayer(t, s)
	host.Dequeue()

	e := protocol.NewEncoder()
	snap := protocol.MatchSnapshot{Name: "scrim room", Mode: protocol.ModeOsu}
	snap.EncodeTo(e, true)
	s.Handle(context.Background(), hostToken, clientPacket(protocol.ClientCreateMatch, e.Bytes()))
	m := s.matches.Get(host.MatchID())
	if m == nil {
		t.Fatal("match not registered")
	}
	if err := m.StartScrim(3); err != nil {
		t.Fatal(err)
	}

	// A snapshot bundling a mid-scrim team change with a freemod flip
	// must be rejected whole.
	snap = m.Snapshot()
	snap.TeamType = protocol.TeamTypeTeamVs
	snap.Freemod = true
	e = protocol.NewEncoder()
	snap.EncodeTo(e, true)
	s.Handle(context.Background(), hostToken, clientPacket(protocol.ClientMatchChangeSettings, e.Bytes()))

	if m.Freemod() {
		t.Fatal("freemod applied from a rejected snapshot")
	}
	if m.TeamType() != protocol.TeamTypeHeadToHead {
		t.Fatalf("team type = %v, want head-to-head", m.TeamType())
	}
}

func TestFriendsPersistAcrossRelogin(t *testing.T) {
	s, mem := newTestServer(t)
	seedSecondAccount(t, mem, 10, "Observer")
	p1, _, token1, _ := twoPlayers(t, s)

	e := protocol.NewEncoder()
	e.WriteInt32(10)
	s.Handle(context.Background(), token1, clientPacket(protocol.ClientFriendAdd, e.Bytes()))
	if !p1.IsFriend(10) {
		t.Fatal("friend not added to session")
	}

	s.Logout(p1)
	token1, body := s.Login(context.Background(), loginPayload("Test Player", testPasswordMD5()))
	if token1 == NoToken {
		t.Fatal("relogin failed")
	}
	p1 = s.sessions.ByToken(token1)
	if !p1.IsFriend(10) {
		t.Fatal("friends list not restored at login")
	}

	// The login stream carries the persisted list.
	found := false
	for _, pkt := range readPackets(t, body) {
		if protocol.ServerPacketID(pkt.ID) != protocol.ServerFriendsList {
			continue
		}
		ids, err := protocol.NewDecoder(pkt.Payload).ReadIntList()
		if err != nil {
			t.Fatal(err)
		}
		for _, id := range ids {
			if id == 10 {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("friends list packet missing the stored friend")
	}

	// Removal is persisted too.
	e = protocol.NewEncoder()
	e.WriteInt32(10)
	s.Handle(context.Background(), token1, clientPacket(protocol.ClientFriendRemove, e.Bytes()))
	ids, err := mem.Friends(context.Background(), p1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Fatalf("stored friends after removal = %v, want none", ids)
	}
}

func TestMatchLockHostSlotIsNoOp(t *testing.T) {
	s, _ := newTestServer(t)
	host, hostToken := loggedInPlayer(t, s)
	host.Dequeue()

	e := protocol.NewEncoder()
	snap := protocol.MatchSnapshot{Name: "room", Mode: protocol.ModeOsu}
	snap.EncodeTo(e, true)
	s.Handle(context.Background(), hostToken, clientPacket(protocol.ClientCreateMatch, e.Bytes()))
	m := s.matches.Get(host.MatchID())
	if m == nil {
		t.Fatal("match not registered")
	}

	// Locking the host's own occupied slot must leave the host seated.
	e = protocol.NewEncoder()
	e.WriteInt32(int32(m.SlotOf(host.ID)))
	s.Handle(context.Background(), hostToken, clientPacket(protocol.ClientMatchLock, e.Bytes()))

	if host.MatchID() != m.ID {
		t.Fatal("host lost their match reference")
	}
	if m.SlotOf(host.ID) == -1 {
		t.Fatal("host lost their slot")
	}
	if ch := s.channels.Get(channel.MatchChannelName(m.ID)); ch == nil || !ch.HasMember(host.ID) {
		t.Fatal("host lost the match channel")
	}
}
