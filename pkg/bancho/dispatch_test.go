package bancho

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/bancho-go/bancho/pkg/privileges"
	"github.com/bancho-go/bancho/pkg/protocol"
	"github.com/bancho-go/bancho/pkg/session"
	"github.com/bancho-go/bancho/pkg/store"
)

// clientPacket frames a payload under a client opcode, little-endian
// header as the client writes it.
func clientPacket(id protocol.ClientPacketID, payload []byte) []byte {
	n := uint32(len(payload))
	out := []byte{
		byte(id), byte(id >> 8),
		0,
		byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24),
	}
	return append(out, payload...)
}

// loggedInPlayer logs the seeded account in and returns its session.
func loggedInPlayer(t *testing.T, s *Server) (*session.Player, string) {
	t.Helper()
	token, _ := s.Login(context.Background(), loginPayload("Test Player", testPasswordMD5()))
	if token == NoToken {
		t.Fatal("login failed")
	}
	p := s.sessions.ByToken(token)
	if p == nil {
		t.Fatal("no session for token")
	}
	return p, token
}

func TestHandleUnknownToken(t *testing.T) {
	s, _ := newTestServer(t)

	body := s.Handle(context.Background(), "bogus-token", nil)
	pkts := readPackets(t, body)
	found := false
	for _, pkt := range pkts {
		if protocol.ServerPacketID(pkt.ID) == protocol.ServerRestart {
			found = true
		}
	}
	if !found {
		t.Fatal("unknown token did not produce a restart packet")
	}
}

func TestHandleDrainsQueueFIFO(t *testing.T) {
	s, _ := newTestServer(t)
	p, token := loggedInPlayer(t, s)

	first := protocol.WriteNotification("first")
	second := protocol.WriteNotification("second")
	s.enqueue(p, first)
	s.enqueue(p, second)

	body := s.Handle(context.Background(), token, nil)
	pkts := readPackets(t, body)
	if len(pkts) != 2 {
		t.Fatalf("drained %d packets, want 2", len(pkts))
	}
	msg1, _ := protocol.NewDecoder(pkts[0].Payload).ReadString()
	msg2, _ := protocol.NewDecoder(pkts[1].Payload).ReadString()
	if msg1 != "first" || msg2 != "second" {
		t.Fatalf("order = %q, %q", msg1, msg2)
	}

	// The queue is now empty; an empty poll yields an empty body.
	if extra := s.Handle(context.Background(), token, nil); len(extra) != 0 {
		t.Fatalf("second poll returned %d bytes", len(extra))
	}
}

func TestHandleUnknownOpcodeSkipped(t *testing.T) {
	s, _ := newTestServer(t)
	_, token := loggedInPlayer(t, s)

	batch := clientPacket(protocol.ClientPacketID(9999), nil)
	batch = append(batch, clientPacket(protocol.ClientPing, nil)...)

	body := s.Handle(context.Background(), token, batch)
	pkts := readPackets(t, body)
	if len(pkts) != 1 || protocol.ServerPacketID(pkts[0].ID) != protocol.ServerPong {
		t.Fatalf("expected lone pong after unknown opcode, got %d packets", len(pkts))
	}
}

func TestHandleMalformedBatchAborts(t *testing.T) {
	s, _ := newTestServer(t)
	p, token := loggedInPlayer(t, s)

	// First packet fine, second declares a payload that overruns.
	batch := clientPacket(protocol.ClientPing, nil)
	batch = append(batch, []byte{4, 0, 0, 255, 0, 0, 0, 1, 2}...)
	// A third well-formed packet after the overrun must not be
	// processed.
	batch = append(batch, clientPacket(protocol.ClientPing, nil)...)

	body := s.Handle(context.Background(), token, batch)
	pkts := readPackets(t, body)
	if len(pkts) != 1 {
		t.Fatalf("processed %d packets, want 1 (batch aborted)", len(pkts))
	}

	// The session survives the malformed batch.
	if s.sessions.ByToken(token) != p {
		t.Fatal("session dropped after malformed batch")
	}
}

func TestHandleStatusUpdateBroadcast(t *testing.T) {
	s, mem := newTestServer(t)
	p1, token1 := loggedInPlayer(t, s)
	_ = p1

	// Second account to observe the broadcast.
	seedSecondAccount(t, mem, 10, "Observer")
	token2, _ := s.Login(context.Background(), loginPayload("Observer", testPasswordMD5()))
	if token2 == NoToken {
		t.Fatal("observer login failed")
	}
	p2 := s.sessions.ByToken(token2)
	p2.Dequeue()

	// p1 changes action; p2 must receive updated stats.
	e := protocol.NewEncoder()
	e.WriteByte(byte(protocol.ActionPlaying))
	e.WriteString("playing a map")
	e.WriteString("mapmd5mapmd5")
	e.WriteUint32(0)
	e.WriteByte(0)
	e.WriteInt32(42)
	s.Handle(context.Background(), token1, clientPacket(protocol.ClientChangeAction, e.Bytes()))

	var sawStats bool
	for _, pkt := range readPackets(t, p2.Dequeue()) {
		if protocol.ServerPacketID(pkt.ID) == protocol.ServerUserStats {
			sawStats = true
		}
	}
	if !sawStats {
		t.Fatal("status change did not reach the other player")
	}
}

func TestLogoutCascades(t *testing.T) {
	s, _ := newTestServer(t)
	p, token := loggedInPlayer(t, s)

	// Seat the player in a match with its channel.
	e := protocol.NewEncoder()
	snap := protocol.MatchSnapshot{Name: "my match", Mode: protocol.ModeOsu}
	snap.EncodeTo(e, true)
	s.Handle(context.Background(), token, clientPacket(protocol.ClientCreateMatch, e.Bytes()))

	if p.MatchID() == session.NoMatch {
		t.Fatal("create match did not seat the host")
	}
	if s.matches.Count() != 1 {
		t.Fatalf("match count = %d", s.matches.Count())
	}

	s.Logout(p)

	if s.sessions.Count() != 0 {
		t.Fatal("session survived logout")
	}
	if s.matches.Count() != 0 {
		t.Fatal("empty match not disposed on logout")
	}
	if p.MatchID() != session.NoMatch {
		t.Fatal("match reference not cleared")
	}
	// Double logout is safe.
	s.Logout(p)
}

func seedSecondAccount(t *testing.T, mem *store.Memory, id int32, name string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPasswordMD5()), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	mem.AddUser(store.User{
		ID:           id,
		Name:         name,
		SafeName:     session.MakeSafeName(name),
		PasswordHash: string(hash),
		Privileges:   privileges.Unrestricted | privileges.Verified,
	})
}
