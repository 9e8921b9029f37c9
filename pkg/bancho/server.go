// Package bancho is the protocol engine's top layer: it owns the
// session, channel, and match registries, runs the login pipeline, and
// dispatches decoded client packets to their handlers.
package bancho

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/bancho-go/bancho/internal/config"
	"github.com/bancho-go/bancho/pkg/channel"
	"github.com/bancho-go/bancho/pkg/match"
	"github.com/bancho-go/bancho/pkg/privileges"
	"github.com/bancho-go/bancho/pkg/protocol"
	"github.com/bancho-go/bancho/pkg/session"
	"github.com/bancho-go/bancho/pkg/store"
)

// tracerName identifies the server's spans in the global provider.
const tracerName = "bancho"

// Server owns all server-wide shared state. Registries guard their own
// internals; the server never holds one registry's lock while calling
// into another's blocking I/O.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    store.Store
	sessions *session.Registry
	channels *channel.Registry
	matches  *match.Registry
	metrics  *metrics
	tracer   trace.Tracer

	// verifyCache remembers bcrypt verifications for this process's
	// lifetime so repeat logins skip the slow hash.
	verifyMu    sync.Mutex
	verifyCache map[string]string // bcrypt digest -> client md5

	handlers map[protocol.ClientPacketID]handlerFunc
}

// New assembles a server from its collaborators. Permanent channels are
// created from the configuration immediately.
func New(cfg *config.Config, st store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:         cfg,
		logger:      logger.With("component", "bancho"),
		store:       st,
		sessions:    session.NewRegistry(logger),
		channels:    channel.NewRegistry(logger),
		matches:     match.NewRegistry(logger),
		metrics:     serverMetrics(),
		tracer:      otel.Tracer(tracerName),
		verifyCache: make(map[string]string),
	}
	s.handlers = s.buildHandlerTable()

	for _, cc := range cfg.Channels {
		s.channels.Add(channel.New(
			cc.Name, cc.Topic,
			privileges.Privileges(cc.ReadPriv), privileges.Privileges(cc.WritePriv),
			cc.AutoJoin, false,
		))
	}
	return s
}

// Sessions exposes the session registry to transports.
func (s *Server) Sessions() *session.Registry { return s.sessions }

// Run blocks until ctx is cancelled, sweeping out silent sessions
// periodically.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.LivenessWindow() / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepStale()
		}
	}
}

// sweepStale forcibly logs out every player silent past the liveness
// window.
func (s *Server) sweepStale() {
	cutoff := time.Now().Add(-s.cfg.LivenessWindow())
	for _, p := range s.sessions.Stale(cutoff) {
		s.logger.Info("sweeping silent session", "user_id", p.ID, "name", p.Name)
		s.metrics.evictionsTotal.Inc()
		s.Logout(p)
	}
}

// Logout tears a session down: match seat, spectator links, channel
// memberships, registry indices, and the departure broadcast, in that
// order. Safe to call twice; all steps are idempotent.
func (s *Server) Logout(p *session.Player) {
	s.leaveMatch(p)
	s.stopSpectating(p)

	// Detach anyone watching this player.
	for _, specID := range p.Spectators() {
		if spec := s.sessions.ByID(specID); spec != nil {
			s.stopSpectating(spec)
		}
	}

	s.channels.PartAll(p)

	if !s.sessions.Remove(p) {
		return
	}
	s.metrics.onlinePlayers.Set(float64(s.sessions.Count()))

	if !p.Restricted() {
		s.sessions.Broadcast(protocol.WriteLogout(p.ID), p.ID)
	}
	s.logger.Info("logout", "user_id", p.ID, "name", p.Name)
}

// enqueue appends data to the player's outbound queue and counts it.
func (s *Server) enqueue(p *session.Player, data []byte) {
	p.Enqueue(data)
	s.metrics.queuedBytes.Add(float64(len(data)))
}

// broadcastPresence announces a player's presence and stats to everyone
// else. Restricted players are invisible to the public.
func (s *Server) broadcastPresence(p *session.Player) {
	if p.Restricted() {
		return
	}
	data := append(protocol.WriteUserPresence(p.Presence()), protocol.WriteUserStats(p.StatsPacket())...)
	s.sessions.Broadcast(data, p.ID)
}

// lobbyPlayers returns the members of #lobby, the listing audience for
// match snapshots.
func (s *Server) lobbyPlayers() []*session.Player {
	lobby := s.channels.Get("#lobby")
	if lobby == nil {
		return nil
	}
	return lobby.Members()
}

// broadcastMatch sends the match snapshot to its members (with the
// password) and to the lobby listing (password hidden).
func (s *Server) broadcastMatch(m *match.Match) {
	snap := m.Snapshot()

	withPW := protocol.WriteUpdateMatch(snap, true)
	for _, id := range m.PlayerIDs() {
		if p := s.sessions.ByID(id); p != nil {
			s.enqueue(p, withPW)
		}
	}

	withoutPW := protocol.WriteUpdateMatch(snap, false)
	for _, p := range s.lobbyPlayers() {
		if p.MatchID() == m.ID {
			continue
		}
		s.enqueue(p, withoutPW)
	}
}

// joinMatch seats the player, joins them to the match channel, and
// notifies everyone affected. Failures surface as a join-fail packet on
// the requesting player only.
func (s *Server) joinMatch(p *session.Player, m *match.Match, password string) {
	// A player holds at most one seat across all matches.
	if p.MatchID() != session.NoMatch {
		s.leaveMatch(p)
	}
	if _, err := m.Join(p.ID, password); err != nil {
		s.enqueue(p, protocol.WriteMatchJoinFail())
		return
	}
	p.SetMatchID(m.ID)

	ch := s.channels.Get(channel.MatchChannelName(m.ID))
	if ch != nil {
		ch.Join(p)
		s.enqueue(p, protocol.WriteChannelJoinSuccess(ch.DisplayName()))
	}

	s.enqueue(p, protocol.WriteMatchJoinSuccess(m.Snapshot()))
	s.broadcastMatch(m)
}

// leaveMatch vacates the player's seat, transfers host if needed, and
// disposes the match once empty. Idempotent.
func (s *Server) leaveMatch(p *session.Player) {
	matchID := p.MatchID()
	if matchID == session.NoMatch {
		return
	}
	m := s.matches.Get(matchID)
	p.SetMatchID(session.NoMatch)
	if m == nil {
		return
	}

	wasHost := m.HostID() == p.ID
	_, empty, finished := m.Leave(p.ID)

	if ch := s.channels.Get(channel.MatchChannelName(m.ID)); ch != nil {
		ch.Part(p)
		s.enqueue(p, protocol.WriteChannelKick(ch.DisplayName()))
	}

	if empty {
		s.disposeMatch(m)
		return
	}
	if finished {
		s.sendToMatch(m, protocol.WriteMatchComplete())
	}

	if wasHost {
		ids := m.PlayerIDs()
		if len(ids) > 0 {
			if err := m.SetHost(ids[0]); err == nil {
				if newHost := s.sessions.ByID(ids[0]); newHost != nil {
					s.enqueue(newHost, protocol.WriteMatchTransferHost())
				}
			}
		}
	}
	s.broadcastMatch(m)
}

// disposeMatch removes an empty match, its channel, and its lobby
// listing entry.
func (s *Server) disposeMatch(m *match.Match) {
	s.channels.Remove(channel.MatchChannelName(m.ID))
	s.matches.Remove(m)
	s.metrics.activeMatches.Set(float64(s.matches.Count()))

	gone := protocol.WriteDisposeMatch(int32(m.ID))
	for _, p := range s.lobbyPlayers() {
		s.enqueue(p, gone)
	}
}

// startSpectating attaches p to host's spectator set and fan-in channel.
func (s *Server) startSpectating(p *session.Player, host *session.Player) {
	if cur := p.Spectating(); cur != 0 {
		s.stopSpectating(p)
	}

	chName := channel.SpectatorChannelName(host.ID)
	ch := s.channels.Get(chName)
	if ch == nil {
		ch = channel.New(chName, "Spectator chat.", 0, 0, false, true)
		s.channels.Add(ch)
		ch.Join(host)
		s.enqueue(host, protocol.WriteChannelJoinSuccess(ch.DisplayName()))
	}
	ch.Join(p)
	s.enqueue(p, protocol.WriteChannelJoinSuccess(ch.DisplayName()))

	// Existing spectators learn about the newcomer and vice versa.
	for _, fellowID := range host.Spectators() {
		if fellow := s.sessions.ByID(fellowID); fellow != nil {
			s.enqueue(fellow, protocol.WriteFellowSpectatorJoined(p.ID))
			s.enqueue(p, protocol.WriteFellowSpectatorJoined(fellowID))
		}
	}

	host.AddSpectator(p.ID)
	p.SetSpectating(host.ID)
	s.enqueue(host, protocol.WriteSpectatorJoined(p.ID))
}

// stopSpectating detaches p from whoever they are watching. Idempotent;
// the host's instanced channel dies with its last spectator.
func (s *Server) stopSpectating(p *session.Player) {
	hostID := p.Spectating()
	if hostID == 0 {
		return
	}
	p.SetSpectating(0)

	host := s.sessions.ByID(hostID)
	if host == nil {
		return
	}
	host.RemoveSpectator(p.ID)

	chName := channel.SpectatorChannelName(host.ID)
	if ch := s.channels.Get(chName); ch != nil {
		ch.Part(p)
		s.enqueue(p, protocol.WriteChannelKick(ch.DisplayName()))
		if len(host.Spectators()) == 0 {
			ch.Part(host)
			s.enqueue(host, protocol.WriteChannelKick(ch.DisplayName()))
			s.channels.Remove(chName)
		}
	}

	s.enqueue(host, protocol.WriteSpectatorLeft(p.ID))
	for _, fellowID := range host.Spectators() {
		if fellow := s.sessions.ByID(fellowID); fellow != nil {
			s.enqueue(fellow, protocol.WriteFellowSpectatorLeft(p.ID))
		}
	}
}
