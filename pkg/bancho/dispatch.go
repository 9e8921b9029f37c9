package bancho

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bancho-go/bancho/pkg/protocol"
	"github.com/bancho-go/bancho/pkg/session"
)

// handlerFunc processes one decoded client packet. Errors are logged and
// counted, never returned to the client; protocol rejections surface as
// packets on the player's queue instead.
type handlerFunc func(ctx context.Context, p *session.Player, d *protocol.Decoder) error

func (s *Server) buildHandlerTable() map[protocol.ClientPacketID]handlerFunc {
	return map[protocol.ClientPacketID]handlerFunc{
		protocol.ClientChangeAction:        s.handleChangeAction,
		protocol.ClientSendPublicMessage:   s.handlePublicMessage,
		protocol.ClientLogout:              s.handleLogout,
		protocol.ClientRequestStatusUpdate: s.handleRequestStatusUpdate,
		protocol.ClientPing:                s.handlePing,

		protocol.ClientStartSpectating: s.handleStartSpectating,
		protocol.ClientStopSpectating:  s.handleStopSpectating,
		protocol.ClientSpectateFrames:  s.handleSpectateFrames,
		protocol.ClientCantSpectate:    s.handleCantSpectate,

		protocol.ClientSendPrivateMessage: s.handlePrivateMessage,

		protocol.ClientJoinLobby: s.handleJoinLobby,
		protocol.ClientPartLobby: s.handlePartLobby,

		protocol.ClientCreateMatch:         s.handleCreateMatch,
		protocol.ClientJoinMatch:           s.handleJoinMatch,
		protocol.ClientPartMatch:           s.handlePartMatch,
		protocol.ClientMatchChangeSlot:     s.handleMatchChangeSlot,
		protocol.ClientMatchReady:          s.handleMatchReady,
		protocol.ClientMatchNotReady:       s.handleMatchNotReady,
		protocol.ClientMatchLock:           s.handleMatchLock,
		protocol.ClientMatchChangeSettings: s.handleMatchChangeSettings,
		protocol.ClientMatchStart:          s.handleMatchStart,
		protocol.ClientMatchScoreUpdate:    s.handleMatchScoreUpdate,
		protocol.ClientMatchComplete:       s.handleMatchComplete,
		protocol.ClientMatchChangeMods:     s.handleMatchChangeMods,
		protocol.ClientMatchLoadComplete:   s.handleMatchLoadComplete,
		protocol.ClientMatchNoBeatmap:      s.handleMatchNoBeatmap,
		protocol.ClientMatchHasBeatmap:     s.handleMatchHasBeatmap,
		protocol.ClientMatchFailed:         s.handleMatchFailed,
		protocol.ClientMatchSkipRequest:    s.handleMatchSkipRequest,
		protocol.ClientMatchTransferHost:   s.handleMatchTransferHost,
		protocol.ClientMatchChangeTeam:     s.handleMatchChangeTeam,
		protocol.ClientMatchInvite:         s.handleMatchInvite,
		protocol.ClientMatchChangePassword: s.handleMatchChangePassword,

		protocol.ClientChannelJoin: s.handleChannelJoin,
		protocol.ClientChannelPart: s.handleChannelPart,

		protocol.ClientFriendAdd:    s.handleFriendAdd,
		protocol.ClientFriendRemove: s.handleFriendRemove,

		protocol.ClientSetAwayMessage:         s.handleSetAwayMessage,
		protocol.ClientUserStatsRequest:       s.handleUserStatsRequest,
		protocol.ClientUserPresenceRequest:    s.handleUserPresenceRequest,
		protocol.ClientUserPresenceRequestAll: s.handleUserPresenceRequestAll,
		protocol.ClientToggleBlockNonFriendDMs: func(_ context.Context, p *session.Player, d *protocol.Decoder) error {
			v, err := d.ReadInt32()
			if err != nil {
				return err
			}
			p.SetPMPrivate(v == 1)
			return nil
		},

		// The client reports errors and update-channel preferences;
		// both are acknowledged by ignoring them.
		protocol.ClientErrorReport:    s.handleNoop,
		protocol.ClientReceiveUpdates: s.handleNoop,
		protocol.ClientIrcOnly:        s.handleNoop,
	}
}

// Handle processes one inbound packet batch for the player resolved by
// token and returns the player's drained outbound queue. A nil player
// (unknown or expired token) yields a restart packet telling the client
// to re-login.
func (s *Server) Handle(ctx context.Context, token string, body []byte) []byte {
	p := s.sessions.ByToken(token)
	if p == nil {
		return append(protocol.WriteNotification("Server has restarted."), protocol.WriteRestart(0)...)
	}

	ctx, span := s.tracer.Start(ctx, "bancho.handle")
	span.SetAttributes(
		attribute.Int("bancho.user_id", int(p.ID)),
		attribute.Int("bancho.batch_bytes", len(body)),
	)
	defer span.End()

	start := time.Now()
	p.Touch()

	r := protocol.NewReader(body)
	for r.More() {
		pkt, err := r.Next()
		if err != nil {
			// Malformed input poisons the rest of the batch; drop the
			// remainder but keep the session and what was already done.
			s.logger.Warn("aborting packet batch", "user_id", p.ID, "err", err)
			s.metrics.packetErrors.WithLabelValues("batch").Inc()
			break
		}

		h, ok := s.handlers[pkt.ID]
		if !ok {
			s.logger.Debug("unhandled packet", "user_id", p.ID, "opcode", pkt.ID.String())
			continue
		}
		s.metrics.packetsTotal.WithLabelValues(pkt.ID.String()).Inc()

		if err := h(ctx, p, protocol.NewDecoder(pkt.Payload)); err != nil {
			s.logger.Warn("packet handler", "user_id", p.ID, "opcode", pkt.ID.String(), "err", err)
			s.metrics.packetErrors.WithLabelValues(pkt.ID.String()).Inc()
		}
	}

	s.metrics.requestDuration.Observe(time.Since(start).Seconds())
	return p.Dequeue()
}
