package bancho

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"

	"github.com/bancho-go/bancho/pkg/privileges"
	"github.com/bancho-go/bancho/pkg/protocol"
	"github.com/bancho-go/bancho/pkg/session"
	"github.com/bancho-go/bancho/pkg/store"
)

// NoToken is the session token returned with every rejected login; the
// client treats the response body's sentinel as the outcome.
const NoToken = "no"

// loginRequest is the parsed newline-delimited login payload.
type loginRequest struct {
	Username     string
	PasswordMD5  string
	ClientBuild  string
	UTCOffset    int8
	DisplayCity  bool
	PMPrivate    bool
	ClientHashes store.ClientHashes
}

var errMalformedLogin = errors.New("bancho: malformed login payload")

// parseLoginPayload splits the three-line login body and its |-delimited
// client info record.
func parseLoginPayload(body []byte) (loginRequest, error) {
	lines := strings.SplitN(string(body), "\n", 4)
	if len(lines) < 3 {
		return loginRequest{}, errMalformedLogin
	}

	info := strings.Split(lines[2], "|")
	if len(info) < 5 {
		return loginRequest{}, errMalformedLogin
	}
	offset, err := strconv.Atoi(info[1])
	if err != nil {
		return loginRequest{}, errMalformedLogin
	}

	req := loginRequest{
		Username:    lines[0],
		PasswordMD5: lines[1],
		ClientBuild: info[0],
		UTCOffset:   int8(offset),
		DisplayCity: info[2] == "1",
		PMPrivate:   info[4] == "1",
	}

	hashes := strings.Split(info[3], ":")
	if len(hashes) < 5 {
		return loginRequest{}, errMalformedLogin
	}
	req.ClientHashes = store.ClientHashes{
		RunningUnderWine: hashes[1] == "runningunderwine",
		OsuPathMD5:       hashes[0],
		AdaptersMD5:      hashes[2],
		UninstallMD5:     hashes[3],
		DiskSerialMD5:    hashes[4],
	}
	return req, nil
}

// clientBuildYear extracts the year from a build string like
// "b20210212.2cuttingedge". Returns 0 when unparseable.
func clientBuildYear(build string) int {
	if len(build) < 5 || build[0] != 'b' {
		return 0
	}
	year, err := strconv.Atoi(build[1:5])
	if err != nil {
		return 0
	}
	return year
}

// rejectLogin builds a sentinel-only response, optionally with a
// notification explaining the rejection.
func rejectLogin(sentinel int32, notification string) []byte {
	body := protocol.WriteLoginReply(sentinel)
	if notification != "" {
		body = append(body, protocol.WriteNotification(notification)...)
	}
	return body
}

// Login runs the handshake pipeline: parse, dedupe, authenticate,
// hardware checks, then session construction and the bootstrap stream.
// The returned token is the out-of-band session identifier; failures
// return NoToken and a body whose login reply carries the sentinel.
func (s *Server) Login(ctx context.Context, body []byte) (token string, response []byte) {
	ctx, span := s.tracer.Start(ctx, "bancho.login")
	defer span.End()

	req, err := parseLoginPayload(body)
	if err != nil {
		s.metrics.loginsTotal.WithLabelValues("malformed").Inc()
		return NoToken, rejectLogin(protocol.LoginFailed, "")
	}
	span.SetAttributes(attribute.String("bancho.username", req.Username))

	if clientBuildYear(req.ClientBuild) < s.cfg.MinClientYear {
		s.metrics.loginsTotal.WithLabelValues("outdated").Inc()
		return NoToken, rejectLogin(protocol.LoginOutdatedClient, "")
	}

	safeName := session.MakeSafeName(req.Username)

	// Per-name exclusion: the already-online check and the insert must
	// not race another login for the same account.
	lock := s.sessions.NameLock(safeName)
	lock.Lock()
	defer lock.Unlock()

	if existing := s.sessions.ByName(safeName); existing != nil {
		if time.Since(existing.LastActivity()) < s.cfg.LoginGrace() {
			s.metrics.loginsTotal.WithLabelValues("already_online").Inc()
			return NoToken, rejectLogin(protocol.LoginFailed, "You are already logged in.")
		}
		// The old session has gone quiet; evict it and proceed.
		s.metrics.evictionsTotal.Inc()
		s.Logout(existing)
	}

	u, err := s.store.UserBySafeName(ctx, safeName)
	if errors.Is(err, store.ErrNotFound) {
		s.metrics.loginsTotal.WithLabelValues("bad_credentials").Inc()
		return NoToken, rejectLogin(protocol.LoginFailed, "")
	}
	if err != nil {
		s.logger.Error("login user lookup", "name", safeName, "err", err)
		s.metrics.loginsTotal.WithLabelValues("error").Inc()
		return NoToken, rejectLogin(protocol.LoginServerError, "")
	}

	if !s.verifyPassword(u.PasswordHash, req.PasswordMD5) {
		s.metrics.loginsTotal.WithLabelValues("bad_credentials").Inc()
		return NoToken, rejectLogin(protocol.LoginFailed, "")
	}

	if u.Privileges == 0 {
		s.metrics.loginsTotal.WithLabelValues("banned").Inc()
		return NoToken, rejectLogin(protocol.LoginBanned, "")
	}

	if sentinel, msg := s.checkHardware(ctx, u, req.ClientHashes); sentinel != 0 {
		s.metrics.loginsTotal.WithLabelValues("hardware").Inc()
		return NoToken, rejectLogin(sentinel, msg)
	}

	p := session.NewPlayer(u.ID, u.Name, u.Privileges)
	p.UTCOffset = req.UTCOffset
	p.CountryID = protocol.CountryID(u.Country)
	p.SetPMPrivate(req.PMPrivate)
	p.SetSilenceEnd(u.SilenceEnd)

	if friends, err := s.store.Friends(ctx, u.ID); err != nil {
		s.logger.Warn("load friends", "user_id", u.ID, "err", err)
	} else {
		p.SetFriends(friends)
	}

	if err := s.sessions.Add(p); err != nil {
		// Raced another login despite the name lock (token collision);
		// treat as transient.
		s.logger.Error("session insert", "name", safeName, "err", err)
		s.metrics.loginsTotal.WithLabelValues("error").Inc()
		return NoToken, rejectLogin(protocol.LoginServerError, "")
	}
	s.metrics.loginsTotal.WithLabelValues("ok").Inc()
	s.metrics.onlinePlayers.Set(float64(s.sessions.Count()))

	if err := s.store.TouchActivity(ctx, u.ID); err != nil {
		s.logger.Warn("touch activity", "user_id", u.ID, "err", err)
	}

	return p.Token, s.bootstrap(ctx, p)
}

// verifyPassword checks the client md5 against the stored bcrypt digest,
// consulting the process-lifetime cache first.
func (s *Server) verifyPassword(bcryptHash, clientMD5 string) bool {
	s.verifyMu.Lock()
	cached, ok := s.verifyCache[bcryptHash]
	s.verifyMu.Unlock()
	if ok {
		return cached == clientMD5
	}

	if bcrypt.CompareHashAndPassword([]byte(bcryptHash), []byte(clientMD5)) != nil {
		return false
	}
	s.verifyMu.Lock()
	s.verifyCache[bcryptHash] = clientMD5
	s.verifyMu.Unlock()
	return true
}

// checkHardware records this login's hashes and cross-references them
// against other accounts. Unverified accounts that share hardware with a
// banned account are turned away; verified accounts pass but are logged
// for review. A zero sentinel means proceed.
func (s *Server) checkHardware(ctx context.Context, u *store.User, h store.ClientHashes) (sentinel int32, msg string) {
	if err := s.store.Record(ctx, u.ID, h); err != nil {
		s.logger.Warn("record hardware", "user_id", u.ID, "err", err)
	}

	ids, err := s.store.MatchingAccounts(ctx, u.ID, h)
	if err != nil {
		s.logger.Warn("hardware lookup", "user_id", u.ID, "err", err)
		return 0, ""
	}
	if len(ids) == 0 {
		if !u.Privileges.Has(privileges.Verified) {
			// First login on clean hardware completes verification.
			u.Privileges |= privileges.Verified
			if err := s.store.SetPrivileges(ctx, u.ID, u.Privileges); err != nil {
				s.logger.Warn("set verified", "user_id", u.ID, "err", err)
			}
		}
		return 0, ""
	}

	banned := false
	for _, id := range ids {
		other := s.sessions.ByID(id)
		if other != nil && other.Restricted() {
			banned = true
			break
		}
	}
	// Online state only proves so much; the authoritative answer comes
	// from the stored privilege rows.
	if !banned {
		var err error
		banned, err = s.store.BannedAmong(ctx, ids)
		if err != nil {
			s.logger.Warn("banned hardware lookup", "user_id", u.ID, "err", err)
		}
	}

	if banned && !u.Privileges.Has(privileges.Verified) {
		return protocol.LoginVerificationNeeded,
			"Your hardware matches a banned account. Contact staff to resolve this."
	}
	if banned {
		s.logger.Warn("verified account on banned hardware", "user_id", u.ID, "matches", ids)
	}
	return 0, ""
}

// bootstrap assembles the post-login byte stream: identity, channel
// listing, everyone's presence, this player's presence to everyone, and
// pending offline mail.
func (s *Server) bootstrap(ctx context.Context, p *session.Player) []byte {
	out := protocol.WriteProtocolVersion(s.cfg.ProtocolVersion)
	out = append(out, protocol.WriteLoginReply(p.ID)...)
	out = append(out, protocol.WritePrivileges(int32(p.Privileges().ToClient()))...)

	for _, ch := range s.channels.Visible(p) {
		name, topic, members := ch.Info()
		if ch.AutoJoin {
			out = append(out, protocol.WriteChannelAutoJoin(name, topic, members)...)
			if ch.Join(p) {
				out = append(out, protocol.WriteChannelJoinSuccess(name)...)
			}
		} else {
			out = append(out, protocol.WriteChannelInfo(name, topic, members)...)
		}
	}
	out = append(out, protocol.WriteChannelInfoEnd()...)

	if s.cfg.MenuIconURL != "" {
		out = append(out, protocol.WriteMainMenuIcon(s.cfg.MenuIconURL, s.cfg.MenuClickURL)...)
	}
	out = append(out, protocol.WriteFriendsList(p.Friends())...)

	// Own presence first, then everyone else's.
	out = append(out, protocol.WriteUserPresence(p.Presence())...)
	out = append(out, protocol.WriteUserStats(p.StatsPacket())...)
	for _, other := range s.sessions.Snapshot() {
		if other.ID == p.ID || other.Restricted() {
			continue
		}
		out = append(out, protocol.WriteUserPresence(other.Presence())...)
		out = append(out, protocol.WriteUserStats(other.StatsPacket())...)
	}
	s.broadcastPresence(p)

	if p.Restricted() {
		out = append(out, protocol.WriteAccountRestricted()...)
	}
	if remaining := p.SilenceEnd() - time.Now().Unix(); remaining > 0 {
		out = append(out, protocol.WriteSilenceEnd(int32(remaining))...)
	}

	mail, err := s.store.Unread(ctx, p.ID)
	if err != nil {
		s.logger.Warn("fetch mail", "user_id", p.ID, "err", err)
	}
	for _, m := range mail {
		out = append(out, protocol.WriteMessage(protocol.Message{
			Sender:    m.SenderName,
			Text:      m.Body,
			Recipient: p.Name,
			SenderID:  m.SenderID,
		})...)
	}
	if len(mail) > 0 {
		if err := s.store.MarkRead(ctx, p.ID); err != nil {
			s.logger.Warn("mark mail read", "user_id", p.ID, "err", err)
		}
	}

	s.logger.Info("login", "user_id", p.ID, "name", p.Name)
	return out
}
