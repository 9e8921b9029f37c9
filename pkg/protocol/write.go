package protocol

// Login reply sentinels. Failures are reported to the client as negative
// user ids in the ServerLoginReply packet, never as transport errors.
const (
	LoginFailed             int32 = -1 // unknown name or wrong password
	LoginOutdatedClient     int32 = -2
	LoginBanned             int32 = -3
	LoginUnactivated        int32 = -4
	LoginServerError        int32 = -5
	LoginSupporterRequired  int32 = -6
	LoginPasswordReset      int32 = -7
	LoginVerificationNeeded int32 = -8
)

// Action is the presence action byte carried in user status updates.
type Action uint8

const (
	ActionIdle         Action = 0
	ActionAfk          Action = 1
	ActionPlaying      Action = 2
	ActionEditing      Action = 3
	ActionModding      Action = 4
	ActionMultiplayer  Action = 5
	ActionWatching     Action = 6
	ActionUnknown      Action = 7
	ActionTesting      Action = 8
	ActionSubmitting   Action = 9
	ActionPaused       Action = 10
	ActionLobby        Action = 11
	ActionMultiplaying Action = 12
	ActionOsuDirect    Action = 13
)

// UserStatus is the decoded body of a ClientChangeAction packet and the
// status portion of ServerUserStats.
type UserStatus struct {
	Action Action
	Text   string
	MapMD5 string
	Mods   uint32
	Mode   GameMode
	MapID  int32
}

// DecodeUserStatusFrom decodes a status update from a decoder.
func DecodeUserStatusFrom(d *Decoder) (UserStatus, error) {
	var s UserStatus
	b, err := d.ReadByte()
	if err != nil {
		return UserStatus{}, err
	}
	s.Action = Action(b)
	if s.Text, err = d.ReadString(); err != nil {
		return UserStatus{}, err
	}
	if s.MapMD5, err = d.ReadString(); err != nil {
		return UserStatus{}, err
	}
	if s.Mods, err = d.ReadUint32(); err != nil {
		return UserStatus{}, err
	}
	if b, err = d.ReadByte(); err != nil {
		return UserStatus{}, err
	}
	s.Mode = GameMode(b)
	if s.MapID, err = d.ReadInt32(); err != nil {
		return UserStatus{}, err
	}
	return s, nil
}

// UserStats is the body of a ServerUserStats packet.
type UserStats struct {
	UserID      int32
	Status      UserStatus
	RankedScore int64
	Accuracy    float32 // 0..1
	PlayCount   int32
	TotalScore  int64
	GlobalRank  int32
	PP          int16
}

// UserPresence is the body of a ServerUserPresence packet.
type UserPresence struct {
	UserID     int32
	Name       string
	UTCOffset  int8
	CountryID  uint8
	Bancho     uint8 // client privilege bits, mode packed in the top bits
	Longitude  float32
	Latitude   float32
	GlobalRank int32
}

// packet frames a one-field builder without an intermediate encoder.
func packet(id ServerPacketID, build func(e *Encoder)) []byte {
	e := NewEncoder()
	build(e)
	return Finish(id, e)
}

// WriteLoginReply builds a ServerLoginReply carrying a user id or a
// negative sentinel.
func WriteLoginReply(userID int32) []byte {
	return packet(ServerLoginReply, func(e *Encoder) { e.WriteInt32(userID) })
}

// WriteNotification builds a ServerNotification popup.
func WriteNotification(msg string) []byte {
	return packet(ServerNotification, func(e *Encoder) { e.WriteString(msg) })
}

// WriteProtocolVersion builds a ServerProtocolVersion packet.
func WriteProtocolVersion(v int32) []byte {
	return packet(ServerProtocolVersion, func(e *Encoder) { e.WriteInt32(v) })
}

// WritePrivileges builds a ServerPrivileges packet from client bits.
func WritePrivileges(bits int32) []byte {
	return packet(ServerPrivileges, func(e *Encoder) { e.WriteInt32(bits) })
}

// WritePong builds an empty ServerPong.
func WritePong() []byte {
	return Finish(ServerPong, NewEncoder())
}

// WriteRestart builds a ServerRestart packet; ms is the client's retry delay.
func WriteRestart(ms int32) []byte {
	return packet(ServerRestart, func(e *Encoder) { e.WriteInt32(ms) })
}

// WriteChannelInfo builds a ServerChannelInfo listing entry.
func WriteChannelInfo(name, topic string, players int16) []byte {
	return packet(ServerChannelInfo, func(e *Encoder) {
		e.WriteString(name)
		e.WriteString(topic)
		e.WriteInt16(players)
	})
}

// WriteChannelAutoJoin builds a ServerChannelAutoJoin listing entry.
func WriteChannelAutoJoin(name, topic string, players int16) []byte {
	return packet(ServerChannelAutoJoin, func(e *Encoder) {
		e.WriteString(name)
		e.WriteString(topic)
		e.WriteInt16(players)
	})
}

// WriteChannelInfoEnd marks the end of the login channel listing.
func WriteChannelInfoEnd() []byte {
	return Finish(ServerChannelInfoEnd, NewEncoder())
}

// WriteChannelJoinSuccess confirms a channel join.
func WriteChannelJoinSuccess(name string) []byte {
	return packet(ServerChannelJoinSuccess, func(e *Encoder) { e.WriteString(name) })
}

// WriteChannelKick removes the client from a channel view.
func WriteChannelKick(name string) []byte {
	return packet(ServerChannelKick, func(e *Encoder) { e.WriteString(name) })
}

// WriteMessage builds a ServerSendMessage chat packet.
func WriteMessage(m Message) []byte {
	return packet(ServerSendMessage, func(e *Encoder) { m.EncodeTo(e) })
}

// WriteTargetIsSilenced notifies the sender their DM target is silenced.
func WriteTargetIsSilenced(target string) []byte {
	return packet(ServerTargetIsSilenced, func(e *Encoder) {
		m := Message{Recipient: target}
		m.EncodeTo(e)
	})
}

// WriteUserDMBlocked notifies the sender their DM target blocks strangers.
func WriteUserDMBlocked(target string) []byte {
	return packet(ServerUserDMBlocked, func(e *Encoder) {
		m := Message{Recipient: target}
		m.EncodeTo(e)
	})
}

// WriteSilenceEnd reports the remaining silence in seconds.
func WriteSilenceEnd(seconds int32) []byte {
	return packet(ServerSilenceEnd, func(e *Encoder) { e.WriteInt32(seconds) })
}

// WriteUserSilenced announces a silenced user to everyone.
func WriteUserSilenced(userID int32) []byte {
	return packet(ServerUserSilenced, func(e *Encoder) { e.WriteInt32(userID) })
}

// WriteLogout announces a user leaving. The trailing byte is a legacy
// unused flag the client still expects.
func WriteLogout(userID int32) []byte {
	return packet(ServerUserLogout, func(e *Encoder) {
		e.WriteInt32(userID)
		e.WriteByte(0)
	})
}

// WriteFriendsList builds the login friends listing.
func WriteFriendsList(ids []int32) []byte {
	return packet(ServerFriendsList, func(e *Encoder) { e.WriteIntList(ids) })
}

// WriteMainMenuIcon sets the client's menu banner.
func WriteMainMenuIcon(iconURL, clickURL string) []byte {
	return packet(ServerMainMenuIcon, func(e *Encoder) {
		e.WriteString(iconURL + "|" + clickURL)
	})
}

// WriteUserStats builds a ServerUserStats packet.
func WriteUserStats(s UserStats) []byte {
	return packet(ServerUserStats, func(e *Encoder) {
		e.WriteInt32(s.UserID)
		e.WriteByte(byte(s.Status.Action))
		e.WriteString(s.Status.Text)
		e.WriteString(s.Status.MapMD5)
		e.WriteUint32(s.Status.Mods)
		e.WriteByte(byte(s.Status.Mode))
		e.WriteInt32(s.Status.MapID)
		e.WriteInt64(s.RankedScore)
		e.WriteFloat32(s.Accuracy)
		e.WriteInt32(s.PlayCount)
		e.WriteInt64(s.TotalScore)
		e.WriteInt32(s.GlobalRank)
		e.WriteInt16(s.PP)
	})
}

// WriteUserPresence builds a ServerUserPresence packet.
func WriteUserPresence(p UserPresence) []byte {
	return packet(ServerUserPresence, func(e *Encoder) {
		e.WriteInt32(p.UserID)
		e.WriteString(p.Name)
		e.WriteByte(byte(p.UTCOffset + 24))
		e.WriteByte(p.CountryID)
		e.WriteByte(p.Bancho)
		e.WriteFloat32(p.Longitude)
		e.WriteFloat32(p.Latitude)
		e.WriteInt32(p.GlobalRank)
	})
}

// WriteSpectatorJoined tells the host a spectator arrived.
func WriteSpectatorJoined(userID int32) []byte {
	return packet(ServerSpectatorJoined, func(e *Encoder) { e.WriteInt32(userID) })
}

// WriteSpectatorLeft tells the host a spectator left.
func WriteSpectatorLeft(userID int32) []byte {
	return packet(ServerSpectatorLeft, func(e *Encoder) { e.WriteInt32(userID) })
}

// WriteFellowSpectatorJoined announces a co-spectator.
func WriteFellowSpectatorJoined(userID int32) []byte {
	return packet(ServerFellowSpectatorJoined, func(e *Encoder) { e.WriteInt32(userID) })
}

// WriteFellowSpectatorLeft announces a departing co-spectator.
func WriteFellowSpectatorLeft(userID int32) []byte {
	return packet(ServerFellowSpectatorLeft, func(e *Encoder) { e.WriteInt32(userID) })
}

// WriteSpectatorCantSpectate reports a spectator lacking the current map.
func WriteSpectatorCantSpectate(userID int32) []byte {
	return packet(ServerSpectatorCantSpectate, func(e *Encoder) { e.WriteInt32(userID) })
}

// WriteSpectateFrames relays a raw replay frame bundle untouched.
func WriteSpectateFrames(frames []byte) []byte {
	return packet(ServerSpectateFrames, func(e *Encoder) { e.WriteRaw(frames) })
}

// WriteMatchScoreUpdate relays a raw in-match score frame untouched.
func WriteMatchScoreUpdate(frame []byte) []byte {
	return packet(ServerMatchScoreUpdate, func(e *Encoder) { e.WriteRaw(frame) })
}

// WriteNewMatch announces a match to the lobby.
func WriteNewMatch(m MatchSnapshot, sendPassword bool) []byte {
	return packet(ServerNewMatch, func(e *Encoder) { m.EncodeTo(e, sendPassword) })
}

// WriteUpdateMatch broadcasts an updated match snapshot.
func WriteUpdateMatch(m MatchSnapshot, sendPassword bool) []byte {
	return packet(ServerUpdateMatch, func(e *Encoder) { m.EncodeTo(e, sendPassword) })
}

// WriteDisposeMatch removes a match from the lobby listing.
func WriteDisposeMatch(matchID int32) []byte {
	return packet(ServerDisposeMatch, func(e *Encoder) { e.WriteInt32(matchID) })
}

// WriteMatchJoinSuccess confirms a join with the full snapshot.
func WriteMatchJoinSuccess(m MatchSnapshot) []byte {
	return packet(ServerMatchJoinSuccess, func(e *Encoder) { m.EncodeTo(e, true) })
}

// WriteMatchJoinFail rejects a join.
func WriteMatchJoinFail() []byte {
	return Finish(ServerMatchJoinFail, NewEncoder())
}

// WriteMatchStart carries the snapshot the clients load into gameplay.
func WriteMatchStart(m MatchSnapshot) []byte {
	return packet(ServerMatchStart, func(e *Encoder) { m.EncodeTo(e, true) })
}

// WriteMatchAbort aborts gameplay for everyone still playing.
func WriteMatchAbort() []byte {
	return Finish(ServerMatchAbort, NewEncoder())
}

// WriteMatchComplete returns clients to the match screen.
func WriteMatchComplete() []byte {
	return Finish(ServerMatchComplete, NewEncoder())
}

// WriteMatchAllPlayersLoaded signals gameplay can begin.
func WriteMatchAllPlayersLoaded() []byte {
	return Finish(ServerMatchAllPlayersLoaded, NewEncoder())
}

// WriteMatchPlayerFailed relays a fail by slot id.
func WriteMatchPlayerFailed(slotID int32) []byte {
	return packet(ServerMatchPlayerFailed, func(e *Encoder) { e.WriteInt32(slotID) })
}

// WriteMatchPlayerSkipped relays a skip request by slot id.
func WriteMatchPlayerSkipped(slotID int32) []byte {
	return packet(ServerMatchPlayerSkipped, func(e *Encoder) { e.WriteInt32(slotID) })
}

// WriteMatchSkip tells all clients to skip the map intro.
func WriteMatchSkip() []byte {
	return Finish(ServerMatchSkip, NewEncoder())
}

// WriteMatchTransferHost tells a client it is now the host.
func WriteMatchTransferHost() []byte {
	return Finish(ServerMatchTransferHost, NewEncoder())
}

// WriteMatchChangePassword pushes the new password to members.
func WriteMatchChangePassword(password string) []byte {
	return packet(ServerMatchChangePassword, func(e *Encoder) { e.WriteString(password) })
}

// WriteMatchInvite relays a match invite as a chat message.
func WriteMatchInvite(m Message) []byte {
	return packet(ServerMatchInvite, func(e *Encoder) { m.EncodeTo(e) })
}

// WriteAccountRestricted tells the client its account is restricted.
func WriteAccountRestricted() []byte {
	return Finish(ServerAccountRestricted, NewEncoder())
}

// WriteVersionUpdateForced forces the client into the updater.
func WriteVersionUpdateForced() []byte {
	return Finish(ServerVersionUpdateForced, NewEncoder())
}

// WriteRTX shows the client's infamous fullscreen alert overlay.
func WriteRTX(msg string) []byte {
	return packet(ServerRTX, func(e *Encoder) { e.WriteString(msg) })
}
