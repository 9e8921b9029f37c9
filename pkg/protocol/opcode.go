package protocol

import "fmt"

// ClientPacketID identifies a client→server packet (u16 on the wire).
// The numeric values are fixed by the stock client.
type ClientPacketID uint16

const (
	ClientChangeAction               ClientPacketID = 0
	ClientSendPublicMessage          ClientPacketID = 1
	ClientLogout                     ClientPacketID = 2
	ClientRequestStatusUpdate        ClientPacketID = 3
	ClientPing                       ClientPacketID = 4
	ClientStartSpectating            ClientPacketID = 16
	ClientStopSpectating             ClientPacketID = 17
	ClientSpectateFrames             ClientPacketID = 18
	ClientErrorReport                ClientPacketID = 20
	ClientCantSpectate               ClientPacketID = 21
	ClientSendPrivateMessage         ClientPacketID = 25
	ClientPartLobby                  ClientPacketID = 29
	ClientJoinLobby                  ClientPacketID = 30
	ClientCreateMatch                ClientPacketID = 31
	ClientJoinMatch                  ClientPacketID = 32
	ClientPartMatch                  ClientPacketID = 33
	ClientMatchChangeSlot            ClientPacketID = 38
	ClientMatchReady                 ClientPacketID = 39
	ClientMatchLock                  ClientPacketID = 40
	ClientMatchChangeSettings        ClientPacketID = 41
	ClientMatchStart                 ClientPacketID = 44
	ClientMatchScoreUpdate           ClientPacketID = 47
	ClientMatchComplete              ClientPacketID = 49
	ClientMatchChangeMods            ClientPacketID = 51
	ClientMatchLoadComplete          ClientPacketID = 52
	ClientMatchNoBeatmap             ClientPacketID = 54
	ClientMatchNotReady              ClientPacketID = 55
	ClientMatchFailed                ClientPacketID = 56
	ClientMatchHasBeatmap            ClientPacketID = 59
	ClientMatchSkipRequest           ClientPacketID = 60
	ClientChannelJoin                ClientPacketID = 63
	ClientBeatmapInfoRequest         ClientPacketID = 68
	ClientMatchTransferHost          ClientPacketID = 70
	ClientFriendAdd                  ClientPacketID = 73
	ClientFriendRemove               ClientPacketID = 74
	ClientMatchChangeTeam            ClientPacketID = 77
	ClientChannelPart                ClientPacketID = 78
	ClientReceiveUpdates             ClientPacketID = 79
	ClientSetAwayMessage             ClientPacketID = 82
	ClientIrcOnly                    ClientPacketID = 84
	ClientUserStatsRequest           ClientPacketID = 85
	ClientMatchInvite                ClientPacketID = 87
	ClientMatchChangePassword        ClientPacketID = 90
	ClientTournamentMatchInfoRequest ClientPacketID = 93
	ClientUserPresenceRequest        ClientPacketID = 97
	ClientUserPresenceRequestAll     ClientPacketID = 98
	ClientToggleBlockNonFriendDMs    ClientPacketID = 99
	ClientTournamentJoinMatchChannel ClientPacketID = 108
	ClientTournamentPartMatchChannel ClientPacketID = 109
)

// ServerPacketID identifies a server→client packet (u16 on the wire).
type ServerPacketID uint16

const (
	ServerLoginReply              ServerPacketID = 5
	ServerSendMessage             ServerPacketID = 7
	ServerPong                    ServerPacketID = 8
	ServerHandleIRCUsernameChange ServerPacketID = 9
	ServerHandleIRCQuit           ServerPacketID = 10
	ServerUserStats               ServerPacketID = 11
	ServerUserLogout              ServerPacketID = 12
	ServerSpectatorJoined         ServerPacketID = 13
	ServerSpectatorLeft           ServerPacketID = 14
	ServerSpectateFrames          ServerPacketID = 15
	ServerVersionUpdate           ServerPacketID = 19
	ServerSpectatorCantSpectate   ServerPacketID = 22
	ServerGetAttention            ServerPacketID = 23
	ServerNotification            ServerPacketID = 24
	ServerUpdateMatch             ServerPacketID = 26
	ServerNewMatch                ServerPacketID = 27
	ServerDisposeMatch            ServerPacketID = 28
	ServerToggleBlockNonFriendDMs ServerPacketID = 34
	ServerMatchJoinSuccess        ServerPacketID = 36
	ServerMatchJoinFail           ServerPacketID = 37
	ServerFellowSpectatorJoined   ServerPacketID = 42
	ServerFellowSpectatorLeft     ServerPacketID = 43
	ServerMatchStart              ServerPacketID = 46
	ServerMatchScoreUpdate        ServerPacketID = 48
	ServerMatchTransferHost       ServerPacketID = 50
	ServerMatchAllPlayersLoaded   ServerPacketID = 53
	ServerMatchPlayerFailed       ServerPacketID = 57
	ServerMatchComplete           ServerPacketID = 58
	ServerMatchSkip               ServerPacketID = 61
	ServerChannelJoinSuccess      ServerPacketID = 64
	ServerChannelInfo             ServerPacketID = 65
	ServerChannelKick             ServerPacketID = 66
	ServerChannelAutoJoin         ServerPacketID = 67
	ServerBeatmapInfoReply        ServerPacketID = 69
	ServerPrivileges              ServerPacketID = 71
	ServerFriendsList             ServerPacketID = 72
	ServerProtocolVersion         ServerPacketID = 75
	ServerMainMenuIcon            ServerPacketID = 76
	ServerMonitor                 ServerPacketID = 80
	ServerMatchPlayerSkipped      ServerPacketID = 81
	ServerUserPresence            ServerPacketID = 83
	ServerRestart                 ServerPacketID = 86
	ServerMatchInvite             ServerPacketID = 88
	ServerChannelInfoEnd          ServerPacketID = 89
	ServerMatchChangePassword     ServerPacketID = 91
	ServerSilenceEnd              ServerPacketID = 92
	ServerUserSilenced            ServerPacketID = 94
	ServerUserPresenceSingle      ServerPacketID = 95
	ServerUserPresenceBundle      ServerPacketID = 96
	ServerUserDMBlocked           ServerPacketID = 100
	ServerTargetIsSilenced        ServerPacketID = 101
	ServerVersionUpdateForced     ServerPacketID = 102
	ServerSwitchServer            ServerPacketID = 103
	ServerAccountRestricted       ServerPacketID = 104
	ServerRTX                     ServerPacketID = 105
	ServerMatchAbort              ServerPacketID = 106
	ServerSwitchTournamentServer  ServerPacketID = 107
)

var clientPacketNames = map[ClientPacketID]string{
	ClientChangeAction:               "ChangeAction",
	ClientSendPublicMessage:          "SendPublicMessage",
	ClientLogout:                     "Logout",
	ClientRequestStatusUpdate:        "RequestStatusUpdate",
	ClientPing:                       "Ping",
	ClientStartSpectating:            "StartSpectating",
	ClientStopSpectating:             "StopSpectating",
	ClientSpectateFrames:             "SpectateFrames",
	ClientErrorReport:                "ErrorReport",
	ClientCantSpectate:               "CantSpectate",
	ClientSendPrivateMessage:         "SendPrivateMessage",
	ClientPartLobby:                  "PartLobby",
	ClientJoinLobby:                  "JoinLobby",
	ClientCreateMatch:                "CreateMatch",
	ClientJoinMatch:                  "JoinMatch",
	ClientPartMatch:                  "PartMatch",
	ClientMatchChangeSlot:            "MatchChangeSlot",
	ClientMatchReady:                 "MatchReady",
	ClientMatchLock:                  "MatchLock",
	ClientMatchChangeSettings:        "MatchChangeSettings",
	ClientMatchStart:                 "MatchStart",
	ClientMatchScoreUpdate:           "MatchScoreUpdate",
	ClientMatchComplete:              "MatchComplete",
	ClientMatchChangeMods:            "MatchChangeMods",
	ClientMatchLoadComplete:          "MatchLoadComplete",
	ClientMatchNoBeatmap:             "MatchNoBeatmap",
	ClientMatchNotReady:              "MatchNotReady",
	ClientMatchFailed:                "MatchFailed",
	ClientMatchHasBeatmap:            "MatchHasBeatmap",
	ClientMatchSkipRequest:           "MatchSkipRequest",
	ClientChannelJoin:                "ChannelJoin",
	ClientBeatmapInfoRequest:         "BeatmapInfoRequest",
	ClientMatchTransferHost:          "MatchTransferHost",
	ClientFriendAdd:                  "FriendAdd",
	ClientFriendRemove:               "FriendRemove",
	ClientMatchChangeTeam:            "MatchChangeTeam",
	ClientChannelPart:                "ChannelPart",
	ClientReceiveUpdates:             "ReceiveUpdates",
	ClientSetAwayMessage:             "SetAwayMessage",
	ClientIrcOnly:                    "IrcOnly",
	ClientUserStatsRequest:           "UserStatsRequest",
	ClientMatchInvite:                "MatchInvite",
	ClientMatchChangePassword:        "MatchChangePassword",
	ClientTournamentMatchInfoRequest: "TournamentMatchInfoRequest",
	ClientUserPresenceRequest:        "UserPresenceRequest",
	ClientUserPresenceRequestAll:     "UserPresenceRequestAll",
	ClientToggleBlockNonFriendDMs:    "ToggleBlockNonFriendDMs",
	ClientTournamentJoinMatchChannel: "TournamentJoinMatchChannel",
	ClientTournamentPartMatchChannel: "TournamentPartMatchChannel",
}

// String returns the packet name, or "Unknown(n)" for unmapped ids.
func (id ClientPacketID) String() string {
	if name, ok := clientPacketNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint16(id))
}
