// Package store defines the persistence collaborators the protocol
// engine calls out to. The engine never owns a database connection;
// everything it needs from storage goes through these interfaces, so
// tests run against the in-memory implementation and production wires
// the postgres one.
package store

import (
	"context"
	"errors"

	"github.com/bancho-go/bancho/pkg/privileges"
)

// ErrNotFound is returned when a lookup resolves to no record.
var ErrNotFound = errors.New("store: not found")

// User is the subset of an account record the login pipeline needs.
type User struct {
	ID           int32
	Name         string
	SafeName     string
	PasswordHash string // bcrypt digest of the client's md5
	Privileges   privileges.Privileges
	Country      string
	SilenceEnd   int64 // unix seconds, 0 = not silenced
}

// ClientHashes is the parsed hardware blob a client submits at login.
type ClientHashes struct {
	RunningUnderWine bool
	OsuPathMD5       string
	AdaptersMD5      string
	UninstallMD5     string
	DiskSerialMD5    string
}

// Mail is one offline message delivered at the recipient's next login.
type Mail struct {
	SenderID   int32
	SenderName string
	TargetName string
	Body       string
	SentAt     int64
}

// BeatmapInfo is the identity triple the engine stores for a match;
// content never crosses this boundary.
type BeatmapInfo struct {
	ID   int32
	MD5  string
	Name string
}

// UserStore resolves and maintains account records.
type UserStore interface {
	// UserBySafeName fetches the account whose safe name (lowercased,
	// underscored) matches. ErrNotFound for unknown names.
	UserBySafeName(ctx context.Context, safeName string) (*User, error)

	// TouchActivity records a successful login's timestamp.
	TouchActivity(ctx context.Context, userID int32) error

	// SetPrivileges persists a privilege change (verification,
	// restriction).
	SetPrivileges(ctx context.Context, userID int32, p privileges.Privileges) error
}

// HardwareStore records per-login hardware hashes and cross-references
// them against other accounts.
type HardwareStore interface {
	// Record logs this login's hash components for the account.
	Record(ctx context.Context, userID int32, h ClientHashes) error

	// MatchingAccounts returns ids of other accounts that share any
	// non-empty hash component with h.
	MatchingAccounts(ctx context.Context, excludeUserID int32, h ClientHashes) ([]int32, error)

	// BannedAmong reports whether any of the given account ids holds
	// zero privileges.
	BannedAmong(ctx context.Context, ids []int32) (bool, error)
}

// FriendStore persists per-account friends lists.
type FriendStore interface {
	Friends(ctx context.Context, userID int32) ([]int32, error)
	AddFriend(ctx context.Context, userID, friendID int32) error
	RemoveFriend(ctx context.Context, userID, friendID int32) error
}

// MailStore holds messages sent to offline players.
type MailStore interface {
	Unread(ctx context.Context, userID int32) ([]Mail, error)
	MarkRead(ctx context.Context, userID int32) error
	Send(ctx context.Context, m Mail) error
}

// BeatmapResolver resolves a map identity by md5 for match beatmap
// changes.
type BeatmapResolver interface {
	BeatmapByMD5(ctx context.Context, md5 string) (*BeatmapInfo, error)
}

// Store bundles every collaborator the engine needs.
type Store interface {
	UserStore
	HardwareStore
	FriendStore
	MailStore
	BeatmapResolver
}
