package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bancho-go/bancho/pkg/privileges"
)

// Memory is an in-process Store used by tests and by the server's
// standalone mode. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	users   map[string]*User // keyed by safe name
	hashes  map[int32][]ClientHashes
	mail    []memMail
	maps    map[string]BeatmapInfo // keyed by md5
	friends map[int32][]int32
}

type memMail struct {
	Mail
	toID int32
	read bool
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[string]*User),
		hashes:  make(map[int32][]ClientHashes),
		maps:    make(map[string]BeatmapInfo),
		friends: make(map[int32][]int32),
	}
}

// AddUser seeds an account.
func (s *Memory) AddUser(u User) {
	s.mu.Lock()
	cp := u
	s.users[u.SafeName] = &cp
	s.mu.Unlock()
}

// AddBeatmap seeds a map identity.
func (s *Memory) AddBeatmap(b BeatmapInfo) {
	s.mu.Lock()
	s.maps[b.MD5] = b
	s.mu.Unlock()
}

// AddMail seeds an offline message for the given recipient.
func (s *Memory) AddMail(toID int32, m Mail) {
	s.mu.Lock()
	s.mail = append(s.mail, memMail{Mail: m, toID: toID})
	s.mu.Unlock()
}

func (s *Memory) UserBySafeName(_ context.Context, safeName string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[safeName]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Memory) TouchActivity(context.Context, int32) error { return nil }

func (s *Memory) SetPrivileges(_ context.Context, userID int32, p privileges.Privileges) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == userID {
			u.Privileges = p
			return nil
		}
	}
	return ErrNotFound
}

func (s *Memory) Record(_ context.Context, userID int32, h ClientHashes) error {
	s.mu.Lock()
	s.hashes[userID] = append(s.hashes[userID], h)
	s.mu.Unlock()
	return nil
}

func (s *Memory) MatchingAccounts(_ context.Context, excludeUserID int32, h ClientHashes) ([]int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int32
	for uid, recorded := range s.hashes {
		if uid == excludeUserID {
			continue
		}
		for _, r := range recorded {
			if hashesOverlap(h, r) {
				ids = append(ids, uid)
				break
			}
		}
	}
	return ids, nil
}

func (s *Memory) BannedAmong(_ context.Context, ids []int32) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Privileges != 0 {
			continue
		}
		for _, id := range ids {
			if u.ID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

func hashesOverlap(a, b ClientHashes) bool {
	if a.UninstallMD5 != "" && a.UninstallMD5 == b.UninstallMD5 {
		return true
	}
	if a.RunningUnderWine {
		return false
	}
	if a.AdaptersMD5 != "" && a.AdaptersMD5 == b.AdaptersMD5 {
		return true
	}
	return a.DiskSerialMD5 != "" && a.DiskSerialMD5 == b.DiskSerialMD5
}

func (s *Memory) Friends(_ context.Context, userID int32) ([]int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int32, len(s.friends[userID]))
	copy(out, s.friends[userID])
	return out, nil
}

func (s *Memory) AddFriend(_ context.Context, userID, friendID int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.friends[userID] {
		if id == friendID {
			return nil
		}
	}
	s.friends[userID] = append(s.friends[userID], friendID)
	return nil
}

func (s *Memory) RemoveFriend(_ context.Context, userID, friendID int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.friends[userID]
	for i, id := range list {
		if id == friendID {
			s.friends[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *Memory) Unread(_ context.Context, userID int32) ([]Mail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Mail
	for _, m := range s.mail {
		if m.toID == userID && !m.read {
			out = append(out, m.Mail)
		}
	}
	return out, nil
}

func (s *Memory) MarkRead(_ context.Context, userID int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.mail {
		if s.mail[i].toID == userID {
			s.mail[i].read = true
		}
	}
	return nil
}

func (s *Memory) Send(_ context.Context, m Mail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.SentAt == 0 {
		m.SentAt = time.Now().Unix()
	}
	target := strings.ToLower(strings.ReplaceAll(m.TargetName, " ", "_"))
	u, ok := s.users[target]
	if !ok {
		return ErrNotFound
	}
	s.mail = append(s.mail, memMail{Mail: m, toID: u.ID})
	return nil
}

func (s *Memory) BeatmapByMD5(_ context.Context, md5 string) (*BeatmapInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.maps[md5]
	if !ok {
		return nil, ErrNotFound
	}
	cp := b
	return &cp, nil
}
