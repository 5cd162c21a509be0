/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

import (
	"context"
	"crypto/rand"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	codeAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	minCodeLength = 4
	maxCodeLength = 8

	idleMessage     = "This room was closed after being idle."
	shutdownMessage = "The server is shutting down."
)

// Registry maps room codes to live sessions. Codes are unique among live
// rooms and may be reused once a room closes.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Session

	cfg      Config
	onRemove func(code string)
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		rooms: make(map[string]*Session),
		cfg:   cfg.withDefaults(),
	}
}

// NormalizeCode upper-cases and trims a client-supplied code, reporting
// false when it cannot name a room.
func NormalizeCode(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))

	if len(code) < minCodeLength || len(code) > maxCodeLength {
		return "", false
	}

	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			return "", false
		}
	}

	return code, true
}

// codeChars appends to dst one code character per byte of src. Bytes past
// the last whole multiple of the alphabet size are skipped so every
// character is equally likely.
func codeChars(dst, src []byte) []byte {
	limit := 256 - 256%len(codeAlphabet)

	for _, b := range src {
		if int(b) >= limit {
			continue
		}
		dst = append(dst, codeAlphabet[int(b)%len(codeAlphabet)])
	}

	return dst
}

// newCode generates a crypto-random code that no live room uses. The caller
// holds mu.
func (reg *Registry) newCode() string {
	n := reg.cfg.CodeLength

	for {
		out := make([]byte, 0, n)
		buf := make([]byte, n)

		for len(out) < n {
			if _, err := rand.Read(buf); err != nil {
				panic("crypto/rand failure: " + err.Error())
			}
			out = codeChars(out, buf[:n-len(out)])
		}
		code := string(out)

		if _, exists := reg.rooms[code]; !exists {
			return code
		}
	}
}

// Create opens a room. An empty code asks for a generated one; otherwise
// the normalized code must be valid and free.
func (reg *Registry) Create(code string) (*Session, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if code == "" {
		code = reg.newCode()
	} else {
		var ok bool
		if code, ok = NormalizeCode(code); !ok {
			return nil, ErrInvalidCode
		}

		if _, exists := reg.rooms[code]; exists {
			return nil, ErrRoomExists
		}
	}

	s := newSession(code, reg.cfg, reg.remove)
	reg.rooms[code] = s

	s.log.Info().Msg("GAMES: Created game")

	return s, nil
}

// Get looks a room up by code, case-insensitively.
func (reg *Registry) Get(code string) (*Session, error) {
	code, ok := NormalizeCode(code)
	if !ok {
		return nil, ErrNotFound
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	s, ok := reg.rooms[code]
	if !ok {
		return nil, ErrNotFound
	}

	return s, nil
}

// remove runs on the closing session's goroutine.
func (reg *Registry) remove(s *Session) {
	reg.mu.Lock()
	if reg.rooms[s.code] == s {
		delete(reg.rooms, s.code)
	}
	onRemove := reg.onRemove
	reg.mu.Unlock()

	if onRemove != nil {
		onRemove(s.code)
	}
}

func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return len(reg.rooms)
}

func (reg *Registry) sessions() []*Session {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	out := make([]*Session, 0, len(reg.rooms))
	for _, s := range reg.rooms {
		out = append(out, s)
	}

	return out
}

// Snapshot describes every live room, ordered by code.
func (reg *Registry) Snapshot() []SessionInfo {
	infos := make([]SessionInfo, 0)
	for _, s := range reg.sessions() {
		info := s.Snapshot()
		if info.State == StateClosed {
			continue
		}
		infos = append(infos, info)
	}

	slices.SortFunc(infos, func(a, b SessionInfo) int {
		return strings.Compare(a.Code, b.Code)
	})

	return infos
}

// Reap closes rooms idle for longer than the session timeout until ctx is
// done. It returns immediately when the timeout is disabled.
func (reg *Registry) Reap(ctx context.Context) {
	timeout := reg.cfg.SessionTimeout
	if timeout <= 0 {
		return
	}

	ticker := time.NewTicker(timeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			reg.reapIdle(now.Add(-timeout))
		}
	}
}

func (reg *Registry) reapIdle(cutoff time.Time) int {
	reaped := 0

	for _, s := range reg.sessions() {
		if s.LastActive().Before(cutoff) {
			if s.Close(idleMessage) == nil {
				reaped++
			}
		}
	}

	return reaped
}

// CloseAll closes every room, telling players message.
func (reg *Registry) CloseAll(message string) {
	for _, s := range reg.sessions() {
		_ = s.Close(message)
	}
}
