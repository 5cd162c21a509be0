/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

import (
	"sync"
	"time"
)

type trackerKey struct {
	client string
	code   string
}

type binding struct {
	pid       string // empty until the connection joins
	conn      *Client
	connected bool
	timer     *time.Timer
}

// Tracker binds a client identity (the player cookie) to a player within a
// room. Dropped connections keep their slot for a grace period; if the
// client has not reconnected by then, onExpire removes the player.
type Tracker struct {
	mu       sync.Mutex
	bindings map[trackerKey]*binding

	grace    time.Duration
	onExpire func(code, pid string)
}

func NewTracker(grace time.Duration, onExpire func(code, pid string)) *Tracker {
	return &Tracker{
		bindings: make(map[trackerKey]*binding),
		grace:    grace,
		onExpire: onExpire,
	}
}

// Reconnect makes conn the live connection of client in room code. It
// returns the player the client already holds there, if any, and cancels
// that player's pending removal. A connection the client still had open is
// returned as prev; it no longer owns the binding and the caller closes it.
func (t *Tracker) Reconnect(client, code string, conn *Client) (pid string, prev *Client) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := trackerKey{client, code}

	b, ok := t.bindings[key]
	if !ok {
		t.bindings[key] = &binding{conn: conn, connected: true}

		return "", nil
	}

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}

	if b.connected && b.conn != conn {
		prev = b.conn
	}
	b.conn = conn
	b.connected = true

	return b.pid, prev
}

// Bind records that conn joined room code as pid. It fails if the client
// already holds a player there or conn has been replaced.
func (t *Tracker) Bind(client, code, pid string, conn *Client) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := trackerKey{client, code}

	b, ok := t.bindings[key]
	if !ok {
		t.bindings[key] = &binding{pid: pid, conn: conn, connected: true}

		return nil
	}

	if b.pid != "" || b.conn != conn {
		return ErrDuplicateJoin
	}
	b.pid = pid

	return nil
}

func (t *Tracker) Lookup(client, code string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.bindings[trackerKey{client, code}]
	if !ok || b.pid == "" {
		return "", false
	}

	return b.pid, true
}

// Unbind forgets the player after an explicit leave. The connection stays
// registered.
func (t *Tracker) Unbind(client, code string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if b, ok := t.bindings[trackerKey{client, code}]; ok {
		b.pid = ""
	}
}

// Disconnected marks conn gone and arms the removal timer. It reports the
// player conn was serving; owned is false when conn had already been
// replaced, in which case nothing changes.
func (t *Tracker) Disconnected(client, code string, conn *Client) (pid string, owned bool) {
	t.mu.Lock()

	key := trackerKey{client, code}

	b, ok := t.bindings[key]
	if !ok || !b.connected || b.conn != conn {
		t.mu.Unlock()

		return "", false
	}

	pid = b.pid
	if pid == "" {
		delete(t.bindings, key)
		t.mu.Unlock()

		return "", true
	}

	b.connected = false
	b.conn = nil

	if t.grace <= 0 {
		delete(t.bindings, key)
		t.mu.Unlock()

		t.expired(code, pid)

		return pid, true
	}

	b.timer = time.AfterFunc(t.grace, func() {
		t.mu.Lock()
		if t.bindings[key] != b || b.connected {
			t.mu.Unlock()

			return
		}
		delete(t.bindings, key)
		t.mu.Unlock()

		t.expired(code, pid)
	})

	t.mu.Unlock()

	return pid, true
}

func (t *Tracker) expired(code, pid string) {
	if t.onExpire != nil {
		t.onExpire(code, pid)
	}
}

// Forget clears a closed room's players. Disconnected entries are dropped
// along with their timers; live connections stay registered without a
// player so they can open the room again.
func (t *Tracker) Forget(code string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, b := range t.bindings {
		if key.code != code {
			continue
		}

		if b.timer != nil {
			b.timer.Stop()
			b.timer = nil
		}

		if b.connected {
			b.pid = ""

			continue
		}
		delete(t.bindings, key)
	}
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.bindings)
}
