/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = time.Minute
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 256

	PlayerCookieName = "sketchbox_id"
)

// ClientID returns the caller's player cookie, setting a fresh one if the
// request has none. It returns an empty string if no ID could be generated.
func ClientID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(PlayerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     PlayerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// Client is one WebSocket connection to one room. It is the Sink sessions
// deliver to.
type Client struct {
	id   string // player cookie
	room string // room code from the URL
	conn *websocket.Conn
	log  zerolog.Logger

	send    chan any
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
}

func newClient(id, room string, conn *websocket.Conn, cfg Config, log zerolog.Logger) *Client {
	return &Client{
		id:      id,
		room:    room,
		conn:    conn,
		log:     log.With().Str("room", room).Str("client", id).Logger(),
		send:    make(chan any, sendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}
}

// Send queues msg without blocking. A client whose buffer is full is too
// slow to keep up and gets disconnected.
func (c *Client) Send(msg any) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		c.log.Warn().Msg("SERVE: Send buffer full, dropping client")
		c.shutdown()

		return false
	}
}

func (c *Client) shutdown() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump(handle func(*Client, ClientMessage)) {
	defer c.shutdown()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("SERVE: Connection lost")
			}

			return
		}

		if !c.limiter.Allow() {
			c.Send(errorMessage(ErrRateLimited))

			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Send(errorMessage(ErrBadMessage))

			continue
		}

		handle(c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
