/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Stats is what the server reports about itself.
type Stats struct {
	Rooms       int           `json:"rooms"`
	Connections int           `json:"connections"`
	Sessions    []SessionInfo `json:"sessions,omitempty"`
}

// Server connects WebSocket clients to rooms. It owns the Registry and the
// Tracker and wires disconnect expiry back into the sessions.
type Server struct {
	cfg      Config
	log      zerolog.Logger
	registry *Registry
	tracker  *Tracker
	upgrader websocket.Upgrader
}

func NewServer(cfg Config) *Server {
	cfg = cfg.withDefaults()

	srv := &Server{
		cfg: cfg,
		log: *cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	srv.registry = NewRegistry(cfg)
	srv.tracker = NewTracker(cfg.PlayerTimeout, srv.expire)
	srv.registry.onRemove = srv.tracker.Forget

	return srv
}

func (srv *Server) Registry() *Registry {
	return srv.registry
}

func (srv *Server) Stats() Stats {
	sessions := srv.registry.Snapshot()

	return Stats{
		Rooms:       len(sessions),
		Connections: srv.tracker.Len(),
		Sessions:    sessions,
	}
}

// Run reaps idle rooms until ctx is done, then closes every room.
func (srv *Server) Run(ctx context.Context) error {
	srv.registry.Reap(ctx)

	<-ctx.Done()

	srv.registry.CloseAll(shutdownMessage)

	return nil
}

// expire removes a player whose connection did not come back in time.
func (srv *Server) expire(code, pid string) {
	s, err := srv.registry.Get(code)
	if err != nil {
		return
	}

	if err := s.Leave(pid); err == nil {
		srv.log.Info().Str("room", code).Str("pid", pid).Msg("GAMES: Removed disconnected player")
	}
}

// ServeWS upgrades the request and serves one client of room code until it
// disconnects.
func (srv *Server) ServeWS(w http.ResponseWriter, r *http.Request, code string) {
	code, ok := NormalizeCode(code)
	if !ok {
		http.Error(w, "invalid game id", http.StatusBadRequest)

		return
	}

	id := ClientID(w, r)
	if id == "" {
		http.Error(w, "unable to assign player id", http.StatusInternalServerError)

		return
	}

	conn, err := srv.upgrader.Upgrade(w, r, w.Header())
	if err != nil {
		srv.log.Debug().Err(err).Msg("SERVE: Upgrade failed")

		return
	}

	c := newClient(id, code, conn, srv.cfg, srv.log)

	pid, prev := srv.tracker.Reconnect(id, code, c)
	if prev != nil {
		c.log.Info().Msg("SERVE: Replacing previous connection")
		prev.shutdown()
	}

	go c.writePump()

	if pid != "" {
		srv.reattach(c, pid)
	}

	c.readPump(srv.handle)

	srv.disconnect(c)
}

func (srv *Server) reattach(c *Client, pid string) {
	s, err := srv.registry.Get(c.room)
	if err == nil {
		_, err = s.Reattach(pid, c)
	}

	if err != nil {
		srv.tracker.Unbind(c.id, c.room)
	}
}

func (srv *Server) disconnect(c *Client) {
	pid, owned := srv.tracker.Disconnected(c.id, c.room, c)
	if !owned || pid == "" {
		return
	}

	if s, err := srv.registry.Get(c.room); err == nil {
		_ = s.Detach(pid, c)
	}
}

func (srv *Server) handle(c *Client, msg ClientMessage) {
	if err := srv.dispatch(c, msg); err != nil {
		c.Send(errorMessage(err))
	}
}

func (srv *Server) dispatch(c *Client, msg ClientMessage) error {
	if msg.GameID != "" {
		if code, ok := NormalizeCode(msg.GameID); !ok || code != c.room {
			return ErrWrongRoom
		}
	}

	switch msg.Type {
	case TypeCreateGame:
		return srv.createGame(c)
	case TypeJoinGame:
		return srv.joinGame(c, msg.Username)
	case TypeLeaveGame, TypeStartGame, TypeGuess, TypeDrawStart, TypeDrawLine, TypeClearBoard:
	default:
		return ErrBadMessage
	}

	pid, ok := srv.tracker.Lookup(c.id, c.room)
	if !ok {
		return ErrNotJoined
	}

	s, err := srv.registry.Get(c.room)
	if err != nil {
		srv.tracker.Unbind(c.id, c.room)

		return err
	}

	switch msg.Type {
	case TypeLeaveGame:
		err = s.Leave(pid)
		if err == nil {
			srv.tracker.Unbind(c.id, c.room)
		}
	case TypeStartGame:
		err = s.StartRound(pid)
	case TypeGuess:
		err = s.Guess(pid, msg.Message)
	case TypeDrawStart, TypeDrawLine:
		if msg.X == nil || msg.Y == nil {
			return ErrInvalidStroke
		}

		err = s.RecordStroke(pid, Stroke{
			Mode: StrokeMode(strings.TrimPrefix(msg.Type, "draw_")),
			X:    *msg.X,
			Y:    *msg.Y,
		})
	case TypeClearBoard:
		err = s.ClearBoard(pid)
	}

	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotJoined) {
		srv.tracker.Unbind(c.id, c.room)
	}

	return err
}

// createGame opens the room this connection is addressed to.
func (srv *Server) createGame(c *Client) error {
	s, err := srv.registry.Create(c.room)
	if err != nil {
		return err
	}

	c.Send(GameCreatedMessage{
		Type:   TypeGameCreated,
		GameID: s.Code(),
	})

	return nil
}

func (srv *Server) joinGame(c *Client, name string) error {
	if _, ok := srv.tracker.Lookup(c.id, c.room); ok {
		return ErrDuplicateJoin
	}

	s, err := srv.registry.Get(c.room)
	if err != nil {
		return err
	}

	info, err := s.Join(name, c)
	if err != nil {
		return err
	}

	if err := srv.tracker.Bind(c.id, c.room, info.PID, c); err != nil {
		_ = s.Leave(info.PID)

		return err
	}

	return nil
}
