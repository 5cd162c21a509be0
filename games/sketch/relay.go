/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

import "github.com/rs/zerolog"

// relay addresses messages to a session's players. It never mutates the
// roster it is given; the session calls it after each accepted change, on
// the session goroutine, which keeps delivery in acceptance order.
type relay struct {
	log zerolog.Logger
}

func (r relay) to(p *Player, msg any) {
	if p == nil || p.sink == nil {
		return
	}

	if !p.sink.Send(msg) {
		r.log.Warn().Str("pid", p.ID).Msg("GAMES: Dropped message for slow client")
	}
}

// all sends msg to every player.
func (r relay) all(players []*Player, msg any) {
	for _, p := range players {
		r.to(p, msg)
	}
}

// except sends msg to every player but pid.
func (r relay) except(players []*Player, pid string, msg any) {
	for _, p := range players {
		if p.ID == pid {
			continue
		}
		r.to(p, msg)
	}
}

// where sends msg to the players keep accepts.
func (r relay) where(players []*Player, keep func(*Player) bool, msg any) {
	for _, p := range players {
		if keep(p) {
			r.to(p, msg)
		}
	}
}
