/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

// Sink receives messages addressed to one player, in order. Send must not
// block; it reports false when the message could not be queued.
type Sink interface {
	Send(msg any) bool
}

// Player holds the data we store server-side. Only the owning session's
// goroutine touches it.
type Player struct {
	ID    string
	Name  string
	Score int
	Admin bool

	seq  uint64 // join order
	sink Sink   // nil while disconnected
}

func (p *Player) connected() bool {
	return p.sink != nil
}

func (p *Player) info() PlayerInfo {
	return PlayerInfo{
		PID:       p.ID,
		Username:  p.Name,
		Score:     p.Score,
		IsAdmin:   p.Admin,
		Connected: p.connected(),
	}
}

func roster(players []*Player) []PlayerInfo {
	out := make([]PlayerInfo, 0, len(players))
	for _, p := range players {
		out = append(out, p.info())
	}

	return out
}
