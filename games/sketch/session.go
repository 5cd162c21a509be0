/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is where a session is in its round cycle.
type State string

const (
	StateLobby    State = "lobby"
	StateInRound  State = "in_round"
	StateRoundEnd State = "round_end"
	StateClosed   State = "closed"
)

const (
	maxNameLength    = 24
	maxMessageLength = 200
	pointsPerGuess   = 10
	recordTimeout    = 5 * time.Second
)

// SessionInfo is a point-in-time view of a session.
type SessionInfo struct {
	Code       string    `json:"code"`
	State      State     `json:"state"`
	Players    int       `json:"players"`
	Round      int       `json:"round"`
	LastActive time.Time `json:"last_active"`
}

// Session is the authority for one room. Every operation runs on the
// session's own goroutine, so operations on one room never interleave while
// different rooms proceed in parallel.
type Session struct {
	code    string
	cfg     Config
	log     zerolog.Logger
	relay   relay
	onClose func(*Session)

	ops  chan func()
	done chan struct{}

	lastActive atomic.Int64

	// Owned by the session goroutine.
	state   State
	players []*Player // join order
	seq     uint64
	rounds  int
	round   *Round // current or most recent
	drawn   map[string]bool
	recent  []string
}

func newSession(code string, cfg Config, onClose func(*Session)) *Session {
	log := cfg.Logger.With().Str("room", code).Logger()

	s := &Session{
		code:    code,
		cfg:     cfg,
		log:     log,
		relay:   relay{log: log},
		onClose: onClose,
		ops:     make(chan func()),
		done:    make(chan struct{}),
		state:   StateLobby,
		drawn:   make(map[string]bool),
	}
	s.touch()

	go s.run()

	return s
}

func (s *Session) run() {
	for {
		select {
		case op := <-s.ops:
			op()
		case <-s.done:
			return
		}
	}
}

// call runs fn on the session goroutine and waits for its result. Once the
// session is closed every call fails with ErrNotFound.
func (s *Session) call(fn func() error) error {
	errc := make(chan error, 1)

	op := func() {
		if s.state == StateClosed {
			errc <- ErrNotFound

			return
		}
		errc <- fn()
	}

	select {
	case s.ops <- op:
	case <-s.done:
		return ErrNotFound
	}

	return <-errc
}

// act is call for player actions, which keep the room from being reaped.
func (s *Session) act(fn func() error) error {
	s.touch()

	return s.call(fn)
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *Session) Code() string {
	return s.code
}

// LastActive is the time of the most recent player action.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Snapshot describes the session; a closed session reports StateClosed.
func (s *Session) Snapshot() SessionInfo {
	info := SessionInfo{
		Code:       s.code,
		State:      StateClosed,
		LastActive: s.LastActive(),
	}

	_ = s.call(func() error {
		info.State = s.state
		info.Players = len(s.players)
		info.Round = s.rounds

		return nil
	})

	return info
}

// Join adds a player. The first player in a room becomes its admin. Joining
// is allowed mid-round; the newcomer guesses in the current round.
func (s *Session) Join(name string, sink Sink) (PlayerInfo, error) {
	var info PlayerInfo

	err := s.act(func() error {
		p, err := s.join(name, sink)
		if err != nil {
			return err
		}
		info = p.info()

		return nil
	})

	return info, err
}

// Leave removes a player, migrating the admin role and ending the round if
// needed. The session closes when its last player leaves.
func (s *Session) Leave(pid string) error {
	return s.act(func() error {
		return s.leave(pid)
	})
}

// StartRound begins a round, or restarts the current one. Only the admin may
// call it.
func (s *Session) StartRound(pid string) error {
	return s.act(func() error {
		return s.startRound(pid)
	})
}

// Guess checks text against the secret word during a round and relays it as
// chat otherwise.
func (s *Session) Guess(pid, text string) error {
	return s.act(func() error {
		return s.guess(pid, text)
	})
}

func (s *Session) ClearBoard(pid string) error {
	return s.act(func() error {
		return s.clearBoard(pid)
	})
}

func (s *Session) RecordStroke(pid string, st Stroke) error {
	return s.act(func() error {
		return s.recordStroke(pid, st)
	})
}

// Detach keeps a player's slot while their connection is gone. It does
// nothing if the player has since been reattached to another sink.
func (s *Session) Detach(pid string, sink Sink) error {
	return s.call(func() error {
		return s.detach(pid, sink)
	})
}

// Reattach binds a new connection to an existing player and resends the
// room and round state to it.
func (s *Session) Reattach(pid string, sink Sink) (PlayerInfo, error) {
	var info PlayerInfo

	err := s.act(func() error {
		p, err := s.reattach(pid, sink)
		if err != nil {
			return err
		}
		info = p.info()

		return nil
	})

	return info, err
}

// Close tells every player message and shuts the session down.
func (s *Session) Close(message string) error {
	return s.call(func() error {
		s.close(message)

		return nil
	})
}

func (s *Session) player(pid string) *Player {
	for _, p := range s.players {
		if p.ID == pid {
			return p
		}
	}

	return nil
}

func (s *Session) broadcastRoster() {
	s.relay.all(s.players, PlayersMessage{
		Type:    TypeUpdatePlayers,
		Players: roster(s.players),
	})
}

func (s *Session) welcome(p *Player) {
	s.relay.to(p, GameJoinedMessage{
		Type:    TypeGameJoined,
		GameID:  s.code,
		You:     p.info(),
		Players: roster(s.players),
	})
}

func (s *Session) startedMessage(p *Player) GameStartedMessage {
	r := s.round

	msg := GameStartedMessage{
		Type:     TypeGameStarted,
		Round:    r.Number,
		DrawerID: r.DrawerID,
		Drawer:   r.Drawer,
	}
	if p.ID == r.DrawerID {
		msg.Word = r.Word
	}
	if !r.Deadline.IsZero() {
		deadline := r.Deadline
		msg.Deadline = &deadline
	}

	return msg
}

// replayRound brings one player up to date with the round in progress.
func (s *Session) replayRound(p *Player) {
	s.relay.to(p, s.startedMessage(p))

	for _, st := range s.round.strokes {
		s.relay.to(p, st.message())
	}
}

func (s *Session) join(name string, sink Sink) (*Player, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return nil, ErrInvalidName
	}

	if len(s.players) >= s.cfg.MaxPlayers {
		return nil, ErrRoomFull
	}

	for _, p := range s.players {
		if strings.EqualFold(p.Name, name) {
			return nil, ErrNameTaken
		}
	}

	s.seq++
	p := &Player{
		ID:    uuid.NewString(),
		Name:  name,
		Admin: len(s.players) == 0,
		seq:   s.seq,
		sink:  sink,
	}
	s.players = append(s.players, p)

	s.log.Info().Str("pid", p.ID).Msgf("GAMES: Player %q joined", name)

	s.welcome(p)
	s.broadcastRoster()

	if s.state == StateInRound {
		s.replayRound(p)
	}

	return p, nil
}

func (s *Session) leave(pid string) error {
	i := slices.IndexFunc(s.players, func(p *Player) bool { return p.ID == pid })
	if i < 0 {
		return ErrNotJoined
	}

	p := s.players[i]
	s.players = slices.Delete(s.players, i, i+1)
	delete(s.drawn, pid)
	p.sink = nil

	s.log.Info().Str("pid", pid).Msgf("GAMES: Player %q left", p.Name)

	if len(s.players) == 0 {
		s.close("")

		return nil
	}

	if p.Admin {
		p.Admin = false
		s.players[0].Admin = true

		s.log.Info().Str("pid", s.players[0].ID).Msgf("GAMES: Player %q is now admin", s.players[0].Name)
	}

	s.broadcastRoster()

	if s.state == StateInRound {
		if s.round.DrawerID == pid {
			s.endRound(ReasonDrawerLeft)
		} else {
			s.checkRoundComplete()
		}
	}

	return nil
}

// nextDrawer picks the earliest-joined player who has not drawn in the
// current cycle, starting a new cycle once everybody has.
func (s *Session) nextDrawer() *Player {
	for _, p := range s.players {
		if !s.drawn[p.ID] {
			return p
		}
	}

	clear(s.drawn)

	return s.players[0]
}

func (s *Session) nextWord() string {
	word := s.cfg.Words.pick(s.recent)

	s.recent = append(s.recent, word)
	if n := s.cfg.Words.window(); len(s.recent) > n {
		s.recent = s.recent[len(s.recent)-n:]
	}

	return word
}

func (s *Session) startRound(pid string) error {
	p := s.player(pid)
	if p == nil {
		return ErrNotJoined
	}

	if !p.Admin {
		return ErrNotAdmin
	}

	if len(s.players) < 2 {
		return ErrInsufficientPlayers
	}

	switch s.state {
	case StateLobby:
	case StateInRound:
		s.endRound(ReasonRestarted)
	default:
		return ErrInvalidState
	}

	drawer := s.nextDrawer()
	s.drawn[drawer.ID] = true

	word := s.nextWord()

	s.rounds++
	r := &Round{
		Number:    s.rounds,
		Word:      word,
		DrawerID:  drawer.ID,
		Drawer:    drawer.Name,
		StartedAt: time.Now(),
		answer:    normalizeGuess(word),
	}

	if d := s.cfg.RoundDuration; d > 0 {
		r.Deadline = r.StartedAt.Add(d)

		number := r.Number
		r.timer = time.AfterFunc(d, func() {
			_ = s.call(func() error {
				s.expire(number)

				return nil
			})
		})
	}

	s.round = r
	s.state = StateInRound

	s.log.Info().Str("pid", drawer.ID).Msgf("GAMES: Round %d started, %q is drawing", r.Number, drawer.Name)

	for _, p := range s.players {
		s.relay.to(p, s.startedMessage(p))
	}

	return nil
}

// expire ends round number on timeout. A timer that lost the race against
// an earlier end finds a later round (or none) and does nothing.
func (s *Session) expire(number int) {
	if s.state != StateInRound || s.round.Number != number {
		return
	}

	s.endRound(ReasonTimeout)
}

// checkRoundComplete ends the round once nobody is left to guess.
func (s *Session) checkRoundComplete() {
	r := s.round

	eligible, solved := 0, 0
	for _, p := range s.players {
		if p.ID == r.DrawerID {
			continue
		}

		eligible++
		if r.solvedBy(p.ID) {
			solved++
		}
	}

	switch {
	case eligible == 0 && len(r.solvers) == 0:
		s.endRound(ReasonAbandoned)
	case eligible == solved:
		s.endRound(ReasonSolved)
	}
}

// endRound reveals the word and returns the session to the lobby. It is a
// no-op outside a round.
func (s *Session) endRound(reason EndReason) {
	if s.state != StateInRound {
		return
	}

	r := s.round
	r.stopTimer()
	r.Reason = reason
	r.EndedAt = time.Now()

	s.state = StateRoundEnd

	winners := r.winners()
	winner := ""
	if len(winners) > 0 {
		winner = winners[0]
	}

	s.relay.all(s.players, RoundEndMessage{
		Type:    TypeRoundEnd,
		Round:   r.Number,
		Reason:  reason,
		Winner:  winner,
		Winners: winners,
		Word:    r.Word,
		Players: roster(s.players),
	})

	s.log.Info().Msgf("GAMES: Round %d ended (%s), word was %q", r.Number, reason, r.Word)

	s.record(r)

	r.strokes = nil
	s.state = StateLobby
}

func (s *Session) record(r *Round) {
	rec := s.cfg.Recorder
	if rec == nil {
		return
	}

	summary := RoundSummary{
		Room:      s.code,
		Number:    r.Number,
		Word:      r.Word,
		Drawer:    r.Drawer,
		Reason:    r.Reason,
		Winners:   r.winners(),
		Strokes:   len(r.strokes),
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		if err := rec.RecordRound(ctx, summary); err != nil {
			s.log.Warn().Err(err).Msgf("GAMES: Could not record round %d", summary.Number)
		}
	}()
}

func (s *Session) guess(pid, text string) error {
	p := s.player(pid)
	if p == nil {
		return ErrNotJoined
	}

	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > maxMessageLength {
		return ErrBadMessage
	}

	chat := ChatMessage{
		Type:    TypeMessage,
		Message: text,
		From:    p.Name,
		PID:     p.ID,
	}

	if s.state != StateInRound {
		s.relay.all(s.players, chat)

		return nil
	}

	r := s.round
	if r.DrawerID == pid {
		return ErrDrawerCannotGuess
	}

	// Solvers only talk among themselves and the drawer.
	if r.solvedBy(pid) {
		s.relay.where(s.players, func(o *Player) bool {
			return o.ID == r.DrawerID || r.solvedBy(o.ID)
		}, chat)

		return nil
	}

	if normalizeGuess(text) != r.answer {
		s.relay.all(s.players, chat)

		return nil
	}

	r.solvers = append(r.solvers, solver{pid: p.ID, name: p.Name})
	p.Score += pointsPerGuess

	s.log.Info().Str("pid", p.ID).Msgf("GAMES: %q guessed the word in round %d", p.Name, r.Number)

	s.relay.all(s.players, ChatMessage{
		Type:    TypeMessage,
		Message: fmt.Sprintf("%s guessed the word!", p.Name),
		System:  true,
	})
	s.relay.all(s.players, CorrectGuessMessage{
		Type:     TypeCorrectGuess,
		PID:      p.ID,
		Username: p.Name,
	})

	if s.cfg.FirstGuessEndsRound {
		s.endRound(ReasonSolved)

		return nil
	}

	s.checkRoundComplete()

	return nil
}

func (s *Session) isDrawer(pid string) bool {
	return s.state == StateInRound && s.round.DrawerID == pid
}

func (s *Session) clearBoard(pid string) error {
	if s.player(pid) == nil {
		return ErrNotJoined
	}

	if !s.isDrawer(pid) {
		return ErrNotDrawer
	}

	s.round.strokes = s.round.strokes[:0]
	s.relay.except(s.players, pid, ClearBoardMessage{Type: TypeClearBoard})

	return nil
}

func (s *Session) recordStroke(pid string, st Stroke) error {
	if s.player(pid) == nil {
		return ErrNotJoined
	}

	if !s.isDrawer(pid) {
		return ErrNotDrawer
	}

	if err := st.validate(); err != nil {
		return err
	}

	r := s.round
	if len(r.strokes) >= s.cfg.StrokeLimit {
		return ErrStrokeLimit
	}

	r.strokes = append(r.strokes, st)
	s.relay.except(s.players, pid, st.message())

	return nil
}

func (s *Session) detach(pid string, sink Sink) error {
	p := s.player(pid)
	if p == nil {
		return ErrNotJoined
	}

	if p.sink == nil || p.sink != sink {
		return nil
	}
	p.sink = nil

	s.broadcastRoster()

	return nil
}

func (s *Session) reattach(pid string, sink Sink) (*Player, error) {
	p := s.player(pid)
	if p == nil {
		return nil, ErrNotJoined
	}

	p.sink = sink

	s.log.Info().Str("pid", pid).Msgf("GAMES: Player %q reconnected", p.Name)

	s.welcome(p)
	s.broadcastRoster()

	if s.state == StateInRound {
		s.replayRound(p)
	}

	return p, nil
}

// close is terminal. An empty message closes silently.
func (s *Session) close(message string) {
	if s.round != nil {
		s.round.stopTimer()
	}

	if message != "" {
		s.relay.all(s.players, ClosedMessage{
			Type:    TypeGameClosed,
			Message: message,
		})
	}

	for _, p := range s.players {
		p.sink = nil
	}
	s.players = nil
	s.state = StateClosed

	close(s.done)

	s.log.Info().Msg("GAMES: Closed game")

	if s.onClose != nil {
		s.onClose(s)
	}
}
