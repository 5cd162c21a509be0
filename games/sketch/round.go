/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

import (
	"context"
	"time"
)

// EndReason says why a round finished.
type EndReason string

const (
	ReasonSolved     EndReason = "solved"
	ReasonDrawerLeft EndReason = "drawer_left"
	ReasonTimeout    EndReason = "timeout"
	ReasonRestarted  EndReason = "restarted" // admin started a new round mid-round
	ReasonAbandoned  EndReason = "abandoned" // every guesser left
)

// StrokeMode discriminates the two kinds of pen events.
type StrokeMode string

const (
	StrokeStart StrokeMode = "start"
	StrokeLine  StrokeMode = "line"
)

// Stroke is one normalized pen event. X and Y are fractions of the canvas.
type Stroke struct {
	Mode StrokeMode
	X    float64
	Y    float64
}

// validCoordinate is false for NaN and both infinities.
func validCoordinate(v float64) bool {
	return v >= 0 && v <= 1
}

func (s Stroke) validate() error {
	if s.Mode != StrokeStart && s.Mode != StrokeLine {
		return ErrInvalidStroke
	}
	if !validCoordinate(s.X) || !validCoordinate(s.Y) {
		return ErrInvalidStroke
	}

	return nil
}

func (s Stroke) message() StrokeMessage {
	return StrokeMessage{
		Type: "draw_" + string(s.Mode),
		X:    s.X,
		Y:    s.Y,
	}
}

type solver struct {
	pid  string
	name string
}

// Round is one drawing/guessing cycle with a single secret word.
type Round struct {
	Number    int
	Word      string
	DrawerID  string
	Drawer    string
	StartedAt time.Time
	Deadline  time.Time // zero when rounds are untimed
	EndedAt   time.Time
	Reason    EndReason

	answer  string // normalized Word
	solvers []solver
	strokes []Stroke
	timer   *time.Timer
}

func (r *Round) solvedBy(pid string) bool {
	for _, s := range r.solvers {
		if s.pid == pid {
			return true
		}
	}

	return false
}

func (r *Round) winners() []string {
	names := make([]string, 0, len(r.solvers))
	for _, s := range r.solvers {
		names = append(names, s.name)
	}

	return names
}

func (r *Round) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// RoundSummary is handed to a RoundRecorder after each round.
type RoundSummary struct {
	Room      string
	Number    int
	Word      string
	Drawer    string
	Reason    EndReason
	Winners   []string
	Strokes   int
	StartedAt time.Time
	EndedAt   time.Time
}

// RoundRecorder stores finished rounds somewhere outside the process.
type RoundRecorder interface {
	RecordRound(ctx context.Context, s RoundSummary) error
}
