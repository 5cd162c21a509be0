/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultCodeLength  = 4
	defaultMaxPlayers  = 12
	defaultStrokeLimit = 20000
	defaultRateLimit   = 60
	defaultRateBurst   = 120
)

// Config tunes every room served by a Registry. Zero values fall back to
// the defaults above; zero durations disable the matching timer.
type Config struct {
	CodeLength          int
	MaxPlayers          int
	RoundDuration       time.Duration // 0: rounds end only when solved or abandoned
	FirstGuessEndsRound bool
	StrokeLimit         int
	PlayerTimeout       time.Duration // grace before a disconnected player is removed
	SessionTimeout      time.Duration // idle rooms are closed after this; 0 never
	RateLimit           float64       // inbound messages per second per connection
	RateBurst           int

	Words    *WordPool
	Recorder RoundRecorder
	Logger   *zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.CodeLength == 0 {
		c.CodeLength = defaultCodeLength
	}
	if c.MaxPlayers == 0 {
		c.MaxPlayers = defaultMaxPlayers
	}
	if c.StrokeLimit == 0 {
		c.StrokeLimit = defaultStrokeLimit
	}
	if c.RateLimit == 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.RateBurst == 0 {
		c.RateBurst = defaultRateBurst
	}
	if c.Words == nil {
		c.Words = DefaultWords()
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}

	return c
}
