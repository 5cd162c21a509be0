/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/sketchbox/games/sketch/history"
)

func testConfig() *Config {
	return &Config{
		bind:           "127.0.0.1",
		codeLength:     4,
		maxPlayers:     12,
		playerTimeout:  time.Second,
		port:           8080,
		rateBurst:      10,
		rateLimit:      10,
		redisStream:    history.DefaultStream,
		roundDuration:  time.Minute,
		sessionTimeout: time.Minute,
		strokeLimit:    100,
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, testConfig().validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"Port Too Low", func(c *Config) { c.port = 0 }},
		{"Port Too High", func(c *Config) { c.port = 65536 }},
		{"Lone Certificate", func(c *Config) { c.tlsCert = "cert.pem" }},
		{"Lone Key", func(c *Config) { c.tlsKey = "key.pem" }},
		{"Short Codes", func(c *Config) { c.codeLength = 3 }},
		{"Long Codes", func(c *Config) { c.codeLength = 9 }},
		{"One Player", func(c *Config) { c.maxPlayers = 1 }},
		{"Negative Grace", func(c *Config) { c.playerTimeout = -time.Second }},
		{"Negative Round", func(c *Config) { c.roundDuration = -time.Second }},
		{"No Strokes", func(c *Config) { c.strokeLimit = 0 }},
		{"No Rate", func(c *Config) { c.rateLimit = 0 }},
		{"No Burst", func(c *Config) { c.rateBurst = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestScheme(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestFlagDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags(nil))

	assert.Equal(t, 8080, cfg.port)
	assert.Equal(t, 4, cfg.codeLength)
	assert.Equal(t, 12, cfg.maxPlayers)
	assert.Equal(t, 90*time.Second, cfg.roundDuration)
	assert.Equal(t, history.DefaultStream, cfg.redisStream)
	assert.Empty(t, cfg.redisURL)
	assert.False(t, cfg.firstGuessEndsRound)
	assert.NoError(t, cfg.validate())
}

func TestFlagNormalization(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"--max_players=7", "--first-guess-ends-round", "--round-duration=30s"}))

	assert.Equal(t, 7, cfg.maxPlayers)
	assert.True(t, cfg.firstGuessEndsRound)
	assert.Equal(t, 30*time.Second, cfg.roundDuration)
}

func TestFlagsFromEnvironment(t *testing.T) {
	t.Setenv("SKETCHBOX_MAX_PLAYERS", "5")
	t.Setenv("SKETCHBOX_REDIS_URL", "redis://localhost:6379/0")

	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, 5, cfg.maxPlayers)
	assert.Equal(t, "redis://localhost:6379/0", cfg.redisURL)
}
