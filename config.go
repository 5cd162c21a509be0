package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/sketchbox/games/sketch/history"
)

type Config struct {
	bind                string
	codeLength          int
	firstGuessEndsRound bool
	maxPlayers          int
	playerTimeout       time.Duration
	port                int
	prefix              string
	profile             bool
	rateBurst           int
	rateLimit           float64
	redisStream         string
	redisURL            string
	roundDuration       time.Duration
	sessionTimeout      time.Duration
	strokeLimit         int
	tlsCert             string
	tlsKey              string
	verbose             bool
	version             bool
	words               string

	log zerolog.Logger
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.codeLength < 4 || c.codeLength > 8 {
		return fmt.Errorf("invalid code length (must be between 4-8 inclusive): %d", c.codeLength)
	}
	if c.maxPlayers < 2 {
		return fmt.Errorf("invalid max players (must be at least 2): %d", c.maxPlayers)
	}
	if c.playerTimeout < 0 || c.sessionTimeout < 0 || c.roundDuration < 0 {
		return errors.New("timeouts and durations must not be negative")
	}
	if c.strokeLimit < 1 {
		return fmt.Errorf("invalid stroke limit (must be at least 1): %d", c.strokeLimit)
	}
	if c.rateLimit <= 0 || c.rateBurst < 1 {
		return errors.New("--rate-limit and --rate-burst must be positive")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SKETCHBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "sketchbox",
		Short:         "A draw-and-guess party game, served over WebSockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			cfg.log = newLogger(cfg, cmd.ErrOrStderr())
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SKETCHBOX_BIND)")
	fs.IntVar(&cfg.codeLength, "code-length", 4, "length of generated room codes, 4-8 (env: SKETCHBOX_CODE_LENGTH)")
	fs.BoolVar(&cfg.firstGuessEndsRound, "first-guess-ends-round", false, "end each round on its first correct guess (env: SKETCHBOX_FIRST_GUESS_ENDS_ROUND)")
	fs.IntVar(&cfg.maxPlayers, "max-players", 12, "maximum players per room (env: SKETCHBOX_MAX_PLAYERS)")
	fs.DurationVar(&cfg.playerTimeout, "player-timeout", 30*time.Second, "time before disconnected players are removed (env: SKETCHBOX_PLAYER_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: SKETCHBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: SKETCHBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers and list room codes in /stats (env: SKETCHBOX_PROFILE)")
	fs.IntVar(&cfg.rateBurst, "rate-burst", 120, "messages a connection may send in a burst (env: SKETCHBOX_RATE_BURST)")
	fs.Float64Var(&cfg.rateLimit, "rate-limit", 60, "sustained messages per second per connection (env: SKETCHBOX_RATE_LIMIT)")
	fs.StringVar(&cfg.redisStream, "redis-stream", history.DefaultStream, "redis stream that finished rounds are appended to (env: SKETCHBOX_REDIS_STREAM)")
	fs.StringVar(&cfg.redisURL, "redis-url", "", "redis url for round history, disabled if empty (env: SKETCHBOX_REDIS_URL)")
	fs.DurationVar(&cfg.roundDuration, "round-duration", 90*time.Second, "time limit per round, 0 for none (env: SKETCHBOX_ROUND_DURATION)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game sessions are ended (env: SKETCHBOX_SESSION_TIMEOUT)")
	fs.IntVar(&cfg.strokeLimit, "stroke-limit", 20000, "maximum strokes kept per round (env: SKETCHBOX_STROKE_LIMIT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: SKETCHBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: SKETCHBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: SKETCHBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: SKETCHBOX_VERSION)")
	fs.StringVar(&cfg.words, "words", "", "word list to draw from, one per line (env: SKETCHBOX_WORDS)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("sketchbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
