/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/sketchbox/games/sketch"
	"github.com/Seednode/sketchbox/games/sketch/history"
)

// gameServer is the sketch server plus the resources it was built with.
type gameServer struct {
	*sketch.Server

	recorder *history.RedisRecorder
}

func newGameServer(ctx context.Context, cfg *Config) (*gameServer, error) {
	words := sketch.DefaultWords()
	if cfg.words != "" {
		var err error

		words, err = sketch.LoadWords(cfg.words)
		if err != nil {
			return nil, fmt.Errorf("loading word list: %w", err)
		}
	}

	logf(cfg, "START: Loaded %d words", words.Len())

	game := &gameServer{}

	sc := sketch.Config{
		CodeLength:          cfg.codeLength,
		MaxPlayers:          cfg.maxPlayers,
		RoundDuration:       cfg.roundDuration,
		FirstGuessEndsRound: cfg.firstGuessEndsRound,
		StrokeLimit:         cfg.strokeLimit,
		PlayerTimeout:       cfg.playerTimeout,
		SessionTimeout:      cfg.sessionTimeout,
		RateLimit:           cfg.rateLimit,
		RateBurst:           cfg.rateBurst,
		Words:               words,
		Logger:              &cfg.log,
	}

	if cfg.redisURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		recorder, err := history.Dial(dialCtx, cfg.redisURL, cfg.redisStream)
		if err != nil {
			return nil, err
		}

		logf(cfg, "START: Recording rounds to redis stream %s", cfg.redisStream)

		game.recorder = recorder
		sc.Recorder = recorder
	}

	game.Server = sketch.NewServer(sc)

	return game, nil
}

func (g *gameServer) Close() {
	if g.recorder != nil {
		_ = g.recorder.Close()
	}
}

// redirectNewGame handles GET /path by opening a room with a fresh code
// and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, game *gameServer) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s, err := game.Registry().Create("")
		if err != nil {
			http.Error(w, "unable to create game", http.StatusInternalServerError)

			return
		}

		logf(cfg, "GAMES: Created game %s/%s for %s", path, s.Code(), realIP(r))

		http.Redirect(w, r, cfg.prefix+path+"/"+s.Code(), http.StatusTemporaryRedirect)
	}
}

// serveRoomPage shows a room's code and join QR. Codes in the URL are
// case-insensitive; non-canonical ones redirect.
func serveRoomPage(cfg *Config, path string, game *gameServer, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		code, ok := sketch.NormalizeCode(ps.ByName("gameid"))
		if !ok {
			http.NotFound(w, r)

			return
		}

		if code != ps.ByName("gameid") {
			http.Redirect(w, r, cfg.prefix+path+"/"+code, http.StatusPermanentRedirect)

			return
		}

		_ = sketch.ClientID(w, r)

		status := "This room is open."
		if _, err := game.Registry().Get(code); err != nil {
			status = "This room is not open yet. Create it from your client to start playing."
		}

		var body strings.Builder
		body.WriteString(fmt.Sprintf("<h1>Room %s</h1>", html.EscapeString(code)))
		body.WriteString(fmt.Sprintf("<p>%s</p>", status))
		body.WriteString(fmt.Sprintf(`<img src="%s/qr" alt="QR code for room %s">`, html.EscapeString(cfg.prefix+path+"/"+code), html.EscapeString(code)))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		written, err := w.Write([]byte(newPage("sketchbox: "+code, cfg.prefix+"/", body.String())))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Room page %s (%s) to %s in %s",
			code,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveWS(cfg *Config, game *gameServer) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		logf(cfg, "SERVE: WebSocket for room %s from %s", ps.ByName("gameid"), realIP(r))

		game.ServeWS(w, r, ps.ByName("gameid"))
	}
}

// qrHandler generates a PNG QR code for the current game URL.
func qrHandler(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		if _, ok := sketch.NormalizeCode(ps.ByName("gameid")); !ok {
			http.NotFound(w, r)

			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		written, err := w.Write(png)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: QR code (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// registerSketchGame sets up routes so that:
//   - $path                  → redirects to a new room
//   - $path/:gameid          → room page
//   - $path/:gameid/ws       → WebSocket for that room
//   - $path/:gameid/qr       → PNG QR code for the room URL
func registerSketchGame(cfg *Config, path string, mux *httprouter.Router, game *gameServer, errs chan<- error) {
	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, game))

	mux.GET(cfg.prefix+path+"/:gameid", serveRoomPage(cfg, path, game, errs))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWS(cfg, game))

	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler(cfg, errs))
}
