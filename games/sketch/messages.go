/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

import "time"

// Client → server message types.
const (
	TypeCreateGame = "create_game"
	TypeJoinGame   = "join_game"
	TypeStartGame  = "start_game"
	TypeLeaveGame  = "leave_game"
	TypeGuess      = "guess"
	TypeDrawStart  = "draw_start"
	TypeDrawLine   = "draw_line"
	TypeClearBoard = "clear_board"
)

// Server → client message types. draw_start, draw_line and clear_board are
// relayed under the same names they arrive with.
const (
	TypeGameCreated   = "game_created"
	TypeGameJoined    = "game_joined"
	TypeUpdatePlayers = "update_players"
	TypeGameStarted   = "game_started"
	TypeCorrectGuess  = "correct_guess"
	TypeRoundEnd      = "round_end"
	TypeMessage       = "message"
	TypeError         = "error"
	TypeGameClosed    = "game_closed"
)

// Messages coming from clients
type ClientMessage struct {
	Type     string   `json:"type"`
	GameID   string   `json:"game_id,omitempty"`  // every message
	Username string   `json:"username,omitempty"` // join_game
	Message  string   `json:"message,omitempty"`  // guess
	X        *float64 `json:"x,omitempty"`        // draw_start / draw_line
	Y        *float64 `json:"y,omitempty"`        // draw_start / draw_line
}

// PlayerInfo is the public view of a player. pid is the only identity field
// sent to clients.
type PlayerInfo struct {
	PID       string `json:"pid"`
	Username  string `json:"username"`
	Score     int    `json:"score"`
	IsAdmin   bool   `json:"is_admin"`
	Connected bool   `json:"connected"`
}

type GameCreatedMessage struct {
	Type   string `json:"type"` // "game_created"
	GameID string `json:"game_id"`
}

// GameJoinedMessage is sent only to the joining (or reattaching) client.
type GameJoinedMessage struct {
	Type    string       `json:"type"` // "game_joined"
	GameID  string       `json:"game_id"`
	You     PlayerInfo   `json:"you"`
	Players []PlayerInfo `json:"players"`
}

type PlayersMessage struct {
	Type    string       `json:"type"` // "update_players"
	Players []PlayerInfo `json:"players"`
}

// GameStartedMessage carries the word only in the copy addressed to the drawer.
type GameStartedMessage struct {
	Type     string     `json:"type"` // "game_started"
	Round    int        `json:"round"`
	DrawerID string     `json:"drawer_id"`
	Drawer   string     `json:"drawer"`
	Word     string     `json:"word,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

type CorrectGuessMessage struct {
	Type     string `json:"type"` // "correct_guess"
	PID      string `json:"pid"`
	Username string `json:"username"`
}

// RoundEndMessage reveals the word to everybody. Winner is the first player
// to solve the round, Winners lists every solver in order.
type RoundEndMessage struct {
	Type    string       `json:"type"` // "round_end"
	Round   int          `json:"round"`
	Reason  EndReason    `json:"reason"`
	Winner  string       `json:"winner"`
	Winners []string     `json:"winners"`
	Word    string       `json:"word"`
	Players []PlayerInfo `json:"players"`
}

// ChatMessage is either a relayed chat line (From/PID set) or a system line.
type ChatMessage struct {
	Type    string `json:"type"` // "message"
	Message string `json:"message"`
	From    string `json:"from,omitempty"`
	PID     string `json:"pid,omitempty"`
	System  bool   `json:"system,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ClosedMessage struct {
	Type    string `json:"type"` // "game_closed"
	Message string `json:"message"`
}

// StrokeMessage is a relayed draw_start or draw_line.
type StrokeMessage struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type ClearBoardMessage struct {
	Type string `json:"type"` // "clear_board"
}

func errorMessage(err error) ErrorMessage {
	e := Describe(err)

	return ErrorMessage{
		Type:    TypeError,
		Code:    e.Code,
		Message: e.Message,
	}
}
