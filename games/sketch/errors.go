/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

import "errors"

// Error is a rejection reported to the originating client as a single
// "error" message. Code is stable and meant for programs; Message is shown
// to players.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code
}

var (
	ErrNotFound            = &Error{"room-not-found", "That room does not exist."}
	ErrNotAdmin            = &Error{"not-admin", "Only the room admin can do that."}
	ErrNotDrawer           = &Error{"not-drawer", "Only the current drawer can do that."}
	ErrDrawerCannotGuess   = &Error{"drawer-cannot-guess", "You are drawing; you cannot guess this round."}
	ErrInsufficientPlayers = &Error{"insufficient-players", "At least 2 players are needed to start a round."}
	ErrInvalidState        = &Error{"invalid-state", "That is not possible right now."}
	ErrDuplicateJoin       = &Error{"duplicate-join", "You are already in this room from another connection."}

	ErrRoomFull      = &Error{"room-full", "That room is full."}
	ErrRoomExists    = &Error{"room-exists", "A room with that code already exists."}
	ErrInvalidCode   = &Error{"invalid-code", "Room codes are 4 to 8 letters or digits."}
	ErrInvalidName   = &Error{"invalid-name", "Please choose a username between 1 and 24 characters."}
	ErrNameTaken     = &Error{"name-taken", "That username is already taken. Please choose a different username."}
	ErrInvalidStroke = &Error{"invalid-stroke", "Strokes need a start or line mode and coordinates between 0 and 1."}
	ErrStrokeLimit   = &Error{"stroke-limit", "The board is full; clear it to keep drawing."}
	ErrNotJoined     = &Error{"not-joined", "Join a room first."}
	ErrWrongRoom     = &Error{"wrong-room", "This connection belongs to a different room."}
	ErrRateLimited   = &Error{"rate-limited", "Slow down a little."}
	ErrBadMessage    = &Error{"bad-message", "That message could not be understood."}
)

var errUnknown = &Error{"unknown-error", "Something went wrong. Please try again."}

// Describe maps err onto the rejection it wraps. Errors that are not
// rejections are reported as unknown-error so internals never reach clients.
func Describe(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return errUnknown
}
