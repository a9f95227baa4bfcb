package game

import "errors"

var (
	ErrVersionMismatch   = errors.New("client version mismatch")
	ErrBadPassword       = errors.New("incorrect password")
	ErrNotApproved       = errors.New("message before connection approval")
	ErrUnexpectedMessage = errors.New("unexpected message")
	ErrInvalidName       = errors.New("invalid player name")
	ErrTickPanic         = errors.New("simulation tick panicked")
)
