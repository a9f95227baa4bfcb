package server

import "errors"

var (
	ErrBind         = errors.New("bind failed")
	ErrAccept       = errors.New("accept failed")
	ErrPoll         = errors.New("readiness poll failed")
	ErrNotRunning   = errors.New("server not running")
	ErrHandlerPanic = errors.New("message handler panicked")
)
