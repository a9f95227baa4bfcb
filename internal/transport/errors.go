package transport

import "errors"

var (
	ErrConnectionClosed  = errors.New("connection closed")
	ErrSendQueueFull     = errors.New("send queue full")
	ErrAlreadyRegistered = errors.New("socket already registered")
	ErrRegistryFull      = errors.New("connection limit reached")
	ErrFloodLimit        = errors.New("frame rate limit exceeded")
	ErrPollUnsupported   = errors.New("readiness polling not supported on this platform")
)
