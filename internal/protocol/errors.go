package protocol

import "errors"

var (
	ErrShortHeader    = errors.New("short frame header")
	ErrShortBody      = errors.New("short frame body")
	ErrInvalidLength  = errors.New("invalid frame length")
	ErrFrameTooLarge  = errors.New("frame exceeds maximum size")
	ErrEmptyFrame     = errors.New("frame has no type byte")
	ErrTypeMismatch   = errors.New("message type does not match payload")
	ErrMalformedField = errors.New("malformed payload field")
)
