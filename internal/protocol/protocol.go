// Package protocol implements the wire framing and the message catalog.
//
// A frame is a 4-byte little-endian signed length, followed by that many
// bytes: one message type byte and the message body.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// HeaderSize is the size of the length prefix.
	HeaderSize = 4

	// DefaultMaxFrameSize bounds the length prefix accepted from clients.
	DefaultMaxFrameSize = 64 * 1024

	// ProtocolVersion is the version clients must announce in ConnectRequest.
	ProtocolVersion = 12
)

// ServerVersion is the version string expected from clients.
var ServerVersion = fmt.Sprintf("Terraria%d", ProtocolVersion)

// Message is one decoded frame.
type Message struct {
	Type MessageType
	Body []byte
}

// Len returns the value of the length prefix for this message.
func (m Message) Len() int {
	return 1 + len(m.Body)
}

// Encode serializes a Message into a complete frame.
func Encode(msg Message) []byte {
	frame := make([]byte, HeaderSize+msg.Len())
	binary.LittleEndian.PutUint32(frame, uint32(int32(msg.Len())))
	frame[HeaderSize] = byte(msg.Type)
	copy(frame[HeaderSize+1:], msg.Body)
	return frame
}

// Decode parses a complete frame. The body aliases frame.
func Decode(frame []byte) (Message, error) {
	if len(frame) < HeaderSize {
		return Message{}, ErrShortHeader
	}
	length := int32(binary.LittleEndian.Uint32(frame))
	if length <= 0 {
		return Message{}, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	if int64(len(frame)-HeaderSize) < int64(length) {
		return Message{}, ErrShortBody
	}
	return DecodePayload(frame[HeaderSize : HeaderSize+int(length)])
}

// DecodePayload splits a frame payload into its type byte and body.
func DecodePayload(payload []byte) (Message, error) {
	if len(payload) == 0 {
		return Message{}, ErrEmptyFrame
	}
	return Message{Type: MessageType(payload[0]), Body: payload[1:]}, nil
}

// ReadMessage reads exactly one frame from r.
//
// A stream that ends or times out inside the header returns an error
// wrapping ErrShortHeader; inside the payload, ErrShortBody. A length prefix
// that is not positive or exceeds maxSize is rejected before any payload is
// read. maxSize <= 0 disables the size bound.
func ReadMessage(r io.Reader, maxSize int) (Message, []byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Message{}, nil, fmt.Errorf("%w: %w", ErrShortHeader, err)
	}

	length := int32(binary.LittleEndian.Uint32(header[:]))
	if length <= 0 {
		return Message{}, nil, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	if maxSize > 0 && int64(length) > int64(maxSize) {
		return Message{}, nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, maxSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, nil, fmt.Errorf("%w: %w", ErrShortBody, err)
	}

	msg, err := DecodePayload(payload)
	return msg, payload, err
}

// WriteMessage writes msg as a single frame.
func WriteMessage(w io.Writer, msg Message) error {
	if msg.Len() > math.MaxInt32 {
		return ErrFrameTooLarge
	}
	_, err := w.Write(Encode(msg))
	return err
}

// IsDisconnect reports whether err means the peer went away mid-frame
// rather than sending something malformed.
func IsDisconnect(err error) bool {
	return errors.Is(err, ErrShortHeader) || errors.Is(err, ErrShortBody)
}
