// Package protocol maps encoded frames to transport messages and back.
//
// The wire format carries no framing metadata: one message is exactly one
// encoded frame, with zero header bytes. Receivers therefore cannot detect
// loss, duplication or reordering, only whether a message arrived.
package protocol

import (
	"errors"
	"fmt"
)

// MaxMessageSize is the largest payload a single datagram may carry.
const MaxMessageSize = 65535

// ErrOversize is returned when an encoded frame does not fit in one message.
var ErrOversize = errors.New("protocol: frame exceeds maximum message size")

// Protocol converts between encoded frames and transport messages.
type Protocol interface {
	Package(encoded []byte) ([]byte, error)
	Unpackage(message []byte) []byte
}

// Raw is the header-less protocol: the encoded frame is the whole message.
var Raw Protocol = raw{}

type raw struct{}

func (raw) Package(encoded []byte) ([]byte, error) { return Package(encoded) }

func (raw) Unpackage(message []byte) []byte { return Unpackage(message) }

// Package returns the message carrying encoded. An empty frame yields an
// empty message, which receivers read as "no new frame".
func Package(encoded []byte) ([]byte, error) {
	if len(encoded) > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrOversize, len(encoded), MaxMessageSize)
	}
	return encoded, nil
}

// Unpackage returns the encoded frame carried by message. An empty message
// is a valid signal and yields an empty frame, never an error.
func Unpackage(message []byte) []byte {
	if len(message) == 0 {
		return nil
	}
	return message
}
