package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrNeedMoreBytes is returned when the buffered window ends inside a frame.
	ErrNeedMoreBytes = errors.New("frame: need more bytes")
	// ErrPayloadTooLarge is returned by the encoder for oversized payloads.
	ErrPayloadTooLarge = errors.New("frame: payload too large")

	ErrChecksumMismatch = errors.New("frame: checksum mismatch")
	ErrLengthOverflow   = errors.New("frame: length overflow")
	ErrUnknownOpcode    = errors.New("frame: unknown opcode")
	ErrTruncated        = errors.New("frame: truncated")
	ErrMissingStart     = errors.New("frame: missing start marker")
)

// Kind classifies a malformed frame.
type Kind int

const (
	KindChecksumMismatch Kind = iota + 1
	KindLengthOverflow
	KindUnknownOpcode
	KindTruncated
	KindMissingStart
)

func (k Kind) String() string {
	switch k {
	case KindChecksumMismatch:
		return "checksum mismatch"
	case KindLengthOverflow:
		return "length overflow"
	case KindUnknownOpcode:
		return "unknown opcode"
	case KindTruncated:
		return "truncated"
	case KindMissingStart:
		return "missing start marker"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindChecksumMismatch:
		return ErrChecksumMismatch
	case KindLengthOverflow:
		return ErrLengthOverflow
	case KindUnknownOpcode:
		return ErrUnknownOpcode
	case KindTruncated:
		return ErrTruncated
	case KindMissingStart:
		return ErrMissingStart
	default:
		return nil
	}
}

// ParseError describes one corrupt region of the byte stream.
type ParseError struct {
	Kind Kind
	// Opcode is set for errors detected after the opcode byte was read.
	Opcode Opcode
	// Length is the declared payload length, when it was read.
	Length int
	// Dropped is the number of bytes discarded while recovering.
	Dropped int
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case KindChecksumMismatch, KindUnknownOpcode:
		return fmt.Sprintf("frame: %s (opcode %s)", e.Kind, e.Opcode)
	case KindLengthOverflow:
		return fmt.Sprintf("frame: %s (opcode %s, length %d)", e.Kind, e.Opcode, e.Length)
	default:
		return fmt.Sprintf("frame: %s (%d bytes dropped)", e.Kind, e.Dropped)
	}
}

// Unwrap lets errors.Is match the sentinel of the error kind.
func (e *ParseError) Unwrap() error {
	return e.Kind.sentinel()
}
