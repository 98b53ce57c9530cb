// Package frame implements the Telesto UART framing: encoding of command
// frames and incremental, resynchronizing decoding of the inbound byte stream.
//
// Wire layout:
//
//	+-------+--------+--------+-------------+----------+
//	| Start | Opcode | Length |   Payload   | Checksum |
//	+-------+--------+--------+-------------+----------+
//	| 0x02  | 1 byte | 1 byte | 0-224 bytes | 1 byte   |
//	+-------+--------+--------+-------------+----------+
//
// The checksum covers every preceding byte of the frame. Start marker,
// payload bound and checksum algorithm are configurable.
package frame

import (
	"bytes"
	"fmt"
)

const (
	// DefaultStart is the STX byte opening every frame.
	DefaultStart byte = 0x02
	// DefaultMaxPayload is the largest payload the module accepts.
	DefaultMaxPayload = 224

	// start marker, opcode and length
	HeaderSize = 3

	maxLengthField = 0xFF
)

// Opcode identifies a command, confirmation or indication.
type Opcode uint8

func (o Opcode) String() string {
	return fmt.Sprintf("0x%02X", uint8(o))
}

// Frame is one decoded protocol message.
type Frame struct {
	Opcode  Opcode
	Payload []byte
}

// OpcodeSet reports which opcodes the decoder accepts.
type OpcodeSet interface {
	Known(op Opcode) bool
}

// Config parametrizes the codec. Zero fields take the Telesto defaults.
type Config struct {
	Start      byte
	MaxPayload int
	Checksum   Checksum
	// Opcodes restricts decoding to known opcodes. Nil accepts any opcode.
	Opcodes OpcodeSet
}

// DefaultConfig returns the Telesto framing parameters.
func DefaultConfig() Config {
	return Config{
		Start:      DefaultStart,
		MaxPayload: DefaultMaxPayload,
		Checksum:   XOR8,
	}
}

// Codec encodes and decodes frames. It is stateless and safe for concurrent use.
type Codec struct {
	cfg Config
}

func NewCodec(cfg Config) *Codec {
	if cfg.Start == 0 {
		cfg.Start = DefaultStart
	}
	if cfg.MaxPayload <= 0 {
		cfg.MaxPayload = DefaultMaxPayload
	}
	if cfg.MaxPayload > maxLengthField {
		cfg.MaxPayload = maxLengthField
	}
	if cfg.Checksum == nil {
		cfg.Checksum = XOR8
	}
	return &Codec{cfg: cfg}
}

// Config returns the effective configuration.
func (c *Codec) Config() Config {
	return c.cfg
}

// MaxFrameLen is the size of the largest valid frame on the wire.
func (c *Codec) MaxFrameLen() int {
	return HeaderSize + c.cfg.MaxPayload + c.cfg.Checksum.Size()
}

// Encode serialises one frame.
func (c *Codec) Encode(op Opcode, payload []byte) ([]byte, error) {
	return c.AppendEncode(make([]byte, 0, HeaderSize+len(payload)+c.cfg.Checksum.Size()), op, payload)
}

// AppendEncode appends the encoded frame to dst.
func (c *Codec) AppendEncode(dst []byte, op Opcode, payload []byte) ([]byte, error) {
	if len(payload) > c.cfg.MaxPayload {
		return dst, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), c.cfg.MaxPayload)
	}
	start := len(dst)
	dst = append(dst, c.cfg.Start, byte(op), byte(len(payload)))
	dst = append(dst, payload...)
	return c.cfg.Checksum.Append(dst, dst[start:]), nil
}

// Decode tries to decode one frame from the beginning of window. It returns
// the frame and the number of bytes it occupies, ErrNeedMoreBytes when window
// ends inside a plausible frame, or a *ParseError when the bytes at offset 0
// cannot start a valid frame. Decode never advances past a bad byte itself;
// recovery is up to the caller.
func (c *Codec) Decode(window []byte) (Frame, int, error) {
	if len(window) == 0 {
		return Frame{}, 0, ErrNeedMoreBytes
	}
	if window[0] != c.cfg.Start {
		return Frame{}, 0, &ParseError{Kind: KindMissingStart}
	}
	if len(window) < 2 {
		return Frame{}, 0, ErrNeedMoreBytes
	}

	op := Opcode(window[1])
	if c.cfg.Opcodes != nil && !c.cfg.Opcodes.Known(op) {
		return Frame{}, 0, &ParseError{Kind: KindUnknownOpcode, Opcode: op}
	}
	if len(window) < HeaderSize {
		return Frame{}, 0, ErrNeedMoreBytes
	}

	n := int(window[2])
	if n > c.cfg.MaxPayload {
		return Frame{}, 0, &ParseError{Kind: KindLengthOverflow, Opcode: op, Length: n}
	}
	body := HeaderSize + n
	total := body + c.cfg.Checksum.Size()
	if len(window) < total {
		return Frame{}, 0, ErrNeedMoreBytes
	}

	var scratch [8]byte
	sum := c.cfg.Checksum.Append(scratch[:0], window[:body])
	if !bytes.Equal(sum, window[body:total]) {
		return Frame{}, 0, &ParseError{Kind: KindChecksumMismatch, Opcode: op, Length: n}
	}

	payload := make([]byte, n)
	copy(payload, window[HeaderSize:body])
	return Frame{Opcode: op, Payload: payload}, total, nil
}
