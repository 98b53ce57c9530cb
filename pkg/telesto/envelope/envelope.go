// Package envelope is the protobuf wire form of frames exchanged with the
// MQTT bridge.
//
//	message Envelope {
//	  uint32 opcode             = 1;
//	  string name               = 2;
//	  string tag                = 3;
//	  bytes  payload            = 4;
//	  int64  received_unix_nano = 5;
//	  string port               = 6;
//	}
package envelope

import (
	"fmt"
	"time"

	"github.com/planetscale/vtprotobuf/protohelpers"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/exepirit/telesto-go/pkg/telesto"
	"github.com/exepirit/telesto-go/pkg/telesto/frame"
)

type Envelope struct {
	Opcode           uint32
	Name             string
	Tag              string
	Payload          []byte
	ReceivedUnixNano int64
	Port             string
}

// FromIndication wraps an indication received on port.
func FromIndication(ind telesto.Indication, port string) *Envelope {
	e := &Envelope{
		Opcode:  uint32(ind.Frame.Opcode),
		Name:    ind.Name,
		Tag:     ind.Tag.String(),
		Payload: ind.Frame.Payload,
		Port:    port,
	}
	if !ind.ReceivedAt.IsZero() {
		e.ReceivedUnixNano = ind.ReceivedAt.UnixNano()
	}
	return e
}

// Frame returns the frame carried by the envelope.
func (m *Envelope) Frame() (frame.Frame, error) {
	if m.Opcode > 0xFF {
		return frame.Frame{}, fmt.Errorf("envelope: opcode %d out of range", m.Opcode)
	}
	return frame.Frame{Opcode: frame.Opcode(m.Opcode), Payload: m.Payload}, nil
}

func (m *Envelope) ReceivedAt() time.Time {
	if m.ReceivedUnixNano == 0 {
		return time.Time{}
	}
	return time.Unix(0, m.ReceivedUnixNano)
}

func (m *Envelope) SizeVT() (n int) {
	if m == nil {
		return 0
	}
	if m.Opcode != 0 {
		n += 1 + protohelpers.SizeOfVarint(uint64(m.Opcode))
	}
	if l := len(m.Name); l > 0 {
		n += 1 + l + protohelpers.SizeOfVarint(uint64(l))
	}
	if l := len(m.Tag); l > 0 {
		n += 1 + l + protohelpers.SizeOfVarint(uint64(l))
	}
	if l := len(m.Payload); l > 0 {
		n += 1 + l + protohelpers.SizeOfVarint(uint64(l))
	}
	if m.ReceivedUnixNano != 0 {
		n += 1 + protohelpers.SizeOfVarint(uint64(m.ReceivedUnixNano))
	}
	if l := len(m.Port); l > 0 {
		n += 1 + l + protohelpers.SizeOfVarint(uint64(l))
	}
	return n
}

func (m *Envelope) MarshalVT() (dAtA []byte, err error) {
	if m == nil {
		return nil, nil
	}
	size := m.SizeVT()
	dAtA = make([]byte, size)
	n, err := m.MarshalToSizedBufferVT(dAtA[:size])
	if err != nil {
		return nil, err
	}
	return dAtA[:n], nil
}

// MarshalToSizedBufferVT writes the message backwards into the end of dAtA,
// which must hold at least SizeVT bytes.
func (m *Envelope) MarshalToSizedBufferVT(dAtA []byte) (int, error) {
	if m == nil {
		return 0, nil
	}
	i := len(dAtA)
	if len(m.Port) > 0 {
		i -= len(m.Port)
		copy(dAtA[i:], m.Port)
		i = protohelpers.EncodeVarint(dAtA, i, uint64(len(m.Port)))
		i--
		dAtA[i] = 0x32
	}
	if m.ReceivedUnixNano != 0 {
		i = protohelpers.EncodeVarint(dAtA, i, uint64(m.ReceivedUnixNano))
		i--
		dAtA[i] = 0x28
	}
	if len(m.Payload) > 0 {
		i -= len(m.Payload)
		copy(dAtA[i:], m.Payload)
		i = protohelpers.EncodeVarint(dAtA, i, uint64(len(m.Payload)))
		i--
		dAtA[i] = 0x22
	}
	if len(m.Tag) > 0 {
		i -= len(m.Tag)
		copy(dAtA[i:], m.Tag)
		i = protohelpers.EncodeVarint(dAtA, i, uint64(len(m.Tag)))
		i--
		dAtA[i] = 0x1a
	}
	if len(m.Name) > 0 {
		i -= len(m.Name)
		copy(dAtA[i:], m.Name)
		i = protohelpers.EncodeVarint(dAtA, i, uint64(len(m.Name)))
		i--
		dAtA[i] = 0x12
	}
	if m.Opcode != 0 {
		i = protohelpers.EncodeVarint(dAtA, i, uint64(m.Opcode))
		i--
		dAtA[i] = 0x8
	}
	return len(dAtA) - i, nil
}

// UnmarshalVT replaces m with the message in dAtA. Unknown fields are
// skipped.
func (m *Envelope) UnmarshalVT(dAtA []byte) error {
	*m = Envelope{}
	for len(dAtA) > 0 {
		num, typ, n := protowire.ConsumeTag(dAtA)
		if n < 0 {
			return fmt.Errorf("envelope: %w", protowire.ParseError(n))
		}
		dAtA = dAtA[n:]

		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(dAtA)
			if n < 0 {
				return fmt.Errorf("envelope: opcode: %w", protowire.ParseError(n))
			}
			m.Opcode = uint32(v)
			dAtA = dAtA[n:]
		case num == 5 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(dAtA)
			if n < 0 {
				return fmt.Errorf("envelope: received_unix_nano: %w", protowire.ParseError(n))
			}
			m.ReceivedUnixNano = int64(v)
			dAtA = dAtA[n:]
		case (num == 2 || num == 3 || num == 4 || num == 6) && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(dAtA)
			if n < 0 {
				return fmt.Errorf("envelope: field %d: %w", num, protowire.ParseError(n))
			}
			switch num {
			case 2:
				m.Name = string(v)
			case 3:
				m.Tag = string(v)
			case 4:
				m.Payload = append([]byte(nil), v...)
			case 6:
				m.Port = string(v)
			}
			dAtA = dAtA[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, dAtA)
			if n < 0 {
				return fmt.Errorf("envelope: field %d: %w", num, protowire.ParseError(n))
			}
			dAtA = dAtA[n:]
		}
	}
	return nil
}
