package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type opcodes []Opcode

func (s opcodes) Known(op Opcode) bool {
	for _, o := range s {
		if o == op {
			return true
		}
	}
	return false
}

func TestEncodeTelestoLayout(t *testing.T) {
	codec := NewCodec(DefaultConfig())

	got, err := codec.Encode(0x06, []byte{0x05})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// 0x02 ^ 0x06 ^ 0x01 ^ 0x05 = 0x00
	want := []byte{0x02, 0x06, 0x01, 0x05, 0x00}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Encode() mismatch (-want +got):\n%s", diff)
	}

	got, err = codec.Encode(0x05, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want = []byte{0x02, 0x05, 0x00, 0x07}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Encode() mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodePayloadTooLarge(t *testing.T) {
	codec := NewCodec(DefaultConfig())
	_, err := codec.Encode(0x00, bytes.Repeat([]byte{0xAA}, DefaultMaxPayload+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		checksum Checksum
		opcode   Opcode
		payload  []byte
	}{
		{name: "empty payload", checksum: XOR8, opcode: 0x01, payload: []byte{}},
		{name: "small payload", checksum: XOR8, opcode: 0x81, payload: []byte{0x00}},
		{name: "payload with start bytes", checksum: XOR8, opcode: 0x00, payload: []byte{0x02, 0x02, 0x02}},
		{name: "maximum payload", checksum: XOR8, opcode: 0x40, payload: bytes.Repeat([]byte{0xAA}, DefaultMaxPayload)},
		{name: "sum8", checksum: Sum8, opcode: 0x90, payload: []byte{1, 2, 3, 4, 5}},
		{name: "crc32", checksum: CRC32, opcode: 0x11, payload: []byte("hello")},
		{name: "crc32 maximum payload", checksum: CRC32, opcode: 0x11, payload: bytes.Repeat([]byte{0x55}, DefaultMaxPayload)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Checksum = tt.checksum
			codec := NewCodec(cfg)

			encoded, err := codec.Encode(tt.opcode, tt.payload)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if len(encoded) != HeaderSize+len(tt.payload)+tt.checksum.Size() {
				t.Fatalf("encoded size = %d", len(encoded))
			}

			got, n, err := codec.Decode(encoded)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if n != len(encoded) {
				t.Errorf("consumed = %d, want %d", n, len(encoded))
			}
			want := Frame{Opcode: tt.opcode, Payload: tt.payload}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeLeavesTrailingBytes(t *testing.T) {
	codec := NewCodec(DefaultConfig())
	first, _ := codec.Encode(0x45, []byte{0x00})
	second, _ := codec.Encode(0x85, nil)

	f, n, err := codec.Decode(append(append([]byte{}, first...), second...))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(first) || f.Opcode != 0x45 {
		t.Fatalf("got opcode %s consumed %d", f.Opcode, n)
	}
}

func TestDecodeShortWindows(t *testing.T) {
	codec := NewCodec(DefaultConfig())
	encoded, _ := codec.Encode(0x81, []byte{1, 2, 3})

	for i := 0; i < len(encoded); i++ {
		_, _, err := codec.Decode(encoded[:i])
		if !errors.Is(err, ErrNeedMoreBytes) {
			t.Errorf("Decode(%d bytes) = %v, want ErrNeedMoreBytes", i, err)
		}
	}
}

func TestDecodeInvalidFrames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Opcodes = opcodes{0x01, 0x81}
	codec := NewCodec(cfg)

	tests := []struct {
		name string
		data []byte
		want error
		kind Kind
	}{
		{
			name: "missing start marker",
			data: []byte{0x55, 0x01, 0x00, 0x54},
			want: ErrMissingStart,
			kind: KindMissingStart,
		},
		{
			name: "unknown opcode",
			data: []byte{0x02, 0x33},
			want: ErrUnknownOpcode,
			kind: KindUnknownOpcode,
		},
		{
			name: "length overflow",
			data: []byte{0x02, 0x81, 0xE1},
			want: ErrLengthOverflow,
			kind: KindLengthOverflow,
		},
		{
			name: "corrupt checksum",
			data: func() []byte {
				data, _ := codec.Encode(0x81, []byte{1, 2, 3})
				data[len(data)-1] ^= 0xFF
				return data
			}(),
			want: ErrChecksumMismatch,
			kind: KindChecksumMismatch,
		},
		{
			name: "corrupt payload",
			data: func() []byte {
				data, _ := codec.Encode(0x81, []byte{1, 2, 3})
				data[HeaderSize+1] ^= 0x10
				return data
			}(),
			want: ErrChecksumMismatch,
			kind: KindChecksumMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := codec.Decode(tt.data)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Decode() = %v, want %v", err, tt.want)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
			if perr.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", perr.Kind, tt.kind)
			}
		})
	}
}

func TestChecksumByName(t *testing.T) {
	for name, want := range map[string]Checksum{"": XOR8, "xor": XOR8, "SUM": Sum8, "crc32": CRC32} {
		got, err := ChecksumByName(name)
		if err != nil {
			t.Fatalf("ChecksumByName(%q): %v", name, err)
		}
		if got.Name() != want.Name() {
			t.Errorf("ChecksumByName(%q) = %s, want %s", name, got.Name(), want.Name())
		}
	}
	if _, err := ChecksumByName("md5"); err == nil {
		t.Fatal("expected error for unknown checksum")
	}
}
