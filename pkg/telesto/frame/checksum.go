package frame

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"
)

// Checksum is the integrity function appended to every frame. It covers the
// start marker, opcode, length and payload bytes.
type Checksum interface {
	// Name identifies the algorithm in configuration files.
	Name() string
	// Size is the number of checksum bytes on the wire.
	Size() int
	// Append appends the checksum of data to dst.
	Append(dst, data []byte) []byte
}

var (
	// XOR8 folds all bytes with exclusive or. This is the Telesto default.
	XOR8 Checksum = xor8{}
	// Sum8 is the low byte of the arithmetic sum of all bytes.
	Sum8 Checksum = sum8{}
	// CRC32 is the IEEE CRC-32, written little-endian.
	CRC32 Checksum = crc32LE{}
)

type xor8 struct{}

func (xor8) Name() string { return "xor" }
func (xor8) Size() int    { return 1 }

func (xor8) Append(dst, data []byte) []byte {
	var cs byte
	for _, b := range data {
		cs ^= b
	}
	return append(dst, cs)
}

type sum8 struct{}

func (sum8) Name() string { return "sum" }
func (sum8) Size() int    { return 1 }

func (sum8) Append(dst, data []byte) []byte {
	var cs byte
	for _, b := range data {
		cs += b
	}
	return append(dst, cs)
}

type crc32LE struct{}

func (crc32LE) Name() string { return "crc32" }
func (crc32LE) Size() int    { return 4 }

func (crc32LE) Append(dst, data []byte) []byte {
	return binary.LittleEndian.AppendUint32(dst, crc32.ChecksumIEEE(data))
}

// ChecksumByName resolves a checksum configured by name.
func ChecksumByName(name string) (Checksum, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "xor", "xor8":
		return XOR8, nil
	case "sum", "sum8":
		return Sum8, nil
	case "crc32":
		return CRC32, nil
	default:
		return nil, fmt.Errorf("frame: unknown checksum %q", name)
	}
}
