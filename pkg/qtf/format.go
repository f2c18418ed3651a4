// Package qtf reads and writes quantized tensor files: a flat container of
// named int8/int16 tensors, each with its shape and power-of-two exponent.
//
// Layout, all little-endian:
//
//	header    40 bytes
//	payloads  one per tensor, each 8-byte aligned
//	index     one 48-byte record per tensor
//	names     concatenated UTF-8 tensor names
package qtf

import (
	"encoding/binary"
	"fmt"
)

const (
	Magic = "QTF\x00"

	CurrentMajor uint16 = 1
	CurrentMinor uint16 = 0

	// MaxRank is the highest tensor rank a record can describe.
	MaxRank = 4

	headerSize = 40
	recordSize = 48
	align      = 8
)

// DType is the element type of a stored tensor.
type DType uint8

const (
	DTypeInt8  DType = 1
	DTypeInt16 DType = 2
)

func (d DType) String() string {
	switch d {
	case DTypeInt8:
		return "int8"
	case DTypeInt16:
		return "int16"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

// ElemSize is the byte width of one element, or 0 for unknown types.
func (d DType) ElemSize() int {
	switch d {
	case DTypeInt8:
		return 1
	case DTypeInt16:
		return 2
	default:
		return 0
	}
}

// ParseDType maps "int8"/"int16" to a DType.
func ParseDType(s string) (DType, error) {
	switch s {
	case "int8":
		return DTypeInt8, nil
	case "int16":
		return DTypeInt16, nil
	default:
		return 0, fmt.Errorf("qtf: unsupported dtype %q", s)
	}
}

// Header is the fixed file header.
type Header struct {
	Magic       [4]byte
	Major       uint16
	Minor       uint16
	HeaderSize  uint32
	TensorCount uint32
	IndexOffset uint64
	NamesOffset uint64
	FileSize    uint64
}

func (h *Header) Valid() bool {
	return string(h.Magic[:]) == Magic && h.HeaderSize >= headerSize
}

func (h *Header) Compatible() bool {
	return h.Major == CurrentMajor
}

func encodeHeader(dst []byte, h Header) {
	copy(dst[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(dst[4:], h.Major)
	binary.LittleEndian.PutUint16(dst[6:], h.Minor)
	binary.LittleEndian.PutUint32(dst[8:], h.HeaderSize)
	binary.LittleEndian.PutUint32(dst[12:], h.TensorCount)
	binary.LittleEndian.PutUint64(dst[16:], h.IndexOffset)
	binary.LittleEndian.PutUint64(dst[24:], h.NamesOffset)
	binary.LittleEndian.PutUint64(dst[32:], h.FileSize)
}

func decodeHeader(src []byte) (Header, bool) {
	var h Header
	if len(src) < headerSize {
		return h, false
	}
	copy(h.Magic[:], src[0:4])
	h.Major = binary.LittleEndian.Uint16(src[4:])
	h.Minor = binary.LittleEndian.Uint16(src[6:])
	h.HeaderSize = binary.LittleEndian.Uint32(src[8:])
	h.TensorCount = binary.LittleEndian.Uint32(src[12:])
	h.IndexOffset = binary.LittleEndian.Uint64(src[16:])
	h.NamesOffset = binary.LittleEndian.Uint64(src[24:])
	h.FileSize = binary.LittleEndian.Uint64(src[32:])
	return h, true
}

// record is the on-disk index entry.
type record struct {
	NameOffset uint32
	NameLen    uint32
	DType      uint8
	Rank       uint8
	Exponent   int32
	Dims       [MaxRank]uint32
	DataOffset uint64
	DataSize   uint64
}

func encodeRecord(dst []byte, r record) {
	clear(dst[:recordSize])
	binary.LittleEndian.PutUint32(dst[0:], r.NameOffset)
	binary.LittleEndian.PutUint32(dst[4:], r.NameLen)
	dst[8] = r.DType
	dst[9] = r.Rank
	// 10..11 reserved
	binary.LittleEndian.PutUint32(dst[12:], uint32(r.Exponent))
	for i, d := range r.Dims {
		binary.LittleEndian.PutUint32(dst[16+4*i:], d)
	}
	binary.LittleEndian.PutUint64(dst[32:], r.DataOffset)
	binary.LittleEndian.PutUint64(dst[40:], r.DataSize)
}

func decodeRecord(src []byte) (record, bool) {
	var r record
	if len(src) < recordSize {
		return r, false
	}
	r.NameOffset = binary.LittleEndian.Uint32(src[0:])
	r.NameLen = binary.LittleEndian.Uint32(src[4:])
	r.DType = src[8]
	r.Rank = src[9]
	r.Exponent = int32(binary.LittleEndian.Uint32(src[12:]))
	for i := range r.Dims {
		r.Dims[i] = binary.LittleEndian.Uint32(src[16+4*i:])
	}
	r.DataOffset = binary.LittleEndian.Uint64(src[32:])
	r.DataSize = binary.LittleEndian.Uint64(src[40:])
	return r, true
}

func alignUp(n uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

func rangesOverlap(a0, a1, b0, b1 uint64) bool {
	return a0 < b1 && b0 < a1
}
