package qtf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"

	"golang.org/x/sys/unix"
)

// Tensor describes one stored tensor.
type Tensor struct {
	Name     string
	DType    DType
	Shape    []int
	Exponent int
	Offset   uint64
	Size     uint64
}

// Elements is the number of stored elements.
func (t *Tensor) Elements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

type File struct {
	Data    []byte
	Header  *Header
	Tensors []Tensor
	mmapped bool
	byName  map[string]int
}

// Open maps a QTF file read-only and validates it, falling back to ReadAt
// based loading when mmap is unavailable. Close releases the mapping.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 < headerSize || size64 > int64(int(^uint(0)>>1)) {
		return nil, ErrCorruptFile
	}
	size := int(size64)

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		qf, parseErr := parseFileData(data, true)
		if parseErr != nil {
			_ = unix.Munmap(data)
			return nil, parseErr
		}
		return qf, nil
	}

	data, err = readAllAt(f, size)
	if err != nil {
		return nil, err
	}
	return parseFileData(data, false)
}

// OpenReaderAt loads a QTF file from r without mmap.
func OpenReaderAt(r io.ReaderAt, size int64) (*File, error) {
	if size < 0 || size > int64(int(^uint(0)>>1)) {
		return nil, ErrCorruptFile
	}
	data, err := readAllAt(r, int(size))
	if err != nil {
		return nil, err
	}
	return parseFileData(data, false)
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}

func parseFileData(data []byte, mmapped bool) (*File, error) {
	hdr, ok := decodeHeader(data)
	if !ok {
		return nil, ErrCorruptFile
	}
	if !hdr.Valid() {
		return nil, ErrInvalidMagic
	}
	if !hdr.Compatible() {
		return nil, ErrUnsupportedMajor
	}
	size := uint64(len(data))
	if hdr.FileSize != size || uint64(hdr.HeaderSize) > size {
		return nil, ErrCorruptFile
	}

	indexEnd := hdr.IndexOffset + uint64(hdr.TensorCount)*recordSize
	if hdr.IndexOffset < uint64(hdr.HeaderSize) || indexEnd < hdr.IndexOffset || indexEnd > size {
		return nil, fmt.Errorf("%w: index out of bounds", ErrCorruptFile)
	}
	if hdr.NamesOffset < indexEnd || hdr.NamesOffset > size {
		return nil, fmt.Errorf("%w: name table out of bounds", ErrCorruptFile)
	}
	names := data[hdr.NamesOffset:]

	tensors := make([]Tensor, hdr.TensorCount)
	byName := make(map[string]int, hdr.TensorCount)
	for i := range tensors {
		start := hdr.IndexOffset + uint64(i)*recordSize
		rec, ok := decodeRecord(data[start : start+recordSize])
		if !ok {
			return nil, ErrCorruptFile
		}
		t, err := tensorFromRecord(rec, names)
		if err != nil {
			return nil, fmt.Errorf("%w: tensor %d: %v", ErrCorruptFile, i, err)
		}
		end := t.Offset + t.Size
		if end < t.Offset || end > size || t.Offset < uint64(hdr.HeaderSize) {
			return nil, fmt.Errorf("%w: tensor %d data out of bounds", ErrCorruptFile, i)
		}
		if rangesOverlap(t.Offset, end, hdr.IndexOffset, indexEnd) {
			return nil, fmt.Errorf("%w: tensor %d overlaps index", ErrCorruptFile, i)
		}
		if t.Offset%align != 0 {
			return nil, fmt.Errorf("%w: tensor %d offset not %d-byte aligned", ErrCorruptFile, i, align)
		}
		if _, dup := byName[t.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, t.Name)
		}
		byName[t.Name] = i
		tensors[i] = t
	}

	return &File{
		Data:    data,
		Header:  &hdr,
		Tensors: tensors,
		mmapped: mmapped,
		byName:  byName,
	}, nil
}

func tensorFromRecord(rec record, names []byte) (Tensor, error) {
	var t Tensor
	nameEnd := uint64(rec.NameOffset) + uint64(rec.NameLen)
	if nameEnd > uint64(len(names)) || rec.NameLen == 0 {
		return t, fmt.Errorf("name out of bounds")
	}
	dtype := DType(rec.DType)
	if dtype.ElemSize() == 0 {
		return t, fmt.Errorf("unsupported dtype %s", dtype)
	}
	if rec.Rank > MaxRank {
		return t, fmt.Errorf("rank %d exceeds %d", rec.Rank, MaxRank)
	}
	shape := make([]int, rec.Rank)
	n := uint64(1)
	for i := range shape {
		shape[i] = int(rec.Dims[i])
		hi, lo := bits.Mul64(n, uint64(rec.Dims[i]))
		if hi != 0 {
			return t, fmt.Errorf("shape %v overflows", shape[:i+1])
		}
		n = lo
	}
	if n > math.MaxInt/uint64(dtype.ElemSize()) {
		return t, fmt.Errorf("shape %v has too many elements", shape)
	}
	if n*uint64(dtype.ElemSize()) != rec.DataSize {
		return t, fmt.Errorf("shape %v does not match %d data bytes", shape, rec.DataSize)
	}
	return Tensor{
		Name:     string(names[rec.NameOffset:nameEnd]),
		DType:    dtype,
		Shape:    shape,
		Exponent: int(rec.Exponent),
		Offset:   rec.DataOffset,
		Size:     rec.DataSize,
	}, nil
}

// Close releases the mapping, if any.
func (f *File) Close() error {
	if f == nil || f.Data == nil {
		return nil
	}
	var err error
	if f.mmapped {
		err = unix.Munmap(f.Data)
	}
	f.Data = nil
	f.Header = nil
	f.Tensors = nil
	f.byName = nil
	f.mmapped = false
	return err
}

// Lookup returns the tensor with the given name.
func (f *File) Lookup(name string) (*Tensor, error) {
	i, ok := f.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return &f.Tensors[i], nil
}

// TensorData returns a zero-copy view of the payload. The slice must not be
// retained after Close.
func (f *File) TensorData(t *Tensor) []byte {
	if f == nil || t == nil || f.Data == nil {
		return nil
	}
	end := t.Offset + t.Size
	if end < t.Offset || end > uint64(len(f.Data)) {
		return nil
	}
	return f.Data[int(t.Offset):int(end)]
}

// Int8s decodes an int8 tensor into a fresh slice.
func (f *File) Int8s(t *Tensor) ([]int8, error) {
	if t.DType != DTypeInt8 {
		return nil, fmt.Errorf("qtf: tensor %q is %s, not int8", t.Name, t.DType)
	}
	raw := f.TensorData(t)
	out := make([]int8, len(raw))
	for i, b := range raw {
		out[i] = int8(b)
	}
	return out, nil
}

// Int16s decodes an int16 tensor into a fresh slice.
func (f *File) Int16s(t *Tensor) ([]int16, error) {
	if t.DType != DTypeInt16 {
		return nil, fmt.Errorf("qtf: tensor %q is %s, not int16", t.Name, t.DType)
	}
	raw := f.TensorData(t)
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return out, nil
}

// Values widens the elements of t to int32 regardless of dtype.
func (f *File) Values(t *Tensor) []int32 {
	switch t.DType {
	case DTypeInt8:
		v, _ := f.Int8s(t)
		return widen(v)
	case DTypeInt16:
		v, _ := f.Int16s(t)
		return widen(v)
	default:
		return nil
	}
}

func widen[T int8 | int16](v []T) []int32 {
	out := make([]int32, len(v))
	for i, x := range v {
		out[i] = int32(x)
	}
	return out
}
