package qtf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Writer streams tensors into a QTF file. Payloads go straight to disk; the
// index and name table are written by Finalise, which also patches the
// header reserved up front.
type Writer struct {
	f       *os.File
	records []record
	names   []byte
	seen    map[string]struct{}
	closed  bool

	mu sync.Mutex
}

// NewWriter truncates f and reserves the header.
func NewWriter(f *os.File) (*Writer, error) {
	if f == nil {
		return nil, errors.New("qtf: nil file")
	}
	if err := f.Truncate(0); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	w := &Writer{f: f, seen: make(map[string]struct{})}
	if err := writeFull(f, make([]byte, headerSize)); err != nil {
		return nil, err
	}
	return w, nil
}

// WriteTensor appends one tensor. data holds the little-endian elements.
func (w *Writer) WriteTensor(name string, dtype DType, shape []int, exponent int, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("qtf: writer already finalised")
	}
	if name == "" {
		return errors.New("qtf: empty tensor name")
	}
	if _, ok := w.seen[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	rec, err := newRecord(dtype, shape, exponent, len(data))
	if err != nil {
		return fmt.Errorf("qtf: tensor %q: %w", name, err)
	}

	offset, err := w.alignTo()
	if err != nil {
		return err
	}
	if err := writeFull(w.f, data); err != nil {
		return err
	}
	rec.DataOffset = offset
	rec.NameOffset = uint32(len(w.names))
	rec.NameLen = uint32(len(name))
	w.names = append(w.names, name...)
	w.records = append(w.records, rec)
	w.seen[name] = struct{}{}
	return nil
}

// WriteInt8 appends an int8 tensor.
func (w *Writer) WriteInt8(name string, shape []int, exponent int, values []int8) error {
	data := make([]byte, len(values))
	for i, v := range values {
		data[i] = byte(v)
	}
	return w.WriteTensor(name, DTypeInt8, shape, exponent, data)
}

// WriteInt16 appends an int16 tensor.
func (w *Writer) WriteInt16(name string, shape []int, exponent int, values []int16) error {
	data := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(v))
	}
	return w.WriteTensor(name, DTypeInt16, shape, exponent, data)
}

// Finalise writes the index and names and patches the header. The writer
// cannot be used afterwards; the caller still closes the file.
func (w *Writer) Finalise() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("qtf: writer already finalised")
	}
	w.closed = true

	indexOffset, err := w.alignTo()
	if err != nil {
		return err
	}
	var buf [recordSize]byte
	for _, rec := range w.records {
		encodeRecord(buf[:], rec)
		if err := writeFull(w.f, buf[:]); err != nil {
			return err
		}
	}
	namesOffset := indexOffset + uint64(len(w.records))*recordSize
	if err := writeFull(w.f, w.names); err != nil {
		return err
	}

	fileSize, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if err := w.f.Truncate(fileSize); err != nil {
		return err
	}

	hdr := Header{
		Major:       CurrentMajor,
		Minor:       CurrentMinor,
		HeaderSize:  headerSize,
		TensorCount: uint32(len(w.records)),
		IndexOffset: indexOffset,
		NamesOffset: namesOffset,
		FileSize:    uint64(fileSize),
	}
	copy(hdr.Magic[:], Magic)
	var raw [headerSize]byte
	encodeHeader(raw[:], hdr)
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := writeFull(w.f, raw[:]); err != nil {
		return err
	}
	_, err = w.f.Seek(fileSize, io.SeekStart)
	return err
}

func newRecord(dtype DType, shape []int, exponent, dataLen int) (record, error) {
	var rec record
	es := dtype.ElemSize()
	if es == 0 {
		return rec, fmt.Errorf("unsupported dtype %s", dtype)
	}
	if len(shape) > MaxRank {
		return rec, fmt.Errorf("rank %d exceeds %d", len(shape), MaxRank)
	}
	n := 1
	for i, d := range shape {
		if d < 0 || d > int(^uint32(0)) {
			return rec, fmt.Errorf("dimension %d out of range: %d", i, d)
		}
		rec.Dims[i] = uint32(d)
		n *= d
	}
	if n*es != dataLen {
		return rec, fmt.Errorf("shape %v needs %d bytes, got %d", shape, n*es, dataLen)
	}
	rec.DType = uint8(dtype)
	rec.Rank = uint8(len(shape))
	rec.Exponent = int32(exponent)
	rec.DataSize = uint64(dataLen)
	return rec, nil
}

func (w *Writer) alignTo() (uint64, error) {
	pos, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	next := alignUp(uint64(pos))
	if pad := int(next - uint64(pos)); pad > 0 {
		if err := writeFull(w.f, make([]byte, pad)); err != nil {
			return 0, err
		}
	}
	return next, nil
}

func writeFull(f *os.File, p []byte) error {
	for len(p) > 0 {
		n, err := f.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}
