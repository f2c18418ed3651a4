package tensor

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// Dump is the JSON interchange form of a tensor. Data holds raw elements.
// Values holds real numbers instead: on input they are quantized at
// Exponent, on output they mirror Data when requested.
type Dump struct {
	Name     string    `json:"name,omitempty"`
	DType    string    `json:"dtype"`
	Shape    []int     `json:"shape"`
	Exponent int       `json:"exponent"`
	Data     []int32   `json:"data"`
	Values   []float64 `json:"values,omitempty"`
}

var (
	ErrDTypeMismatch = errors.New("tensor: dtype mismatch")
	ErrDumpSize      = errors.New("tensor: data length does not match shape")
	ErrDumpRange     = errors.New("tensor: value out of range for dtype")
	ErrDumpAmbiguous = errors.New("tensor: dump has both data and values")
)

// Dump captures t under the given name.
func (t *Tensor[T]) Dump(name string) Dump {
	data := make([]int32, len(t.Element))
	for i, v := range t.Element {
		data[i] = int32(v)
	}
	shape := []int(t.Shape.Clone())
	if shape == nil {
		shape = []int{}
	}
	return Dump{
		Name:     name,
		DType:    t.DType(),
		Shape:    shape,
		Exponent: t.Exponent,
		Data:     data,
	}
}

// WithValues returns d with Values filled from Data.
func (d Dump) WithValues() Dump {
	d.Values = Dequantize(d.Data, d.Exponent)
	return d
}

// FromDump builds a materialized tensor from d. The dump's dtype must name T.
// A dump carrying Values instead of Data is quantized at its exponent,
// saturating at the limits of T.
func FromDump[T Element](d Dump) (*Tensor[T], error) {
	if d.DType != "" && d.DType != DTypeOf[T]() {
		return nil, fmt.Errorf("%w: dump is %s, want %s", ErrDTypeMismatch, d.DType, DTypeOf[T]())
	}
	shape := Shape(d.Shape)
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(d.Data) > 0 && len(d.Values) > 0 {
		return nil, ErrDumpAmbiguous
	}
	n := len(d.Data)
	if len(d.Values) > 0 {
		n = len(d.Values)
	}
	if shape.Size() != n {
		return nil, fmt.Errorf("%w: shape %v needs %d values, got %d", ErrDumpSize, shape, shape.Size(), n)
	}
	t := New[T](shape, d.Exponent)
	if len(d.Values) > 0 {
		Quantize(t.Element, d.Values, d.Exponent)
		return t, nil
	}
	lo, hi := Limits[T]()
	for i, v := range d.Data {
		if int64(v) < lo || int64(v) > hi {
			return nil, fmt.Errorf("%w: data[%d]=%d", ErrDumpRange, i, v)
		}
		t.Element[i] = T(v)
	}
	return t, nil
}

// DecodeDumps reads either a single dump object or an array of dumps.
func DecodeDumps(r io.Reader) ([]Dump, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("tensor: empty dump input")
	}
	if raw[0] == '[' {
		var out []Dump
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var d Dump
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return []Dump{d}, nil
}

// EncodeDumps writes dumps as an indented JSON array.
func EncodeDumps(w io.Writer, dumps []Dump) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(dumps)
}
