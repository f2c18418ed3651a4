// Package tensor implements the quantized tensor used by every operator.
//
// A Tensor holds fixed-width signed integers that share one power-of-two
// exponent: the real value of Element[i] is Element[i] * 2^Exponent.
// Metadata (shape, exponent) is assigned first; the buffer is allocated by an
// explicit Materialize step and then reused for as long as the element count
// does not change.
package tensor

import (
	"fmt"
	"unsafe"
)

// Element is the set of raw element types a tensor can hold.
type Element interface {
	~int8 | ~int16
}

// Allocator hands out raw backing storage for tensor buffers. A nil
// Allocator means the Go heap.
type Allocator interface {
	Alloc(bytes int) []byte
}

// Tensor is a quantized tensor with a shared exponent. The zero value is an
// empty rank-0 tensor with no buffer.
type Tensor[T Element] struct {
	Shape    Shape
	Exponent int
	Element  []T

	alloc Allocator
}

// New returns a materialized tensor with the given shape and exponent.
func New[T Element](shape Shape, exponent int) *Tensor[T] {
	t := &Tensor[T]{}
	return t.SetExponent(exponent).SetShape(shape).Materialize()
}

// FromSlice wraps a copy of data in a tensor of the given shape.
func FromSlice[T Element](shape Shape, exponent int, data []T) (*Tensor[T], error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.Size() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, got %d", shape, shape.Size(), len(data))
	}
	t := New[T](shape, exponent)
	copy(t.Element, data)
	return t, nil
}

// SetShape replaces the shape metadata. The buffer is left untouched until the
// next Materialize.
func (t *Tensor[T]) SetShape(shape Shape) *Tensor[T] {
	t.Shape = shape.Clone()
	return t
}

// SetExponent replaces the exponent.
func (t *Tensor[T]) SetExponent(exponent int) *Tensor[T] {
	t.Exponent = exponent
	return t
}

// SetAllocator routes future buffer allocations through a. It does not move an
// existing buffer.
func (t *Tensor[T]) SetAllocator(a Allocator) *Tensor[T] {
	t.alloc = a
	return t
}

// Materialize sizes the buffer to the current shape. A buffer whose length
// already matches is kept as is, so repeated calls between inferences never
// reallocate.
func (t *Tensor[T]) Materialize() *Tensor[T] {
	n := t.Shape.Size()
	if n < 0 {
		panic(fmt.Sprintf("tensor: negative element count for shape %v", t.Shape))
	}
	if t.Element != nil && len(t.Element) == n {
		return t
	}
	if t.alloc == nil {
		t.Element = make([]T, n)
		return t
	}
	if n == 0 {
		t.Element = []T{}
		return t
	}
	raw := t.alloc.Alloc(n * t.ElemSize())
	if len(raw) < n*t.ElemSize() {
		panic(fmt.Sprintf("tensor: allocator returned %d bytes, need %d", len(raw), n*t.ElemSize()))
	}
	t.Element = unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(raw))), n)
	clear(t.Element)
	return t
}

// Materialized reports whether the buffer matches the current shape.
func (t *Tensor[T]) Materialized() bool {
	return t.Element != nil && len(t.Element) == t.Shape.Size()
}

// Free drops the buffer. Metadata is kept so the tensor can be materialized
// again.
func (t *Tensor[T]) Free() {
	t.Element = nil
}

// IsSameShape reports whether t and other have identical shapes.
func (t *Tensor[T]) IsSameShape(other *Tensor[T]) bool {
	return t.Shape.Equal(other.Shape)
}

// Size returns the element count implied by the shape.
func (t *Tensor[T]) Size() int {
	return t.Shape.Size()
}

// ElemSize returns the width of one element in bytes.
func (t *Tensor[T]) ElemSize() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Bytes returns the buffer as a byte slice without copying. Writes through
// the returned slice are visible in Element.
func (t *Tensor[T]) Bytes() []byte {
	if len(t.Element) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(t.Element))), len(t.Element)*t.ElemSize())
}

// DType returns "int8" or "int16".
func (t *Tensor[T]) DType() string {
	return DTypeOf[T]()
}

// Clone returns a deep copy allocated on the Go heap.
func (t *Tensor[T]) Clone() *Tensor[T] {
	out := &Tensor[T]{
		Shape:    t.Shape.Clone(),
		Exponent: t.Exponent,
	}
	if t.Element != nil {
		out.Element = make([]T, len(t.Element))
		copy(out.Element, t.Element)
	}
	return out
}

func (t *Tensor[T]) String() string {
	return fmt.Sprintf("Tensor[%s]{shape=%v exp=%d}", t.DType(), t.Shape, t.Exponent)
}

// DTypeOf names the element type T.
func DTypeOf[T Element]() string {
	var zero T
	if unsafe.Sizeof(zero) == 1 {
		return DTypeInt8
	}
	return DTypeInt16
}

const (
	DTypeInt8  = "int8"
	DTypeInt16 = "int16"
)

// ElemSizeOf returns the byte width of a dtype name, or 0 when unknown.
func ElemSizeOf(dtype string) int {
	switch dtype {
	case DTypeInt8:
		return 1
	case DTypeInt16:
		return 2
	default:
		return 0
	}
}
