package tensor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Shape holds the dimensions of a tensor, outermost first. Feature maps use
// [height, width, channel].
type Shape []int

// Size returns the number of elements described by the shape. A rank-0 shape
// describes a single element.
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether both shapes have the same rank and dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy that does not alias s.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// MaxElements bounds the element count of any shape so that the byte size of
// the widest element type still fits in an int.
const MaxElements = math.MaxInt / 2

// ErrShapeTooLarge is returned when the dimensions multiply past MaxElements.
var ErrShapeTooLarge = errors.New("tensor: shape element count overflows")

// Validate rejects negative dimensions and shapes whose element count exceeds
// MaxElements. A zero dimension makes the shape empty regardless of the rest.
func (s Shape) Validate() error {
	for i, d := range s {
		if d < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d", i, d)
		}
	}
	n := 1
	for _, d := range s {
		if d == 0 {
			return nil
		}
		if n > MaxElements/d {
			return fmt.Errorf("%w: %v", ErrShapeTooLarge, s)
		}
		n *= d
	}
	return nil
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
