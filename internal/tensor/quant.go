package tensor

import (
	"math"
	"unsafe"
)

// Limits returns the representable range of T.
func Limits[T Element]() (lo, hi int64) {
	var zero T
	bits := unsafe.Sizeof(zero) * 8
	hi = int64(1)<<(bits-1) - 1
	return -hi - 1, hi
}

// Saturate clamps v into the range of T.
func Saturate[T Element](v int64) T {
	lo, hi := Limits[T]()
	if v < lo {
		return T(lo)
	}
	if v > hi {
		return T(hi)
	}
	return T(v)
}

// Quantize converts real values to raw elements at the given exponent,
// rounding half away from zero and saturating.
func Quantize[T Element](dst []T, values []float64, exponent int) {
	scale := math.Ldexp(1, -exponent)
	lo, hi := Limits[T]()
	for i, v := range values {
		r := math.Round(v * scale)
		switch {
		case math.IsNaN(r):
			dst[i] = 0
		case r < float64(lo):
			dst[i] = T(lo)
		case r > float64(hi):
			dst[i] = T(hi)
		default:
			dst[i] = T(r)
		}
	}
}

// Dequantize returns the real values of raw elements at the given exponent.
func Dequantize(data []int32, exponent int) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = math.Ldexp(float64(v), exponent)
	}
	return out
}
