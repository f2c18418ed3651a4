// Package kernels holds the per-element and per-window arithmetic behind the
// operators in package nn. Kernels trust their callers: slices are assumed to
// be the right length and ranges in bounds.
package kernels

import "github.com/samcharles93/qnn/internal/tensor"

// Max writes dst[i] = max(a[i], b[i]) for i in [lo, hi).
func Max[T tensor.Element](dst, a, b []T, lo, hi int) {
	dst, a, b = dst[lo:hi], a[lo:hi], b[lo:hi]
	i := 0
	for ; i+3 < len(dst); i += 4 {
		dst[i+0] = max(a[i+0], b[i+0])
		dst[i+1] = max(a[i+1], b[i+1])
		dst[i+2] = max(a[i+2], b[i+2])
		dst[i+3] = max(a[i+3], b[i+3])
	}
	for ; i < len(dst); i++ {
		dst[i] = max(a[i], b[i])
	}
}

// Min writes dst[i] = min(a[i], b[i]) for i in [lo, hi).
func Min[T tensor.Element](dst, a, b []T, lo, hi int) {
	dst, a, b = dst[lo:hi], a[lo:hi], b[lo:hi]
	i := 0
	for ; i+3 < len(dst); i += 4 {
		dst[i+0] = min(a[i+0], b[i+0])
		dst[i+1] = min(a[i+1], b[i+1])
		dst[i+2] = min(a[i+2], b[i+2])
		dst[i+3] = min(a[i+3], b[i+3])
	}
	for ; i < len(dst); i++ {
		dst[i] = min(a[i], b[i])
	}
}
