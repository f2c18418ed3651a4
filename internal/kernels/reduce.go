package kernels

import "github.com/samcharles93/qnn/internal/tensor"

// src holds positions*channels elements in channel-last order; channel c of
// position p lives at src[p*channels+c]. Each reduction handles channels
// [lo, hi) and expects at least one position.

// ChannelMax writes the per-channel maximum over all positions.
func ChannelMax[T tensor.Element](dst, src []T, channels, lo, hi int) {
	positions := len(src) / channels
	copy(dst[lo:hi], src[lo:hi])
	for p := 1; p < positions; p++ {
		row := src[p*channels : (p+1)*channels]
		for c := lo; c < hi; c++ {
			if row[c] > dst[c] {
				dst[c] = row[c]
			}
		}
	}
}

// ChannelMin writes the per-channel minimum over all positions.
func ChannelMin[T tensor.Element](dst, src []T, channels, lo, hi int) {
	positions := len(src) / channels
	copy(dst[lo:hi], src[lo:hi])
	for p := 1; p < positions; p++ {
		row := src[p*channels : (p+1)*channels]
		for c := lo; c < hi; c++ {
			if row[c] < dst[c] {
				dst[c] = row[c]
			}
		}
	}
}

// ChannelSum accumulates the per-channel sum over all positions into acc.
func ChannelSum[T tensor.Element](acc []int64, src []T, channels, lo, hi int) {
	positions := len(src) / channels
	clear(acc[lo:hi])
	for p := 0; p < positions; p++ {
		row := src[p*channels : (p+1)*channels]
		for c := lo; c < hi; c++ {
			acc[c] += int64(row[c])
		}
	}
}
