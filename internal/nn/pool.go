package nn

import (
	"math/bits"

	"github.com/samcharles93/qnn/internal/contract"
	"github.com/samcharles93/qnn/internal/cores"
	"github.com/samcharles93/qnn/internal/kernels"
	"github.com/samcharles93/qnn/internal/tensor"
)

// GlobalMaxPool2D reduces a [H, W, C] input to [1, 1, C] by taking the
// maximum of every channel. out must carry the input's exponent: every
// candidate shares it, so no rescale happens.
func GlobalMaxPool2D[T tensor.Element](out, in *tensor.Tensor[T], hint cores.Hint) {
	const op = "global_max_pool2d"
	checkGlobalPool(op, out, in)
	contract.Assert(out.Exponent == in.Exponent, op, "output exponent %d, want input exponent %d", out.Exponent, in.Exponent)
	channels := in.Shape[2]
	dst, src := out.Element, in.Element
	cores.Current().For(cores.Resolve(hint), channels, func(lo, hi int) {
		kernels.ChannelMax(dst, src, channels, lo, hi)
	})
}

// GlobalMinPool2D is GlobalMaxPool2D with the per-channel minimum.
func GlobalMinPool2D[T tensor.Element](out, in *tensor.Tensor[T], hint cores.Hint) {
	const op = "global_min_pool2d"
	checkGlobalPool(op, out, in)
	contract.Assert(out.Exponent == in.Exponent, op, "output exponent %d, want input exponent %d", out.Exponent, in.Exponent)
	channels := in.Shape[2]
	dst, src := out.Element, in.Element
	cores.Current().For(cores.Resolve(hint), channels, func(lo, hi int) {
		kernels.ChannelMin(dst, src, channels, lo, hi)
	})
}

// GlobalAvgPool2D reduces a [H, W, C] input to [1, 1, C] by averaging every
// channel. Unlike the max and min reductions the output exponent is free: the
// mean is requantized from the input exponent to out.Exponent, rounding half
// away from zero and saturating.
func GlobalAvgPool2D[T tensor.Element](out, in *tensor.Tensor[T], hint cores.Hint) {
	const op = "global_avg_pool2d"
	checkGlobalPool(op, out, in)
	channels := in.Shape[2]
	count := int64(in.Shape[0] * in.Shape[1])
	shift := in.Exponent - out.Exponent
	dst, src := out.Element, in.Element
	cores.Current().For(cores.Resolve(hint), channels, func(lo, hi int) {
		acc := make([]int64, hi)
		kernels.ChannelSum(acc, src, channels, lo, hi)
		for c := lo; c < hi; c++ {
			dst[c] = tensor.Saturate[T](scaledMean(acc[c], count, shift))
		}
	})
}

// scaledMean returns round(sum * 2^shift / count).
func scaledMean(sum, count int64, shift int) int64 {
	if sum == 0 {
		return 0
	}
	neg := sum < 0
	mag := uint64(sum)
	if neg {
		mag = uint64(-sum)
	}
	num, den := mag, uint64(count)
	switch {
	case shift > 0:
		if bits.Len64(num)+shift >= 63 {
			return signed(1<<62, neg)
		}
		num <<= shift
	case shift < 0:
		if bits.Len64(den)-shift >= 63 {
			return 0
		}
		den <<= -shift
	}
	return signed(int64((num+den/2)/den), neg)
}

func signed(v int64, neg bool) int64 {
	if neg {
		return -v
	}
	return v
}
