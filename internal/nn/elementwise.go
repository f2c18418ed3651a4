// Package nn implements the quantized operators. Every operator validates its
// operands before writing anything, then hands the arithmetic to package
// kernels through the process-wide core dispatcher.
//
// Operators come in two forms: an in-place form writing into a caller-owned,
// already materialized output, and an allocating form (suffix New) returning
// a fresh tensor owned by the caller.
package nn

import (
	"github.com/samcharles93/qnn/internal/cores"
	"github.com/samcharles93/qnn/internal/kernels"
	"github.com/samcharles93/qnn/internal/tensor"
)

type binaryKernel[T tensor.Element] func(dst, a, b []T, lo, hi int)

func elementwise[T tensor.Element](out, a, b *tensor.Tensor[T], hint cores.Hint, k binaryKernel[T]) {
	dst, x, y := out.Element, a.Element, b.Element
	cores.Current().For(cores.Resolve(hint), len(dst), func(lo, hi int) {
		k(dst, x, y, lo, hi)
	})
}

func allocLike[T tensor.Element](a *tensor.Tensor[T]) *tensor.Tensor[T] {
	out := &tensor.Tensor[T]{}
	return out.SetExponent(a.Exponent).SetShape(a.Shape).Materialize()
}

// Max2D writes out[i] = max(input0[i], input1[i]). Both inputs must share
// shape and exponent, and out must be materialized with the same shape and
// exponent. Comparing raw values is exact because the exponent is shared.
func Max2D[T tensor.Element](out, input0, input1 *tensor.Tensor[T], hint cores.Hint) {
	checkBinary("max2d", out, input0, input1)
	elementwise(out, input0, input1, hint, kernels.Max[T])
}

// Max2DNew returns max(input0, input1) in a new tensor.
func Max2DNew[T tensor.Element](input0, input1 *tensor.Tensor[T], hint cores.Hint) *tensor.Tensor[T] {
	CheckOperands("max2d", input0, input1)
	out := allocLike(input0)
	Max2D(out, input0, input1, hint)
	return out
}

// Min2D writes out[i] = min(input0[i], input1[i]) under the same contract as
// Max2D.
func Min2D[T tensor.Element](out, input0, input1 *tensor.Tensor[T], hint cores.Hint) {
	checkBinary("min2d", out, input0, input1)
	elementwise(out, input0, input1, hint, kernels.Min[T])
}

// Min2DNew returns min(input0, input1) in a new tensor.
func Min2DNew[T tensor.Element](input0, input1 *tensor.Tensor[T], hint cores.Hint) *tensor.Tensor[T] {
	CheckOperands("min2d", input0, input1)
	out := allocLike(input0)
	Min2D(out, input0, input1, hint)
	return out
}
