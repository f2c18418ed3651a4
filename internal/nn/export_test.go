package nn

import (
	"github.com/samcharles93/qnn/internal/cores"
	"github.com/samcharles93/qnn/internal/kernels"
	"github.com/samcharles93/qnn/internal/tensor"
)

// elementwiseWith runs the max kernel under an explicit dispatcher so tests
// do not need to swap the process-wide one.
func elementwiseWith[T tensor.Element](d cores.Dispatcher, out, a, b *tensor.Tensor[T], hint cores.Hint) {
	dst, x, y := out.Element, a.Element, b.Element
	d.For(hint, len(dst), func(lo, hi int) {
		kernels.Max(dst, x, y, lo, hi)
	})
}
