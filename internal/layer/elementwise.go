package layer

import (
	"github.com/samcharles93/qnn/internal/contract"
	"github.com/samcharles93/qnn/internal/cores"
	"github.com/samcharles93/qnn/internal/nn"
	"github.com/samcharles93/qnn/internal/tensor"
)

type binaryFunc[T tensor.Element] func(out, a, b *tensor.Tensor[T], hint cores.Hint)

type elementwise[T tensor.Element] struct {
	Base

	op     string
	fn     binaryFunc[T]
	output tensor.Tensor[T]
}

// Build checks the inputs share shape and exponent and sizes the output to
// match them. Only metadata is inspected; the inputs may not be materialized
// yet.
func (l *elementwise[T]) Build(input0, input1 *tensor.Tensor[T]) {
	nn.CheckOperandMeta(l.op, input0, input1)
	l.output.SetExponent(input0.Exponent).SetShape(input0.Shape).Materialize()
	l.built = true
}

func (l *elementwise[T]) Call(input0, input1 *tensor.Tensor[T], autoload bool) *tensor.Tensor[T] {
	contract.Assert(l.built, l.op, "layer %q called before Build", l.Name)
	nn.CheckOperands(l.op, input0, input1)
	contract.Assert(l.output.IsSameShape(input0) && l.output.Exponent == input0.Exponent, l.op,
		"layer %q built for %v exp %d, inputs are now %v exp %d",
		l.Name, l.output.Shape, l.output.Exponent, input0.Shape, input0.Exponent)

	if autoload {
		stop := l.time("autoload")
		stage(&l.Base, l.op, &l.output, input0, input1)
		stop()
	}

	stop := l.time(l.op)
	l.fn(&l.output, input0, input1, cores.Resolve(l.hint))
	stop()
	return &l.output
}

func (l *elementwise[T]) Output() *tensor.Tensor[T] {
	return &l.output
}

// Max2D is the layer form of nn.Max2D.
type Max2D[T tensor.Element] struct {
	elementwise[T]
}

func NewMax2D[T tensor.Element](name string, opts Options) *Max2D[T] {
	return &Max2D[T]{elementwise[T]{
		Base:   newBase(name, opts),
		op:     "max2d",
		fn:     nn.Max2D[T],
		output: newOutput[T](opts.Alloc),
	}}
}

// Min2D is the layer form of nn.Min2D.
type Min2D[T tensor.Element] struct {
	elementwise[T]
}

func NewMin2D[T tensor.Element](name string, opts Options) *Min2D[T] {
	return &Min2D[T]{elementwise[T]{
		Base:   newBase(name, opts),
		op:     "min2d",
		fn:     nn.Min2D[T],
		output: newOutput[T](opts.Alloc),
	}}
}
