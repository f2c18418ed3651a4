package layer

import (
	"github.com/samcharles93/qnn/internal/contract"
	"github.com/samcharles93/qnn/internal/cores"
	"github.com/samcharles93/qnn/internal/nn"
	"github.com/samcharles93/qnn/internal/tensor"
)

type poolFunc[T tensor.Element] func(out, in *tensor.Tensor[T], hint cores.Hint)

// globalPool is the shared body of the global reductions. fixedExp is nil
// when the output keeps the input exponent.
type globalPool[T tensor.Element] struct {
	Base

	// FilterShape is accepted for parity with windowed pooling; the global
	// reductions always cover the whole spatial extent.
	FilterShape []int

	op       string
	fn       poolFunc[T]
	fixedExp *int
	output   tensor.Tensor[T]
}

func newGlobalPool[T tensor.Element](op string, fn poolFunc[T], filterShape []int, name string, opts Options) globalPool[T] {
	return globalPool[T]{
		Base:        newBase(name, opts),
		FilterShape: append([]int(nil), filterShape...),
		op:          op,
		fn:          fn,
		output:      newOutput[T](opts.Alloc),
	}
}

// Build sets the output to [1, 1, C] and materializes it. The input must be
// a [H, W, C] map with H > 0 and W > 0.
func (l *globalPool[T]) Build(input *tensor.Tensor[T]) {
	nn.CheckSpatial(l.op, input)
	exp := input.Exponent
	if l.fixedExp != nil {
		exp = *l.fixedExp
	}
	l.output.SetExponent(exp).SetShape(nn.GlobalPoolShape(input.Shape)).Materialize()
	l.built = true
}

// Call runs the reduction and returns the layer's output tensor.
func (l *globalPool[T]) Call(input *tensor.Tensor[T], autoload bool) *tensor.Tensor[T] {
	contract.Assert(l.built, l.op, "layer %q called before Build", l.Name)
	nn.CheckSpatial(l.op, input)
	contract.Assert(l.output.Shape.Equal(nn.GlobalPoolShape(input.Shape)), l.op,
		"layer %q built for output %v, input is now %v", l.Name, l.output.Shape, input.Shape)

	if autoload {
		stop := l.time("autoload")
		stage(&l.Base, l.op, &l.output, input)
		stop()
	}

	stop := l.time(l.op)
	l.fn(&l.output, input, cores.Resolve(l.hint))
	stop()
	return &l.output
}

// Output returns the tensor written by Call.
func (l *globalPool[T]) Output() *tensor.Tensor[T] {
	return &l.output
}

// GlobalMaxPool2D reduces every channel of a [H, W, C] input to its maximum.
// The output keeps the input exponent.
type GlobalMaxPool2D[T tensor.Element] struct {
	globalPool[T]
}

// NewGlobalMaxPool2D creates the layer. filterShape is kept for reference
// only.
func NewGlobalMaxPool2D[T tensor.Element](filterShape []int, name string, opts Options) *GlobalMaxPool2D[T] {
	return &GlobalMaxPool2D[T]{newGlobalPool("global_max_pool2d", nn.GlobalMaxPool2D[T], filterShape, name, opts)}
}

// GlobalMinPool2D reduces every channel to its minimum.
type GlobalMinPool2D[T tensor.Element] struct {
	globalPool[T]
}

func NewGlobalMinPool2D[T tensor.Element](filterShape []int, name string, opts Options) *GlobalMinPool2D[T] {
	return &GlobalMinPool2D[T]{newGlobalPool("global_min_pool2d", nn.GlobalMinPool2D[T], filterShape, name, opts)}
}

// GlobalAvgPool2D reduces every channel to its mean, requantized to a fixed
// output exponent.
type GlobalAvgPool2D[T tensor.Element] struct {
	globalPool[T]
}

func NewGlobalAvgPool2D[T tensor.Element](outputExponent int, filterShape []int, name string, opts Options) *GlobalAvgPool2D[T] {
	l := &GlobalAvgPool2D[T]{newGlobalPool("global_avg_pool2d", nn.GlobalAvgPool2D[T], filterShape, name, opts)}
	l.fixedExp = &outputExponent
	return l
}
