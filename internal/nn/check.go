package nn

import (
	"github.com/samcharles93/qnn/internal/contract"
	"github.com/samcharles93/qnn/internal/tensor"
)

func checkMaterialized[T tensor.Element](op, role string, t *tensor.Tensor[T]) {
	contract.Assert(t != nil, op, "%s is nil", role)
	contract.Assert(t.Materialized(), op, "%s %v is not materialized (len %d, want %d)", role, t.Shape, len(t.Element), t.Size())
}

// CheckOperandMeta checks that two inputs agree on shape and exponent. It
// does not look at the buffers.
func CheckOperandMeta[T tensor.Element](op string, a, b *tensor.Tensor[T]) {
	contract.Assert(a != nil && b != nil, op, "nil input")
	contract.Assert(a.IsSameShape(b), op, "input shapes differ: %v vs %v", a.Shape, b.Shape)
	contract.Assert(a.Exponent == b.Exponent, op, "input exponents differ: %d vs %d", a.Exponent, b.Exponent)
}

// CheckOperands validates the inputs of a same-shape binary operator.
func CheckOperands[T tensor.Element](op string, a, b *tensor.Tensor[T]) {
	CheckOperandMeta(op, a, b)
	checkMaterialized(op, "input0", a)
	checkMaterialized(op, "input1", b)
}

func checkBinary[T tensor.Element](op string, out, a, b *tensor.Tensor[T]) {
	CheckOperands(op, a, b)
	checkMaterialized(op, "output", out)
	contract.Assert(out.IsSameShape(a), op, "output shape %v does not match inputs %v", out.Shape, a.Shape)
	contract.Assert(out.Exponent == a.Exponent, op, "output exponent %d does not match inputs %d", out.Exponent, a.Exponent)
}

// CheckSpatial validates that in is a [H, W, C] feature map with non-empty
// spatial dimensions.
func CheckSpatial[T tensor.Element](op string, in *tensor.Tensor[T]) {
	contract.Assert(in != nil, op, "nil input")
	contract.Assert(len(in.Shape) == 3, op, "input must be [H, W, C], got %v", in.Shape)
	contract.Assert(in.Shape[0] > 0, op, "input height must be > 0, got %v", in.Shape)
	contract.Assert(in.Shape[1] > 0, op, "input width must be > 0, got %v", in.Shape)
}

func checkGlobalPool[T tensor.Element](op string, out, in *tensor.Tensor[T]) {
	CheckSpatial(op, in)
	checkMaterialized(op, "input", in)
	checkMaterialized(op, "output", out)
	want := GlobalPoolShape(in.Shape)
	contract.Assert(out.Shape.Equal(want), op, "output shape %v, want %v", out.Shape, want)
}

// GlobalPoolShape collapses the spatial dimensions of a [H, W, C] shape to 1.
// in must already have passed CheckSpatial.
func GlobalPoolShape(in tensor.Shape) tensor.Shape {
	return tensor.Shape{1, 1, in[2]}
}
