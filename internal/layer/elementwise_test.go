package layer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/qnn/internal/contract"
	"github.com/samcharles93/qnn/internal/cores"
	"github.com/samcharles93/qnn/internal/memory"
	"github.com/samcharles93/qnn/internal/tensor"
)

func TestMax2DLayer(t *testing.T) {
	t.Parallel()

	a, _ := tensor.FromSlice[int16](tensor.Shape{1, 2, 2}, -1, []int16{1, 8, -3, 4})
	b, _ := tensor.FromSlice[int16](tensor.Shape{1, 2, 2}, -1, []int16{2, 7, -4, 4})

	counter := &memory.Counter{}
	l := NewMax2D[int16]("max", Options{Stager: counter, Cores: cores.Hint{0, 1}})
	l.Build(a, b)
	assert.Equal(t, -1, l.Output().Exponent)

	out := l.Call(a, b, true)
	assert.Equal(t, []int16{2, 8, -3, 4}, out.Element)
	assert.Equal(t, memory.Stats{Calls: 2, DstBytes: 8, SrcBytes: 16}, counter.Stats())

	// New contents, same shape: no rebuild, no residue.
	copy(a.Element, []int16{-9, -9, -9, -9})
	copy(b.Element, []int16{-8, -10, -8, -10})
	assert.Equal(t, []int16{-8, -9, -8, -9}, l.Call(a, b, false).Element)
}

func TestMin2DLayer(t *testing.T) {
	t.Parallel()

	a, _ := tensor.FromSlice[int8](tensor.Shape{2}, 0, []int8{1, -1})
	b, _ := tensor.FromSlice[int8](tensor.Shape{2}, 0, []int8{0, 5})
	l := NewMin2D[int8]("min", Options{})
	l.Build(a, b)
	assert.Equal(t, []int8{0, -1}, l.Call(a, b, false).Element)
}

func TestElementwiseBuildReadsMetadataOnly(t *testing.T) {
	t.Parallel()

	a := (&tensor.Tensor[int8]{}).SetShape(tensor.Shape{1, 1, 3}).SetExponent(-2)
	b := (&tensor.Tensor[int8]{}).SetShape(tensor.Shape{1, 1, 3}).SetExponent(-2)
	l := NewMin2D[int8]("min", Options{})
	require.NoError(t, contract.Catch(func() { l.Build(a, b) }))
	assert.Equal(t, tensor.Shape{1, 1, 3}, l.Output().Shape)
	assert.True(t, l.Output().Materialized())

	require.Error(t, contract.Catch(func() { l.Call(a, b, false) }), "call with unmaterialized inputs")
	a.Materialize()
	b.Materialize()
	copy(a.Element, []int8{1, 2, 3})
	copy(b.Element, []int8{3, 2, 1})
	assert.Equal(t, []int8{1, 2, 1}, l.Call(a, b, false).Element)
}

func TestElementwiseLayerContracts(t *testing.T) {
	t.Parallel()

	a := tensor.New[int8](tensor.Shape{2, 2, 1}, 0)
	b := tensor.New[int8](tensor.Shape{2, 2, 1}, 0)

	l := NewMax2D[int8]("max", Options{})
	require.Error(t, contract.Catch(func() { l.Call(a, b, false) }), "call before build")
	require.Error(t, contract.Catch(func() { l.Build(a, tensor.New[int8](tensor.Shape{2, 2, 1}, 2)) }), "exponent mismatch")
	require.Error(t, contract.Catch(func() { l.Build(a, tensor.New[int8](tensor.Shape{1, 2, 2}, 0)) }), "shape mismatch")

	l.Build(a, b)
	c := tensor.New[int8](tensor.Shape{4, 1, 1}, 0)
	d := tensor.New[int8](tensor.Shape{4, 1, 1}, 0)
	require.Error(t, contract.Catch(func() { l.Call(c, d, false) }), "input shape changed since build")
	e := tensor.New[int8](tensor.Shape{2, 2, 1}, 1)
	f := tensor.New[int8](tensor.Shape{2, 2, 1}, 1)
	require.Error(t, contract.Catch(func() { l.Call(e, f, false) }), "input exponent changed since build")
}
