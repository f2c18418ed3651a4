package layer

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/qnn/internal/contract"
	"github.com/samcharles93/qnn/internal/memory"
	"github.com/samcharles93/qnn/internal/tensor"
	"github.com/samcharles93/qnn/internal/timing"
)

var (
	_ Unary[int8]   = (*GlobalMaxPool2D[int8])(nil)
	_ Unary[int16]  = (*GlobalMinPool2D[int16])(nil)
	_ Unary[int8]   = (*GlobalAvgPool2D[int8])(nil)
	_ Binary[int16] = (*Max2D[int16])(nil)
	_ Binary[int8]  = (*Min2D[int8])(nil)
)

func hwc[T tensor.Element](h, w, exp int, channels ...[]T) *tensor.Tensor[T] {
	c := len(channels)
	t := tensor.New[T](tensor.Shape{h, w, c}, exp)
	for ch, vals := range channels {
		for p, v := range vals {
			t.Element[p*c+ch] = v
		}
	}
	return t
}

func TestGlobalMaxPool2DBuild(t *testing.T) {
	t.Parallel()

	l := NewGlobalMaxPool2D[int16]([]int{3, 3}, "gmp", Options{})
	in := tensor.New[int16](tensor.Shape{7, 5, 12}, -9)
	l.Build(in)

	out := l.Output()
	assert.True(t, l.Built())
	assert.Equal(t, tensor.Shape{1, 1, 12}, out.Shape)
	assert.Equal(t, -9, out.Exponent)
	assert.True(t, out.Materialized())
	assert.Equal(t, []int{3, 3}, l.FilterShape)
	assert.Equal(t, "gmp", l.LayerName())
}

func TestGlobalMaxPool2DCall(t *testing.T) {
	t.Parallel()

	in := hwc[int8](2, 2, -3,
		[]int8{1, 5, 3, 2},
		[]int8{4, 4, 4, 4},
		[]int8{0, -1, -2, -3},
	)
	l := NewGlobalMaxPool2D[int8](nil, "gmp", Options{})
	l.Build(in)

	out := l.Call(in, false)
	assert.Same(t, l.Output(), out, "Call must return the owned output")
	assert.Equal(t, tensor.Shape{1, 1, 3}, out.Shape)
	assert.Equal(t, -3, out.Exponent)
	assert.Equal(t, []int8{5, 4, 0}, out.Element)
}

func TestGlobalMaxPool2DRepeatedCalls(t *testing.T) {
	t.Parallel()

	in := tensor.New[int16](tensor.Shape{3, 3, 2}, 0)
	l := NewGlobalMaxPool2D[int16](nil, "gmp", Options{})
	l.Build(in)
	buf := unsafe.SliceData(l.Output().Element)

	for round := int16(0); round < 4; round++ {
		for i := range in.Element {
			in.Element[i] = -100 + round*int16(i%2+1)
		}
		in.Element[round] = 1000 + round

		out := l.Call(in, round%2 == 0)
		ch := int(round) % 2
		want := []int16{-100 + round, -100 + 2*round}
		want[ch] = 1000 + round
		assert.Equal(t, want, out.Element, "round %d", round)
		assert.Equal(t, buf, unsafe.SliceData(out.Element), "output buffer reallocated in round %d", round)
	}
}

func TestGlobalMaxPool2DAutoloadBytes(t *testing.T) {
	t.Parallel()

	counter := &memory.Counter{Next: memory.Prefetch{}}
	in := hwc[int16](2, 2, 0,
		[]int16{1, 5, 3, 2},
		[]int16{4, 4, 4, 4},
		[]int16{0, -1, -2, -3},
	)
	staged := NewGlobalMaxPool2D[int16](nil, "staged", Options{Stager: counter})
	plain := NewGlobalMaxPool2D[int16](nil, "plain", Options{})
	staged.Build(in)
	plain.Build(in)

	got := staged.Call(in, true)
	want := plain.Call(in, false)
	assert.Equal(t, want.Element, got.Element, "staging must not change results")
	assert.Equal(t, memory.Stats{Calls: 1, DstBytes: 3 * 2, SrcBytes: 12 * 2}, counter.Stats())

	staged.Call(in, false)
	assert.Equal(t, int64(1), counter.Stats().Calls, "autoload disabled must not stage")
}

func TestGlobalPoolBuildRejectsEmptySpatial(t *testing.T) {
	t.Parallel()

	for _, shape := range []tensor.Shape{{0, 4, 3}, {4, 0, 3}, {4, 4}} {
		l := NewGlobalMaxPool2D[int8](nil, "gmp", Options{})
		err := contract.Catch(func() { l.Build(tensor.New[int8](shape, 0)) })
		require.Error(t, err, "shape %v", shape)
		assert.True(t, contract.IsViolation(err))
		assert.False(t, l.Built())
	}
}

func TestGlobalPoolCallChecksBuild(t *testing.T) {
	t.Parallel()

	in := tensor.New[int8](tensor.Shape{2, 2, 3}, 0)
	l := NewGlobalMaxPool2D[int8](nil, "gmp", Options{})
	require.Error(t, contract.Catch(func() { l.Call(in, false) }), "call before build")

	l.Build(in)
	other := tensor.New[int8](tensor.Shape{2, 2, 4}, 0)
	require.Error(t, contract.Catch(func() { l.Call(other, false) }), "channel count changed")

	// Spatial size may change without a rebuild: the output shape does not.
	bigger := tensor.New[int8](tensor.Shape{5, 5, 3}, 0)
	bigger.Element[3*7+1] = 9
	assert.Equal(t, []int8{0, 9, 0}, l.Call(bigger, false).Element)
}

func TestGlobalMinAndAvgPool2D(t *testing.T) {
	t.Parallel()

	in := hwc[int8](2, 2, -2,
		[]int8{1, 2, 3, 4},
		[]int8{-1, -2, -3, -4},
	)

	minL := NewGlobalMinPool2D[int8](nil, "min", Options{})
	minL.Build(in)
	assert.Equal(t, []int8{1, -4}, minL.Call(in, false).Element)
	assert.Equal(t, -2, minL.Output().Exponent)

	avg := NewGlobalAvgPool2D[int8](-4, nil, "avg", Options{})
	avg.Build(in)
	assert.Equal(t, -4, avg.Output().Exponent)
	assert.Equal(t, tensor.Shape{1, 1, 2}, avg.Output().Shape)
	assert.Equal(t, []int8{10, -10}, avg.Call(in, false).Element)
}

func TestLayerTimerSteps(t *testing.T) {
	t.Parallel()

	rec := timing.NewRecorder()
	in := tensor.New[int8](tensor.Shape{2, 2, 3}, 0)
	l := NewGlobalMaxPool2D[int8](nil, "gmp", Options{Timer: rec})
	l.Build(in)
	l.Call(in, true)
	l.Call(in, false)

	var steps []string
	for _, s := range rec.Layer("gmp") {
		steps = append(steps, s.Step)
	}
	assert.Equal(t, []string{"autoload", "global_max_pool2d"}, steps)
	assert.Equal(t, 1, rec.Layer("gmp")[0].Count)
	assert.Equal(t, 2, rec.Layer("gmp")[1].Count)
}

func TestLayerOutputInArena(t *testing.T) {
	t.Parallel()

	arena, err := memory.NewArena(4096)
	require.NoError(t, err)
	defer func() { _ = arena.Close() }()

	in := hwc[int16](1, 2, 0, []int16{3, 7}, []int16{-1, -5})
	l := NewGlobalMaxPool2D[int16](nil, "gmp", Options{Alloc: arena})
	l.Build(in)
	used := arena.Used()
	assert.Equal(t, 4, used)

	assert.Equal(t, []int16{7, -1}, l.Call(in, true).Element)
	l.Call(in, true)
	assert.Equal(t, used, arena.Used(), "calls must not allocate from the arena")
}
