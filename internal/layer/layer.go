// Package layer binds operators to a fixed configuration behind a two-phase
// lifecycle. Build derives the output shape and exponent from the input and
// materializes the output once; Call runs the operator on every inference,
// reusing that output buffer.
//
// A layer owns its output tensor and borrows its inputs. Layers are not safe
// for concurrent use.
package layer

import (
	"github.com/samcharles93/qnn/internal/contract"
	"github.com/samcharles93/qnn/internal/cores"
	"github.com/samcharles93/qnn/internal/memory"
	"github.com/samcharles93/qnn/internal/tensor"
	"github.com/samcharles93/qnn/internal/timing"
)

// Options are the collaborators injected into a layer. Zero values select
// the defaults: no staging, the process-wide core hint, no timing, heap
// allocated output.
type Options struct {
	Stager memory.Stager
	Cores  cores.Hint
	Timer  timing.Timer
	Alloc  tensor.Allocator
}

// Unary is a layer with one input. Pipelines chain these.
type Unary[T tensor.Element] interface {
	LayerName() string
	Build(input *tensor.Tensor[T])
	Call(input *tensor.Tensor[T], autoload bool) *tensor.Tensor[T]
	Output() *tensor.Tensor[T]
}

// Binary is a layer with two same-shape inputs.
type Binary[T tensor.Element] interface {
	LayerName() string
	Build(input0, input1 *tensor.Tensor[T])
	Call(input0, input1 *tensor.Tensor[T], autoload bool) *tensor.Tensor[T]
	Output() *tensor.Tensor[T]
}

// Base carries what every layer shares.
type Base struct {
	// Name is a diagnostic label; it need not be unique.
	Name string

	stager memory.Stager
	hint   cores.Hint
	timer  timing.Timer
	built  bool
}

func newBase(name string, opts Options) Base {
	stager := opts.Stager
	if stager == nil {
		stager = memory.Nop{}
	}
	return Base{
		Name:   name,
		stager: stager,
		hint:   opts.Cores.Clone(),
		timer:  timing.Or(opts.Timer),
	}
}

func (b *Base) LayerName() string { return b.Name }

// Built reports whether Build has run.
func (b *Base) Built() bool { return b.built }

func (b *Base) time(step string) func() {
	return b.timer.Start(b.Name, step)
}

// stage hands the output range and each input range to the stager. Every
// range must span exactly Size()*ElemSize() bytes of its tensor.
func stage[T tensor.Element](b *Base, op string, output *tensor.Tensor[T], inputs ...*tensor.Tensor[T]) {
	dst := stagedBytes(op, "output", output)
	for i, in := range inputs {
		src := stagedBytes(op, "input", in)
		if i == 0 {
			b.stager.Stage(dst, src)
		} else {
			b.stager.Stage(nil, src)
		}
	}
}

func stagedBytes[T tensor.Element](op, role string, t *tensor.Tensor[T]) []byte {
	raw := t.Bytes()
	want := t.Size() * t.ElemSize()
	contract.Assert(len(raw) == want, op, "%s stages %d bytes, want %d", role, len(raw), want)
	return raw
}

func newOutput[T tensor.Element](alloc tensor.Allocator) tensor.Tensor[T] {
	var out tensor.Tensor[T]
	out.SetAllocator(alloc)
	return out
}
