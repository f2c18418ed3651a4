package pipeline

import (
	"context"
	"errors"

	"github.com/samcharles93/qnn/internal/contract"
	"github.com/samcharles93/qnn/internal/layer"
	"github.com/samcharles93/qnn/internal/logger"
	"github.com/samcharles93/qnn/internal/memory"
	"github.com/samcharles93/qnn/internal/tensor"
	"github.com/samcharles93/qnn/internal/timing"
)

// Input marks the pipeline input as the source of an operand.
const Input = -1

// Stage is one layer of a Sequential and where its operands come from. From
// and With index earlier stages or are Input. Exactly one of Unary and
// Binary is set; With is only read for Binary.
type Stage[T tensor.Element] struct {
	Unary  layer.Unary[T]
	Binary layer.Binary[T]
	From   int
	With   int
}

// Chain feeds every layer the output of the one before it.
func Chain[T tensor.Element](layers ...layer.Unary[T]) []Stage[T] {
	stages := make([]Stage[T], len(layers))
	for i, l := range layers {
		stages[i] = Stage[T]{Unary: l, From: i - 1, With: Input}
	}
	return stages
}

func (st *Stage[T]) Name() string {
	if st.Binary != nil {
		return st.Binary.LayerName()
	}
	return st.Unary.LayerName()
}

func (st *Stage[T]) Output() *tensor.Tensor[T] {
	if st.Binary != nil {
		return st.Binary.Output()
	}
	return st.Unary.Output()
}

// Reclaimer releases every allocation it handed out in one step.
// memory.Arena is one.
type Reclaimer interface {
	Reset()
}

// Sequential runs its stages in order. The stages are built on the first run
// and rebuilt whenever the input shape or exponent changes. A Sequential is
// not safe for concurrent use.
type Sequential[T tensor.Element] struct {
	Name   string
	Stages []Stage[T]

	timer    timing.Timer
	log      logger.Logger
	reclaim  Reclaimer
	built    bool
	inShape  tensor.Shape
	inExp    int
	rebuilds int
}

// NewSequential wires stages. timer and log may be nil.
func NewSequential[T tensor.Element](name string, stages []Stage[T], timer timing.Timer, log logger.Logger) *Sequential[T] {
	for i, st := range stages {
		contract.Assert((st.Unary == nil) != (st.Binary == nil), "pipeline", "stage %d needs exactly one layer", i)
		contract.Assert(st.From >= Input && st.From < i, "pipeline", "stage %d reads from %d", i, st.From)
		contract.Assert(st.Binary == nil || (st.With >= Input && st.With < i), "pipeline", "stage %d reads with %d", i, st.With)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Sequential[T]{
		Name:   name,
		Stages: stages,
		timer:  timing.Or(timer),
		log:    log,
	}
}

// SetReclaimer hands the allocator behind the stage outputs to s. Every
// rebuild drops the outputs and resets r before building again, so r must
// not back any other tensor.
func (s *Sequential[T]) SetReclaimer(r Reclaimer) {
	s.reclaim = r
}

func (s *Sequential[T]) operand(in *tensor.Tensor[T], idx int) *tensor.Tensor[T] {
	if idx == Input {
		return in
	}
	return s.Stages[idx].Output()
}

// Build propagates shapes and exponents from in through every stage. It
// fails only when the output allocator runs out of space.
func (s *Sequential[T]) Build(in *tensor.Tensor[T]) (err error) {
	// A stage that rejects its input leaves the pipeline half built.
	s.built = false
	if s.reclaim != nil {
		for i := range s.Stages {
			s.Stages[i].Output().Free()
		}
		s.reclaim.Reset()
	}
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && errors.Is(e, memory.ErrArenaExhausted) {
				err = e
				return
			}
			panic(r)
		}
	}()

	for i := range s.Stages {
		st := &s.Stages[i]
		stop := s.timer.Start(st.Name(), "build")
		if st.Binary != nil {
			st.Binary.Build(s.operand(in, st.From), s.operand(in, st.With))
		} else {
			st.Unary.Build(s.operand(in, st.From))
		}
		stop()
	}
	s.built = true
	s.inShape = in.Shape.Clone()
	s.inExp = in.Exponent
	s.rebuilds++
	if out := s.Output(); out != nil {
		s.log.Debug("pipeline built", "pipeline", s.Name, "input", in.Shape.String(), "exponent", in.Exponent,
			"output", out.Shape.String(), "output_exponent", out.Exponent)
	}
	return nil
}

// Run executes every stage on in and returns the last stage's output, which
// stays owned by that layer and is overwritten by the next run. ctx is only
// checked between stages.
func (s *Sequential[T]) Run(ctx context.Context, in *tensor.Tensor[T], autoload bool) (*tensor.Tensor[T], error) {
	if !s.built || !s.inShape.Equal(in.Shape) || s.inExp != in.Exponent {
		if err := s.Build(in); err != nil {
			return nil, err
		}
	}
	for i := range s.Stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st := &s.Stages[i]
		if st.Binary != nil {
			st.Binary.Call(s.operand(in, st.From), s.operand(in, st.With), autoload)
		} else {
			st.Unary.Call(s.operand(in, st.From), autoload)
		}
	}
	return s.Output(), nil
}

// Builds reports how many times the pipeline has been built.
func (s *Sequential[T]) Builds() int { return s.rebuilds }

// Output returns the last stage's output, or nil when there are no stages.
func (s *Sequential[T]) Output() *tensor.Tensor[T] {
	if len(s.Stages) == 0 {
		return nil
	}
	return s.Stages[len(s.Stages)-1].Output()
}
