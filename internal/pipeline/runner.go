package pipeline

import (
	"context"
	"fmt"

	"github.com/samcharles93/qnn/internal/layer"
	"github.com/samcharles93/qnn/internal/logger"
	"github.com/samcharles93/qnn/internal/tensor"
)

// Runner runs a pipeline of either element width on interchange dumps.
type Runner interface {
	Name() string
	DType() string
	LayerNames() []string
	Run(ctx context.Context, in tensor.Dump, autoload bool) (tensor.Dump, error)
}

// New builds the layers cfg describes. All layers share opts; opts.Timer
// also times the per-layer build step. When opts.Alloc is a Reclaimer the
// runner owns it and resets it on every rebuild, so it must not be shared
// with another runner.
func New(cfg *Config, opts layer.Options, log logger.Logger) (Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.DType {
	case tensor.DTypeInt8:
		return newRunner[int8](cfg, opts, log)
	case tensor.DTypeInt16:
		return newRunner[int16](cfg, opts, log)
	default:
		return nil, fmt.Errorf("%w: dtype %q", ErrInvalidConfig, cfg.DType)
	}
}

type runner[T tensor.Element] struct {
	seq *Sequential[T]
}

func newRunner[T tensor.Element](cfg *Config, opts layer.Options, log logger.Logger) (*runner[T], error) {
	stages, err := NewStages[T](cfg.Layers, opts)
	if err != nil {
		return nil, err
	}
	seq := NewSequential(cfg.Name, stages, opts.Timer, log)
	if rc, ok := opts.Alloc.(Reclaimer); ok {
		seq.SetReclaimer(rc)
	}
	return &runner[T]{seq: seq}, nil
}

// NewStages constructs one layer per entry and resolves where each reads
// its operands.
func NewStages[T tensor.Element](configs []LayerConfig, opts layer.Options) ([]Stage[T], error) {
	routes, err := resolve(configs)
	if err != nil {
		return nil, err
	}
	stages := make([]Stage[T], 0, len(configs))
	for i, lc := range configs {
		st := Stage[T]{From: routes[i].from, With: routes[i].with}
		var l layer.Unary[T]
		switch lc.Kind {
		case KindGlobalMaxPool2D:
			l = layer.NewGlobalMaxPool2D[T](lc.Filter, lc.Name, opts)
		case KindGlobalMinPool2D:
			l = layer.NewGlobalMinPool2D[T](lc.Filter, lc.Name, opts)
		case KindGlobalAvgPool2D:
			if lc.Exponent == nil {
				return nil, fmt.Errorf("%w: layer %d (%s) needs an exponent", ErrInvalidConfig, i, lc.Kind)
			}
			l = layer.NewGlobalAvgPool2D[T](*lc.Exponent, lc.Filter, lc.Name, opts)
		case KindMax2D:
			st.Binary = layer.NewMax2D[T](lc.Name, opts)
		case KindMin2D:
			st.Binary = layer.NewMin2D[T](lc.Name, opts)
		default:
			return nil, fmt.Errorf("%w: layer %d: %q", ErrUnknownKind, i, lc.Kind)
		}
		if st.Binary == nil {
			st.Unary = l
		}
		stages = append(stages, st)
	}
	return stages, nil
}

func (r *runner[T]) Name() string  { return r.seq.Name }
func (r *runner[T]) DType() string { return tensor.DTypeOf[T]() }

func (r *runner[T]) LayerNames() []string {
	names := make([]string, len(r.seq.Stages))
	for i := range r.seq.Stages {
		names[i] = r.seq.Stages[i].Name()
	}
	return names
}

func (r *runner[T]) Run(ctx context.Context, in tensor.Dump, autoload bool) (tensor.Dump, error) {
	t, err := tensor.FromDump[T](in)
	if err != nil {
		return tensor.Dump{}, err
	}
	out, err := r.seq.Run(ctx, t, autoload)
	if err != nil {
		return tensor.Dump{}, err
	}
	names := r.LayerNames()
	return out.Dump(names[len(names)-1]), nil
}
