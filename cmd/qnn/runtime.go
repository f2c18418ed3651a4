package main

import (
	"context"
	"fmt"

	"github.com/samcharles93/qnn/internal/cores"
	"github.com/samcharles93/qnn/internal/layer"
	"github.com/samcharles93/qnn/internal/logger"
	"github.com/samcharles93/qnn/internal/memory"
	"github.com/samcharles93/qnn/internal/timing"
)

// runtimeEnv is the process-wide execution setup shared by run, bench and
// serve.
type runtimeEnv struct {
	opts    layer.Options
	counter *memory.Counter
	arena   *memory.Arena
}

// setupRuntime applies the runtime flags. With ownArena set and --arena-bytes
// positive it reserves one arena for the single runner the command builds;
// serve passes false and lets each pooled runner reserve its own.
func setupRuntime(ctx context.Context, ownArena bool) (*runtimeEnv, error) {
	log := logger.FromContext(ctx)

	hint, err := cores.Parse(coreList)
	if err != nil {
		return nil, err
	}
	if len(hint) > 0 {
		if err := cores.SetDefault(hint); err != nil {
			return nil, err
		}
	}
	d, err := cores.Named(dispatcher, pinThreads)
	if err != nil {
		return nil, err
	}
	cores.SetDispatcher(d)

	stager, ok := memory.Named(stagerName)
	if !ok {
		return nil, fmt.Errorf("unknown stager %q (expected nop or prefetch)", stagerName)
	}
	env := &runtimeEnv{counter: &memory.Counter{Next: stager}}
	env.opts = layer.Options{
		Stager: env.counter,
		Timer:  timing.LogTimer{Log: log},
	}

	if ownArena && arenaBytes > 0 {
		arena, err := memory.NewArena(int(arenaBytes))
		if err != nil {
			return nil, err
		}
		env.arena = arena
		env.opts.Alloc = arena
		log.Info("fast memory arena reserved", "bytes", arena.Cap(), "locked", arena.Locked())
	}

	log.Debug("runtime configured",
		"cores", cores.Default().String(),
		"dispatcher", dispatcher,
		"pin_threads", pinThreads,
		"stager", stagerName,
	)
	return env, nil
}

func (e *runtimeEnv) Close(log logger.Logger) {
	if e.arena == nil {
		return
	}
	log.Debug("fast memory arena released", "peak", e.arena.Peak(), "capacity", e.arena.Cap())
	if err := e.arena.Close(); err != nil {
		log.Warn("release arena", "error", err)
	}
}
