package api

import (
	"context"
	"errors"
	"sync"

	"github.com/samcharles93/qnn/internal/layer"
	"github.com/samcharles93/qnn/internal/logger"
	"github.com/samcharles93/qnn/internal/memory"
	"github.com/samcharles93/qnn/internal/pipeline"
	"github.com/samcharles93/qnn/internal/timing"
)

// RunnerProvider lends a pipeline runner to one request at a time.
type RunnerProvider interface {
	Config() *pipeline.Config
	WithRunner(ctx context.Context, fn func(r pipeline.Runner, rec *timing.Recorder) error) error
}

// PooledRunnerProvider builds runners on demand and keeps idle ones for
// reuse. Each runner owns its layers, a recorder and, when arenaBytes is set,
// its own output arena, so concurrent requests never share either.
type PooledRunnerProvider struct {
	cfg        *pipeline.Config
	opts       layer.Options
	log        logger.Logger
	arenaBytes int

	mu     sync.Mutex
	idle   []*runnerEntry
	max    int
	closed bool
}

type runnerEntry struct {
	runner pipeline.Runner
	rec    *timing.Recorder
	arena  *memory.Arena
}

func (e *runnerEntry) close() error {
	if e.arena == nil {
		return nil
	}
	return e.arena.Close()
}

// NewPooledRunnerProvider validates cfg up front. maxIdle bounds the number
// of runners kept between requests. A positive arenaBytes places every
// runner's outputs in an arena of that size; opts.Alloc is then ignored.
func NewPooledRunnerProvider(cfg *pipeline.Config, opts layer.Options, log logger.Logger, maxIdle, arenaBytes int) (*PooledRunnerProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	p := &PooledRunnerProvider{cfg: cfg, opts: opts, log: log, max: max(maxIdle, 1), arenaBytes: arenaBytes}
	entry, err := p.newEntry()
	if err != nil {
		return nil, err
	}
	p.idle = append(p.idle, entry)
	return p, nil
}

func (p *PooledRunnerProvider) Config() *pipeline.Config { return p.cfg }

func (p *PooledRunnerProvider) WithRunner(ctx context.Context, fn func(r pipeline.Runner, rec *timing.Recorder) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry, err := p.acquire()
	if err != nil {
		return err
	}
	defer p.release(entry)
	entry.rec.Reset()
	return fn(entry.runner, entry.rec)
}

func (p *PooledRunnerProvider) acquire() (*runnerEntry, error) {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		entry := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return entry, nil
	}
	p.mu.Unlock()
	return p.newEntry()
}

func (p *PooledRunnerProvider) release(entry *runnerEntry) {
	p.mu.Lock()
	if !p.closed && len(p.idle) < p.max {
		p.idle = append(p.idle, entry)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	if err := entry.close(); err != nil {
		p.log.Warn("release runner arena", "error", err)
	}
}

// Close releases the idle runners. Runners still lent out are released when
// they come back.
func (p *PooledRunnerProvider) Close() error {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for _, e := range idle {
		if err := e.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *PooledRunnerProvider) newEntry() (*runnerEntry, error) {
	rec := timing.NewRecorder()
	opts := p.opts
	if opts.Timer != nil {
		opts.Timer = timing.Multi{rec, opts.Timer}
	} else {
		opts.Timer = rec
	}
	entry := &runnerEntry{rec: rec}
	if p.arenaBytes > 0 {
		arena, err := memory.NewArena(p.arenaBytes)
		if err != nil {
			return nil, err
		}
		entry.arena = arena
		opts.Alloc = arena
	}
	r, err := pipeline.New(p.cfg, opts, p.log)
	if err != nil {
		_ = entry.close()
		return nil, err
	}
	entry.runner = r
	p.log.Debug("pipeline runner created", "pipeline", p.cfg.Name, "dtype", p.cfg.DType, "arena_bytes", p.arenaBytes)
	return entry, nil
}
