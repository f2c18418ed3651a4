package cores

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Dispatcher runs fn over the index range [0, n), possibly split into
// disjoint sub-ranges executed on the hinted cores. Every index is covered
// exactly once.
type Dispatcher interface {
	For(hint Hint, n int, fn func(lo, hi int))
}

// Serial ignores the hint and runs the whole range on the calling goroutine.
type Serial struct{}

func (Serial) For(_ Hint, n int, fn func(lo, hi int)) {
	if n > 0 {
		fn(0, n)
	}
}

// DefaultMinChunk is the smallest range Split hands to a worker.
const DefaultMinChunk = 1024

// Split partitions the range across one worker per hinted core. With Pin set
// each worker locks its goroutine to an OS thread bound to that core; the
// thread is discarded afterwards so the affinity never leaks into the
// scheduler's pool.
type Split struct {
	Pin      bool
	MinChunk int
}

func (s Split) For(hint Hint, n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	minChunk := s.MinChunk
	if minChunk <= 0 {
		minChunk = DefaultMinChunk
	}
	workers := min(len(hint), (n+minChunk-1)/minChunk)
	if workers <= 1 {
		fn(0, n)
		return
	}
	chunk := (n + workers - 1) / workers

	var g errgroup.Group
	for w := range workers {
		lo := w * chunk
		hi := min(lo+chunk, n)
		if lo >= hi {
			break
		}
		core := hint[w]
		g.Go(func() error {
			if s.Pin {
				runtime.LockOSThread()
				if err := pin(core); err != nil {
					runtime.UnlockOSThread()
				}
			}
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}

type dispatcherBox struct{ d Dispatcher }

var current atomic.Pointer[dispatcherBox]

func init() {
	current.Store(&dispatcherBox{d: Serial{}})
}

// Current returns the process-wide dispatcher.
func Current() Dispatcher {
	return current.Load().d
}

// SetDispatcher replaces the process-wide dispatcher. nil restores Serial.
func SetDispatcher(d Dispatcher) {
	if d == nil {
		d = Serial{}
	}
	current.Store(&dispatcherBox{d: d})
}

// Named builds a dispatcher from its configuration name.
func Named(name string, pinThreads bool) (Dispatcher, error) {
	switch name {
	case "", "serial":
		return Serial{}, nil
	case "split":
		return Split{Pin: pinThreads}, nil
	default:
		return nil, fmt.Errorf("cores: unknown dispatcher %q (expected serial or split)", name)
	}
}
