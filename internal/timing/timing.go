// Package timing provides the optional latency hook wrapped around layer
// steps. Layers call Start before a step and the returned function after it;
// nothing inside the operators is instrumented.
package timing

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samcharles93/qnn/internal/logger"
)

// Timer measures one step of one layer.
type Timer interface {
	Start(layer, step string) (stop func())
}

// Nop measures nothing.
type Nop struct{}

func nopStop() {}

func (Nop) Start(_, _ string) func() { return nopStop }

// Or returns t, or Nop when t is nil.
func Or(t Timer) Timer {
	if t == nil {
		return Nop{}
	}
	return t
}

// LogTimer writes one debug record per step.
type LogTimer struct {
	Log logger.Logger
}

func (l LogTimer) Start(layer, step string) func() {
	if l.Log == nil || !l.Log.Enabled(slog.LevelDebug) {
		return nopStop
	}
	start := time.Now()
	return func() {
		l.Log.Debug("latency", "layer", layer, "step", step, "elapsed", time.Since(start))
	}
}

// Multi fans a measurement out to several timers.
type Multi []Timer

func (m Multi) Start(layer, step string) func() {
	stops := make([]func(), len(m))
	for i, t := range m {
		stops[i] = t.Start(layer, step)
	}
	return func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}
}

// Recorder aggregates durations per layer and step.
type Recorder struct {
	mu    sync.Mutex
	now   func() time.Time
	order []key
	stats map[key]*Summary
}

type key struct{ layer, step string }

// Summary aggregates the samples of one layer step.
type Summary struct {
	Layer string        `json:"layer"`
	Step  string        `json:"step"`
	Count int           `json:"count"`
	Total time.Duration `json:"total_ns"`
	Min   time.Duration `json:"min_ns"`
	Max   time.Duration `json:"max_ns"`
}

// Mean returns the average sample.
func (s Summary) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// NewRecorder returns an empty Recorder using the wall clock.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now, stats: make(map[key]*Summary)}
}

func (r *Recorder) Start(layer, step string) func() {
	start := r.now()
	return func() {
		r.Observe(layer, step, r.now().Sub(start))
	}
}

// Observe records one sample.
func (r *Recorder) Observe(layer, step string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{layer, step}
	s, ok := r.stats[k]
	if !ok {
		s = &Summary{Layer: layer, Step: step, Min: d, Max: d}
		r.stats[k] = s
		r.order = append(r.order, k)
	}
	s.Count++
	s.Total += d
	s.Min = min(s.Min, d)
	s.Max = max(s.Max, d)
}

// Summaries returns the aggregates in first-seen order.
func (r *Recorder) Summaries() []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Summary, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, *r.stats[k])
	}
	return out
}

// Layer returns the aggregates recorded for one layer.
func (r *Recorder) Layer(name string) []Summary {
	return slices.DeleteFunc(r.Summaries(), func(s Summary) bool { return s.Layer != name })
}

// Reset drops all samples.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.stats = make(map[key]*Summary)
}
