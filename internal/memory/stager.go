// Package memory moves tensor storage between the slow external memory and the
// small fast on-chip memory.
//
// Staging is purely an optimisation. Operators produce the same results
// whether or not a range was staged first; only latency differs.
package memory

import (
	"sync/atomic"
	"unsafe"
)

// Stager brings a destination range and a source range into fast memory
// before an operator touches them.
type Stager interface {
	Stage(dst, src []byte)
}

// Nop is the stager for unified-memory targets.
type Nop struct{}

func (Nop) Stage(_, _ []byte) {}

// DefaultLineSize is the cache line width assumed by Prefetch.
const DefaultLineSize = 64

// Prefetch warms the data cache by reading one byte per cache line of both
// ranges.
type Prefetch struct {
	LineSize int
}

var prefetchSink atomic.Uint32

func (p Prefetch) Stage(dst, src []byte) {
	line := p.LineSize
	if line <= 0 {
		line = DefaultLineSize
	}
	var acc byte
	acc ^= touch(dst, line)
	acc ^= touch(src, line)
	prefetchSink.Store(uint32(acc))
}

func touch(b []byte, line int) byte {
	if len(b) == 0 {
		return 0
	}
	var acc byte
	// Start from the line boundary so every line of the range is touched once.
	base := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	i := 0
	if off := int(base % uintptr(line)); off != 0 {
		acc ^= b[0]
		i = line - off
	}
	for ; i < len(b); i += line {
		acc ^= b[i]
	}
	return acc ^ b[len(b)-1]
}

// Counter wraps a Stager and records how much it was asked to stage.
type Counter struct {
	Next Stager

	calls    atomic.Int64
	dstBytes atomic.Int64
	srcBytes atomic.Int64
}

func (c *Counter) Stage(dst, src []byte) {
	c.calls.Add(1)
	c.dstBytes.Add(int64(len(dst)))
	c.srcBytes.Add(int64(len(src)))
	if c.Next != nil {
		c.Next.Stage(dst, src)
	}
}

// Stats is a snapshot of a Counter.
type Stats struct {
	Calls    int64 `json:"calls"`
	DstBytes int64 `json:"dst_bytes"`
	SrcBytes int64 `json:"src_bytes"`
}

func (c *Counter) Stats() Stats {
	return Stats{
		Calls:    c.calls.Load(),
		DstBytes: c.dstBytes.Load(),
		SrcBytes: c.srcBytes.Load(),
	}
}

// Reset zeroes the counters.
func (c *Counter) Reset() {
	c.calls.Store(0)
	c.dstBytes.Store(0)
	c.srcBytes.Store(0)
}

// Named returns the stager registered under name: "nop" (or empty) and
// "prefetch".
func Named(name string) (Stager, bool) {
	switch name {
	case "", "nop", "none":
		return Nop{}, true
	case "prefetch":
		return Prefetch{LineSize: DefaultLineSize}, true
	default:
		return nil, false
	}
}
