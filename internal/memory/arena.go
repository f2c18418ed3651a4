package memory

import (
	"errors"
	"fmt"
	"sync"
)

// Alignment is the boundary every arena allocation starts on.
const Alignment = 64

var (
	ErrArenaExhausted = errors.New("memory: arena exhausted")
	ErrArenaClosed    = errors.New("memory: arena closed")
)

// Arena is a fixed-capacity region standing in for fast on-chip memory.
// Allocation is a bump pointer; Reset releases everything at once. On linux
// the region is an anonymous mapping locked into RAM where the process is
// allowed to lock pages.
type Arena struct {
	mu     sync.Mutex
	buf    []byte
	off    int
	peak   int
	mapped bool
	locked bool
	closed bool
}

// NewArena reserves size bytes, rounded up to Alignment.
func NewArena(size int) (*Arena, error) {
	if size <= 0 {
		return nil, fmt.Errorf("memory: invalid arena size %d", size)
	}
	size = alignUp(size, Alignment)
	buf, mapped, locked, err := reserve(size)
	if err != nil {
		return nil, err
	}
	return &Arena{buf: buf, mapped: mapped, locked: locked}, nil
}

// TryAlloc returns n zeroed bytes aligned to Alignment.
func (a *Arena) TryAlloc(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("memory: negative allocation %d", n)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrArenaClosed
	}
	start := alignUp(a.off, Alignment)
	end := start + n
	if end > len(a.buf) || end < start {
		return nil, fmt.Errorf("%w: need %d bytes, %d free", ErrArenaExhausted, n, len(a.buf)-start)
	}
	a.off = end
	a.peak = max(a.peak, end)
	b := a.buf[start:end:end]
	clear(b)
	return b, nil
}

// Alloc is TryAlloc for use as a tensor allocator; running out of fast memory
// is a sizing error in the deployment and panics.
func (a *Arena) Alloc(n int) []byte {
	b, err := a.TryAlloc(n)
	if err != nil {
		panic(err)
	}
	return b
}

// Reset makes the whole arena available again. Slices handed out earlier must
// no longer be used.
func (a *Arena) Reset() {
	a.mu.Lock()
	a.off = 0
	a.mu.Unlock()
}

// Cap returns the arena capacity in bytes.
func (a *Arena) Cap() int { return len(a.buf) }

// Used returns the bytes handed out since the last Reset, including padding.
func (a *Arena) Used() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.off
}

// Peak returns the high-water mark across resets.
func (a *Arena) Peak() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.peak
}

// Locked reports whether the pages are pinned in RAM.
func (a *Arena) Locked() bool { return a.locked }

// Close releases the region.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	buf := a.buf
	a.buf = nil
	if a.mapped {
		return release(buf, a.locked)
	}
	return nil
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
