// Package cores carries the core-assignment hint threaded through every
// operator.
//
// A Hint lists the processor cores an operation may run on, in order of
// preference. It is advisory: the Dispatcher decides what to do with it and
// results never depend on the choice.
package cores

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

// ID identifies one processor core.
type ID int

// Hint is an ordered list of candidate cores.
type Hint []ID

var defaultHint atomic.Pointer[Hint]

func init() {
	h := Hint{0}
	defaultHint.Store(&h)
}

// Default returns the process-wide hint used when an operator is given none.
func Default() Hint {
	return (*defaultHint.Load()).Clone()
}

// SetDefault replaces the process-wide hint.
func SetDefault(h Hint) error {
	if err := h.Validate(); err != nil {
		return err
	}
	if len(h) == 0 {
		return fmt.Errorf("cores: default hint must name at least one core")
	}
	c := h.Clone()
	defaultHint.Store(&c)
	return nil
}

// Resolve returns h, or the default hint when h is empty.
func Resolve(h Hint) Hint {
	if len(h) == 0 {
		return Default()
	}
	return h
}

// Validate rejects negative and repeated core ids.
func (h Hint) Validate() error {
	seen := make(map[ID]struct{}, len(h))
	for _, id := range h {
		if id < 0 {
			return fmt.Errorf("cores: invalid core id %d", id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("cores: core %d listed twice", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func (h Hint) Clone() Hint {
	if h == nil {
		return nil
	}
	out := make(Hint, len(h))
	copy(out, h)
	return out
}

func (h Hint) String() string {
	parts := make([]string, len(h))
	for i, id := range h {
		parts[i] = strconv.Itoa(int(id))
	}
	return strings.Join(parts, ",")
}

// Parse reads a comma separated list such as "0,1".
func Parse(s string) (Hint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	fields := strings.Split(s, ",")
	h := make(Hint, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("cores: parse %q: %w", s, err)
		}
		h = append(h, ID(n))
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}
