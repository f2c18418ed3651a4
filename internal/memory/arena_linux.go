//go:build linux

package memory

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func reserve(size int) (buf []byte, mapped, locked bool, err error) {
	buf, err = unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, false, false, fmt.Errorf("memory: mmap arena: %w", err)
	}
	// Locking needs RLIMIT_MEMLOCK headroom; an unlocked mapping still works.
	locked = unix.Mlock(buf) == nil
	return buf, true, locked, nil
}

func release(buf []byte, locked bool) error {
	if locked {
		_ = unix.Munlock(buf)
	}
	return unix.Munmap(buf)
}
