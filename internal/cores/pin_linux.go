//go:build linux

package cores

import "golang.org/x/sys/unix"

// pin binds the calling OS thread to core.
func pin(core ID) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(int(core))
	return unix.SchedSetaffinity(0, &set)
}
