//go:build qnn_unchecked

package contract

// Enabled reports whether precondition checks are compiled in.
const Enabled = false
