// Package contract enforces the preconditions of tensor operators and layers.
//
// A broken precondition is a programming error in how layers were composed,
// not a runtime condition, so checks panic with a *Violation instead of
// returning an error. Building with the qnn_unchecked tag compiles the checks
// out; an operator fed arguments that would have been rejected then has
// undefined results.
package contract

import (
	"errors"
	"fmt"
)

// Violation is the panic value raised by a failed check.
type Violation struct {
	Op  string
	Msg string
}

func (v *Violation) Error() string {
	if v.Op == "" {
		return "contract violation: " + v.Msg
	}
	return v.Op + ": contract violation: " + v.Msg
}

// Assert panics with a *Violation when cond is false.
func Assert(cond bool, op, format string, args ...any) {
	if !Enabled || cond {
		return
	}
	panic(&Violation{Op: op, Msg: fmt.Sprintf(format, args...)})
}

// Fail panics with a *Violation unconditionally, even in unchecked builds.
func Fail(op, format string, args ...any) {
	panic(&Violation{Op: op, Msg: fmt.Sprintf(format, args...)})
}

// Catch runs fn and returns the violation it raised, if any. Other panics
// are re-raised.
func Catch(fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if v, ok := r.(*Violation); ok {
			err = v
			return
		}
		panic(r)
	}()
	fn()
	return nil
}

// IsViolation reports whether err wraps a *Violation.
func IsViolation(err error) bool {
	var v *Violation
	return errors.As(err, &v)
}
