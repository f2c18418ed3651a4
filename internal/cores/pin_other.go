//go:build !linux

package cores

import "errors"

var errPinUnsupported = errors.New("cores: thread affinity not supported on this platform")

func pin(_ ID) error {
	return errPinUnsupported
}
