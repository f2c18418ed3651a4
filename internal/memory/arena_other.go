//go:build !linux

package memory

import "unsafe"

func reserve(size int) (buf []byte, mapped, locked bool, err error) {
	raw := make([]byte, size+Alignment)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(unsafe.SliceData(raw))) % Alignment); rem != 0 {
		off = Alignment - rem
	}
	return raw[off : off+size : off+size], false, false, nil
}

func release(_ []byte, _ bool) error {
	return nil
}
