//go:build !linux && !darwin && !freebsd && !openbsd && !windows

package vmem

import "errors"

const (
	ProtRW = iota + 1
	ProtRX
	ProtRWX
)

func Map(addr uintptr, size int) ([]byte, error) {
	return nil, errors.ErrUnsupported
}

func Unmap(buf []byte) error {
	return errors.ErrUnsupported
}

func Protect(buf []byte, prot int) error {
	return errors.ErrUnsupported
}
