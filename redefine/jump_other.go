//go:build !amd64 && !386 && !arm64

package redefine

import "github.com/pboyd/fncopy"

const jumpSize = 1

func insertJump(buf []byte, dest uintptr) error {
	return fncopy.ErrUnsupportedArch
}
