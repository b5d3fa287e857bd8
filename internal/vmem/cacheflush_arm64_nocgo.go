//go:build arm64 && !windows && !cgo

package vmem

import "errors"

// FlushInstructionCache reports an error: arm64 requires a C compiler to
// flush the instruction cache. Install a C compiler and build with
// CGO_ENABLED=1.
func FlushInstructionCache(buf []byte) error {
	return errors.New("flushing the instruction cache on arm64 requires cgo")
}
