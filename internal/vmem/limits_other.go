//go:build !windows && !amd64 && !arm64

package vmem

// Limits returns the lowest and highest addresses worth asking Map for.
func Limits() (lo, hi uintptr) {
	return 0x10000, ^uintptr(0)
}
