//go:build !windows && (amd64 || arm64)

package vmem

// Limits returns the lowest and highest addresses worth asking Map for.
// The low end is the usual vm.mmap_min_addr, the high end the top of a
// 47-bit user address space, which every supported kernel provides.
func Limits() (lo, hi uintptr) {
	return 0x10000, 1<<47 - 1
}
