//go:build !arm64 && !windows

package vmem

// FlushInstructionCache is a no-op: x86 keeps instruction fetch coherent with
// stores. Other architectures are rejected before code is written.
func FlushInstructionCache(buf []byte) error {
	return nil
}
