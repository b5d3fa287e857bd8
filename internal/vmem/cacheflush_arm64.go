//go:build arm64 && !windows

package vmem

import "unsafe"

/*
static void cacheflush(char *start, char *end) {
	__builtin___clear_cache(start, end);
}
*/
import "C"

// FlushInstructionCache makes newly written code in buf visible to
// instruction fetch.
func FlushInstructionCache(buf []byte) error {
	start := unsafe.Pointer(unsafe.SliceData(buf))
	end := unsafe.Add(start, len(buf))
	C.cacheflush((*C.char)(start), (*C.char)(end))
	return nil
}
