// Package vmem wraps the operating system calls used to place, protect and
// publish machine code: page mapping near a chosen address, protection
// changes and instruction cache maintenance.
package vmem

import (
	"os"
	"unsafe"
)

// PageSize returns the granularity of Map and Protect.
func PageSize() int {
	return os.Getpagesize()
}

// Addr returns the address of the first byte of buf.
func Addr(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
}

func roundPage(size int) int {
	pageSize := PageSize()
	return (size + pageSize - 1) &^ (pageSize - 1)
}

// pageSpan returns the page-aligned start address and length of the smallest
// run of whole pages covering buf.
func pageSpan(buf []byte) (uintptr, int) {
	pageSize := PageSize()
	addr := Addr(buf)

	// Round address down to page boundary.
	// Example: addr=4196 with pageSize=4096 becomes 4096.
	start := addr &^ (uintptr(pageSize) - 1)

	// Cover the offset from start to addr plus the buffer, rounded up to
	// complete pages.
	return start, roundPage(int(addr-start) + len(buf))
}

// Pages returns the run of whole pages that buf touches.
func Pages(buf []byte) []byte {
	start, size := pageSpan(buf)
	return unsafe.Slice((*byte)(unsafe.Pointer(start)), size)
}
