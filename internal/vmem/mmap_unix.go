//go:build linux || darwin || freebsd || openbsd

package vmem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	ProtRW  = unix.PROT_READ | unix.PROT_WRITE
	ProtRX  = unix.PROT_READ | unix.PROT_EXEC
	ProtRWX = unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC
)

// Map commits size bytes, rounded up to whole pages, of private read-write
// memory. A non-zero addr asks for a mapping at exactly that address. Where
// the OS has no way to refuse an occupied address it treats addr as a hint,
// so callers must check where the mapping landed.
func Map(addr uintptr, size int) ([]byte, error) {
	size = roundPage(size)

	flags := unix.MAP_PRIVATE | unix.MAP_ANON
	if addr != 0 {
		flags |= _MAP_FIXED_NOREPLACE
	}

	p, err := unix.MmapPtr(-1, 0, unsafe.Pointer(addr), uintptr(size), ProtRW, flags)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(p), size), nil
}

// Unmap releases a mapping returned by Map.
func Unmap(buf []byte) error {
	return unix.MunmapPtr(unsafe.Pointer(unsafe.SliceData(buf)), uintptr(len(buf)))
}

// Protect changes the protection of every page that buf touches.
func Protect(buf []byte, prot int) error {
	return unix.Mprotect(Pages(buf), prot)
}
