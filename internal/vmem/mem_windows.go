//go:build windows

package vmem

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	ProtRW  = windows.PAGE_READWRITE
	ProtRX  = windows.PAGE_EXECUTE_READ
	ProtRWX = windows.PAGE_EXECUTE_READWRITE
)

var (
	modkernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procFlushInstructionCache = modkernel32.NewProc("FlushInstructionCache")
	procGetSystemInfo         = modkernel32.NewProc("GetSystemInfo")
)

// systemInfo mirrors SYSTEM_INFO.
type systemInfo struct {
	processorArchitecture     uint16
	reserved                  uint16
	pageSize                  uint32
	minimumApplicationAddress uintptr
	maximumApplicationAddress uintptr
	activeProcessorMask       uintptr
	numberOfProcessors        uint32
	processorType             uint32
	allocationGranularity     uint32
	processorLevel            uint16
	processorRevision         uint16
}

// Map commits size bytes, rounded up to whole pages, of read-write memory. A
// non-zero addr asks for a region at that address; VirtualAlloc rounds it
// down to the allocation granularity, so callers must check where the region
// landed.
func Map(addr uintptr, size int) ([]byte, error) {
	size = roundPage(size)

	p, err := windows.VirtualAlloc(addr, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, ProtRW)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), size), nil
}

// Unmap releases a region returned by Map.
func Unmap(buf []byte) error {
	return windows.VirtualFree(Addr(buf), 0, windows.MEM_RELEASE)
}

// Protect changes the protection of every page that buf touches.
func Protect(buf []byte, prot int) error {
	start, size := pageSpan(buf)

	var oldFlags uint32
	return windows.VirtualProtect(start, uintptr(size), uint32(prot), &oldFlags)
}

// FlushInstructionCache makes newly written code in buf visible to
// instruction fetch.
func FlushInstructionCache(buf []byte) error {
	r, _, err := procFlushInstructionCache.Call(uintptr(windows.CurrentProcess()), Addr(buf), uintptr(len(buf)))
	if r == 0 {
		return err
	}
	return nil
}

// Limits returns the lowest and highest application addresses.
func Limits() (lo, hi uintptr) {
	var si systemInfo
	procGetSystemInfo.Call(uintptr(unsafe.Pointer(&si)))
	return si.minimumApplicationAddress, si.maximumApplicationAddress
}
