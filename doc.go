// Package fncopy copies machine code functions to new memory.
//
// A copy is a byte-for-byte duplicate of the original with every relative
// reference rewritten, so it behaves like the original when called at its new
// address. Hooking tools take such a copy before patching the original; see
// the redefine package for one.
//
// The copy is placed close enough to the original for 32-bit displacements to
// reach back, so nothing is re-encoded and the copy has exactly the length of
// the original.
//
// Limitations:
//   - Supports amd64, 386 and arm64 on Linux, FreeBSD, Darwin, OpenBSD and
//     Windows. arm64 needs cgo to flush the instruction cache.
//   - Jump tables hold absolute addresses, so they jump back into the
//     original.
//   - Copies made by Copy and CopyFunction are never freed.
//   - Go's runtime doesn't know about copies of Go functions. Stack growth or
//     a traceback while a copy is on the stack will crash.
package fncopy
