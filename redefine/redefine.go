// Package redefine replaces Go functions at runtime by patching a jump into
// their machine code. The replaced code stays reachable through Original,
// which runs a relocated copy of it.
package redefine

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sync"
	"unsafe"

	"github.com/pboyd/fncopy"
	"github.com/pboyd/fncopy/internal/vmem"
)

// ErrNotRedefined is returned by Restore for functions Func never changed.
var ErrNotRedefined = errors.New("function has not been redefined")

// patched records a redefined function.
type patched struct {
	// original runs a copy of the function as it was before Func.
	original reflect.Value

	// saved holds the bytes the jump overwrote.
	saved []byte
}

var (
	mu        sync.RWMutex
	redefined = map[uintptr]*patched{}
)

// Func redefines fn with newFn. An error will be returned if fn or newFn are
// not functions or if their signatures do not match. newFn must not capture
// variables.
//
// Note that if fn has been inlined this will silently fail. If possible, add a
// noinline directive to work-around this problem:
//
//	//go:noinline
//	func myfunc() {
//		...
//	}
func Func(fn, newFn any) error {
	fnv := reflect.ValueOf(fn)
	if fnv.Kind() != reflect.Func {
		return fmt.Errorf("%w, kind: %v", fncopy.ErrNotFunction, fnv.Kind())
	}
	newFnv := reflect.ValueOf(newFn)
	if newFnv.Kind() != reflect.Func {
		return fmt.Errorf("%w, kind: %v", fncopy.ErrNotFunction, newFnv.Kind())
	}
	if fnv.IsNil() || newFnv.IsNil() {
		return fmt.Errorf("%w: nil func", fncopy.ErrNotFunction)
	}
	if err := diffFuncs(fnv.Type(), newFnv.Type()); err != nil {
		return err
	}

	entry := fnv.Pointer()

	mu.Lock()
	defer mu.Unlock()

	p, ok := redefined[entry]
	if !ok {
		// Copy the function before the jump clobbers it.
		original, _, err := fncopy.CopyFuncValue(fnv)
		if err != nil {
			return fmt.Errorf("unable to copy original function: %w", err)
		}

		// The jump may run into the padding after the function, but no
		// further.
		if f := runtime.FuncForPC(entry + jumpSize - 1); f == nil || f.Entry() != entry {
			return errors.New("function is too small for a jump")
		}

		p = &patched{
			original: original,
			saved:    make([]byte, jumpSize),
		}
		copy(p.saved, code(entry))
	}

	err := patch(entry, func(buf []byte) error {
		return insertJump(buf, newFnv.Pointer())
	})
	if err != nil {
		return err
	}

	redefined[entry] = p
	return nil
}

// Original returns a function with the same behavior as the original version
// of the function. If the function has not been redefined the passed function
// is returned unchanged.
//
// Technically, this returns a copy of the original that's been relocated and
// had relative addresses adjusted. This process may introduce problems.
func Original[T any](fn T) T {
	fnv := reflect.ValueOf(fn)
	if fnv.Kind() != reflect.Func {
		var zero T
		return zero
	}

	mu.RLock()
	defer mu.RUnlock()

	p, ok := redefined[fnv.Pointer()]
	if !ok {
		// Not redefined, so return the original func.
		return fn
	}

	original, _ := p.original.Interface().(T)
	return original
}

// Restore undoes Func, putting back the original code of fn.
func Restore(fn any) error {
	fnv := reflect.ValueOf(fn)
	if fnv.Kind() != reflect.Func {
		return fmt.Errorf("%w, kind: %v", fncopy.ErrNotFunction, fnv.Kind())
	}

	entry := fnv.Pointer()

	mu.Lock()
	defer mu.Unlock()

	p, ok := redefined[entry]
	if !ok {
		return ErrNotRedefined
	}

	err := patch(entry, func(buf []byte) error {
		copy(buf, p.saved)
		return nil
	})
	if err != nil {
		return err
	}

	// The copy behind Original is left in place. Something may still be
	// running it.
	delete(redefined, entry)
	return nil
}

// code returns the bytes a jump at entry occupies.
func code(entry uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(entry)), jumpSize)
}

// patch makes the code at entry writable, calls write on it and makes it
// executable again.
func patch(entry uintptr, write func([]byte) error) error {
	buf := code(entry)

	err := vmem.Protect(buf, vmem.ProtRWX)
	if err != nil {
		return fmt.Errorf("unable to make code writable: %w", err)
	}
	defer vmem.Protect(buf, vmem.ProtRX)

	err = write(buf)
	if err != nil {
		return err
	}

	return vmem.FlushInstructionCache(buf)
}
