package fncopy

import (
	"bytes"
	"fmt"
	"reflect"
	"runtime"
	"unsafe"
)

// maxFuncLength bounds the search for the end of a Go function.
const maxFuncLength = 1 << 20

// CopyFunc copies the machine code of the Go function fn and returns a
// function of the same type that runs the copy. The copy keeps working after
// the original has been modified.
//
// The whole function is copied, as far as the next function in the binary,
// so functions with several returns work. fn must be a top-level function or
// a method expression: the variables captured by a closure are not carried
// over.
func CopyFunc[T any](fn T, opts ...Option) (T, error) {
	var zero T

	v, _, err := CopyFuncValue(reflect.ValueOf(fn), opts...)
	if err != nil {
		return zero, err
	}
	return v.Interface().(T), nil
}

// CopyFuncValue is CopyFunc for a reflect.Value. It also returns the details
// of the copy.
func CopyFuncValue(fn reflect.Value, opts ...Option) (reflect.Value, *Function, error) {
	if fn.Kind() != reflect.Func {
		return reflect.Value{}, nil, fmt.Errorf("%w, kind: %v", ErrNotFunction, fn.Kind())
	}
	if fn.IsNil() {
		return reflect.Value{}, nil, fmt.Errorf("%w: nil func", ErrNotFunction)
	}

	opts = append([]Option{WithScanToEnd(), WithStrictScan()}, opts...)
	c, err := New(opts...)
	if err != nil {
		return reflect.Value{}, nil, err
	}

	code, err := funcCode(fn.Pointer(), c.arch)
	if err != nil {
		return reflect.Value{}, nil, err
	}

	copied, err := c.copyCode(code)
	if err != nil {
		return reflect.Value{}, nil, err
	}

	out := reflect.New(fn.Type()).Elem()
	out.Set(funcValueAt(fn.Type(), copied.Entry))
	return out, copied, nil
}

// FuncAt returns a function of type T that runs the machine code at entry,
// such as an address returned by CopyFunction. T must be a func type matching
// the code's calling convention.
func FuncAt[T any](entry uintptr) T {
	var fn T
	v := reflect.ValueOf(&fn).Elem()
	if v.Kind() != reflect.Func {
		panic(fmt.Sprintf("fncopy: FuncAt type %v is not a func", v.Type()))
	}
	v.Set(funcValueAt(v.Type(), entry))
	return fn
}

// funcValueAt makes a func value of type typ that calls entry.
func funcValueAt(typ reflect.Type, entry uintptr) reflect.Value {
	// A func value points to a cell whose first word is the code address.
	// Keeping the cell on the heap keeps it alive as long as the func.
	cell := new(uintptr)
	*cell = entry
	ptr := unsafe.Pointer(cell)
	return reflect.NewAt(typ, unsafe.Pointer(&ptr)).Elem()
}

// funcCode returns the machine code of the Go function starting at entry,
// without the padding the linker puts after it.
func funcCode(entry uintptr, a arch) ([]byte, error) {
	f := runtime.FuncForPC(entry)
	if f == nil || f.Entry() != entry {
		return nil, fmt.Errorf("%w: no function starts at %#x", ErrNotFunction, entry)
	}

	// The function ends where the PCs start to belong to something else.
	length := 1
	for ; length < maxFuncLength; length++ {
		next := runtime.FuncForPC(entry + uintptr(length))
		if next == nil || next.Entry() != entry {
			break
		}
	}

	code := unsafe.Slice((*byte)(unsafe.Pointer(entry)), length)
	return trimPadding(a, code, entry), nil
}

// trimPadding removes the padding instructions that follow the last real
// instruction in code. Padding is only recognized where an instruction
// starts, so the operand bytes of the last instruction are never cut. Code
// that doesn't decode is returned whole.
func trimPadding(a arch, code []byte, base uintptr) []byte {
	pad := a.padding()

	end := 0
	for offset := 0; offset < len(code); {
		if bytes.HasPrefix(code[offset:], pad) {
			offset += len(pad)
			continue
		}

		inst, err := a.decode(code[offset:], base+uintptr(offset))
		if err != nil {
			return code
		}
		offset += inst.Len()
		end = offset
	}

	if end == 0 {
		return code
	}
	return code[:end]
}
