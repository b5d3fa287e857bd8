package redefine

import (
	"errors"
	"fmt"
	"reflect"
)

// signatureError lists the differences between two function signatures.
type signatureError struct {
	diffs []error
}

func (e *signatureError) Error() string {
	return "function signatures do not match: " + errors.Join(e.diffs...).Error()
}

func (e *signatureError) Unwrap() []error {
	return e.diffs
}

// diffFuncs compares the signatures of the function types a and b. It returns
// nil when they match.
func diffFuncs(a, b reflect.Type) error {
	var diffs []error

	if a.IsVariadic() != b.IsVariadic() {
		diffs = append(diffs, fmt.Errorf("variadic: %v != %v", a.IsVariadic(), b.IsVariadic()))
	}

	for i := range max(a.NumIn(), b.NumIn()) {
		at, bt := typeAt(a.NumIn(), a.In, i), typeAt(b.NumIn(), b.In, i)
		if at != bt {
			diffs = append(diffs, fmt.Errorf("argument %d: %v != %v", i, at, bt))
		}
	}

	for i := range max(a.NumOut(), b.NumOut()) {
		at, bt := typeAt(a.NumOut(), a.Out, i), typeAt(b.NumOut(), b.Out, i)
		if at != bt {
			diffs = append(diffs, fmt.Errorf("output %d: %v != %v", i, at, bt))
		}
	}

	if len(diffs) == 0 {
		return nil
	}
	return &signatureError{diffs: diffs}
}

// typeAt returns get(i), or nil when i is out of range.
func typeAt(n int, get func(int) reflect.Type, i int) reflect.Type {
	if i >= n {
		return nil
	}
	return get(i)
}
