//go:build amd64

package fncopy

import (
	"io"
	"reflect"
	"runtime"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:noinline
func simpleTestCopyFunc(v uint8) uint16 {
	return uint16(v)<<8 | uint16(v)
}

//go:noinline
func testCopyFuncWithOneCall(v int) string {
	return strconv.Itoa(v + 1)
}

//go:noinline
func testCopyFuncWithData() string {
	return "something static"
}

//go:noinline
func testCopyFuncMultipleReturns(v int) (int, error) {
	if v < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	return v * 2, nil
}

//go:noinline
func testCopyFuncFloat(f float64) float64 {
	return f * 3.14159
}

//go:noinline
func testCopyFuncWithLoop(n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += i
	}
	return sum
}

//go:noinline
func testCopyFuncWithConditional(v int) string {
	if v > 100 {
		return "large"
	} else if v > 10 {
		return "medium"
	} else {
		return "small"
	}
}

//go:noinline
func testCopyFuncWithPointer(p *int) int {
	if p == nil {
		return 0
	}
	return *p * 10
}

//go:noinline
func testCopyFuncVariadic(vals ...int) int {
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return sum
}

func TestFuncCode_WholeInstructions(t *testing.T) {
	fns := []any{
		simpleTestCopyFunc,
		testCopyFuncWithOneCall,
		testCopyFuncWithData,
		testCopyFuncMultipleReturns,
		testCopyFuncFloat,
		testCopyFuncWithLoop,
		testCopyFuncWithConditional,
		testCopyFuncWithPointer,
		testCopyFuncVariadic,
		functionWithJump,
		trimPadding,
		funcCode,
		decode,
		relocate,
		func() any { return testCopyFuncWithData() },
		func() any { return testCopyFuncWithLoop(100) },
	}

	a := x86Arch{mode: 64}
	for _, fn := range fns {
		entry := entryOf(fn)
		name := runtime.FuncForPC(entry).Name()

		code, err := funcCode(entry, a)
		require.NoError(t, err, name)

		// The code ends on an instruction boundary.
		img := decode(a, code, entry, false)
		assert.Equal(t, StopEnd, img.Stop, name)
		assert.Equal(t, len(code), img.Len(), name)
	}
}

func TestCopyFunc(t *testing.T) {
	assert := assert.New(t)

	copied, err := CopyFunc(functionWithJump)
	require.NoError(t, err)

	assert.Equal("Small number", copied(5))
	assert.Equal("Large number", copied(15))
}

func TestCopyFuncValue_Details(t *testing.T) {
	_, fn, err := CopyFuncValue(reflect.ValueOf(testCopyFuncWithConditional))
	require.NoError(t, err)

	assert.Equal(t, StopEnd, fn.Stop)
	assert.Equal(t, entryOf(testCopyFuncWithConditional), fn.Source)
	assert.NotEqual(t, fn.Source, fn.Entry)
}

func TestCopyFunc_VariousFunctions(t *testing.T) {
	n := 7

	cases := map[string]struct {
		call     func() any
		copyCall func() (any, error)
	}{
		"simple function": {
			call: func() any { return simpleTestCopyFunc(0xf) },
			copyCall: func() (any, error) {
				fn, err := CopyFunc(simpleTestCopyFunc)
				if err != nil {
					return nil, err
				}
				return fn(0xf), nil
			},
		},
		"function with one call": {
			call: func() any { return testCopyFuncWithOneCall(25) },
			copyCall: func() (any, error) {
				fn, err := CopyFunc(testCopyFuncWithOneCall)
				if err != nil {
					return nil, err
				}
				return fn(25), nil
			},
		},
		"function with static data": {
			call: func() any { return testCopyFuncWithData() },
			copyCall: func() (any, error) {
				fn, err := CopyFunc(testCopyFuncWithData)
				if err != nil {
					return nil, err
				}
				return fn(), nil
			},
		},
		"multiple returns": {
			call: func() any {
				v, err := testCopyFuncMultipleReturns(-1)
				return [2]any{v, err}
			},
			copyCall: func() (any, error) {
				fn, err := CopyFunc(testCopyFuncMultipleReturns)
				if err != nil {
					return nil, err
				}
				v, err := fn(-1)
				return [2]any{v, err}, nil
			},
		},
		"float": {
			call: func() any { return testCopyFuncFloat(2) },
			copyCall: func() (any, error) {
				fn, err := CopyFunc(testCopyFuncFloat)
				if err != nil {
					return nil, err
				}
				return fn(2), nil
			},
		},
		"loop": {
			call: func() any { return testCopyFuncWithLoop(100) },
			copyCall: func() (any, error) {
				fn, err := CopyFunc(testCopyFuncWithLoop)
				if err != nil {
					return nil, err
				}
				return fn(100), nil
			},
		},
		"conditional": {
			call: func() any {
				return []string{
					testCopyFuncWithConditional(5),
					testCopyFuncWithConditional(50),
					testCopyFuncWithConditional(500),
				}
			},
			copyCall: func() (any, error) {
				fn, err := CopyFunc(testCopyFuncWithConditional)
				if err != nil {
					return nil, err
				}
				return []string{fn(5), fn(50), fn(500)}, nil
			},
		},
		"pointer": {
			call: func() any { return []int{testCopyFuncWithPointer(&n), testCopyFuncWithPointer(nil)} },
			copyCall: func() (any, error) {
				fn, err := CopyFunc(testCopyFuncWithPointer)
				if err != nil {
					return nil, err
				}
				return []int{fn(&n), fn(nil)}, nil
			},
		},
		"variadic": {
			call: func() any { return testCopyFuncVariadic(1, 2, 3) },
			copyCall: func() (any, error) {
				fn, err := CopyFunc(testCopyFuncVariadic)
				if err != nil {
					return nil, err
				}
				return fn(1, 2, 3), nil
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := tc.copyCall()
			require.NoError(t, err)
			assert.Equal(t, tc.call(), got)
		})
	}
}
