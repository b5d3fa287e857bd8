package fncopy

import "fmt"

// decode turns the machine code in window, located at base, into a
// FunctionImage. With stopAtReturn it stops after the first return
// instruction. It stops early at bytes that don't decode and never reads past
// the end of window.
func decode(a arch, window []byte, base uintptr, stopAtReturn bool) *FunctionImage {
	img := &FunctionImage{
		Base: base,
		Stop: StopEnd,
	}
	if stopAtReturn {
		img.Stop = StopBudget
	}

	for offset := 0; offset < len(window); {
		inst, err := a.decode(window[offset:], base+uintptr(offset))
		if err != nil {
			img.Stop = StopDecodeError
			img.Err = fmt.Errorf("decode error at offset %d: %w", offset, err)
			return img
		}

		inst.Offset = offset
		img.Insts = append(img.Insts, inst)
		offset += inst.Len()

		if stopAtReturn && inst.Return {
			img.Stop = StopReturn
			return img
		}
	}

	return img
}
