package fncopy

import (
	"fmt"
	"runtime"
)

// arch is an instruction set backend.
type arch interface {
	// name is the GOARCH the backend serves.
	name() string

	// decode decodes the instruction at the start of code, which is located
	// at pc. It never reads past the end of code.
	decode(code []byte, pc uintptr) (Instruction, error)

	// format returns a listing line for the instruction at the start of
	// code and its length.
	format(code []byte, pc uintptr) (string, int, error)

	// reach is the largest distance between a copy and its source that
	// keeps relocations encodable. Zero means the whole address space.
	reach() uint64

	// padding is the filler the toolchain places between functions.
	padding() []byte
}

func archByName(name string) (arch, error) {
	switch name {
	case "amd64":
		return x86Arch{mode: 64}, nil
	case "386":
		return x86Arch{mode: 32}, nil
	case "arm64":
		return arm64Arch{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedArch, name)
}

func hostArch() (arch, error) {
	return archByName(runtime.GOARCH)
}
