package fncopy

import (
	"errors"
	"fmt"
)

var (
	ErrNotFunction     = errors.New("not a function")
	ErrUnsupportedArch = errors.New("unsupported architecture")

	// ErrEmptyFunction means no instruction could be decoded at the source.
	ErrEmptyFunction = errors.New("no instructions decoded")

	// ErrScanExhausted and ErrDecode are only returned in strict mode; see
	// WithStrictScan.
	ErrScanExhausted = errors.New("no return instruction within the scan length")
	ErrDecode        = errors.New("undecodable instruction")

	// ErrAllocationExhausted means no memory could be mapped within reach of
	// the source.
	ErrAllocationExhausted = errors.New("no memory available within reach of the source")

	// ErrUnencodableRelocation means a relocated displacement doesn't fit in
	// the instruction's field. Errors wrapping it are *RelocationError.
	ErrUnencodableRelocation = errors.New("relocated displacement does not fit")
)

// RelocationError describes an instruction whose relative field can't be
// rewritten for the copy's address.
type RelocationError struct {
	// Addr is the source address of the instruction and Offset its offset in
	// the function.
	Addr   uintptr
	Offset int
	Op     string

	Kind  SiteKind
	Width int

	// Disp is the displacement that would have been needed.
	Disp int64
}

func (e *RelocationError) Error() string {
	return fmt.Sprintf("%s at offset %d (%s at %#x): displacement %#x does not fit in %d bits",
		e.Kind, e.Offset, e.Op, e.Addr, e.Disp, e.Width)
}

func (e *RelocationError) Unwrap() error {
	return ErrUnencodableRelocation
}
