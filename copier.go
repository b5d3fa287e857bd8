package fncopy

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"unsafe"

	"github.com/charmbracelet/log"

	"github.com/pboyd/fncopy/internal/vmem"
)

// DefaultMaxScanLength is the scan length used when none is given.
const DefaultMaxScanLength = 4096

// Function is a relocated copy of a function.
type Function struct {
	// Entry is the address of the copy.
	Entry uintptr

	// Code is the copy itself. It is executable and read-only; writing to it
	// faults.
	Code []byte

	// Source is the address the copy was made from.
	Source uintptr

	// Stop tells why decoding stopped. Anything but StopReturn or StopEnd
	// means the copy may be missing the end of the function.
	Stop StopReason

	// Relocations is the number of relative references rewritten.
	Relocations int
}

// Copier makes relocated copies of machine code functions. It is safe for
// concurrent use.
type Copier struct {
	arch         arch
	alloc        Allocator
	logger       *log.Logger
	stopAtReturn bool
	strict       bool
}

// New returns a Copier for the host's instruction set.
func New(opts ...Option) (*Copier, error) {
	cfg := config{
		stopAtReturn: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var (
		a   arch
		err error
	)
	if cfg.arch == "" {
		a, err = hostArch()
	} else {
		a, err = archByName(cfg.arch)
	}
	if err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	alloc := cfg.alloc
	if alloc == nil {
		if a.reach() == 0 {
			alloc = sharedArena
		} else {
			alloc = &NearAllocator{Reach: a.reach(), Logger: logger}
		}
	}

	return &Copier{
		arch:         a,
		alloc:        alloc,
		logger:       logger,
		stopAtReturn: cfg.stopAtReturn,
		strict:       cfg.strict,
	}, nil
}

// Copy copies the function at src to newly allocated executable memory and
// rewrites its relative references for the new address. Decoding reads at
// most maxScanLength bytes from src and, unless WithScanToEnd was given, stops
// after the first return instruction. A maxScanLength of zero or less means
// DefaultMaxScanLength.
//
// The caller must keep the source from changing during the call. The copy is
// never freed.
func (c *Copier) Copy(src uintptr, maxScanLength int) (*Function, error) {
	if src == 0 {
		return nil, fmt.Errorf("%w: nil address", ErrNotFunction)
	}
	if maxScanLength <= 0 {
		maxScanLength = DefaultMaxScanLength
	}

	return c.copyCode(unsafe.Slice((*byte)(unsafe.Pointer(src)), maxScanLength))
}

// copyCode copies the function at the start of window.
func (c *Copier) copyCode(window []byte) (*Function, error) {
	src := vmem.Addr(window)
	logger := c.logger.With("src", fmt.Sprintf("%#x", src))

	img := decode(c.arch, window, src, c.stopAtReturn)
	if len(img.Insts) == 0 {
		if img.Err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEmptyFunction, img.Err)
		}
		return nil, ErrEmptyFunction
	}

	switch img.Stop {
	case StopBudget:
		if c.strict {
			return nil, fmt.Errorf("%w: scanned %d bytes", ErrScanExhausted, len(window))
		}
		logger.Warn("no return within scan length, copy may be truncated", "scanned", len(window))
	case StopDecodeError:
		if c.strict {
			return nil, fmt.Errorf("%w: %w", ErrDecode, img.Err)
		}
		logger.Warn("scan stopped at undecodable bytes, copy may be truncated", "err", img.Err)
	}

	size := img.Len()

	region, err := c.alloc.Allocate(src, size)
	if err != nil {
		return nil, err
	}
	dest := vmem.Addr(region)

	for i := range img.Insts {
		inst := &img.Insts[i]
		copy(region[inst.Offset:], inst.Raw)
	}

	n, err := relocate(img, region[:size], dest)
	if err != nil {
		return nil, errors.Join(err, c.alloc.Discard(region))
	}

	err = vmem.FlushInstructionCache(region[:size])
	if err != nil {
		err = fmt.Errorf("unable to flush instruction cache: %w", err)
		return nil, errors.Join(err, c.alloc.Discard(region))
	}

	err = c.alloc.Seal(region)
	if err != nil {
		err = fmt.Errorf("unable to make copy executable: %w", err)
		return nil, errors.Join(err, c.alloc.Discard(region))
	}

	logger.Debug("copied function",
		"dest", fmt.Sprintf("%#x", dest),
		"size", size,
		"instructions", len(img.Insts),
		"relocations", n,
		"stop", img.Stop)

	return &Function{
		Entry:       dest,
		Code:        region[:size:size],
		Source:      src,
		Stop:        img.Stop,
		Relocations: n,
	}, nil
}

var defaultCopier = sync.OnceValues(func() (*Copier, error) {
	return New()
})

// CopyFunction copies the function at src with the default Copier and
// returns the address of the copy. See Copier.Copy.
func CopyFunction(src uintptr, maxScanLength int) (uintptr, error) {
	c, err := defaultCopier()
	if err != nil {
		return 0, err
	}

	fn, err := c.Copy(src, maxScanLength)
	if err != nil {
		return 0, err
	}
	return fn.Entry, nil
}
