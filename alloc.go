package fncopy

import (
	"fmt"
	"io"
	"iter"

	"github.com/charmbracelet/log"

	"github.com/pboyd/fncopy/internal/vmem"
)

// Allocator provides the memory copies are written to.
type Allocator interface {
	// Allocate returns size bytes of writable memory close enough to origin
	// for relative references from the copy to reach back.
	Allocate(origin uintptr, size int) ([]byte, error)

	// Seal makes a region from Allocate executable and read-only.
	Seal(region []byte) error

	// Discard gives back a region from Allocate that was never sealed.
	Discard(region []byte) error
}

// NearAllocator maps fresh pages for every copy, searching outward from the
// source for free pages no more than Reach bytes away.
type NearAllocator struct {
	// Reach is the maximum distance between the origin and the region. Zero
	// accepts memory anywhere.
	Reach uint64

	Logger *log.Logger
}

// Allocate tries page addresses alternately above and below the page
// containing origin, nearest first, and returns the first mapping the OS
// grants within Reach. It returns ErrAllocationExhausted when there is none.
func (a *NearAllocator) Allocate(origin uintptr, size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid allocation size %d", size)
	}

	if a.Reach == 0 {
		region, err := vmem.Map(0, size)
		if err != nil {
			return nil, err
		}
		return region[:size], nil
	}

	logger := a.logger()
	lo, hi := vmem.Limits()
	tries := 0

	for addr := range candidates(origin, a.Reach, uintptr(vmem.PageSize()), lo, hi) {
		tries++

		region, err := vmem.Map(addr, size)
		if err != nil {
			continue
		}

		got := vmem.Addr(region)
		if distance(got, origin) <= a.Reach {
			logger.Debug("allocated copy region",
				"origin", fmt.Sprintf("%#x", origin),
				"addr", fmt.Sprintf("%#x", got),
				"tries", tries)
			return region[:size], nil
		}

		// The OS took the address as a hint and put the mapping somewhere
		// out of reach.
		if err := vmem.Unmap(region); err != nil {
			logger.Warn("unable to unmap out of reach region",
				"addr", fmt.Sprintf("%#x", got),
				"err", err)
		}
	}

	return nil, fmt.Errorf("%w: %d candidates within %#x bytes of %#x", ErrAllocationExhausted, tries, a.Reach, origin)
}

// Seal makes region executable and read-only.
func (a *NearAllocator) Seal(region []byte) error {
	return vmem.Protect(region, vmem.ProtRX)
}

// Discard unmaps region.
func (a *NearAllocator) Discard(region []byte) error {
	return vmem.Unmap(vmem.Pages(region))
}

func (a *NearAllocator) logger() *log.Logger {
	if a.Logger == nil {
		return log.New(io.Discard)
	}
	return a.Logger
}

// candidates yields page addresses alternately above and below the page
// containing origin, nearest first, out to reach bytes and within [lo, hi].
// It yields at most 2*reach/pageSize addresses, none of them zero.
func candidates(origin uintptr, reach uint64, pageSize, lo, hi uintptr) iter.Seq[uintptr] {
	return func(yield func(uintptr) bool) {
		start := origin &^ (pageSize - 1)
		steps := reach / uint64(pageSize)

		for i := uint64(1); i <= steps; i++ {
			offset := uintptr(i) * pageSize

			up := start + offset
			upOK := up > start && up <= hi

			down := start - offset
			downOK := offset < start && down >= lo

			if !upOK && !downOK {
				return
			}
			if upOK && !yield(up) {
				return
			}
			if downOK && !yield(down) {
				return
			}
		}
	}
}

func distance(a, b uintptr) uint64 {
	if a > b {
		return uint64(a - b)
	}
	return uint64(b - a)
}
