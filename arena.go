package fncopy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pboyd/malloc"

	"github.com/pboyd/fncopy/internal/vmem"
)

// ArenaAllocator packs copies into a shared arena of executable memory. The
// arena is placed wherever the OS likes, so it ignores the origin. That suits
// architectures whose relative references span the whole address space, and
// code without references outside itself.
//
// While any copy is being written the arena is readable, writable and
// executable, so copies already in it keep running. It becomes read-only
// again when the last writer seals.
type ArenaAllocator struct {
	*malloc.Arena
	mprotect func(int) error

	mu       sync.Mutex
	initOnce sync.Once
	initErr  error
	writers  int
	mutable  bool
}

// sharedArena serves every copier that needs no particular placement.
var sharedArena = &ArenaAllocator{}

func (a *ArenaAllocator) init(startSize int) error {
	a.initOnce.Do(func() {
		be := malloc.MmapBackend(malloc.MmapProt(vmem.ProtRWX))
		if protBE, ok := be.(malloc.ProtectedArenaBackend); ok {
			a.mprotect = protBE.Protect
		} else {
			a.mprotect = func(int) error {
				return nil
			}
		}

		a.Arena = malloc.NewArena(uint64(startSize), malloc.Backend(be))
		if a.Arena == nil {
			a.initErr = errors.New("unable to initialize arena")
			return
		}
		a.mutable = true
	})
	return a.initErr
}

// beginMutate makes the arena writable. a.mu must be held.
func (a *ArenaAllocator) beginMutate() error {
	if a.mutable {
		return nil
	}

	err := a.mprotect(vmem.ProtRWX)
	if err == nil {
		a.mutable = true
	}
	return err
}

// endMutate makes the arena read-only once there are no writers. a.mu must
// be held.
func (a *ArenaAllocator) endMutate() error {
	if !a.mutable || a.writers > 0 {
		return nil
	}

	err := a.mprotect(vmem.ProtRX)
	if err == nil {
		a.mutable = false
	}
	return err
}

// Allocate returns size bytes from the arena. origin is ignored.
func (a *ArenaAllocator) Allocate(origin uintptr, size int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if size <= 0 {
		return nil, fmt.Errorf("invalid allocation size %d", size)
	}

	err := a.init(size)
	if err != nil {
		return nil, fmt.Errorf("error initializing arena: %w", err)
	}

	err = a.beginMutate()
	if err != nil {
		return nil, err
	}

	buf, err := malloc.MallocSlice[byte](a.Arena, size)
	if err != nil {
		a.endMutate()
		return nil, err
	}

	a.writers++
	return buf, nil
}

// Seal ends the write that Allocate started.
func (a *ArenaAllocator) Seal(region []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.writers == 0 {
		return a.endMutate()
	}

	// A failed seal leaves the region open for Discard.
	a.writers--
	err := a.endMutate()
	if err != nil {
		a.writers++
	}
	return err
}

// Discard returns an unsealed region to the arena.
func (a *ArenaAllocator) Discard(region []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	malloc.FreeSlice(a.Arena, region)

	if a.writers > 0 {
		a.writers--
	}
	return a.endMutate()
}

// Free returns a sealed region to the arena. Nothing may run code from
// region afterwards.
func (a *ArenaAllocator) Free(region []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.beginMutate()
	if err != nil {
		return err
	}

	malloc.FreeSlice(a.Arena, region)

	return a.endMutate()
}
