package redefine

import (
	"encoding/binary"
	"fmt"

	"github.com/pboyd/fncopy/internal/vmem"
)

const (
	_B = 0x14000000

	jumpSize = 4
)

// insertJump writes a B to dest at the start of buf.
func insertJump(buf []byte, dest uintptr) error {
	offset := int64(dest) - int64(vmem.Addr(buf))

	if offset < -(1<<27) || offset >= (1<<27) {
		return fmt.Errorf("B target out of range: %d bytes exceeds 128MiB", offset)
	}

	inst := _B | (uint32(offset>>2) & (1<<26 - 1))
	binary.LittleEndian.PutUint32(buf, inst)
	return nil
}
