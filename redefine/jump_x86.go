//go:build amd64 || 386

package redefine

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pboyd/fncopy/internal/vmem"
)

const (
	opcodeJMP = 0xe9

	// 1 byte opcode + 4 byte displacement
	jumpSize = 5
)

// insertJump writes a JMP rel32 to dest at the start of buf.
func insertJump(buf []byte, dest uintptr) error {
	// Displacement from the end of the jump
	src := vmem.Addr(buf) + jumpSize

	diff := int64(dest) - int64(src)
	if diff < math.MinInt32 || diff > math.MaxInt32 {
		return fmt.Errorf("jump target %#x is out of range of %#x", dest, src)
	}

	buf[0] = opcodeJMP
	binary.LittleEndian.PutUint32(buf[1:], uint32(int32(diff)))
	return nil
}
