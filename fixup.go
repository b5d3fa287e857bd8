package fncopy

import (
	"encoding/binary"
	"errors"
)

var errFieldRange = errors.New("displacement out of range")

// relocate rewrites the patch sites of img in dest, a byte-for-byte copy of
// the image that will run at destBase, so every relative reference resolves
// to the same place it did in the source. It returns the number of sites
// rewritten.
//
// Branches into the function follow it to the copy, which leaves their
// encoding unchanged since the copy keeps every instruction at the same
// offset. That applies at every field width: a rel32 or BL back into the
// function lands in the copy too, not in the original. Everything else,
// including data references into the function, keeps its absolute target.
func relocate(img *FunctionImage, dest []byte, destBase uintptr) (int, error) {
	end := img.End()
	n := 0

	for i := range img.Insts {
		inst := &img.Insts[i]
		code := dest[inst.Offset : inst.Offset+inst.Len()]
		pc := destBase + uintptr(inst.Offset)

		for _, site := range inst.Sites {
			target := site.Target
			if site.Kind == SiteBranch && target >= img.Base && target < end {
				target = destBase + (target - img.Base)
			}

			disp, err := site.patch(code, pc, target)
			if err != nil {
				return n, &RelocationError{
					Addr:   inst.Addr,
					Offset: inst.Offset,
					Op:     inst.Op,
					Kind:   site.Kind,
					Width:  site.Width,
					Disp:   disp,
				}
			}
			n++
		}
	}

	return n, nil
}

// patch encodes target into the site's field of code, the instruction at pc.
// It returns the displacement it computed. Nothing is written when the
// displacement doesn't fit.
func (s PatchSite) patch(code []byte, pc, target uintptr) (int64, error) {
	if s.form == formLE {
		return s.patchLE(code, pc, target)
	}

	anchor := pc
	if s.form == formA64ADRP {
		anchor &^= 0xfff
		target &^= 0xfff
	}
	disp := int64(target) - int64(anchor)

	var units int64
	switch s.form {
	case formA64ADR:
		units = disp
	case formA64ADRP:
		units = disp >> 12
	default:
		if disp&3 != 0 {
			return disp, errFieldRange
		}
		units = disp >> 2
	}
	if !fits(units, s.Width) {
		return disp, errFieldRange
	}

	enc := binary.LittleEndian.Uint32(code)
	u := uint32(units)

	switch s.form {
	case formA64Imm26:
		enc = enc&^(1<<26-1) | u&(1<<26-1)
	case formA64Imm19:
		enc = enc&^(0x7ffff<<5) | (u&0x7ffff)<<5
	case formA64Imm14:
		enc = enc&^(0x3fff<<5) | (u&0x3fff)<<5
	case formA64ADR, formA64ADRP:
		enc &^= adrAddressMask
		enc |= (u & 3) << 29           // Lowest 2 bits to bits 30 and 29
		enc |= (u >> 2 & 0x7ffff) << 5 // Highest 19 bits to bits 23 to 5
	}

	binary.LittleEndian.PutUint32(code, enc)
	return disp, nil
}

func (s PatchSite) patchLE(code []byte, pc, target uintptr) (int64, error) {
	// x86 displacements count from the end of the instruction.
	anchor := pc + uintptr(len(code))

	disp := int64(target) - int64(anchor)
	if s.wrap {
		disp = int64(int32(disp))
	}
	if !fits(disp, s.Width) {
		return disp, errFieldRange
	}

	field := code[s.Offset : s.Offset+s.Width/8]
	switch s.Width {
	case 8:
		field[0] = byte(disp)
	case 16:
		binary.LittleEndian.PutUint16(field, uint16(disp))
	case 32:
		binary.LittleEndian.PutUint32(field, uint32(disp))
	case 64:
		binary.LittleEndian.PutUint64(field, uint64(disp))
	default:
		return disp, errFieldRange
	}

	return disp, nil
}

// fits reports whether v is representable as a signed integer of the given
// width.
func fits(v int64, bits int) bool {
	if bits >= 64 {
		return true
	}
	limit := int64(1) << (bits - 1)
	return v >= -limit && v < limit
}
