package fncopy

import (
	"encoding/binary"
	"errors"

	"golang.org/x/arch/arm64/arm64asm"
)

// The maximum acceptable distance for a BL to reach its target.
const arm64Reach = 128 * 1024 * 1024

var errTruncated = errors.New("truncated instruction")

// Encoding classes of the PC-relative instructions.
//
// B/BL:            | op | 00101 | ... 26 bit offset ...      |
// B.cond:          | 0101010 | 0 | 19 bit offset | 0 | cond  |
// CBZ/CBNZ:        | sf | 011010 | op | 19 bit offset | Rt    |
// TBZ/TBNZ:        | b5 | 011011 | op | b40 | 14 bit | Rt     |
// LDR (literal):   | opc | 011 | V | 00 | 19 bit offset | Rt  |
// ADR/ADRP:        | P | lo 2 bits | 10000 | hi 19 bits | Rd |
const (
	maskB     = 0x7c000000
	encB      = 0x14000000
	maskBcond = 0xff000010
	encBcond  = 0x54000000
	maskCB    = 0x7e000000
	encCB     = 0x34000000
	maskTB    = 0x7e000000
	encTB     = 0x36000000
	maskLDR   = 0x3b000000
	encLDR    = 0x18000000
	maskADR   = 0x9f000000
	encADR    = 0x10000000
	encADRP   = 0x90000000

	// Mask for the ADR/ADRP address bits.
	adrAddressMask = uint32(3<<29 | 0x7ffff<<5)
)

type arm64Arch struct{}

func (arm64Arch) name() string {
	return "arm64"
}

func (arm64Arch) reach() uint64 {
	return arm64Reach
}

func (arm64Arch) padding() []byte {
	return []byte{0, 0, 0, 0}
}

func (arm64Arch) decode(code []byte, pc uintptr) (Instruction, error) {
	inst, err := arm64asm.Decode(code)
	if err != nil {
		return Instruction{}, err
	}

	out := Instruction{
		Addr:   pc,
		Raw:    code[:4:4],
		Op:     inst.Op.String(),
		Return: inst.Op == arm64asm.RET,
	}

	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		out.Operands = append(out.Operands, arm64Operand(arg))
	}

	if site, ok := arm64Site(binary.LittleEndian.Uint32(code), pc); ok {
		out.Sites = []PatchSite{site}
		out.Relative = true
	}

	return out, nil
}

func (arm64Arch) format(code []byte, pc uintptr) (string, int, error) {
	if len(code) < 4 {
		return "", 0, errTruncated
	}
	inst, err := arm64asm.Decode(code)
	if err != nil {
		return "?", 4, nil
	}
	return arm64asm.GNUSyntax(inst), 4, nil
}

func arm64Operand(arg arm64asm.Arg) Operand {
	op := Operand{Text: arg.String()}

	switch arg := arg.(type) {
	case arm64asm.PCRel:
		op.Kind = OperandImmediate
		op.Value = int64(arg)
		op.Relative = true
	case arm64asm.Imm, arm64asm.Imm64:
		op.Kind = OperandImmediate
	case arm64asm.MemImmediate, arm64asm.MemExtend:
		op.Kind = OperandMemory
	case arm64asm.Reg:
		op.Kind = OperandRegister
		switch {
		case arg >= arm64asm.W0 && arg <= arm64asm.WZR:
			op.Bits = 32
		case arg >= arm64asm.X0 && arg <= arm64asm.XZR:
			op.Bits = 64
		}
	case arm64asm.RegSP:
		op.Kind = OperandRegister
		op.Bits = 64
	}

	return op
}

// arm64Site returns the patch site of a PC-relative instruction.
func arm64Site(enc uint32, pc uintptr) (PatchSite, bool) {
	switch {
	case enc&maskB == encB:
		return PatchSite{
			Kind:   SiteBranch,
			Width:  26,
			Target: pc + uintptr(signExtend(enc, 26)<<2),
			form:   formA64Imm26,
		}, true

	case enc&maskBcond == encBcond, enc&maskCB == encCB:
		return PatchSite{
			Kind:   SiteBranch,
			Width:  19,
			Target: pc + uintptr(signExtend(enc>>5, 19)<<2),
			form:   formA64Imm19,
		}, true

	case enc&maskTB == encTB:
		return PatchSite{
			Kind:   SiteBranch,
			Width:  14,
			Target: pc + uintptr(signExtend(enc>>5, 14)<<2),
			form:   formA64Imm14,
		}, true

	case enc&maskLDR == encLDR:
		return PatchSite{
			Kind:   SiteData,
			Width:  19,
			Target: pc + uintptr(signExtend(enc>>5, 19)<<2),
			form:   formA64Imm19,
		}, true

	case enc&maskADR == encADR:
		return PatchSite{
			Kind:   SiteData,
			Width:  21,
			Target: pc + uintptr(adrImmediate(enc)),
			form:   formA64ADR,
		}, true

	case enc&maskADR == encADRP:
		return PatchSite{
			Kind:   SiteData,
			Width:  21,
			Target: pc&^0xfff + uintptr(adrImmediate(enc)<<12),
			form:   formA64ADRP,
		}, true
	}

	return PatchSite{}, false
}

// adrImmediate extracts the signed 21-bit immediate of ADR/ADRP.
func adrImmediate(enc uint32) int64 {
	return signExtend((enc>>5&0x7ffff)<<2|enc>>29&3, 21)
}

// signExtend treats the low bits of v as a two's complement integer.
func signExtend(v uint32, bits int) int64 {
	shift := 32 - bits
	return int64(int32(v<<shift) >> shift)
}
