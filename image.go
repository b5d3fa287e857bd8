package fncopy

import "fmt"

// StopReason records why decoding stopped.
type StopReason int

const (
	// StopReturn means a return instruction was decoded. It is the last
	// instruction in the image.
	StopReturn StopReason = iota

	// StopBudget means the scan reached the maximum scan length without
	// seeing a return. The image may end in the middle of the function.
	StopBudget

	// StopDecodeError means bytes that do not decode as an instruction were
	// found. The image ends before them.
	StopDecodeError

	// StopEnd means the whole window was decoded in scan-to-end mode.
	StopEnd
)

func (s StopReason) String() string {
	switch s {
	case StopReturn:
		return "return"
	case StopBudget:
		return "budget exhausted"
	case StopDecodeError:
		return "decode error"
	case StopEnd:
		return "end of window"
	}
	return fmt.Sprintf("StopReason(%d)", int(s))
}

// OperandKind classifies an operand.
type OperandKind uint8

const (
	OperandOther OperandKind = iota
	OperandImmediate
	OperandMemory
	OperandRegister
)

func (k OperandKind) String() string {
	switch k {
	case OperandImmediate:
		return "imm"
	case OperandMemory:
		return "mem"
	case OperandRegister:
		return "reg"
	}
	return "other"
}

// Operand describes one decoded operand.
type Operand struct {
	Kind OperandKind

	// Bits is the operand width, or 0 when the decoder doesn't say.
	Bits int

	// Value is the immediate value, or the raw displacement of a memory
	// operand. For relative immediates it is the encoded displacement.
	Value int64

	// Relative is set for immediates that encode a displacement from the
	// instruction pointer.
	Relative bool

	// Base and Index name the registers of a memory operand, empty when
	// absent.
	Base, Index string

	// Text is the operand as the disassembler prints it.
	Text string
}

// SiteKind distinguishes the two classes of relocation.
type SiteKind uint8

const (
	// SiteBranch is a relative immediate of a call or branch.
	SiteBranch SiteKind = iota + 1

	// SiteData is an instruction-pointer-relative memory reference.
	SiteData
)

func (k SiteKind) String() string {
	switch k {
	case SiteBranch:
		return "branch"
	case SiteData:
		return "data"
	}
	return fmt.Sprintf("SiteKind(%d)", int(k))
}

// fieldForm says how a displacement is stored in the encoding.
type fieldForm uint8

const (
	// Little-endian two's complement integer of Width bits at Offset,
	// relative to the end of the instruction.
	formLE fieldForm = iota

	// arm64 fields, relative to the instruction's own address.
	formA64Imm26 // B, BL
	formA64Imm19 // B.cond, CBZ, CBNZ, LDR (literal)
	formA64Imm14 // TBZ, TBNZ
	formA64ADR
	formA64ADRP // relative to the 4KiB page of the instruction
)

// PatchSite locates a relocation-sensitive field in an instruction so the
// fixup engine can rewrite it without decoding the instruction again.
type PatchSite struct {
	Kind SiteKind

	// Offset is the byte offset of the field from the start of the
	// instruction, Width its size in bits.
	Offset int
	Width  int

	// Target is the absolute address the field resolves to at the
	// instruction's source address.
	Target uintptr

	form fieldForm

	// wrap is set when displacements wrap modulo 2^32 (32-bit x86).
	wrap bool
}

// Instruction is one decoded instruction.
type Instruction struct {
	// Addr is the source address of the instruction and Offset its distance
	// from the start of the image.
	Addr   uintptr
	Offset int

	// Raw is the encoding. It's a view into the source memory and is only
	// valid during the copy that decoded it.
	Raw []byte

	// Op is the mnemonic.
	Op string

	// Relative is set when any operand is relative to the instruction
	// pointer.
	Relative bool

	// Return is set for instructions that return from the function.
	Return bool

	Operands []Operand
	Sites    []PatchSite
}

// Len returns the length of the encoding in bytes.
func (inst *Instruction) Len() int {
	return len(inst.Raw)
}

// FunctionImage is the contiguous run of instructions decoded from one
// function.
type FunctionImage struct {
	Base  uintptr
	Insts []Instruction
	Stop  StopReason

	// Err is the decoder error when Stop is StopDecodeError.
	Err error
}

// Len returns the total length of the image's instructions in bytes.
func (img *FunctionImage) Len() int {
	n := 0
	for i := range img.Insts {
		n += img.Insts[i].Len()
	}
	return n
}

// End returns the address just past the last instruction.
func (img *FunctionImage) End() uintptr {
	return img.Base + uintptr(img.Len())
}

// Contains reports whether addr falls inside the image.
func (img *FunctionImage) Contains(addr uintptr) bool {
	return addr >= img.Base && addr < img.End()
}
