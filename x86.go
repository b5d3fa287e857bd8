package fncopy

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/arch/x86/x86asm"
)

const (
	opcodeINT3 = 0xcc

	// Distance from the source page within which rel32 and disp32 fields
	// stay encodable, less a little room for the length of the copy.
	x86Reach = 0x7fffff00
)

// errUnrecognized is returned for bytes x86asm gives back as a pseudo
// instruction. That happens when the window ends partway through an
// instruction.
var errUnrecognized = errors.New("unrecognized instruction")

// x86Decode is x86asm.Decode, except partial instructions are errors.
func x86Decode(code []byte, mode int) (x86asm.Inst, error) {
	inst, err := x86asm.Decode(code, mode)
	if err != nil {
		return x86asm.Inst{}, err
	}
	if inst.Op == 0 {
		return x86asm.Inst{}, errUnrecognized
	}
	return inst, nil
}

// x86Arch decodes x86 machine code in 64-bit or 32-bit mode.
type x86Arch struct {
	mode int
}

func (a x86Arch) name() string {
	if a.mode == 32 {
		return "386"
	}
	return "amd64"
}

func (a x86Arch) reach() uint64 {
	if a.mode == 32 {
		// rel32 wraps around the 4GiB address space.
		return 0
	}
	return x86Reach
}

func (x86Arch) padding() []byte {
	return []byte{opcodeINT3}
}

func (a x86Arch) decode(code []byte, pc uintptr) (Instruction, error) {
	inst, err := x86Decode(code, a.mode)
	if err != nil {
		return Instruction{}, err
	}

	out := Instruction{
		Addr:   pc,
		Raw:    code[:inst.Len:inst.Len],
		Op:     inst.Op.String(),
		Return: inst.Op == x86asm.RET,
	}

	// Displacements are relative to the next instruction.
	next := pc + uintptr(inst.Len)

	for _, arg := range inst.Args {
		if arg == nil {
			break
		}

		op := Operand{Text: arg.String()}

		switch arg := arg.(type) {
		case x86asm.Rel:
			op.Kind = OperandImmediate
			op.Value = int64(arg)
			op.Relative = true
			op.Bits = inst.PCRel * 8

			site, err := a.site(inst, SiteBranch, next, int64(arg))
			if err != nil {
				return Instruction{}, err
			}
			out.Sites = append(out.Sites, site)
			out.Relative = true

		case x86asm.Mem:
			rip := arg.Base == x86asm.RIP || arg.Base == x86asm.EIP

			// x86asm keeps a disp32 zero-extended.
			disp := arg.Disp
			if rip {
				disp = int64(int32(arg.Disp))
			}

			op.Kind = OperandMemory
			op.Value = disp
			op.Bits = inst.MemBytes * 8
			if arg.Base != 0 {
				op.Base = arg.Base.String()
			}
			if arg.Index != 0 {
				op.Index = arg.Index.String()
			}

			if rip && arg.Index == 0 {
				site, err := a.site(inst, SiteData, next, disp)
				if err != nil {
					return Instruction{}, err
				}
				out.Sites = append(out.Sites, site)
				out.Relative = true
			}

		case x86asm.Imm:
			op.Kind = OperandImmediate
			op.Value = int64(arg)

		case x86asm.Reg:
			op.Kind = OperandRegister
			op.Bits = x86RegBits(arg)
		}

		out.Operands = append(out.Operands, op)
	}

	return out, nil
}

// site builds the patch site for the instruction's PC-relative field.
func (a x86Arch) site(inst x86asm.Inst, kind SiteKind, next uintptr, disp int64) (PatchSite, error) {
	if inst.PCRel == 0 || inst.PCRelOff+inst.PCRel > inst.Len {
		return PatchSite{}, fmt.Errorf("%v: no location for the relative field", inst.Op)
	}

	target := next + uintptr(disp)
	if a.mode == 32 {
		target = uintptr(uint32(target))
	}

	return PatchSite{
		Kind:   kind,
		Offset: inst.PCRelOff,
		Width:  inst.PCRel * 8,
		Target: target,
		form:   formLE,
		wrap:   a.mode == 32,
	}, nil
}

func (a x86Arch) format(code []byte, pc uintptr) (string, int, error) {
	inst, err := x86Decode(code, a.mode)
	if err != nil {
		return "", 0, err
	}
	return x86asm.IntelSyntax(inst, uint64(pc), lookupSymbol), inst.Len, nil
}

func x86RegBits(r x86asm.Reg) int {
	switch {
	case r >= x86asm.AL && r <= x86asm.R15B:
		return 8
	case r >= x86asm.AX && r <= x86asm.R15W:
		return 16
	case r >= x86asm.EAX && r <= x86asm.R15L:
		return 32
	case r >= x86asm.RAX && r <= x86asm.R15:
		return 64
	case r >= x86asm.X0 && r <= x86asm.X15:
		return 128
	}
	return 0
}

// lookupSymbol names Go functions in listings.
func lookupSymbol(addr uint64) (string, uint64) {
	f := runtime.FuncForPC(uintptr(addr))
	if f == nil {
		return "", 0
	}
	return f.Name(), uint64(f.Entry())
}
