package fncopy

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// arm64Code encodes instructions the way they sit in memory.
func arm64Code(insts ...uint32) []byte {
	buf := make([]byte, 4*len(insts))
	for i, inst := range insts {
		binary.LittleEndian.PutUint32(buf[i*4:], inst)
	}
	return buf
}

const (
	a64NOP = 0xd503201f
	a64RET = 0xd65f03c0
)

func assertContiguous(t *testing.T, img *FunctionImage) {
	t.Helper()

	offset := 0
	for _, inst := range img.Insts {
		assert.Equal(t, offset, inst.Offset)
		assert.Equal(t, img.Base+uintptr(offset), inst.Addr)
		offset += inst.Len()
	}
	assert.Equal(t, offset, img.Len())
}

func TestDecode_StopsAtReturn(t *testing.T) {
	assert := assert.New(t)

	// push rbp; mov rbp, rsp; pop rbp; ret; nop; nop
	code := []byte{0x55, 0x48, 0x89, 0xe5, 0x5d, 0xc3, 0x90, 0x90}

	img := decode(x86Arch{mode: 64}, code, 0x1000, true)
	assert.Equal(StopReturn, img.Stop)
	assert.NoError(img.Err)
	assert.Len(img.Insts, 4)
	assert.Equal(6, img.Len())
	assert.Equal(uintptr(0x1006), img.End())
	assert.True(img.Insts[3].Return)
	assert.Equal("RET", img.Insts[3].Op)
	assertContiguous(t, img)
}

func TestDecode_Budget(t *testing.T) {
	assert := assert.New(t)

	img := decode(x86Arch{mode: 64}, []byte{0x90, 0x90, 0x90, 0x90}, 0x1000, true)
	assert.Equal(StopBudget, img.Stop)
	assert.Len(img.Insts, 4)
	assert.Equal(4, img.Len())
	assertContiguous(t, img)
}

func TestDecode_DecodeError(t *testing.T) {
	assert := assert.New(t)

	// nop, then a call with its displacement cut off
	img := decode(x86Arch{mode: 64}, []byte{0x90, 0xe8, 0x00}, 0x1000, true)
	assert.Equal(StopDecodeError, img.Stop)
	assert.Error(img.Err)
	assert.Len(img.Insts, 1)
	assert.Equal(1, img.Len())
}

func TestDecode_ScanToEnd(t *testing.T) {
	assert := assert.New(t)

	img := decode(x86Arch{mode: 64}, []byte{0xc3, 0x90, 0xc3}, 0x1000, false)
	assert.Equal(StopEnd, img.Stop)
	assert.Len(img.Insts, 3)
	assertContiguous(t, img)
}

func TestDecode_NeverReadsPastWindow(t *testing.T) {
	code := []byte{0x90, 0x90, 0x48, 0x8d, 0x05, 0x00, 0x01, 0x00, 0x00, 0xc3}

	for n := range len(code) + 1 {
		img := decode(x86Arch{mode: 64}, code[:n:n], 0x1000, true)
		assert.LessOrEqual(t, img.Len(), n)
		assertContiguous(t, img)
	}
}

func TestDecode_PartialInstruction(t *testing.T) {
	assert := assert.New(t)

	// nop, then a jmp rel8 missing its displacement
	img := decode(x86Arch{mode: 64}, []byte{0x90, 0xeb}, 0x1000, true)
	assert.Equal(StopDecodeError, img.Stop)
	assert.ErrorIs(img.Err, errUnrecognized)
	require.Len(t, img.Insts, 1)
	assert.Equal("NOP", img.Insts[0].Op)
	assert.Equal(1, img.Len())
}

func TestDecode_WindowCutsInstruction(t *testing.T) {
	// push rbp; mov rbp, rsp; lea rax, [rip+0x100]; jmp rel8; pop rbp; ret
	code := []byte{0x55, 0x48, 0x89, 0xe5, 0x48, 0x8d, 0x05, 0x00, 0x01, 0x00, 0x00, 0xeb, 0x00, 0x5d, 0xc3}

	full := decode(x86Arch{mode: 64}, code, 0x1000, false)
	require.Equal(t, StopEnd, full.Stop)

	boundaries := map[int]bool{0: true}
	for _, inst := range full.Insts {
		boundaries[inst.Offset+inst.Len()] = true
	}

	for n := 1; n < len(code); n++ {
		img := decode(x86Arch{mode: 64}, code[:n:n], 0x1000, true)

		// Only whole instructions, and the same ones as the full decode.
		require.LessOrEqual(t, len(img.Insts), len(full.Insts))
		for i, inst := range img.Insts {
			assert.Equal(t, full.Insts[i].Raw, inst.Raw, "n=%d inst %d", n, i)
			assert.Equal(t, full.Insts[i].Op, inst.Op, "n=%d inst %d", n, i)
		}

		if boundaries[n] {
			assert.Equal(t, StopBudget, img.Stop, "n=%d", n)
			assert.Equal(t, n, img.Len(), "n=%d", n)
		} else {
			assert.Equal(t, StopDecodeError, img.Stop, "n=%d", n)
			assert.Less(t, img.Len(), n, "n=%d", n)
		}
	}
}

func TestDecode_X86Sites(t *testing.T) {
	cases := map[string]struct {
		mode   int
		code   []byte
		kind   SiteKind
		offset int
		width  int
		target uintptr
	}{
		"call rel32": {
			mode:   64,
			code:   []byte{0xe8, 0x10, 0x00, 0x00, 0x00},
			kind:   SiteBranch,
			offset: 1,
			width:  32,
			target: 0x1015,
		},
		"jmp rel8": {
			mode:   64,
			code:   []byte{0xeb, 0x02},
			kind:   SiteBranch,
			offset: 1,
			width:  8,
			target: 0x1004,
		},
		"jne rel32 backwards": {
			mode:   64,
			code:   []byte{0x0f, 0x85, 0xfa, 0xff, 0xff, 0xff},
			kind:   SiteBranch,
			offset: 2,
			width:  32,
			target: 0x1000,
		},
		"lea rip-relative": {
			mode:   64,
			code:   []byte{0x48, 0x8d, 0x05, 0x00, 0x01, 0x00, 0x00},
			kind:   SiteData,
			offset: 3,
			width:  32,
			target: 0x1107,
		},
		"mov rip-relative": {
			mode:   64,
			code:   []byte{0x48, 0x8b, 0x0d, 0xf9, 0xff, 0xff, 0xff},
			kind:   SiteData,
			offset: 3,
			width:  32,
			target: 0x1000,
		},
		"386 call": {
			mode:   32,
			code:   []byte{0xe8, 0xfb, 0xff, 0xff, 0xff},
			kind:   SiteBranch,
			offset: 1,
			width:  32,
			target: 0x1000,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			inst, err := x86Arch{mode: tc.mode}.decode(tc.code, 0x1000)
			require.NoError(t, err)
			assert.True(inst.Relative)
			require.Len(t, inst.Sites, 1)

			site := inst.Sites[0]
			assert.Equal(tc.kind, site.Kind)
			assert.Equal(tc.offset, site.Offset)
			assert.Equal(tc.width, site.Width)
			assert.Equal(tc.target, site.Target)
		})
	}
}

func TestDecode_X86NegativeDisplacement(t *testing.T) {
	// mov rcx, qword ptr [rip-0x7]
	inst, err := x86Arch{mode: 64}.decode([]byte{0x48, 0x8b, 0x0d, 0xf9, 0xff, 0xff, 0xff}, 0x10000000)
	require.NoError(t, err)
	require.Len(t, inst.Operands, 2)
	assert.Equal(t, int64(-7), inst.Operands[1].Value)
	require.Len(t, inst.Sites, 1)
	assert.Equal(t, uintptr(0x10000000), inst.Sites[0].Target)
}

func TestDecode_X86Operands(t *testing.T) {
	assert := assert.New(t)

	// mov rax, qword ptr [rbx+rcx*8+0x10]
	inst, err := x86Arch{mode: 64}.decode([]byte{0x48, 0x8b, 0x44, 0xcb, 0x10}, 0x1000)
	require.NoError(t, err)
	assert.False(inst.Relative)
	assert.Empty(inst.Sites)
	require.Len(t, inst.Operands, 2)

	assert.Equal(OperandRegister, inst.Operands[0].Kind)
	assert.Equal(64, inst.Operands[0].Bits)

	mem := inst.Operands[1]
	assert.Equal(OperandMemory, mem.Kind)
	assert.Equal("RBX", mem.Base)
	assert.Equal("RCX", mem.Index)
	assert.Equal(int64(0x10), mem.Value)

	// add eax, 0x7
	inst, err = x86Arch{mode: 64}.decode([]byte{0x83, 0xc0, 0x07}, 0x1000)
	require.NoError(t, err)
	require.Len(t, inst.Operands, 2)
	assert.Equal(32, inst.Operands[0].Bits)
	assert.Equal(OperandImmediate, inst.Operands[1].Kind)
	assert.Equal(int64(7), inst.Operands[1].Value)
}

func TestDecode_ARM64Sites(t *testing.T) {
	const pc = 0x12345678 &^ 3

	cases := map[string]struct {
		inst   uint32
		kind   SiteKind
		width  int
		target uintptr
	}{
		"bl": {
			inst:   0x94000004,
			kind:   SiteBranch,
			width:  26,
			target: pc + 0x10,
		},
		"b backwards": {
			inst:   0x17ffffff,
			kind:   SiteBranch,
			width:  26,
			target: pc - 4,
		},
		"b.eq": {
			inst:   0x54000040,
			kind:   SiteBranch,
			width:  19,
			target: pc + 8,
		},
		"cbz": {
			inst:   0xb4000060,
			kind:   SiteBranch,
			width:  19,
			target: pc + 12,
		},
		"tbnz": {
			inst:   0x37000040,
			kind:   SiteBranch,
			width:  14,
			target: pc + 8,
		},
		"ldr literal": {
			inst:   0x58000040,
			kind:   SiteData,
			width:  19,
			target: pc + 8,
		},
		"adr": {
			inst:   0x10000080,
			kind:   SiteData,
			width:  21,
			target: pc + 16,
		},
		"adrp": {
			inst:   0xb0000000,
			kind:   SiteData,
			width:  21,
			target: pc&^0xfff + 0x1000,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			inst, err := arm64Arch{}.decode(arm64Code(tc.inst), pc)
			require.NoError(t, err)
			assert.True(inst.Relative)
			require.Len(t, inst.Sites, 1)

			site := inst.Sites[0]
			assert.Equal(tc.kind, site.Kind)
			assert.Equal(tc.width, site.Width)
			assert.Equal(tc.target, site.Target)
		})
	}
}

func TestDecode_ARM64(t *testing.T) {
	assert := assert.New(t)

	img := decode(arm64Arch{}, arm64Code(a64NOP, 0x94000004, a64RET, a64NOP), 0x4000, true)
	assert.Equal(StopReturn, img.Stop)
	assert.Len(img.Insts, 3)
	assert.Equal(12, img.Len())
	assert.Empty(img.Insts[0].Sites)
	assert.Len(img.Insts[1].Sites, 1)
	assert.True(img.Insts[2].Return)
	assertContiguous(t, img)

	// A partial instruction at the end of the window
	img = decode(arm64Arch{}, arm64Code(a64NOP)[:3], 0x4000, true)
	assert.Equal(StopDecodeError, img.Stop)
	assert.Empty(img.Insts)
}

func TestStopReason_String(t *testing.T) {
	assert.Equal(t, "return", StopReturn.String())
	assert.Equal(t, "budget exhausted", StopBudget.String())
	assert.Equal(t, "StopReason(42)", StopReason(42).String())
}
