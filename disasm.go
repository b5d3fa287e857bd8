package fncopy

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// Disassemble returns a listing of the host machine code in code, which is
// located at pc.
func Disassemble(code []byte, pc uintptr) (string, error) {
	a, err := hostArch()
	if err != nil {
		return "", err
	}
	return disassemble(a, code, pc)
}

func disassemble(a arch, code []byte, pc uintptr) (string, error) {
	var buf bytes.Buffer

	for i := 0; i < len(code); {
		text, n, err := a.format(code[i:], pc+uintptr(i))
		if err != nil {
			return buf.String(), fmt.Errorf("decode error at offset %d: %w", i, err)
		}
		fmt.Fprintf(&buf, "0x%08x\t%-20s\t%s\n", pc+uintptr(i), hex.EncodeToString(code[i:i+n]), text)

		i += n
	}

	return buf.String(), nil
}
