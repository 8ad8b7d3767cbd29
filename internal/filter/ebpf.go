package filter

import (
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
)

// EBPFInstructions returns the socket filter program for port. LD_ABS/LD_IND read the frame
// through the context saved in R6; an out-of-bounds load ends the program with 0 (drop).
func EBPFInstructions(port uint16) asm.Instructions {
	return asm.Instructions{
		asm.Mov.Reg(asm.R6, asm.R1),

		asm.LoadAbs(12, asm.Half), // EtherType
		asm.JNE.Imm(asm.R0, 0x0800, "drop"),

		asm.LoadAbs(23, asm.Byte), // protocol
		asm.JNE.Imm(asm.R0, 6, "drop"),

		asm.LoadAbs(20, asm.Half), // flags + fragment offset
		asm.JSet.Imm(asm.R0, 0x3FFF, "drop"),

		// R7 = IHL in bytes
		asm.LoadAbs(14, asm.Byte),
		asm.And.Imm(asm.R0, 0x0F),
		asm.LSh.Imm(asm.R0, 2),
		asm.Mov.Reg(asm.R7, asm.R0),

		asm.LoadInd(asm.R0, asm.R7, 14, asm.Half), // tcp src port
		asm.JNE.Imm(asm.R0, int32(port), "drop"),

		asm.Mov.Imm(asm.R0, acceptLen),
		asm.Return(),

		asm.Mov.Imm(asm.R0, 0).WithSymbol("drop"),
		asm.Return(),
	}
}

// EBPF loads the socket filter program for port. The caller owns the returned program.
func EBPF(port uint16) (*ebpf.Program, error) {
	prog, err := ebpf.NewProgram(&ebpf.ProgramSpec{
		Name:         "woolong_filter",
		Type:         ebpf.SocketFilter,
		License:      "GPL",
		Instructions: EBPFInstructions(port),
	})
	if err != nil {
		return nil, fmt.Errorf("load ebpf socket filter: %w", err)
	}
	return prog, nil
}
