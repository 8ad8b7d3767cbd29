// Package filter builds the in-kernel prefilters attached to capture sockets. They accept
// only unfragmented IPv4/TCP frames from the trigger port, so the workers never see traffic
// the engine would pass anyway.
package filter

import (
	"fmt"

	"golang.org/x/net/bpf"
)

// acceptLen is returned for accepted frames; the socket snap length still applies.
const acceptLen = 0x40000

// ClassicInstructions returns the classic BPF program for port.
func ClassicInstructions(port uint16) []bpf.Instruction {
	// IPv4 头部长度不固定，用 LoadMemShift 取 X = 4*(ip[0]&0xf)，再读 TCP 源端口 [14+X]
	return []bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},                          // EtherType
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0800, SkipFalse: 7},  // IPv4? 否则 drop
		bpf.LoadAbsolute{Off: 23, Size: 1},                          // IPv4 protocol
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 6, SkipFalse: 5},       // TCP? 否则 drop
		bpf.LoadAbsolute{Off: 20, Size: 2},                          // flags + fragment offset
		bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: 0x3FFF, SkipTrue: 3}, // MF or offset -> drop
		bpf.LoadMemShift{Off: 14},                                   // X = 4*(ip[0]&0xf)
		bpf.LoadIndirect{Off: 14, Size: 2},                          // tcp src port
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(port), SkipTrue: 1},
		bpf.RetConstant{Val: 0},         // drop
		bpf.RetConstant{Val: acceptLen}, // accept
	}
}

// Classic assembles the classic BPF program for port.
func Classic(port uint16) ([]bpf.RawInstruction, error) {
	raw, err := bpf.Assemble(ClassicInstructions(port))
	if err != nil {
		return nil, fmt.Errorf("assemble classic filter: %w", err)
	}
	return raw, nil
}
