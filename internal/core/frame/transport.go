package frame

import (
	"errors"
	"fmt"

	"firestige.xyz/woolong/internal/core"
)

const (
	// TCPMinLen is the fixed part of the TCP header.
	TCPMinLen = 20
	// TCPMaxLen is the largest header the data offset field can describe.
	TCPMaxLen = 60

	ProtocolTCP = 6
)

// TCP control flags, byte 13 of the header.
const (
	FlagFIN uint8 = 0x01
	FlagSYN uint8 = 0x02
	FlagRST uint8 = 0x04
	FlagPSH uint8 = 0x08
	FlagACK uint8 = 0x10
	FlagURG uint8 = 0x20
)

// ErrBadHeaderLen marks a length field (IHL, data offset, total length) that contradicts the
// header it describes. It wraps core.ErrOutOfBounds.
var ErrBadHeaderLen = fmt.Errorf("%w: header length field", core.ErrOutOfBounds)

// IsBadHeaderLen reports whether err came from an inconsistent length field.
func IsBadHeaderLen(err error) bool { return errors.Is(err, ErrBadHeaderLen) }

// TCP is a view of the 20 fixed bytes of a TCP header.
type TCP struct {
	r   Region
	off int
}

// TCPAt returns the TCP fixed header at off.
func TCPAt(buf Buffer, off int) (TCP, error) {
	r, err := buf.At(off, TCPMinLen)
	if err != nil {
		return TCP{}, err
	}
	return TCP{r: r, off: off}, nil
}

// Offset returns where the header starts in the buffer.
func (t TCP) Offset() int { return t.off }

func (t TCP) SrcPort() uint16 { return t.r.u16(0) }
func (t TCP) DstPort() uint16 { return t.r.u16(2) }
func (t TCP) Seq() uint32     { return t.r.u32(4) }
func (t TCP) Ack() uint32     { return t.r.u32(8) }

func (t TCP) SetSeq(v uint32) { t.r.putU32(4, v) }
func (t TCP) SetAck(v uint32) { t.r.putU32(8, v) }

// HeaderLen returns the data offset field in bytes.
func (t TCP) HeaderLen() int { return int(t.r.b[12]>>4) * 4 }

// Flags returns the six classic control bits.
func (t TCP) Flags() uint8 { return t.r.b[13] & 0x3F }

// SetFlags replaces the six classic control bits, keeping ECN bits intact.
func (t TCP) SetFlags(f uint8) { t.r.b[13] = t.r.b[13]&0xC0 | f&0x3F }

// Has reports whether every bit in f is set.
func (t TCP) Has(f uint8) bool { return t.Flags()&f == f }

func (t TCP) Checksum() uint16     { return t.r.u16(16) }
func (t TCP) SetChecksum(c uint16) { t.r.putU16(16, c) }

// SwapPorts exchanges source and destination ports.
func (t TCP) SwapPorts() { t.r.swap(0, 2, 2) }

// Control returns the region holding sequence, acknowledgment, offset/flags and window: the
// 16-bit-aligned bytes a reflection rewrites besides ports.
func (t TCP) Control() Region {
	r, _ := t.r.At(4, 12)
	return r
}
