package frame

const (
	// IPv4MinLen is the fixed part of the IPv4 header.
	IPv4MinLen = 20
	// IPv4MaxLen is the largest header IHL can describe (15 words).
	IPv4MaxLen = 60
)

// IPv4 is a view of the 20 fixed bytes of an IPv4 header. Options, when present, are reached
// through Header.
type IPv4 struct {
	r   Region
	off int
}

// IPv4At returns the IPv4 fixed header at off.
func IPv4At(buf Buffer, off int) (IPv4, error) {
	r, err := buf.At(off, IPv4MinLen)
	if err != nil {
		return IPv4{}, err
	}
	return IPv4{r: r, off: off}, nil
}

// Offset returns where the header starts in the buffer.
func (ip IPv4) Offset() int { return ip.off }

// Version returns the high nibble of the first byte.
func (ip IPv4) Version() uint8 { return ip.r.b[0] >> 4 }

// HeaderLen returns IHL in bytes, (version/IHL & 0x0F) * 4.
func (ip IPv4) HeaderLen() int { return int(ip.r.b[0]&0x0F) * 4 }

// TotalLen returns the datagram length, header included.
func (ip IPv4) TotalLen() uint16 { return ip.r.u16(2) }

// IsFragment reports whether MF is set or the fragment offset is non-zero.
func (ip IPv4) IsFragment() bool {
	flagsOffset := ip.r.u16(6)
	return flagsOffset&0x2000 != 0 || flagsOffset&0x1FFF != 0
}

// TTL returns the time-to-live field.
func (ip IPv4) TTL() uint8 { return ip.r.b[8] }

// Protocol returns the transport protocol number.
func (ip IPv4) Protocol() uint8 { return ip.r.b[9] }

// Checksum returns the header checksum field.
func (ip IPv4) Checksum() uint16 { return ip.r.u16(10) }

// SetChecksum stores the header checksum field.
func (ip IPv4) SetChecksum(c uint16) { ip.r.putU16(10, c) }

// Src returns the source address.
func (ip IPv4) Src() (a [4]byte) {
	copy(a[:], ip.r.b[12:16])
	return a
}

// Dst returns the destination address.
func (ip IPv4) Dst() (a [4]byte) {
	copy(a[:], ip.r.b[16:20])
	return a
}

// SwapAddrs exchanges source and destination addresses.
func (ip IPv4) SwapAddrs() { ip.r.swap(12, 16, 4) }

// Header returns the full header, options included, as IHL describes it.
func (ip IPv4) Header(buf Buffer) (Region, error) {
	n := ip.HeaderLen()
	if n < IPv4MinLen || n > IPv4MaxLen {
		return Region{}, ErrBadHeaderLen
	}
	return buf.At(ip.off, n)
}
