package frame

const (
	// EthernetLen is the size of an untagged Ethernet II header.
	EthernetLen = 14

	EtherTypeIPv4 = 0x0800
)

// Ethernet is a view of the 14-byte link header.
type Ethernet struct {
	r Region
}

// EthernetAt returns the Ethernet header at off.
func EthernetAt(buf Buffer, off int) (Ethernet, error) {
	r, err := buf.At(off, EthernetLen)
	if err != nil {
		return Ethernet{}, err
	}
	return Ethernet{r: r}, nil
}

// Dst returns the destination MAC address.
func (e Ethernet) Dst() (mac [6]byte) {
	copy(mac[:], e.r.b[0:6])
	return mac
}

// Src returns the source MAC address.
func (e Ethernet) Src() (mac [6]byte) {
	copy(mac[:], e.r.b[6:12])
	return mac
}

// EtherType returns the ethertype field.
func (e Ethernet) EtherType() uint16 { return e.r.u16(12) }

// SwapAddrs exchanges source and destination MAC addresses.
func (e Ethernet) SwapAddrs() { e.r.swap(0, 6, 6) }
