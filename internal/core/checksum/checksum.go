// Package checksum implements the Internet checksum (RFC 1071) and its incremental update
// (RFC 1624) for IPv4 headers and TCP segments.
//
// Every loop is bounded by MaxLen so the cost of one call has a fixed ceiling.
package checksum

import "encoding/binary"

// MaxLen is the largest buffer any function in this package will walk: an IPv4 datagram
// cannot carry more than 65535 bytes.
const MaxLen = 0xFFFF

// ProtocolTCP is the IPv4 protocol number folded into the TCP pseudo-header.
const ProtocolTCP = 6

// Sum adds b to initial as a sequence of big-endian 16-bit words. An odd trailing byte is
// padded with a zero byte. Carries are folded after every word so the running sum stays
// within 17 bits. Bytes past MaxLen are ignored; callers reject such buffers first.
func Sum(b []byte, initial uint32) uint32 {
	n := len(b)
	if n > MaxLen {
		n = MaxLen
	}
	sum := initial
	i := 0
	for ; i+1 < n; i += 2 {
		sum = addCarry(sum, binary.BigEndian.Uint16(b[i:i+2]))
	}
	if i < n {
		sum = addCarry(sum, uint16(b[i])<<8)
	}
	return sum
}

// Fold reduces a 32-bit running sum to 16 bits, feeding carries back into the low word until
// none remain. Two rounds are always enough for a 32-bit input.
func Fold(sum uint32) uint16 {
	for i := 0; i < 2 && sum>>16 != 0; i++ {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return uint16(sum)
}

// Checksum returns the one's complement of the folded sum of b seeded with initial.
func Checksum(b []byte, initial uint32) uint16 {
	return ^Fold(Sum(b, initial))
}

// PseudoHeaderSum sums the IPv4 pseudo-header: source, destination, zero+protocol, length.
func PseudoHeaderSum(src, dst [4]byte, proto uint8, length uint16) uint32 {
	var sum uint32
	sum = addCarry(sum, binary.BigEndian.Uint16(src[0:2]))
	sum = addCarry(sum, binary.BigEndian.Uint16(src[2:4]))
	sum = addCarry(sum, binary.BigEndian.Uint16(dst[0:2]))
	sum = addCarry(sum, binary.BigEndian.Uint16(dst[2:4]))
	sum = addCarry(sum, uint16(proto))
	sum = addCarry(sum, length)
	return sum
}

// Update adjusts a valid checksum after the bytes old were replaced by new at the same
// position. Both slices must have equal length and start on the same 16-bit word boundary of
// the checksummed data. The result follows RFC 1624 eqn. 3: HC' = ~(~HC + ~m + m').
func Update(check uint16, old, new []byte) uint16 {
	sum := uint32(^check)
	sum = Sum(complement(old), sum)
	sum = Sum(new, sum)
	return ^Fold(sum)
}

// Valid reports whether data summed together with the pseudo-header sum folds to 0xFFFF,
// the definition of a correct Internet checksum.
func Valid(b []byte, initial uint32) bool {
	return Fold(Sum(b, initial)) == 0xFFFF
}

func addCarry(sum uint32, w uint16) uint32 {
	s := sum + uint32(w)
	return (s & 0xFFFF) + (s >> 16)
}

// complement returns the bitwise complement of b. An odd trailing byte is complemented as the
// high byte of a word whose low byte is the zero pad, so the pad stays zero on both sides.
func complement(b []byte) []byte {
	out := make([]byte, len(b)+len(b)%2)
	for i := 0; i < len(b) && i < MaxLen; i++ {
		out[i] = ^b[i]
	}
	if len(b)%2 == 1 {
		out[len(b)] = 0xFF
	}
	return out
}
