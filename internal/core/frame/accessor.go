// Package frame provides bounds-checked access to a borrowed packet buffer.
//
// A Buffer is the only way into frame memory. Buffer.At hands out a Region only after proving
// off+size <= len(buffer); the typed views (Ethernet, IPv4, TCP) are built from Regions and
// read or write fixed offsets that lie inside the region they were built from. No other path
// to the bytes exists, so a truncated or malformed frame can only produce an error, never an
// out-of-range access.
//
// Views are plain values sharing the caller's buffer. The caller owns exactly one view per
// header for the duration of a rewrite; views are never retained past one Process call.
package frame

import (
	"encoding/binary"

	"firestige.xyz/woolong/internal/core"
	"firestige.xyz/woolong/internal/core/checksum"
)

// Buffer is a borrowed, mutable frame.
type Buffer struct {
	b []byte
}

// NewBuffer wraps b. The buffer is never grown, shrunk or reallocated.
func NewBuffer(b []byte) Buffer {
	return Buffer{b: b}
}

// Len returns the number of bytes between the frame's start and end.
func (buf Buffer) Len() int { return len(buf.b) }

// At returns the region [off, off+size) or core.ErrOutOfBounds.
func (buf Buffer) At(off, size int) (Region, error) {
	return at(buf.b, off, size)
}

// Region is a checked window into a Buffer. The zero Region is empty.
type Region struct {
	b []byte
}

func at(b []byte, off, size int) (Region, error) {
	if off < 0 || size < 0 || off > len(b) || size > len(b)-off {
		return Region{}, core.ErrOutOfBounds
	}
	return Region{b: b[off : off+size : off+size]}, nil
}

// Len returns the region size.
func (r Region) Len() int { return len(r.b) }

// At returns a checked sub-region relative to the start of r.
func (r Region) At(off, size int) (Region, error) {
	return at(r.b, off, size)
}

// Equal reports whether r holds exactly pattern. The loop is bounded by len(pattern).
func (r Region) Equal(pattern []byte) bool {
	if len(r.b) != len(pattern) {
		return false
	}
	for i := 0; i < len(pattern); i++ {
		if r.b[i] != pattern[i] {
			return false
		}
	}
	return true
}

// Word64 loads the leading eight bytes as one word, if the region is that long.
func (r Region) Word64() (uint64, bool) {
	if len(r.b) < 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(r.b[:8]), true
}

// CopyFrom copies src into the region and returns the number of bytes written. Bytes of src
// past the region end are not written.
func (r Region) CopyFrom(src []byte) int {
	return copy(r.b, src)
}

// Snapshot appends the region's current bytes to dst.
func (r Region) Snapshot(dst []byte) []byte {
	return append(dst, r.b...)
}

// Sum folds the region into a running Internet checksum sum.
func (r Region) Sum(initial uint32) uint32 {
	return checksum.Sum(r.b, initial)
}

// Bytes returns a copy of the region.
func (r Region) Bytes() []byte {
	return r.Snapshot(nil)
}

func (r Region) u16(off int) uint16       { return binary.BigEndian.Uint16(r.b[off : off+2]) }
func (r Region) putU16(off int, v uint16) { binary.BigEndian.PutUint16(r.b[off:off+2], v) }
func (r Region) u32(off int) uint32       { return binary.BigEndian.Uint32(r.b[off : off+4]) }
func (r Region) putU32(off int, v uint32) { binary.BigEndian.PutUint32(r.b[off:off+4], v) }

// swap exchanges the n-byte fields at a and b.
func (r Region) swap(a, b, n int) {
	for i := 0; i < n; i++ {
		r.b[a+i], r.b[b+i] = r.b[b+i], r.b[a+i]
	}
}
