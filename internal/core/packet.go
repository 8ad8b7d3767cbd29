// Package core defines core data structures with zero external dependencies.
package core

import "time"

// RawPacket is a frame read from an ingress hook. Data is borrowed from the hook for the
// duration of one Process call and must not be retained.
type RawPacket struct {
	Data           []byte    // Raw frame data
	Timestamp      time.Time // Capture timestamp (kernel timestamp preferred)
	CaptureLen     uint32    // Actual captured length
	OrigLen        uint32    // Original frame length
	InterfaceIndex int       // Network interface index
}

// Truncated reports whether the hook delivered fewer bytes than were on the wire.
func (p RawPacket) Truncated() bool {
	return p.OrigLen > p.CaptureLen
}
