// Package source defines the ingress hooks the workers read frames from.
package source

import (
	"errors"

	"firestige.xyz/woolong/internal/core"
)

// ErrTimeout is returned by ReadPacket when no frame arrived within the poll timeout.
// Callers use it to check for cancellation and read again.
var ErrTimeout = errors.New("woolong: packet source read timeout")

// Source delivers frames. RawPacket.Data stays valid until the next ReadPacket call and may
// be modified in place by the caller. ReadPacket returns io.EOF once a finite source is
// drained and core.ErrSourceClosed after Close.
type Source interface {
	ReadPacket() (core.RawPacket, error)
	Close() error
}

// Transmitter sends a frame back out of the hook the frame was read from.
type Transmitter interface {
	WritePacket(data []byte) error
}
