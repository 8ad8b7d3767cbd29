// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors, compared with errors.Is.
var (
	// Packet access errors
	ErrOutOfBounds   = errors.New("woolong: access out of packet bounds")
	ErrNotApplicable = errors.New("woolong: not an IPv4/TCP segment")

	// Engine invariant errors
	ErrLengthMismatch  = errors.New("woolong: replacement length differs from signature length")
	ErrPatternTooLong  = errors.New("woolong: pattern exceeds maximum length")
	ErrPatternTooShort = errors.New("woolong: pattern too short for prefix match")
	ErrChecksum        = errors.New("woolong: checksum computation failed")

	// Configuration errors
	ErrConfigInvalid = errors.New("woolong: invalid configuration")

	// Attach errors
	ErrInterfaceNotFound = errors.New("woolong: interface not found")
	ErrInterfaceDown     = errors.New("woolong: interface is down")
	ErrPermission        = errors.New("woolong: insufficient privilege")

	// Source errors
	ErrSourceClosed = errors.New("woolong: packet source closed")
)
