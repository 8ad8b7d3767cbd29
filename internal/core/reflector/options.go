// Package reflector turns a matching inbound TCP segment into a synthetic reply from its
// original destination: it locates headers, matches the payload signature, reflects
// addresses, swaps the payload, renumbers sequence/acknowledgment and recomputes checksums.
package reflector

import (
	"fmt"

	"firestige.xyz/woolong/internal/core"
)

// MaxPatternLen bounds the signature length and with it the matcher loop.
const MaxPatternLen = 1024

// The signature/replacement pair the demonstration server and the reflector agree on.
const (
	DefaultTriggerPort = 7777
	DefaultSignature   = "願いを言え。どんな願いもひとつだけ叶えてやろう"
	DefaultReplacement = "ギャルのパンティおくれーーーーーーっ！！！！！"
)

// MatchMode selects how much of the signature is compared.
type MatchMode uint8

const (
	MatchFull   MatchMode = iota // every signature byte
	MatchPrefix                  // the leading 8-byte word only
)

// OffsetMode selects how the payload offset is derived.
type OffsetMode uint8

const (
	OffsetDataOffset OffsetMode = iota // honor the TCP data offset field
	OffsetFixed                        // 20-byte TCP header plus a fixed preamble skip
)

// ChecksumStrategy selects how the TCP checksum is produced.
type ChecksumStrategy uint8

const (
	ChecksumFull        ChecksumStrategy = iota // recompute pseudo-header + segment
	ChecksumIncremental                         // RFC 1624 update of the received checksum
)

// Options is the immutable configuration of an Engine.
type Options struct {
	TriggerPort  uint16
	Signature    []byte
	Replacement  []byte
	Match        MatchMode
	Offset       OffsetMode
	PreambleSkip int
	Checksum     ChecksumStrategy
	Policy       core.FailurePolicy
}

// DefaultOptions returns the demonstration trigger with the safest settings.
func DefaultOptions() Options {
	return Options{
		TriggerPort: DefaultTriggerPort,
		Signature:   []byte(DefaultSignature),
		Replacement: []byte(DefaultReplacement),
		Match:       MatchFull,
		Offset:      OffsetDataOffset,
		Checksum:    ChecksumFull,
		Policy:      core.FailOpen,
	}
}

// Validate checks the invariants New relies on.
func (o Options) Validate() error {
	if len(o.Signature) == 0 {
		return fmt.Errorf("%w: empty signature", core.ErrConfigInvalid)
	}
	if len(o.Signature) > MaxPatternLen {
		return fmt.Errorf("%w: %d bytes", core.ErrPatternTooLong, len(o.Signature))
	}
	if len(o.Replacement) != len(o.Signature) {
		return fmt.Errorf("%w: signature %d bytes, replacement %d bytes",
			core.ErrLengthMismatch, len(o.Signature), len(o.Replacement))
	}
	if o.Match == MatchPrefix && len(o.Signature) < 8 {
		return fmt.Errorf("%w: %d bytes", core.ErrPatternTooShort, len(o.Signature))
	}
	if o.Offset == OffsetFixed && (o.PreambleSkip < 0 || o.PreambleSkip > 40) {
		return fmt.Errorf("%w: preamble skip %d outside [0,40]", core.ErrConfigInvalid, o.PreambleSkip)
	}
	return nil
}

// ParseMatchMode parses "full" or "prefix".
func ParseMatchMode(s string) (MatchMode, error) {
	switch s {
	case "", "full":
		return MatchFull, nil
	case "prefix":
		return MatchPrefix, nil
	}
	return MatchFull, fmt.Errorf("%w: unknown match mode %q", core.ErrConfigInvalid, s)
}

// ParseOffsetMode parses "data_offset" or "fixed".
func ParseOffsetMode(s string) (OffsetMode, error) {
	switch s {
	case "", "data_offset":
		return OffsetDataOffset, nil
	case "fixed":
		return OffsetFixed, nil
	}
	return OffsetDataOffset, fmt.Errorf("%w: unknown offset mode %q", core.ErrConfigInvalid, s)
}

// ParseChecksumStrategy parses "full" or "incremental".
func ParseChecksumStrategy(s string) (ChecksumStrategy, error) {
	switch s {
	case "", "full":
		return ChecksumFull, nil
	case "incremental":
		return ChecksumIncremental, nil
	}
	return ChecksumFull, fmt.Errorf("%w: unknown checksum strategy %q", core.ErrConfigInvalid, s)
}

func (m MatchMode) String() string {
	if m == MatchPrefix {
		return "prefix"
	}
	return "full"
}

func (m OffsetMode) String() string {
	if m == OffsetFixed {
		return "fixed"
	}
	return "data_offset"
}

func (c ChecksumStrategy) String() string {
	if c == ChecksumIncremental {
		return "incremental"
	}
	return "full"
}
