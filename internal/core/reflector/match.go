package reflector

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/woolong/internal/core"
	"firestige.xyz/woolong/internal/core/frame"
)

// Matcher recognizes a fixed signature at the start of a payload.
type Matcher struct {
	pattern []byte
	head    uint64
	mode    MatchMode
}

// NewMatcher copies pattern so later changes by the caller cannot reach the matcher.
func NewMatcher(pattern []byte, mode MatchMode) (Matcher, error) {
	if len(pattern) == 0 {
		return Matcher{}, fmt.Errorf("%w: empty pattern", core.ErrConfigInvalid)
	}
	if len(pattern) > MaxPatternLen {
		return Matcher{}, core.ErrPatternTooLong
	}
	m := Matcher{pattern: append([]byte(nil), pattern...), mode: mode}
	if mode == MatchPrefix {
		if len(pattern) < 8 {
			return Matcher{}, core.ErrPatternTooShort
		}
		m.head = binary.BigEndian.Uint64(pattern[:8])
	}
	return m, nil
}

// Len returns the signature length.
func (m Matcher) Len() int { return len(m.pattern) }

// Match reports whether payload starts with the signature. A payload too short to hold the
// signature is a miss, never an error.
func (m Matcher) Match(payload frame.Region) bool {
	r, err := payload.At(0, len(m.pattern))
	if err != nil {
		return false
	}
	if m.mode == MatchPrefix {
		w, ok := r.Word64()
		return ok && w == m.head
	}
	return r.Equal(m.pattern)
}
