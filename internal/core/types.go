// Package core defines core types with zero external dependencies.
package core

import "fmt"

// Verdict is the single outcome of processing one frame.
type Verdict uint8

const (
	// VerdictPass hands the frame to the normal receive path untouched.
	VerdictPass Verdict = iota
	// VerdictTransmit re-emits the mutated frame out of the interface it arrived on.
	VerdictTransmit
	// VerdictAbort discards the frame and signals an error.
	VerdictAbort
)

func (v Verdict) String() string {
	switch v {
	case VerdictPass:
		return "pass"
	case VerdictTransmit:
		return "transmit"
	case VerdictAbort:
		return "abort"
	default:
		return fmt.Sprintf("verdict(%d)", uint8(v))
	}
}

// FailurePolicy selects what a bounds failure resolves to. One engine uses exactly one policy.
type FailurePolicy uint8

const (
	FailOpen   FailurePolicy = iota // failures resolve to VerdictPass
	FailClosed                      // failures resolve to VerdictAbort
)

func (p FailurePolicy) String() string {
	if p == FailClosed {
		return "fail_closed"
	}
	return "fail_open"
}

// Verdict maps a failure to the outcome this policy mandates.
func (p FailurePolicy) Verdict() Verdict {
	if p == FailClosed {
		return VerdictAbort
	}
	return VerdictPass
}

// ParseFailurePolicy parses the configuration spelling of a policy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "fail_open", "pass":
		return FailOpen, nil
	case "fail_closed", "abort":
		return FailClosed, nil
	default:
		return FailOpen, fmt.Errorf("%w: unknown failure policy %q", ErrConfigInvalid, s)
	}
}
