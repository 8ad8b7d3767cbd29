// Package core defines core types.
package core

// Reason explains why a verdict was reached. Values double as metric label values.
type Reason string

// Reason naming follows {stage}_{cause}.
const (
	ReasonNotIPv4TCP    Reason = "locate_not_ipv4_tcp"
	ReasonTruncated     Reason = "locate_truncated"
	ReasonBadHeaderLen  Reason = "locate_bad_header_len"
	ReasonPortMismatch  Reason = "filter_port_mismatch"
	ReasonNoMatch       Reason = "match_no_signature"
	ReasonRewriteBounds Reason = "rewrite_out_of_bounds"
	ReasonInvariant     Reason = "rewrite_length_mismatch"
	ReasonChecksum      Reason = "checksum_failed"
	ReasonReflected     Reason = "reflected"
)
