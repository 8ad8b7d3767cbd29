// Package events is the observability side channel: fixed-size captured-packet records
// carried from capture workers to drainers over bounded, lossy queues.
package events

import (
	"fmt"
	"time"

	"firestige.xyz/woolong/internal/core"
	"firestige.xyz/woolong/internal/core/frame"
	"firestige.xyz/woolong/internal/core/reflector"
)

// RecordDataLen caps the bytes copied into a record.
const RecordDataLen = 128

// Record is one captured frame. Data is a copy; the frame itself is never retained.
type Record struct {
	Worker    int
	Timestamp time.Time
	Verdict   core.Verdict
	Reason    core.Reason
	OrigLen   int
	CapLen    int
	Data      [RecordDataLen]byte
}

// NewRecord copies at most limit bytes of data (and never more than RecordDataLen).
func NewRecord(worker int, ts time.Time, data []byte, res reflector.Result, limit int) *Record {
	if limit <= 0 || limit > RecordDataLen {
		limit = RecordDataLen
	}
	rec := &Record{
		Worker:    worker,
		Timestamp: ts,
		Verdict:   res.Verdict,
		Reason:    res.Reason,
		OrigLen:   len(data),
	}
	rec.CapLen = copy(rec.Data[:limit], data)
	return rec
}

// Bytes returns the captured prefix.
func (r *Record) Bytes() []byte {
	return r.Data[:r.CapLen]
}

// FlowKey names the TCP connection a frame belongs to, identically for both directions, so
// a reflection and the segment it answers land on the same partition. Frames that are not
// IPv4/TCP get an empty key.
func FlowKey(data []byte) string {
	h, err := reflector.Locate(frame.NewBuffer(data))
	if err != nil {
		return ""
	}
	src, dst := h.IP.Src(), h.IP.Dst()
	sp, dp := h.TCP.SrcPort(), h.TCP.DstPort()

	a := fmt.Sprintf("%d.%d.%d.%d:%d", src[0], src[1], src[2], src[3], sp)
	b := fmt.Sprintf("%d.%d.%d.%d:%d", dst[0], dst[1], dst[2], dst[3], dp)
	if b < a {
		a, b = b, a
	}
	return a + "-" + b
}
