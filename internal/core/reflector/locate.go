package reflector

import (
	"fmt"

	"firestige.xyz/woolong/internal/core"
	"firestige.xyz/woolong/internal/core/frame"
)

// Headers are the views Locate resolved for one frame.
type Headers struct {
	Eth      frame.Ethernet
	IP       frame.IPv4
	IPHeader frame.Region // full IPv4 header, options included
	TCP      frame.TCP

	// Filled by resolveSegment.
	Segment    frame.Region // TCP header + payload as IPv4 total length describes it
	Payload    frame.Region
	PayloadOff int // payload offset from the start of the frame
	TCPHdrLen  int
	DataLen    int // sequence space the payload consumes, per the TCP data offset
}

// Locate walks Ethernet -> IPv4 -> TCP. It returns core.ErrNotApplicable for anything that is
// not an unfragmented IPv4/TCP frame, frame.ErrBadHeaderLen for an IHL outside [20,60] and
// core.ErrOutOfBounds when a header does not fit.
func Locate(buf frame.Buffer) (Headers, error) {
	var h Headers
	var err error

	if h.Eth, err = frame.EthernetAt(buf, 0); err != nil {
		return h, err
	}
	if h.Eth.EtherType() != frame.EtherTypeIPv4 {
		return h, core.ErrNotApplicable
	}

	if h.IP, err = frame.IPv4At(buf, frame.EthernetLen); err != nil {
		return h, err
	}
	if h.IP.Version() != 4 || h.IP.Protocol() != frame.ProtocolTCP || h.IP.IsFragment() {
		return h, core.ErrNotApplicable
	}
	if h.IPHeader, err = h.IP.Header(buf); err != nil {
		return h, err
	}

	if h.TCP, err = frame.TCPAt(buf, frame.EthernetLen+h.IPHeader.Len()); err != nil {
		return h, err
	}
	return h, nil
}

// resolveSegment bounds the TCP segment by the IPv4 total length and locates the payload.
// Trailing link-layer padding past the total length is never part of the segment.
func (h *Headers) resolveSegment(buf frame.Buffer, mode OffsetMode, skip int) error {
	ihl := h.IPHeader.Len()
	total := int(h.IP.TotalLen())
	if total < ihl+frame.TCPMinLen {
		return fmt.Errorf("%w: total length %d", frame.ErrBadHeaderLen, total)
	}
	segLen := total - ihl

	switch mode {
	case OffsetFixed:
		h.TCPHdrLen = frame.TCPMinLen + skip
	default:
		h.TCPHdrLen = h.TCP.HeaderLen()
		if h.TCPHdrLen < frame.TCPMinLen || h.TCPHdrLen > segLen {
			return fmt.Errorf("%w: data offset %d in %d-byte segment", frame.ErrBadHeaderLen, h.TCPHdrLen, segLen)
		}
	}

	var err error
	if h.Segment, err = buf.At(h.TCP.Offset(), segLen); err != nil {
		return err
	}
	if h.Payload, err = h.Segment.At(h.TCPHdrLen, segLen-h.TCPHdrLen); err != nil {
		return err
	}
	h.PayloadOff = h.TCP.Offset() + h.TCPHdrLen
	h.DataLen = segLen - h.TCP.HeaderLen()
	if h.DataLen < 0 {
		h.DataLen = 0
	}
	return nil
}
