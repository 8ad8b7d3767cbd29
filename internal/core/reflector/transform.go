package reflector

import (
	"firestige.xyz/woolong/internal/core"
	"firestige.xyz/woolong/internal/core/checksum"
	"firestige.xyz/woolong/internal/core/frame"
)

// rewrite is a validated plan. Every region it holds was bounds-checked before the first
// write, so commit cannot fail halfway through a frame.
type rewrite struct {
	h           *Headers
	replacement []byte
	target      frame.Region // payload bytes receiving the replacement

	// incremental only
	sumWindow  frame.Region // even-aligned segment window around target
	oldControl [12]byte
	oldWindow  []byte
}

func (e *Engine) plan(h *Headers) (*rewrite, error) {
	target, err := h.Payload.At(0, len(e.replacement))
	if err != nil {
		return nil, err
	}
	rw := &rewrite{h: h, replacement: e.replacement, target: target}

	if e.opts.Checksum == ChecksumIncremental {
		// Offloaded transmit paths leave partial checksums behind; updating one of those
		// cannot produce a valid result.
		if !checksum.Valid(h.Segment.Bytes(), pseudoHeader(h)) {
			return nil, core.ErrChecksum
		}
		// The window starts and ends on 16-bit boundaries relative to the segment, or at the
		// segment end where the checksum pads anyway.
		start := h.TCPHdrLen &^ 1
		end := h.TCPHdrLen + len(e.replacement)
		if end&1 == 1 && end < h.Segment.Len() {
			end++
		}
		if rw.sumWindow, err = h.Segment.At(start, end-start); err != nil {
			return nil, err
		}
		copy(rw.oldControl[:], h.TCP.Control().Bytes())
		rw.oldWindow = rw.sumWindow.Snapshot(nil)
	}
	return rw, nil
}

// commit reflects the frame in place.
func (rw *rewrite) commit() {
	h := rw.h
	h.Eth.SwapAddrs()
	h.IP.SwapAddrs()
	h.TCP.SwapPorts()

	rw.target.CopyFrom(rw.replacement)

	seq, ack := h.TCP.Seq(), h.TCP.Ack()
	consumed := uint32(h.DataLen)
	if h.TCP.Has(frame.FlagSYN) {
		consumed++
	}
	if h.TCP.Has(frame.FlagFIN) {
		consumed++
	}
	h.TCP.SetSeq(ack)
	h.TCP.SetAck(seq + consumed)
	h.TCP.SetFlags(h.TCP.Flags()&^(frame.FlagSYN|frame.FlagFIN|frame.FlagRST) | frame.FlagACK)
}

// checksumIPv4 recomputes the header checksum over the full IHL.
func checksumIPv4(h *Headers) {
	h.IP.SetChecksum(0)
	h.IP.SetChecksum(^checksum.Fold(h.IPHeader.Sum(0)))
}

func pseudoHeader(h *Headers) uint32 {
	return checksum.PseudoHeaderSum(h.IP.Src(), h.IP.Dst(), frame.ProtocolTCP, uint16(h.Segment.Len()))
}

// checksumTCPFull recomputes the TCP checksum over pseudo-header and segment.
func checksumTCPFull(h *Headers) {
	h.TCP.SetChecksum(0)
	h.TCP.SetChecksum(^checksum.Fold(h.Segment.Sum(pseudoHeader(h))))
}

// checksumTCPIncremental folds the control block and payload deltas into the received
// checksum. Address and port swaps leave the one's complement sum unchanged.
func (rw *rewrite) checksumTCPIncremental() {
	h := rw.h
	c := h.TCP.Checksum()
	c = checksum.Update(c, rw.oldControl[:], h.TCP.Control().Bytes())
	c = checksum.Update(c, rw.oldWindow, rw.sumWindow.Bytes())
	h.TCP.SetChecksum(c)
}
