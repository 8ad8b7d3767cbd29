package events

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// PcapSink writes records to a pcap stream so reflections can be inspected offline.
type PcapSink struct {
	mu sync.Mutex
	w  *pcapgo.Writer
}

// NewPcapSink writes the file header and returns a sink ready for Handle.
func NewPcapSink(w io.Writer) (*PcapSink, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(RecordDataLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &PcapSink{w: pw}, nil
}

// Handle implements Handler.
func (s *PcapSink) Handle(rec *Record) error {
	ci := gopacket.CaptureInfo{
		Timestamp:     rec.Timestamp,
		CaptureLength: rec.CapLen,
		Length:        rec.OrigLen,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.WritePacket(ci, rec.Bytes())
}
