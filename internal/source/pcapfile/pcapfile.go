// Package pcapfile is the offline ingress hook: frames come from a pcap or pcapng capture and
// transmitted frames go to a pcap file, so the engine can be exercised without privileges.
package pcapfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/woolong/internal/core"
	"firestige.xyz/woolong/internal/source"
)

// pcapng section header block type
const ngMagic = 0x0A0D0D0A

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Reader replays the frames of a capture file in order.
type Reader struct {
	r      packetReader
	closer io.Closer
	last   time.Time
}

var _ source.Source = (*Reader)(nil)

// Open opens a pcap or pcapng file for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewReader reads a capture stream. Only Ethernet captures are accepted.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("read capture header: %w", err)
	}

	var pr packetReader
	if binary.BigEndian.Uint32(magic) == ngMagic {
		pr, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		pr, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return nil, err
	}
	if lt := pr.LinkType(); lt != layers.LinkTypeEthernet {
		return nil, fmt.Errorf("%w: unsupported link type %s", core.ErrConfigInvalid, lt)
	}
	return &Reader{r: pr}, nil
}

// ReadPacket returns the next frame, or io.EOF at the end of the capture.
func (r *Reader) ReadPacket() (core.RawPacket, error) {
	if r.r == nil {
		return core.RawPacket{}, core.ErrSourceClosed
	}
	data, ci, err := r.r.ReadPacketData()
	if err != nil {
		return core.RawPacket{}, err
	}
	r.last = ci.Timestamp
	return core.RawPacket{
		Data:           data,
		Timestamp:      ci.Timestamp,
		CaptureLen:     uint32(ci.CaptureLength),
		OrigLen:        uint32(ci.Length),
		InterfaceIndex: ci.InterfaceIndex,
	}, nil
}

// Close closes the underlying file, if Open created it.
func (r *Reader) Close() error {
	r.r = nil
	if r.closer != nil {
		c := r.closer
		r.closer = nil
		return c.Close()
	}
	return nil
}

// Writer records transmitted frames.
type Writer struct {
	mu     sync.Mutex
	w      *pcapgo.Writer
	bw     *bufio.Writer
	closer io.Closer
	clock  func() time.Time
}

var _ source.Transmitter = (*Writer)(nil)

// Create creates (or truncates) path and writes the pcap header.
func Create(path string, snapLen uint32) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, snapLen)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	w.closer = f
	return w, nil
}

// NewWriter writes an Ethernet pcap stream to w.
func NewWriter(w io.Writer, snapLen uint32) (*Writer, error) {
	bw := bufio.NewWriter(w)
	pw := pcapgo.NewWriter(bw)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &Writer{w: pw, bw: bw, clock: time.Now}, nil
}

// WritePacket appends data as one record stamped by the writer's clock.
func (w *Writer) WritePacket(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return core.ErrSourceClosed
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     w.clock(),
		CaptureLength: len(data),
		Length:        len(data),
	}
	return w.w.WritePacket(ci, data)
}

// Close flushes buffered records and closes the file, if Create opened it.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	w.w = nil
	err := w.bw.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Replay pairs a Reader with a Writer. Transmitted frames carry the timestamp of the frame
// they answer, so the output lines up with the input.
type Replay struct {
	*Reader
	out *Writer
}

var (
	_ source.Source      = (*Replay)(nil)
	_ source.Transmitter = (*Replay)(nil)
)

// NewReplay wires r and w together. w may be nil, in which case transmitted frames are
// discarded.
func NewReplay(r *Reader, w *Writer) *Replay {
	if w != nil {
		w.clock = func() time.Time { return r.last }
	}
	return &Replay{Reader: r, out: w}
}

// WritePacket implements source.Transmitter.
func (p *Replay) WritePacket(data []byte) error {
	if p.out == nil {
		return nil
	}
	return p.out.WritePacket(data)
}

// Close closes both ends.
func (p *Replay) Close() error {
	err := p.Reader.Close()
	if p.out != nil {
		if werr := p.out.Close(); err == nil {
			err = werr
		}
	}
	return err
}
