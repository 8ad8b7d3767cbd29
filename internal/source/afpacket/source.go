// Package afpacket is the live ingress hook: a TPACKET_V3 ring on one interface, optionally
// joined to a fanout group so several workers share the interface's flows.
package afpacket

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/afpacket"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"firestige.xyz/woolong/internal/core"
	"firestige.xyz/woolong/internal/source"
)

// Config describes one capture socket.
type Config struct {
	Interface    string
	SnapLen      int
	BufferSizeMB int
	TimeoutMS    int
	FanoutID     uint16 // 0 disables fanout
}

// Source is a capture socket. It is read by a single worker.
type Source struct {
	handle *afpacket.TPacket
	buf    []byte
	drops  uint
	closed atomic.Bool

	iface     string
	frameSize int
	blockSize int
	numBlocks int
	timeout   time.Duration
	fanoutID  uint16
}

var (
	_ source.Source      = (*Source)(nil)
	_ source.Transmitter = (*Source)(nil)
)

// NewSource opens a capture socket on cfg.Interface.
func NewSource(cfg Config) (*Source, error) {
	frameSize, blockSize, numBlocks, err := recomputeSize(cfg.BufferSizeMB, cfg.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	s := &Source{
		buf:       make([]byte, cfg.SnapLen),
		iface:     cfg.Interface,
		frameSize: frameSize,
		blockSize: blockSize,
		numBlocks: numBlocks,
		timeout:   timeout,
		fanoutID:  cfg.FanoutID,
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Source) open() error {
	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(s.iface),
		afpacket.OptFrameSize(s.frameSize),
		afpacket.OptBlockSize(s.blockSize),
		afpacket.OptNumBlocks(s.numBlocks),
		afpacket.OptBlockTimeout(s.timeout),
		afpacket.OptPollTimeout(s.timeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return fmt.Errorf("open af_packet on %s: %w", s.iface, classify(err))
	}

	s.handle = tp

	// The hook is ingress only. Without this the socket also sees every frame the host
	// sends, and on loopback each segment would be reflected twice.
	if err := s.ignoreOutgoing(); err != nil {
		tp.Close()
		return fmt.Errorf("ignore outgoing frames on %s: %w", s.iface, classify(err))
	}

	if s.fanoutID > 0 {
		if err := tp.SetFanout(afpacket.FanoutHash, s.fanoutID); err != nil {
			tp.Close()
			return fmt.Errorf("join fanout group %d: %w", s.fanoutID, classify(err))
		}
	}
	return nil
}

func (s *Source) ignoreOutgoing() error {
	fd, err := s.fd()
	if err != nil {
		return err
	}
	return unix.SetsockoptInt(fd, unix.SOL_PACKET, unix.PACKET_IGNORE_OUTGOING, 1)
}

// SetBPF attaches a classic BPF program to the socket.
func (s *Source) SetBPF(filter []bpf.RawInstruction) error {
	return s.handle.SetBPF(filter)
}

// SetEBPF attaches a loaded eBPF socket filter program to the socket.
func (s *Source) SetEBPF(progFd int32) error {
	fd, err := s.fd()
	if err != nil {
		return err
	}
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ATTACH_BPF, int(progFd))
}

// fd digs the socket descriptor out of the TPacket, which does not export it.
func (s *Source) fd() (int, error) {
	v := reflect.ValueOf(s.handle).Elem().FieldByName("fd")
	if !v.IsValid() || v.Kind() != reflect.Int {
		return -1, errors.New("af_packet socket descriptor not accessible")
	}
	fd := int(v.Int())
	if fd < 0 {
		return -1, core.ErrSourceClosed
	}
	return fd, nil
}

// ReadPacket copies the next frame into the source's buffer. The returned Data is reused by
// the following call.
func (s *Source) ReadPacket() (core.RawPacket, error) {
	if s.closed.Load() {
		return core.RawPacket{}, core.ErrSourceClosed
	}
	ci, err := s.handle.ReadPacketDataTo(s.buf)
	if err != nil {
		if errors.Is(err, afpacket.ErrTimeout) {
			return core.RawPacket{}, source.ErrTimeout
		}
		if s.closed.Load() {
			return core.RawPacket{}, core.ErrSourceClosed
		}
		return core.RawPacket{}, err
	}
	return core.RawPacket{
		Data:           s.buf[:ci.CaptureLength],
		Timestamp:      ci.Timestamp,
		CaptureLen:     uint32(ci.CaptureLength),
		OrigLen:        uint32(ci.Length),
		InterfaceIndex: ci.InterfaceIndex,
	}, nil
}

// WritePacket sends data out of the interface the socket is bound to.
func (s *Source) WritePacket(data []byte) error {
	if s.closed.Load() {
		return core.ErrSourceClosed
	}
	return s.handle.WritePacketData(data)
}

// Drops returns the number of frames the kernel dropped since the previous call.
func (s *Source) Drops() (uint, error) {
	_, v3, err := s.handle.SocketStats()
	if err != nil {
		return 0, err
	}
	total := v3.Drops()
	if total < s.drops {
		s.drops = total
		return 0, nil
	}
	delta := total - s.drops
	s.drops = total
	return delta, nil
}

// Close releases the ring and the socket. It is safe to call more than once but must not
// overlap a ReadPacket on another goroutine.
func (s *Source) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.handle.Close()
	return nil
}

func classify(err error) error {
	if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
		return fmt.Errorf("%w: %v", core.ErrPermission, err)
	}
	if errors.Is(err, unix.ENODEV) {
		return fmt.Errorf("%w: %v", core.ErrInterfaceNotFound, err)
	}
	return err
}
