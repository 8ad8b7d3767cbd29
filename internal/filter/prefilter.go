package filter

import (
	"errors"
	"fmt"

	"github.com/cilium/ebpf"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"firestige.xyz/woolong/internal/core"
	"firestige.xyz/woolong/internal/log"
)

// Kinds of prefilter accepted in configuration.
const (
	KindEBPF    = "ebpf"
	KindClassic = "cbpf"
	KindNone    = "none"
)

// Attacher is a socket that accepts either filter flavour. *afpacket.Source satisfies it.
type Attacher interface {
	SetBPF(filter []bpf.RawInstruction) error
	SetEBPF(progFd int32) error
}

// Prefilter is a built filter ready to attach to any number of sockets.
type Prefilter struct {
	kind    string
	prog    *ebpf.Program
	classic []bpf.RawInstruction
}

// New builds the prefilter of the requested kind. An eBPF program the kernel refuses falls
// back to the classic program so capture still works on restricted hosts.
func New(kind string, port uint16) (*Prefilter, error) {
	switch kind {
	case KindNone:
		return &Prefilter{kind: KindNone}, nil

	case KindEBPF:
		prog, err := EBPF(port)
		if err == nil {
			return &Prefilter{kind: KindEBPF, prog: prog}, nil
		}
		log.GetLogger().WithError(classify(err)).Warn("ebpf prefilter unavailable, falling back to classic bpf")
		fallthrough

	case KindClassic:
		raw, err := Classic(port)
		if err != nil {
			return nil, err
		}
		return &Prefilter{kind: KindClassic, classic: raw}, nil
	}
	return nil, fmt.Errorf("%w: unknown filter kind %q", core.ErrConfigInvalid, kind)
}

// Kind returns the kind actually in use, which may differ from the one requested.
func (p *Prefilter) Kind() string { return p.kind }

// Attach installs the filter on s.
func (p *Prefilter) Attach(s Attacher) error {
	var err error
	switch p.kind {
	case KindEBPF:
		err = s.SetEBPF(int32(p.prog.FD()))
	case KindClassic:
		err = s.SetBPF(p.classic)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("attach %s prefilter: %w", p.kind, classify(err))
	}
	return nil
}

// Close releases the eBPF program. Sockets keep their own reference.
func (p *Prefilter) Close() error {
	if p.prog != nil {
		return p.prog.Close()
	}
	return nil
}

func classify(err error) error {
	if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
		return fmt.Errorf("%w: %v", core.ErrPermission, err)
	}
	return err
}
