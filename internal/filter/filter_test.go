package filter

import (
	"net"
	"testing"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"firestige.xyz/woolong/internal/core"
)

const port = 7777

type frameSpec struct {
	etherType layers.EthernetType
	proto     layers.IPProtocol
	srcPort   uint16
	flags     layers.IPv4Flag
	fragOff   uint16
	ihlWords  int // 0 keeps the minimal header
}

func tcpFrom(src uint16) frameSpec {
	return frameSpec{etherType: layers.EthernetTypeIPv4, proto: layers.IPProtocolTCP, srcPort: src}
}

func buildFrame(t *testing.T, f frameSpec) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 2},
		DstMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 1},
		EthernetType: f.etherType,
	}
	if f.etherType != layers.EthernetTypeIPv4 {
		buf := gopacket.NewSerializeBuffer()
		require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true},
			eth, gopacket.Payload(make([]byte, 46))))
		return buf.Bytes()
	}

	ip := &layers.IPv4{
		Version:    4,
		TTL:        64,
		Flags:      f.flags,
		FragOffset: f.fragOff,
		Protocol:   f.proto,
		SrcIP:      net.IPv4(10, 0, 0, 2).To4(),
		DstIP:      net.IPv4(10, 0, 0, 1).To4(),
	}
	if f.ihlWords > 5 {
		// a NOP-padded options area to move the transport header
		ip.Options = []layers.IPv4Option{{OptionType: 1}, {OptionType: 1}, {OptionType: 1}, {OptionType: 0}}
	}

	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	buf := gopacket.NewSerializeBuffer()
	switch f.proto {
	case layers.IPProtocolTCP:
		tcp := &layers.TCP{SrcPort: layers.TCPPort(f.srcPort), DstPort: 40000, ACK: true, Window: 1024}
		require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
		require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload("wish")))
	case layers.IPProtocolUDP:
		udp := &layers.UDP{SrcPort: layers.UDPPort(f.srcPort), DstPort: 40000}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
		require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload("wish")))
	}
	return buf.Bytes()
}

var filterCases = []struct {
	name   string
	frame  frameSpec
	accept bool
}{
	{"trigger port", tcpFrom(port), true},
	{"other port", tcpFrom(port + 1), false},
	{"ip options", frameSpec{etherType: layers.EthernetTypeIPv4, proto: layers.IPProtocolTCP, srcPort: port, ihlWords: 6}, true},
	{"udp from trigger port", frameSpec{etherType: layers.EthernetTypeIPv4, proto: layers.IPProtocolUDP, srcPort: port}, false},
	{"more fragments", frameSpec{etherType: layers.EthernetTypeIPv4, proto: layers.IPProtocolTCP, srcPort: port, flags: layers.IPv4MoreFragments}, false},
	{"non-first fragment", frameSpec{etherType: layers.EthernetTypeIPv4, proto: layers.IPProtocolTCP, srcPort: port, fragOff: 8}, false},
	{"don't fragment", frameSpec{etherType: layers.EthernetTypeIPv4, proto: layers.IPProtocolTCP, srcPort: port, flags: layers.IPv4DontFragment}, true},
	{"arp", frameSpec{etherType: layers.EthernetTypeARP}, false},
}

func TestClassicFilter(t *testing.T) {
	vm, err := bpf.NewVM(ClassicInstructions(port))
	require.NoError(t, err)

	for _, tt := range filterCases {
		t.Run(tt.name, func(t *testing.T) {
			n, err := vm.Run(buildFrame(t, tt.frame))
			require.NoError(t, err)
			if tt.accept {
				assert.Equal(t, acceptLen, n)
			} else {
				assert.Zero(t, n)
			}
		})
	}
}

func TestClassicFilterShortFrame(t *testing.T) {
	vm, err := bpf.NewVM(ClassicInstructions(port))
	require.NoError(t, err)

	frame := buildFrame(t, tcpFrom(port))
	n, err := vm.Run(frame[:30])
	require.NoError(t, err)
	assert.Zero(t, n, "loads past the end drop the frame")
}

func TestClassicAssemble(t *testing.T) {
	raw, err := Classic(port)
	require.NoError(t, err)
	assert.Len(t, raw, len(ClassicInstructions(port)))
}

func TestEBPFInstructions(t *testing.T) {
	insns := EBPFInstructions(port)

	var sawPort bool
	for _, ins := range insns {
		if ins.Constant == port {
			sawPort = true
		}
	}
	assert.True(t, sawPort, "port constant embedded")
	assert.Equal(t, asm.Exit, insns[len(insns)-1].OpCode.JumpOp())
}

func TestEBPFLoad(t *testing.T) {
	prog, err := EBPF(port)
	if err != nil {
		t.Skipf("kernel refused socket filter: %v", err)
	}
	defer prog.Close()

	info, err := prog.Info()
	require.NoError(t, err)
	assert.Equal(t, ebpf.SocketFilter, info.Type)
}

type fakeSocket struct {
	classic []bpf.RawInstruction
	progFd  int32
	err     error
}

func (f *fakeSocket) SetBPF(raw []bpf.RawInstruction) error {
	f.classic = raw
	return f.err
}

func (f *fakeSocket) SetEBPF(fd int32) error {
	f.progFd = fd
	return f.err
}

func TestPrefilterKinds(t *testing.T) {
	t.Run("classic", func(t *testing.T) {
		p, err := New(KindClassic, port)
		require.NoError(t, err)
		defer p.Close()

		var s fakeSocket
		require.NoError(t, p.Attach(&s))
		assert.Equal(t, KindClassic, p.Kind())
		assert.NotEmpty(t, s.classic)
	})

	t.Run("none", func(t *testing.T) {
		p, err := New(KindNone, port)
		require.NoError(t, err)

		var s fakeSocket
		require.NoError(t, p.Attach(&s))
		assert.Nil(t, s.classic)
		assert.Zero(t, s.progFd)
	})

	t.Run("ebpf or fallback", func(t *testing.T) {
		p, err := New(KindEBPF, port)
		require.NoError(t, err)
		defer p.Close()

		var s fakeSocket
		require.NoError(t, p.Attach(&s))
		switch p.Kind() {
		case KindEBPF:
			assert.Positive(t, s.progFd)
		case KindClassic:
			assert.NotEmpty(t, s.classic)
		default:
			t.Fatalf("unexpected kind %q", p.Kind())
		}
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := New("pcap", port)
		assert.ErrorIs(t, err, core.ErrConfigInvalid)
	})
}

func TestPrefilterAttachPermission(t *testing.T) {
	p, err := New(KindClassic, port)
	require.NoError(t, err)

	err = p.Attach(&fakeSocket{err: unix.EPERM})
	assert.ErrorIs(t, err, core.ErrPermission)

	err = p.Attach(&fakeSocket{err: unix.EINVAL})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrPermission)
}
