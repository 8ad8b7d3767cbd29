package reflector

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
)

var (
	clientMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	serverMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	clientIP  = net.IPv4(10, 0, 0, 1).To4()
	serverIP  = net.IPv4(10, 0, 0, 2).To4()
)

// segment describes a server -> client frame as it arrives at the client.
type segment struct {
	srcPort, dstPort uint16
	seq, ack         uint32
	syn, fin, psh    bool
	options          []layers.TCPOption
	payload          []byte
	fragment         bool
}

func serverSegment(payload []byte) segment {
	return segment{
		srcPort: DefaultTriggerPort,
		dstPort: 12345,
		seq:     1000,
		ack:     2000,
		psh:     true,
		payload: payload,
	}
}

func buildFrame(t *testing.T, s segment) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       serverMAC,
		DstMAC:       clientMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Id:       1,
		Flags:    layers.IPv4DontFragment,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    serverIP,
		DstIP:    clientIP,
	}
	if s.fragment {
		ip.Flags = layers.IPv4MoreFragments
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(s.srcPort),
		DstPort: layers.TCPPort(s.dstPort),
		Seq:     s.seq,
		Ack:     s.ack,
		ACK:     true,
		SYN:     s.syn,
		FIN:     s.fin,
		PSH:     s.psh,
		Window:  8192,
		Options: s.options,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(s.payload)))
	return append([]byte(nil), buf.Bytes()...)
}

// decoded holds the layers gopacket parsed out of a frame.
type decoded struct {
	eth *layers.Ethernet
	ip  *layers.IPv4
	tcp *layers.TCP
}

func decode(t *testing.T, data []byte) decoded {
	t.Helper()
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	require.Nil(t, pkt.ErrorLayer(), "decode error")

	var d decoded
	var ok bool
	d.eth, ok = pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	require.True(t, ok)
	d.ip, ok = pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	require.True(t, ok)
	d.tcp, ok = pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	require.True(t, ok)
	return d
}

// reserialize re-encodes data with gopacket computing both checksums. A frame whose
// checksums are already correct comes back byte for byte.
func reserialize(t *testing.T, data []byte) []byte {
	t.Helper()
	d := decode(t, data)
	require.NoError(t, d.tcp.SetNetworkLayerForChecksum(d.ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, d.eth, d.ip, d.tcp, gopacket.Payload(d.tcp.Payload)))
	return buf.Bytes()
}

func mustEngine(t *testing.T, mutate func(*Options)) *Engine {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(opts)
	require.NoError(t, err)
	return e
}
