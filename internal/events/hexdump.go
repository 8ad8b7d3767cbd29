package events

import (
	"fmt"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/woolong/internal/log"
)

// HexDumper logs records: one summary line and, optionally, the captured bytes 16 per line.
type HexDumper struct {
	logger  log.Logger
	hexdump bool
}

func NewHexDumper(logger log.Logger, hexdump bool) *HexDumper {
	return &HexDumper{logger: logger, hexdump: hexdump}
}

// Handle implements Handler.
func (d *HexDumper) Handle(rec *Record) error {
	entry := d.logger.WithFields(map[string]interface{}{
		"worker":  rec.Worker,
		"verdict": rec.Verdict.String(),
		"reason":  string(rec.Reason),
		"len":     rec.OrigLen,
	})
	if !d.hexdump {
		entry.Info(Summary(rec.Bytes()))
		return nil
	}
	entry.Infof("%s\n%s", Summary(rec.Bytes()), HexDump(rec.Bytes()))
	return nil
}

// HexDump renders data as lowercase hex octets, 16 per line.
func HexDump(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			if i%16 == 0 {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte(' ')
			}
		}
		fmt.Fprintf(&sb, "%02x", b)
	}
	return sb.String()
}

// Summary decodes what it can of an Ethernet/IPv4/TCP prefix into one line. Records are
// truncated, so decoding stops quietly at the first layer that does not fit.
func Summary(data []byte) string {
	var (
		eth     layers.Ethernet
		ip4     layers.IPv4
		tcp     layers.TCP
		payload gopacket.Payload
	)
	parser := gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &eth, &ip4, &tcp, &payload)
	parser.IgnoreUnsupported = true

	decoded := make([]gopacket.LayerType, 0, 4)
	_ = parser.DecodeLayers(data, &decoded)

	var haveIP, haveTCP bool
	for _, lt := range decoded {
		switch lt {
		case layers.LayerTypeIPv4:
			haveIP = true
		case layers.LayerTypeTCP:
			haveTCP = true
		}
	}

	switch {
	case haveTCP:
		return fmt.Sprintf("%s:%d > %s:%d [%s] seq=%d ack=%d payload=%d",
			ip4.SrcIP, tcp.SrcPort, ip4.DstIP, tcp.DstPort, tcpFlags(&tcp), tcp.Seq, tcp.Ack,
			int(ip4.Length)-int(ip4.IHL)*4-int(tcp.DataOffset)*4)
	case haveIP:
		return fmt.Sprintf("%s > %s proto=%s", ip4.SrcIP, ip4.DstIP, ip4.Protocol)
	case len(decoded) > 0:
		return fmt.Sprintf("%s > %s type=%s", eth.SrcMAC, eth.DstMAC, eth.EthernetType)
	default:
		return fmt.Sprintf("undecodable frame (%d bytes)", len(data))
	}
}

func tcpFlags(t *layers.TCP) string {
	var f []string
	for _, flag := range []struct {
		set  bool
		name string
	}{
		{t.SYN, "SYN"}, {t.FIN, "FIN"}, {t.RST, "RST"},
		{t.PSH, "PSH"}, {t.ACK, "ACK"}, {t.URG, "URG"},
	} {
		if flag.set {
			f = append(f, flag.name)
		}
	}
	return strings.Join(f, " ")
}
