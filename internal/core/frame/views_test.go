package frame

import (
	"testing"
)

func testFrame() []byte {
	return []byte{
		// Ethernet
		0x02, 0x00, 0x00, 0x00, 0x00, 0x01, // Dst MAC
		0x02, 0x00, 0x00, 0x00, 0x00, 0x02, // Src MAC
		0x08, 0x00, // IPv4
		// IPv4
		0x45, 0x00, 0x00, 0x2C, // Version 4, IHL 5, Total Length 44
		0x00, 0x01, 0x40, 0x00, // ID 1, DF
		0x40, 0x06, 0x00, 0x00, // TTL 64, TCP, checksum
		10, 0, 0, 1, // Src IP
		10, 0, 0, 2, // Dst IP
		// TCP
		0x1E, 0x61, // Src Port: 7777
		0x30, 0x39, // Dst Port: 12345
		0x00, 0x00, 0x03, 0xE8, // Seq: 1000
		0x00, 0x00, 0x07, 0xD0, // Ack: 2000
		0x50, 0x18, // Data offset 5, ACK+PSH
		0x20, 0x00, // Window
		0x00, 0x00, // Checksum
		0x00, 0x00, // Urgent pointer
		'a', 'b', 'c', 'd', // Payload
	}
}

func TestEthernetView(t *testing.T) {
	buf := NewBuffer(testFrame())
	eth, err := EthernetAt(buf, 0)
	if err != nil {
		t.Fatalf("EthernetAt failed: %v", err)
	}

	if eth.EtherType() != EtherTypeIPv4 {
		t.Errorf("Expected EtherType 0x0800, got %#x", eth.EtherType())
	}

	src, dst := eth.Src(), eth.Dst()
	eth.SwapAddrs()
	if eth.Src() != dst || eth.Dst() != src {
		t.Errorf("SwapAddrs: src=%v dst=%v", eth.Src(), eth.Dst())
	}

	if _, err := EthernetAt(NewBuffer(make([]byte, 13)), 0); err == nil {
		t.Error("Expected error for 13-byte frame")
	}
}

func TestIPv4View(t *testing.T) {
	buf := NewBuffer(testFrame())
	ip, err := IPv4At(buf, EthernetLen)
	if err != nil {
		t.Fatalf("IPv4At failed: %v", err)
	}

	if ip.Version() != 4 {
		t.Errorf("Expected version 4, got %d", ip.Version())
	}
	if ip.HeaderLen() != 20 {
		t.Errorf("Expected header length 20, got %d", ip.HeaderLen())
	}
	if ip.TotalLen() != 44 {
		t.Errorf("Expected total length 44, got %d", ip.TotalLen())
	}
	if ip.Protocol() != ProtocolTCP {
		t.Errorf("Expected protocol 6, got %d", ip.Protocol())
	}
	if ip.IsFragment() {
		t.Error("DF-only datagram reported as fragment")
	}

	ip.SwapAddrs()
	if ip.Src() != [4]byte{10, 0, 0, 2} || ip.Dst() != [4]byte{10, 0, 0, 1} {
		t.Errorf("SwapAddrs: src=%v dst=%v", ip.Src(), ip.Dst())
	}

	hdr, err := ip.Header(buf)
	if err != nil || hdr.Len() != 20 {
		t.Errorf("Header: len=%d err=%v", hdr.Len(), err)
	}
}

func TestIPv4HeaderRejectsBadIHL(t *testing.T) {
	for _, ihl := range []byte{0, 1, 4} {
		data := testFrame()
		data[EthernetLen] = 0x40 | ihl
		buf := NewBuffer(data)
		ip, _ := IPv4At(buf, EthernetLen)
		if _, err := ip.Header(buf); !IsBadHeaderLen(err) {
			t.Errorf("IHL %d: expected bad header length, got %v", ihl, err)
		}
	}
}

func TestTCPView(t *testing.T) {
	buf := NewBuffer(testFrame())
	tcp, err := TCPAt(buf, EthernetLen+IPv4MinLen)
	if err != nil {
		t.Fatalf("TCPAt failed: %v", err)
	}

	if tcp.SrcPort() != 7777 || tcp.DstPort() != 12345 {
		t.Errorf("Ports: %d -> %d", tcp.SrcPort(), tcp.DstPort())
	}
	if tcp.Seq() != 1000 || tcp.Ack() != 2000 {
		t.Errorf("Seq/Ack: %d/%d", tcp.Seq(), tcp.Ack())
	}
	if tcp.HeaderLen() != 20 {
		t.Errorf("Expected header length 20, got %d", tcp.HeaderLen())
	}
	if !tcp.Has(FlagACK|FlagPSH) || tcp.Has(FlagSYN) {
		t.Errorf("Unexpected flags %#x", tcp.Flags())
	}

	tcp.SwapPorts()
	tcp.SetSeq(1)
	tcp.SetAck(2)
	tcp.SetFlags(FlagACK)
	if tcp.SrcPort() != 12345 || tcp.DstPort() != 7777 || tcp.Seq() != 1 || tcp.Ack() != 2 || tcp.Flags() != FlagACK {
		t.Errorf("Mutations not visible: %d %d %d %d %#x", tcp.SrcPort(), tcp.DstPort(), tcp.Seq(), tcp.Ack(), tcp.Flags())
	}
	if tcp.Control().Len() != 12 {
		t.Errorf("Expected 12-byte control region, got %d", tcp.Control().Len())
	}

	if _, err := TCPAt(NewBuffer(testFrame()[:50]), EthernetLen+IPv4MinLen); err == nil {
		t.Error("Expected error for truncated TCP header")
	}
}
