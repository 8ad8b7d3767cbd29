package events

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/woolong/internal/core"
	"firestige.xyz/woolong/internal/core/reflector"
)

func tcpFrame(t *testing.T, src, dst string, sport, dport uint16, payload []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 2},
		DstMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 1},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP,
		SrcIP: net.ParseIP(src).To4(), DstIP: net.ParseIP(dst).To4(),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(sport), DstPort: layers.TCPPort(dport),
		Seq: 1000, Ack: 2000, ACK: true, PSH: true, Window: 512,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)))
	return buf.Bytes()
}

func TestNewRecordCopiesAndCaps(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 300)
	res := reflector.Result{Verdict: core.VerdictTransmit, Reason: core.ReasonReflected}

	rec := NewRecord(2, time.Unix(10, 0), data, res, 64)
	assert.Equal(t, 64, rec.CapLen)
	assert.Equal(t, 300, rec.OrigLen)
	assert.Equal(t, data[:64], rec.Bytes())

	data[0] = 0x00
	assert.Equal(t, byte(0xAB), rec.Bytes()[0], "record must not alias the frame")

	rec = NewRecord(0, time.Time{}, data, res, 4096)
	assert.Equal(t, RecordDataLen, rec.CapLen)

	rec = NewRecord(0, time.Time{}, data[:10], res, 0)
	assert.Equal(t, 10, rec.CapLen)
}

func TestFlowKeyIsDirectionless(t *testing.T) {
	fwd := tcpFrame(t, "10.0.0.2", "10.0.0.1", 7777, 12345, []byte("x"))
	rev := tcpFrame(t, "10.0.0.1", "10.0.0.2", 12345, 7777, []byte("y"))

	assert.NotEmpty(t, FlowKey(fwd))
	assert.Equal(t, FlowKey(fwd), FlowKey(rev))
	assert.NotEqual(t, FlowKey(fwd), FlowKey(tcpFrame(t, "10.0.0.2", "10.0.0.1", 7777, 12346, nil)))
	assert.Empty(t, FlowKey([]byte{1, 2, 3}))
}

func TestRingDeliversAndDrops(t *testing.T) {
	var mu sync.Mutex
	var got []int
	handler := func(rec *Record) error {
		mu.Lock()
		got = append(got, rec.Worker)
		mu.Unlock()
		return nil
	}

	ring := NewRing(2, 2, handler)

	// Nothing drains yet, so the third record for partition 0 is dropped.
	assert.True(t, ring.Publish(0, &Record{Worker: 0}))
	assert.True(t, ring.Publish(2, &Record{Worker: 2}))
	assert.False(t, ring.Publish(4, &Record{Worker: 4}))
	assert.True(t, ring.Publish(1, &Record{Worker: 1}))

	stats := ring.Stats()
	assert.Equal(t, int64(3), stats.Published)
	assert.Equal(t, int64(1), stats.Dropped)
	assert.Equal(t, []int{2, 1}, stats.Queued)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ring.Run(ctx) }()

	require.Eventually(t, func() bool {
		return ring.Stats().Processed == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	assert.ElementsMatch(t, []int{0, 2, 1}, got)
	mu.Unlock()
}

func TestRingFlushesOnShutdown(t *testing.T) {
	var count int
	ring := NewRing(1, 8, func(*Record) error { count++; return nil })
	for i := 0; i < 5; i++ {
		require.True(t, ring.Publish(0, &Record{}))
	}
	ring.Close()
	assert.False(t, ring.Publish(0, &Record{}), "closed ring must reject records")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, ring.Run(ctx))
	assert.Equal(t, 5, count)
}

func TestRingKeyedPartitioning(t *testing.T) {
	ring := NewRing(4, 16)
	key := FlowKey(tcpFrame(t, "10.0.0.2", "10.0.0.1", 7777, 12345, nil))

	for i := 0; i < 3; i++ {
		require.True(t, ring.PublishKeyed(key, &Record{}))
	}

	queued := ring.Stats().Queued
	nonEmpty := 0
	for _, n := range queued {
		if n > 0 {
			nonEmpty++
			assert.Equal(t, 3, n)
		}
	}
	assert.Equal(t, 1, nonEmpty, "one flow must map to one partition")
}

func TestHexDump(t *testing.T) {
	data := make([]byte, 18)
	for i := range data {
		data[i] = byte(i)
	}
	want := "00 01 02 03 04 05 06 07 08 09 0a 0b 0c 0d 0e 0f\n10 11"
	assert.Equal(t, want, HexDump(data))
	assert.Equal(t, "", HexDump(nil))
}

func TestSummary(t *testing.T) {
	data := tcpFrame(t, "10.0.0.2", "10.0.0.1", 7777, 12345, []byte("hello"))
	assert.Equal(t, "10.0.0.2:7777 > 10.0.0.1:12345 [PSH ACK] seq=1000 ack=2000 payload=5", Summary(data))

	// record-sized prefix of a larger frame still yields the TCP line
	big := tcpFrame(t, "10.0.0.2", "10.0.0.1", 7777, 12345, bytes.Repeat([]byte{'z'}, 400))
	assert.True(t, strings.HasSuffix(Summary(big[:RecordDataLen]), "payload=400"))

	assert.Equal(t, "undecodable frame (3 bytes)", Summary([]byte{1, 2, 3}))
}

func TestPcapSink(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewPcapSink(&buf)
	require.NoError(t, err)

	data := tcpFrame(t, "10.0.0.2", "10.0.0.1", 7777, 12345, bytes.Repeat([]byte{'q'}, 200))
	ts := time.Unix(1700000000, 0).UTC()
	rec := NewRecord(0, ts, data, reflector.Result{Verdict: core.VerdictTransmit}, 0)
	require.NoError(t, sink.Handle(rec))

	r, err := pcapgo.NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeEthernet, r.LinkType())

	got, ci, err := r.ReadPacketData()
	require.NoError(t, err)
	assert.Equal(t, rec.Bytes(), got)
	assert.Equal(t, len(data), ci.Length)
	assert.Equal(t, RecordDataLen, ci.CaptureLength)
	assert.True(t, ts.Equal(ci.Timestamp))
}
