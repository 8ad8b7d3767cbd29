package demo

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer guards a transcript written by the server goroutine.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func startShenron(t *testing.T) (string, *syncBuffer) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	transcript := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewShenron("", transcript).Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return ln.Addr().String(), transcript
}

func TestConversation(t *testing.T) {
	addr, transcript := startShenron(t)

	var out bytes.Buffer
	p := NewPilaf(addr, strings.NewReader("ギャルのパンティ\n/quit\n"), &out)
	require.NoError(t, p.Run(context.Background()))

	got := out.String()
	assert.Contains(t, got, Summon+"\n")
	assert.Contains(t, got, "> "+Prompt+"\n")
	assert.Contains(t, got, "> "+Granted+"\n")
	assert.Contains(t, got, "disconnecting...")

	assert.Contains(t, transcript.String(), "> "+Summon)
}

func TestServerHangsUpAfterWish(t *testing.T) {
	addr, _ := startShenron(t)

	var out bytes.Buffer
	p := NewPilaf(addr, strings.NewReader("first\nsecond\nthird\n"), &out)
	require.NoError(t, p.Run(context.Background()))
	assert.Contains(t, out.String(), "server closed the connection")
	assert.NotContains(t, out.String(), "disconnecting...")
}

func TestServerServesSequentially(t *testing.T) {
	addr, _ := startShenron(t)

	for i := 0; i < 2; i++ {
		var out bytes.Buffer
		p := NewPilaf(addr, strings.NewReader("/exit\n"), &out)
		require.NoError(t, p.Run(context.Background()))
		assert.Contains(t, out.String(), "> "+Prompt)
	}
}

func TestPilafDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	err = NewPilaf(addr, strings.NewReader(""), &bytes.Buffer{}).Run(context.Background())
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, "127.0.0.1:7777", DefaultAddr)
	assert.Equal(t, DefaultAddr, NewShenron("", nil).Addr)
	assert.Equal(t, DefaultAddr, NewPilaf("", nil, nil).Addr)
	assert.Len(t, []byte(Prompt), 69)
}
