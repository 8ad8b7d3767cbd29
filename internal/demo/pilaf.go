package demo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"
)

// Pilaf is the interactive client. It summons, prints the reply, then forwards each input
// line and prints one reply per line until /quit, /exit, end of input or a closed connection.
type Pilaf struct {
	Addr        string
	In          io.Reader
	Out         io.Writer
	DialTimeout time.Duration
}

// NewPilaf returns a client for addr (DefaultAddr when empty).
func NewPilaf(addr string, in io.Reader, out io.Writer) *Pilaf {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Pilaf{Addr: addr, In: in, Out: out, DialTimeout: 5 * time.Second}
}

// Run holds one conversation.
func (p *Pilaf) Run(ctx context.Context) error {
	d := net.Dialer{Timeout: p.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return fmt.Errorf("pilaf dial %s: %w", p.Addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	fmt.Fprintln(p.Out, "type message to send. type /quit to disconnect.")

	fmt.Fprintln(p.Out, Summon)
	if _, err := exchange(conn, Summon, p.Out); err != nil {
		return err
	}

	lines := bufio.NewScanner(p.In)
	for lines.Scan() {
		line := lines.Text()
		cmd := strings.TrimSpace(line)
		if strings.EqualFold(cmd, "/quit") || strings.EqualFold(cmd, "/exit") {
			fmt.Fprintln(p.Out, "disconnecting...")
			return nil
		}

		open, err := exchange(conn, line, p.Out)
		if err != nil {
			return err
		}
		if !open {
			fmt.Fprintln(p.Out, "server closed the connection")
			return nil
		}
	}
	return lines.Err()
}

// exchange sends msg and prints one reply. It reports false when the peer closed instead
// of replying.
func exchange(conn net.Conn, msg string, out io.Writer) (bool, error) {
	if _, err := io.WriteString(conn, msg); err != nil {
		return false, fmt.Errorf("pilaf send: %w", err)
	}
	buf := make([]byte, readBufferLen)
	n, err := conn.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, syscall.ECONNRESET) {
			return false, nil
		}
		return false, fmt.Errorf("pilaf receive: %w", err)
	}
	fmt.Fprintf(out, "> %s\n", buf[:n])
	return true, nil
}
