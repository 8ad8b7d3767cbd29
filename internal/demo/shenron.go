package demo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"firestige.xyz/woolong/internal/log"
)

// Shenron serves one connection at a time: the first message gets Prompt, the second gets
// Granted and the connection is closed.
type Shenron struct {
	Addr string
	Out  io.Writer // dialogue transcript, may be nil

	logger log.Logger
}

// NewShenron returns a server for addr (DefaultAddr when empty).
func NewShenron(addr string, out io.Writer) *Shenron {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Shenron{Addr: addr, Out: out, logger: log.GetLogger().WithField("component", "shenron")}
}

// ListenAndServe listens on s.Addr and serves until ctx is done.
func (s *Shenron) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("shenron listen %s: %w", s.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. ln is closed on return.
func (s *Shenron) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer ln.Close()

	s.logger.WithField("addr", ln.Addr().String()).Info("shenron listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.WithError(err).Warn("accept error")
			continue
		}
		s.handle(conn)
	}
}

func (s *Shenron) handle(conn net.Conn) {
	defer conn.Close()
	peer := conn.RemoteAddr().String()
	logger := s.logger.WithField("peer", peer)
	logger.Debug("connected")

	granted := false
	buf := make([]byte, readBufferLen)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.WithError(err).Warn("read error")
			}
			logger.Debug("disconnected")
			return
		}
		s.say("> %s\n", buf[:n])

		reply := Prompt
		if granted {
			reply = Granted
		}
		s.say("%s\n", reply)
		if _, err := io.WriteString(conn, reply); err != nil {
			logger.WithError(err).Warn("write error")
			return
		}
		if granted {
			return
		}
		granted = true
	}
}

func (s *Shenron) say(format string, args ...interface{}) {
	if s.Out != nil {
		fmt.Fprintf(s.Out, format, args...)
	}
}
