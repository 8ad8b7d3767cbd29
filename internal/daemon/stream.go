package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"firestige.xyz/woolong/internal/config"
	"firestige.xyz/woolong/internal/events"
	"firestige.xyz/woolong/internal/hook"
	logpkg "firestige.xyz/woolong/internal/log"
)

// eventStream owns the ring and the files its handlers write to. A nil stream means events
// are disabled; every method is safe on nil.
type eventStream struct {
	ring  *events.Ring
	sinks []io.Closer
}

func newEventStream(cfg config.EventsConfig, workers int) (*eventStream, error) {
	s := &eventStream{}

	dumper := events.NewHexDumper(logpkg.GetLogger().WithField("component", "events"), cfg.Hexdump)
	handlers := []events.Handler{dumper.Handle}

	if cfg.PcapFile != "" {
		f, err := os.Create(cfg.PcapFile)
		if err != nil {
			return nil, fmt.Errorf("create event pcap: %w", err)
		}
		s.sinks = append(s.sinks, f)
		sink, err := events.NewPcapSink(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		handlers = append(handlers, sink.Handle)
	}

	partitions := cfg.Partitions
	if partitions <= 0 {
		partitions = workers
	}
	s.ring = events.NewRing(partitions, cfg.QueueSize, handlers...)
	return s, nil
}

func (s *eventStream) publisher() hook.Publisher {
	if s == nil {
		return nil
	}
	return s.ring
}

// run drains the ring until ctx is done and the queues are flushed.
func (s *eventStream) run(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.ring.Run(ctx)
}

func (s *eventStream) close() {
	if s != nil {
		s.ring.Close()
	}
}

func (s *eventStream) closeSinks() error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, c := range s.sinks {
		errs = append(errs, c.Close())
	}
	s.sinks = nil
	return errors.Join(errs...)
}
