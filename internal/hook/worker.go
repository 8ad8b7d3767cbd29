// Package hook binds an ingress source to the reflector engine: each worker reads frames,
// acts on the verdict and reports what it saw to the event stream.
package hook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"firestige.xyz/woolong/internal/core"
	"firestige.xyz/woolong/internal/core/reflector"
	"firestige.xyz/woolong/internal/events"
	"firestige.xyz/woolong/internal/log"
	"firestige.xyz/woolong/internal/metrics"
	"firestige.xyz/woolong/internal/source"
)

// Which verdicts produce event records.
const (
	VerdictsAll      = "all"
	VerdictsTransmit = "transmit"
	VerdictsAbort    = "abort"
)

// Publisher accepts event records without blocking. *events.Ring satisfies it.
type Publisher interface {
	Publish(worker int, rec *events.Record) bool
	PublishKeyed(key string, rec *events.Record) bool
}

// dropCounter is implemented by sources that can report kernel-side drops.
type dropCounter interface {
	Drops() (uint, error)
}

// Config contains worker configuration.
type Config struct {
	ID        int
	Source    source.Source
	TX        source.Transmitter // nil discards transmitted frames
	Engine    *reflector.Engine
	Events    Publisher // nil disables event records
	Verdicts  string
	RecordLen int
	Keyed     bool // publish by flow key instead of by worker id
}

// Stats contains per-worker counters.
type Stats struct {
	Received    uint64
	Passed      uint64
	Transmitted uint64
	Aborted     uint64
	TxErrors    uint64
	Published   uint64
	Unpublished uint64
}

// Worker runs the read-decide-act loop for one source. It is not safe for concurrent Run.
type Worker struct {
	id        int
	src       source.Source
	tx        source.Transmitter
	engine    *reflector.Engine
	events    Publisher
	verdicts  string
	recordLen int
	keyed     bool
	logger    log.Logger

	received    atomic.Uint64
	passed      atomic.Uint64
	transmitted atomic.Uint64
	aborted     atomic.Uint64
	txErrors    atomic.Uint64
	published   atomic.Uint64
	unpublished atomic.Uint64

	verdictCounters [3]prometheus.Counter
	txErrorCounter  prometheus.Counter
	dropCounter     prometheus.Counter
}

// New creates a worker.
func New(cfg Config) (*Worker, error) {
	if cfg.Source == nil || cfg.Engine == nil {
		return nil, fmt.Errorf("%w: worker %d needs a source and an engine", core.ErrConfigInvalid, cfg.ID)
	}
	switch cfg.Verdicts {
	case "":
		cfg.Verdicts = VerdictsTransmit
	case VerdictsAll, VerdictsTransmit, VerdictsAbort:
	default:
		return nil, fmt.Errorf("%w: unknown verdict filter %q", core.ErrConfigInvalid, cfg.Verdicts)
	}

	id := strconv.Itoa(cfg.ID)
	w := &Worker{
		id:             cfg.ID,
		src:            cfg.Source,
		tx:             cfg.TX,
		engine:         cfg.Engine,
		events:         cfg.Events,
		verdicts:       cfg.Verdicts,
		recordLen:      cfg.RecordLen,
		keyed:          cfg.Keyed,
		logger:         log.GetLogger().WithField("worker", cfg.ID),
		txErrorCounter: metrics.TxErrorsTotal.WithLabelValues(id),
		dropCounter:    metrics.CaptureDropsTotal.WithLabelValues(id),
	}
	for _, v := range []core.Verdict{core.VerdictPass, core.VerdictTransmit, core.VerdictAbort} {
		w.verdictCounters[v] = metrics.PacketsTotal.WithLabelValues(id, v.String())
	}
	return w, nil
}

// Run reads frames until ctx is cancelled or a finite source is drained. A source that
// fails for any other reason ends the worker with that error.
func (w *Worker) Run(ctx context.Context) error {
	metrics.WorkersRunning.Inc()
	defer metrics.WorkersRunning.Dec()

	w.logger.Debug("worker started")
	defer w.logger.Debug("worker stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		pkt, err := w.src.ReadPacket()
		switch {
		case err == nil:
			w.Handle(pkt)
		case errors.Is(err, source.ErrTimeout):
			w.collectDrops()
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, core.ErrSourceClosed) && ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("worker %d read: %w", w.id, err)
		}
	}
}

// Handle runs one frame through the engine and acts on the verdict. pkt.Data may be
// rewritten in place.
func (w *Worker) Handle(pkt core.RawPacket) reflector.Result {
	w.received.Add(1)

	start := time.Now()
	res := w.engine.Process(pkt.Data)
	metrics.ProcessLatencySeconds.Observe(time.Since(start).Seconds())

	w.verdictCounters[res.Verdict].Inc()
	metrics.ReasonsTotal.WithLabelValues(string(res.Reason)).Inc()

	switch res.Verdict {
	case core.VerdictPass:
		w.passed.Add(1)
	case core.VerdictTransmit:
		w.transmitted.Add(1)
		w.transmit(pkt.Data)
	case core.VerdictAbort:
		w.aborted.Add(1)
		w.logger.WithField("reason", res.Reason).Debug("frame aborted")
	}

	w.publish(pkt, res)
	return res
}

func (w *Worker) transmit(data []byte) {
	if w.tx == nil {
		return
	}
	if err := w.tx.WritePacket(data); err != nil {
		w.txErrors.Add(1)
		w.txErrorCounter.Inc()
		w.logger.WithError(err).Warn("write reflected frame failed")
	}
}

func (w *Worker) wants(v core.Verdict) bool {
	switch w.verdicts {
	case VerdictsAll:
		return true
	case VerdictsAbort:
		return v == core.VerdictAbort
	default:
		return v == core.VerdictTransmit
	}
}

func (w *Worker) publish(pkt core.RawPacket, res reflector.Result) {
	if w.events == nil || !w.wants(res.Verdict) {
		return
	}
	rec := events.NewRecord(w.id, pkt.Timestamp, pkt.Data, res, w.recordLen)
	if pkt.OrigLen > 0 {
		rec.OrigLen = int(pkt.OrigLen)
	}

	var ok bool
	if w.keyed {
		ok = w.events.PublishKeyed(events.FlowKey(pkt.Data), rec)
	} else {
		ok = w.events.Publish(w.id, rec)
	}
	if ok {
		w.published.Add(1)
	} else {
		w.unpublished.Add(1)
	}
}

func (w *Worker) collectDrops() {
	dc, ok := w.src.(dropCounter)
	if !ok {
		return
	}
	n, err := dc.Drops()
	if err != nil {
		w.logger.WithError(err).Debug("read socket statistics failed")
		return
	}
	if n > 0 {
		w.dropCounter.Add(float64(n))
	}
}

// Stats returns a snapshot of the worker's counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Received:    w.received.Load(),
		Passed:      w.passed.Load(),
		Transmitted: w.transmitted.Load(),
		Aborted:     w.aborted.Load(),
		TxErrors:    w.txErrors.Load(),
		Published:   w.published.Load(),
		Unpublished: w.unpublished.Load(),
	}
}
