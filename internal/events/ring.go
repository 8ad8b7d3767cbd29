package events

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/serialx/hashring"
	"golang.org/x/sync/errgroup"

	"firestige.xyz/woolong/internal/log"
	"firestige.xyz/woolong/internal/metrics"
)

// Handler consumes one record. Handlers run on drainer goroutines, never on capture workers.
type Handler func(rec *Record) error

// Stats 统计信息
type Stats struct {
	Published      int64
	Dropped        int64
	Processed      int64
	PartitionCount int
	Queued         []int
}

// partition 分区结构
type partition struct {
	id      int
	queue   chan *Record
	dropped prometheus.Counter
}

// Ring is a set of bounded queues, one per worker. Publish never blocks: a full queue
// drops the record and counts it.
type Ring struct {
	partitions []*partition
	nodes      []string           // 分区节点标识
	hashRing   *hashring.HashRing // 一致性哈希环
	handlers   []Handler
	closed     int32

	published int64
	dropped   int64
	processed int64
}

// NewRing creates partitionCount queues of queueSize records each.
func NewRing(partitionCount, queueSize int, handlers ...Handler) *Ring {
	if partitionCount <= 0 {
		partitionCount = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}

	r := &Ring{
		partitions: make([]*partition, partitionCount),
		nodes:      make([]string, partitionCount),
		handlers:   handlers,
	}
	for i := 0; i < partitionCount; i++ {
		label := strconv.Itoa(i)
		r.nodes[i] = "partition-" + label
		r.partitions[i] = &partition{
			id:      i,
			queue:   make(chan *Record, queueSize),
			dropped: metrics.EventsDroppedTotal.WithLabelValues(label),
		}
	}
	r.hashRing = hashring.New(r.nodes)
	return r
}

// Publish enqueues rec on the partition owned by worker. It reports whether rec was queued.
func (r *Ring) Publish(worker int, rec *Record) bool {
	if worker < 0 {
		worker = -worker
	}
	return r.enqueue(r.partitions[worker%len(r.partitions)], rec)
}

// PublishKeyed spreads records from publishers without a partition of their own (offline
// replay) by flow key on the consistent hash ring.
func (r *Ring) PublishKeyed(key string, rec *Record) bool {
	return r.enqueue(r.partitions[r.partitionID(key)], rec)
}

func (r *Ring) enqueue(p *partition, rec *Record) bool {
	if atomic.LoadInt32(&r.closed) == 1 {
		return false
	}
	select {
	case p.queue <- rec:
		atomic.AddInt64(&r.published, 1)
		return true
	default:
		atomic.AddInt64(&r.dropped, 1)
		p.dropped.Inc()
		return false
	}
}

// partitionID 使用一致性哈希算法计算分区ID
func (r *Ring) partitionID(key string) int {
	node, ok := r.hashRing.GetNode(key)
	if !ok {
		return 0
	}
	for i, n := range r.nodes {
		if n == node {
			return i
		}
	}
	return 0
}

// Run drains every partition until ctx is done, then flushes what is still queued.
func (r *Ring) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range r.partitions {
		g.Go(func() error {
			r.drain(ctx, p)
			return nil
		})
	}
	return g.Wait()
}

func (r *Ring) drain(ctx context.Context, p *partition) {
	logger := log.GetLogger().WithField("partition", p.id)
	logger.Debug("event partition started")
	defer logger.Debug("event partition stopped")

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case rec := <-p.queue:
					r.handle(logger, rec)
				default:
					return
				}
			}
		case rec := <-p.queue:
			r.handle(logger, rec)
		}
	}
}

func (r *Ring) handle(logger log.Logger, rec *Record) {
	for _, h := range r.handlers {
		if err := h(rec); err != nil {
			logger.WithError(err).Warn("event handler failed")
			return
		}
	}
	atomic.AddInt64(&r.processed, 1)
}

// Close rejects further records. Queued records are still delivered by Run.
func (r *Ring) Close() {
	atomic.StoreInt32(&r.closed, 1)
}

// Stats 获取统计信息
func (r *Ring) Stats() Stats {
	s := Stats{
		Published:      atomic.LoadInt64(&r.published),
		Dropped:        atomic.LoadInt64(&r.dropped),
		Processed:      atomic.LoadInt64(&r.processed),
		PartitionCount: len(r.partitions),
		Queued:         make([]int, len(r.partitions)),
	}
	for i, p := range r.partitions {
		s.Queued[i] = len(p.queue)
	}
	return s
}
