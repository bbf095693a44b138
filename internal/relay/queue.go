package relay

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ibeckermayer/feedrelay/internal/dedup"
	"github.com/ibeckermayer/feedrelay/internal/metrics"
	"github.com/ibeckermayer/feedrelay/internal/types"
)

// Queue buffers records between scans and delivers them in batches.
//
// A flush swaps the buffer for an empty one under the lock and delivers the
// snapshot without holding it, so scans keep enqueueing during a slow
// delivery. A failed batch goes back to the front of the buffer whole; a
// delivered batch's ids are added to the seen set.
type Queue struct {
	mu       sync.Mutex
	buffer   []types.Record
	pending  map[string]struct{} // ids buffered or in flight
	inFlight int

	deliverer Deliverer
	seen      dedup.Set
	metrics   *metrics.Metrics
	log       *zap.Logger
}

// NewQueue creates an empty queue. m and log may be nil.
func NewQueue(d Deliverer, seen dedup.Set, m *metrics.Metrics, log *zap.Logger) *Queue {
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		pending:   make(map[string]struct{}),
		deliverer: d,
		seen:      seen,
		metrics:   m,
		log:       log,
	}
}

// Enqueue appends records not yet delivered and not already pending.
// Returns the number accepted.
func (q *Queue) Enqueue(records ...types.Record) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	accepted := 0
	for _, r := range records {
		if r.ID == "" || q.seen.Contains(r.ID) {
			continue
		}
		if _, ok := q.pending[r.ID]; ok {
			continue
		}
		q.pending[r.ID] = struct{}{}
		q.buffer = append(q.buffer, r)
		accepted++
	}

	q.metrics.RecordsEnqueued.Add(float64(accepted))
	q.metrics.QueueBuffered.Set(float64(len(q.buffer)))
	return accepted
}

// Flush delivers everything buffered as one batch. An empty buffer is a no-op.
// On failure the batch is requeued and the delivery error returned.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	batch := q.buffer
	q.buffer = nil
	q.inFlight += len(batch)
	q.metrics.QueueBuffered.Set(0)
	q.mu.Unlock()

	if len(batch) == 0 {
		q.metrics.FlushesTotal.WithLabelValues(metrics.ResultEmpty).Inc()
		return nil
	}

	err := q.deliverer.Deliver(ctx, batch)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.inFlight -= len(batch)

	if err != nil {
		requeued := make([]types.Record, 0, len(batch)+len(q.buffer))
		requeued = append(requeued, batch...)
		q.buffer = append(requeued, q.buffer...)
		q.metrics.RecordsRequeued.Add(float64(len(batch)))
		q.metrics.FlushesTotal.WithLabelValues(metrics.ResultFailure).Inc()
		q.metrics.QueueBuffered.Set(float64(len(q.buffer)))
		q.log.Warn("delivery failed, batch requeued",
			zap.Int("records", len(batch)),
			zap.Int("buffered", len(q.buffer)),
			zap.Error(err))
		return err
	}

	// Seen before un-pending, so an id is never absent from both.
	for _, r := range batch {
		q.seen.Add(r.ID)
		delete(q.pending, r.ID)
	}
	q.metrics.RecordsDelivered.Add(float64(len(batch)))
	q.metrics.FlushesTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	q.log.Info("batch delivered", zap.Int("records", len(batch)))
	return nil
}

// Len returns the number of buffered records.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buffer)
}

// InFlight returns the number of records currently being delivered.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}
