package relay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/feedrelay/internal/dedup"
	"github.com/ibeckermayer/feedrelay/internal/metrics"
	"github.com/ibeckermayer/feedrelay/internal/types"
)

type recordingDeliverer struct {
	mu      sync.Mutex
	err     error
	batches [][]types.Record
	// block, when set, is waited on before returning
	block chan struct{}
}

func (d *recordingDeliverer) Deliver(_ context.Context, records []types.Record) error {
	if d.block != nil {
		<-d.block
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, records)
	return d.err
}

func (d *recordingDeliverer) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func recs(ids ...string) []types.Record {
	out := make([]types.Record, len(ids))
	for i, id := range ids {
		out[i] = types.Record{ID: id, Text: "post " + id}
	}
	return out
}

func TestEnqueueSkipsSeenAndPending(t *testing.T) {
	seen := dedup.NewMemorySet("1")
	q := NewQueue(&recordingDeliverer{}, seen, nil, nil)

	assert.Equal(t, 2, q.Enqueue(recs("1", "2", "3")...))
	assert.Equal(t, 0, q.Enqueue(recs("2", "3")...), "already buffered")
	assert.Equal(t, 0, q.Enqueue(types.Record{}), "empty id")
	assert.Equal(t, 2, q.Len())
}

func TestFlushSuccessMarksSeen(t *testing.T) {
	ctx := context.Background()
	d := &recordingDeliverer{}
	seen := dedup.NewMemorySet()
	m := metrics.New()
	q := NewQueue(d, seen, m, nil)

	q.Enqueue(recs("1", "2")...)
	require.NoError(t, q.Flush(ctx))

	require.Len(t, d.batches, 1)
	assert.Equal(t, []string{"1", "2"}, types.IDs(d.batches[0]))
	assert.True(t, seen.Contains("1"))
	assert.True(t, seen.Contains("2"))
	assert.Zero(t, q.Len())
	assert.Zero(t, q.InFlight())

	assert.Equal(t, 0, q.Enqueue(recs("1", "2")...), "delivered ids are never re-enqueued")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsDelivered))
}

func TestFlushEmptyIsNoop(t *testing.T) {
	d := &recordingDeliverer{}
	m := metrics.New()
	q := NewQueue(d, dedup.NewMemorySet(), m, nil)

	require.NoError(t, q.Flush(context.Background()))
	assert.Empty(t, d.batches)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlushesTotal.WithLabelValues(metrics.ResultEmpty)))
}

func TestFlushFailureRequeuesAtFront(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")
	d := &recordingDeliverer{err: boom}
	seen := dedup.NewMemorySet()
	q := NewQueue(d, seen, nil, nil)

	q.Enqueue(recs("1", "2", "3")...)
	err := q.Flush(ctx)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, q.Len())
	assert.Zero(t, seen.Len())

	q.Enqueue(recs("4")...)
	d.setErr(nil)
	require.NoError(t, q.Flush(ctx))

	require.Len(t, d.batches, 2)
	assert.Equal(t, []string{"1", "2", "3", "4"}, types.IDs(d.batches[1]))
	assert.Equal(t, 4, seen.Len())
}

func TestFlushFailureKeepsIDsPending(t *testing.T) {
	q := NewQueue(&recordingDeliverer{err: errors.New("down")}, dedup.NewMemorySet(), nil, nil)

	q.Enqueue(recs("1")...)
	require.Error(t, q.Flush(context.Background()))
	assert.Equal(t, 0, q.Enqueue(recs("1")...), "requeued id is still pending")
	assert.Equal(t, 1, q.Len())
}

func TestEnqueueDuringFlush(t *testing.T) {
	d := &recordingDeliverer{block: make(chan struct{})}
	q := NewQueue(d, dedup.NewMemorySet(), nil, nil)
	q.Enqueue(recs("1", "2")...)

	done := make(chan error)
	go func() { done <- q.Flush(context.Background()) }()

	require.Eventually(t, func() bool { return q.InFlight() == 2 }, timeout, tick)
	assert.Equal(t, 0, q.Enqueue(recs("1")...), "in-flight id is pending")
	assert.Equal(t, 1, q.Enqueue(recs("3")...))
	assert.Equal(t, 1, q.Len())

	close(d.block)
	require.NoError(t, <-done)
	assert.Zero(t, q.InFlight())
	assert.Equal(t, 1, q.Len())
}

// gatedDeliverer blocks and fails batches holding gatedID; others succeed.
type gatedDeliverer struct {
	gatedID string
	gate    chan struct{}
	entered chan struct{}
	err     error

	mu        sync.Mutex
	delivered [][]string
}

func (d *gatedDeliverer) Deliver(_ context.Context, records []types.Record) error {
	ids := types.IDs(records)
	for _, id := range ids {
		if id == d.gatedID {
			close(d.entered)
			<-d.gate
			return d.err
		}
	}
	d.mu.Lock()
	d.delivered = append(d.delivered, ids)
	d.mu.Unlock()
	return nil
}

func bufferedIDs(q *Queue) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return types.IDs(q.buffer)
}

func TestOverlappingFlushes(t *testing.T) {
	ctx := context.Background()
	d := &gatedDeliverer{
		gatedID: "1",
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
		err:     errors.New("timeout"),
	}
	seen := dedup.NewMemorySet()
	q := NewQueue(d, seen, nil, nil)

	q.Enqueue(recs("1", "2")...)
	slow := make(chan error)
	go func() { slow <- q.Flush(ctx) }()
	<-d.entered

	assert.Equal(t, 1, q.Enqueue(recs("3")...))
	require.NoError(t, q.Flush(ctx), "second flush is not blocked by the first")
	assert.Equal(t, [][]string{{"3"}}, d.delivered)
	assert.Equal(t, 2, q.InFlight())

	close(d.gate)
	require.Error(t, <-slow)

	assert.Equal(t, []string{"1", "2"}, bufferedIDs(q))
	assert.Zero(t, q.InFlight())
	assert.Equal(t, 1, seen.Len())
	assert.True(t, seen.Contains("3"))
	assert.Equal(t, 0, q.Enqueue(recs("1", "2")...), "requeued ids stay pending")
}

func TestDoubleDeliveryKeepsSetConsistent(t *testing.T) {
	ctx := context.Background()
	seen := dedup.NewMemorySet()
	a := NewQueue(&recordingDeliverer{}, seen, nil, nil)
	b := NewQueue(&recordingDeliverer{}, seen, nil, nil)

	a.Enqueue(recs("7")...)
	b.Enqueue(recs("7")...)
	require.NoError(t, a.Flush(ctx))
	require.NoError(t, b.Flush(ctx))

	assert.Equal(t, 1, seen.Len())
	assert.True(t, seen.Contains("7"))
}
