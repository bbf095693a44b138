package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ibeckermayer/feedrelay/internal/scraper"
	"github.com/ibeckermayer/feedrelay/internal/settings"
	"github.com/ibeckermayer/feedrelay/internal/types"
)

const feed = `<html><body>
<article><div data-testid="User-Name"><span>Alice</span></div><a href="/alice/status/1">x</a></article>
<article><div data-testid="User-Name"><span>Bob</span></div><a href="/bob/status/2">x</a></article>
</body></html>`

type fakeSource struct {
	mu        sync.Mutex
	listeners map[int]func()
	next      int
}

func (s *fakeSource) AddScrollListener(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[int]func())
	}
	id := s.next
	s.next++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *fakeSource) scroll() {
	s.mu.Lock()
	var fns []func()
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *fakeSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

type fakeDeliverer struct {
	mu      sync.Mutex
	err     error
	batches [][]types.Record
}

func (d *fakeDeliverer) Deliver(_ context.Context, records []types.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, records)
	return d.err
}

func (d *fakeDeliverer) delivered() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return 0
	}
	n := 0
	for _, b := range d.batches {
		n += len(b)
	}
	return n
}

type fixture struct {
	session   *Session
	source    *fakeSource
	deliverer *fakeDeliverer
	settings  *settings.FileStore
}

func newFixture(t *testing.T, autoSave bool) *fixture {
	t.Helper()
	page, err := scraper.NewDocument(feed, "")
	require.NoError(t, err)

	store := settings.NewFileStore(filepath.Join(t.TempDir(), "settings.toml"))
	if autoSave {
		require.NoError(t, settings.SetAutoSave(context.Background(), store, true))
	}

	f := &fixture{source: &fakeSource{}, deliverer: &fakeDeliverer{}, settings: store}
	f.session, err = New(Deps{
		Page:          page,
		Source:        f.source,
		Deliverer:     f.deliverer,
		Settings:      store,
		Log:           zaptest.NewLogger(t),
		FlushInterval: time.Second,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.session.Start(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, f.session.Stop(context.Background()))
	})
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestStartDisabledRegistersNoListener(t *testing.T) {
	f := newFixture(t, false)
	f.start(t)

	assert.Zero(t, f.source.count())
	st := f.session.Status()
	assert.True(t, st.Running)
	assert.False(t, st.Enabled)
}

func TestStartEnabledScansOnScroll(t *testing.T) {
	f := newFixture(t, true)
	f.start(t)

	require.Equal(t, 1, f.source.count())
	f.source.scroll()
	assert.Equal(t, 2, f.session.Status().Buffered)

	assert.Eventually(t, func() bool { return f.deliverer.delivered() == 2 }, 3*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool { return f.session.Status().Seen == 2 }, time.Second, 10*time.Millisecond)
}

func TestToggleOffRemovesListenerButKeepsFlushing(t *testing.T) {
	f := newFixture(t, true)
	f.start(t)
	ctx := context.Background()

	f.source.scroll()
	require.Equal(t, 2, f.session.Status().Buffered)

	resp := f.session.HandleMessage(ctx, Message{Action: ActionToggleAutoSave, Enabled: false})
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Zero(t, f.source.count())

	enabled, err := settings.AutoSaveEnabled(ctx, f.settings)
	require.NoError(t, err)
	assert.False(t, enabled)

	assert.Eventually(t, func() bool { return f.deliverer.delivered() == 2 }, 3*time.Second, 20*time.Millisecond)
}

func TestToggleOnTwiceRegistersOnce(t *testing.T) {
	f := newFixture(t, false)
	f.start(t)
	ctx := context.Background()

	require.NoError(t, f.session.SetEnabled(ctx, true))
	require.NoError(t, f.session.SetEnabled(ctx, true))
	assert.Equal(t, 1, f.source.count())
	assert.True(t, f.session.Status().Enabled)
}

func TestHandleMessageUnknownAction(t *testing.T) {
	f := newFixture(t, false)
	f.start(t)

	resp := f.session.HandleMessage(context.Background(), Message{Action: "somethingElse", Enabled: true})
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Zero(t, f.source.count())
}

func TestFailedFlushRequeues(t *testing.T) {
	f := newFixture(t, false)
	f.deliverer.err = errors.New("endpoint down")
	ctx := context.Background()

	_, err := f.session.Scan(ctx)
	require.NoError(t, err)
	require.Error(t, f.session.Flush(ctx))

	st := f.session.Status()
	assert.Equal(t, 2, st.Buffered)
	assert.Zero(t, st.Seen)
}

func TestStopRemovesListener(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.session.Start(context.Background()))
	assert.Error(t, f.session.Start(context.Background()))

	require.NoError(t, f.session.Stop(context.Background()))
	assert.Zero(t, f.source.count())
	assert.False(t, f.session.Status().Running)
	require.NoError(t, f.session.Stop(context.Background()), "stopping twice is a no-op")
}
