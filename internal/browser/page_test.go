package browser

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/feedrelay/internal/scraper"
)

const snapshotHTML = `<html><body><div data-testid="primaryColumn">
<article><a href="/alice/status/1">a</a></article>
<article><a href="/bob/status/2">b</a></article>
</div></body></html>`

func fakePage(t *testing.T, adapter string) *Page {
	t.Helper()
	p := newPage(adapter, nil)
	p.snapshot = func(context.Context) (string, error) { return snapshotHTML, nil }
	t.Cleanup(p.Close)
	return p
}

func TestListItemsParsesSnapshot(t *testing.T) {
	for _, adapter := range []string{"css", "xpath"} {
		t.Run(adapter, func(t *testing.T) {
			items, err := fakePage(t, adapter).ListItems(context.Background())
			require.NoError(t, err)
			require.Len(t, items, 2)

			href, err := items[1].Lookup(scraper.FieldPermalink)
			require.NoError(t, err)
			assert.Equal(t, "https://x.com/bob/status/2", href)
		})
	}
}

func TestListItemsSnapshotError(t *testing.T) {
	p := fakePage(t, "css")
	p.snapshot = func(context.Context) (string, error) { return "", errors.New("target closed") }

	_, err := p.ListItems(context.Background())
	assert.ErrorContains(t, err, "target closed")
}

func TestScrollEventsReachListeners(t *testing.T) {
	p := fakePage(t, "css")
	var calls atomic.Int32
	remove := p.AddScrollListener(func() { calls.Add(1) })

	p.notify()
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	remove()
	p.notify()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestScrollBurstsCoalesce(t *testing.T) {
	p := fakePage(t, "css")
	release := make(chan struct{})
	var calls atomic.Int32
	p.AddScrollListener(func() {
		calls.Add(1)
		<-release
	})

	p.notify()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// The listener is busy; these collapse into one pending event.
	for i := 0; i < 10; i++ {
		p.notify()
	}
	close(release)

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestListenerRemovedDuringDispatchIsNotCalled(t *testing.T) {
	p := fakePage(t, "css")
	entered := make(chan struct{})
	release := make(chan struct{})
	p.AddScrollListener(func() {
		close(entered)
		<-release
	})
	var calls atomic.Int32
	remove := p.AddScrollListener(func() { calls.Add(1) })
	finished := make(chan struct{})
	p.AddScrollListener(func() { close(finished) })

	p.notify()
	<-entered
	remove()
	close(release)

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("dispatch round never finished")
	}
	assert.Zero(t, calls.Load())
}

func TestCloseIsIdempotent(t *testing.T) {
	p := newPage("css", nil)
	p.Close()
	p.Close()

	select {
	case <-p.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestOptionsUserDataDir(t *testing.T) {
	base := len(Options(true, ""))
	assert.Equal(t, base+1, len(Options(true, "/tmp/profile")))
	assert.Equal(t, base-1, len(Options(false, "")), "headful drops disable-gpu")
}
