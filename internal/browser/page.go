package browser

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ibeckermayer/feedrelay/internal/scraper"
)

// scrollBinding is the page-side function the scroll hook calls.
const scrollBinding = "feedrelayScroll"

// scrollHookJS forwards every window scroll event to the Go side.
const scrollHookJS = `(() => {
	window.addEventListener("scroll", () => {
		if (typeof window.` + scrollBinding + ` === "function") {
			window.` + scrollBinding + `(String(window.scrollY));
		}
	}, { passive: true });
})();`

// OpenOptions configures Open.
type OpenOptions struct {
	FeedURL     string
	Headless    bool
	UserDataDir string
	Adapter     string // scraper adapter: "css" or "xpath"
	LoadTimeout time.Duration
	Log         *zap.Logger
}

// Page is one open feed tab. It lists the rendered items from a DOM snapshot
// and reports the page's scroll events.
type Page struct {
	ctx     context.Context // chromedp tab context
	cancel  context.CancelFunc
	adapter string
	baseURL string
	log     *zap.Logger

	// snapshot returns the current document's outer HTML
	snapshot func(ctx context.Context) (string, error)

	mu        sync.Mutex
	listeners map[int]func()
	nextID    int

	events    chan struct{} // one slot: bursts collapse into one pending scan
	done      chan struct{}
	closeOnce sync.Once
}

func newPage(adapter string, log *zap.Logger) *Page {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Page{
		adapter:   adapter,
		baseURL:   scraper.DefaultBaseURL,
		log:       log,
		listeners: make(map[int]func()),
		events:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go p.dispatch()
	return p
}

// Open starts Chrome, installs the scroll hook and navigates to the feed.
func Open(ctx context.Context, opts OpenOptions) (*Page, error) {
	p := newPage(opts.Adapter, opts.Log)
	sugar := p.log.Sugar()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, Options(opts.Headless, opts.UserDataDir)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Errorf),
	)
	p.ctx = tabCtx
	p.cancel = func() {
		cancelTab()
		cancelAlloc()
	}
	p.snapshot = p.outerHTML

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*runtime.EventBindingCalled); ok && e.Name == scrollBinding {
			p.notify()
		}
	})

	// The first Run allocates the browser, so it must not carry a timeout.
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := runtime.AddBinding(scrollBinding).Do(ctx); err != nil {
			return fmt.Errorf("failed to add scroll binding: %w", err)
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(scrollHookJS).Do(ctx); err != nil {
			return fmt.Errorf("failed to install scroll hook: %w", err)
		}
		return nil
	}))
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	loadTimeout := opts.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = 5 * time.Minute
	}
	loadCtx, cancel := context.WithTimeout(tabCtx, loadTimeout)
	defer cancel()

	p.log.Info("navigating to feed", zap.String("url", opts.FeedURL))
	if err := chromedp.Run(loadCtx,
		chromedp.Navigate(opts.FeedURL),
		chromedp.WaitVisible(scraper.FeedContainer, chromedp.ByQuery),
	); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to load feed: %w", err)
	}

	return p, nil
}

// ListItems snapshots the rendered DOM and returns its feed items.
func (p *Page) ListItems(ctx context.Context) ([]scraper.Item, error) {
	html, err := p.snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot page: %w", err)
	}
	doc, err := scraper.ParseDocument(p.adapter, html, p.baseURL)
	if err != nil {
		return nil, err
	}
	return doc.ListItems(ctx)
}

func (p *Page) outerHTML(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// AddScrollListener registers fn for scroll events. Listeners run one at a
// time on a single goroutine.
func (p *Page) AddScrollListener(fn func()) (remove func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// notify records a scroll event without blocking the CDP event loop.
func (p *Page) notify() {
	select {
	case p.events <- struct{}{}:
	default:
	}
}

func (p *Page) dispatch() {
	for {
		select {
		case <-p.done:
			return
		case <-p.events:
		}

		p.mu.Lock()
		ids := make([]int, 0, len(p.listeners))
		for id := range p.listeners {
			ids = append(ids, id)
		}
		p.mu.Unlock()
		sort.Ints(ids)

		for _, id := range ids {
			// A listener removed while an earlier one ran is not called.
			p.mu.Lock()
			fn, ok := p.listeners[id]
			p.mu.Unlock()
			if ok {
				fn()
			}
		}
	}
}

// AutoScroll scrolls one viewport every interval until ctx is done, so an
// unattended run keeps producing scroll events.
func (p *Page) AutoScroll(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.Done():
			return nil
		case <-ticker.C:
			if err := chromedp.Run(p.ctx, chromedp.Evaluate(`window.scrollBy(0, window.innerHeight)`, nil)); err != nil {
				return fmt.Errorf("failed to scroll: %w", err)
			}
		}
	}
}

// Done is closed when the page is closed or the browser goes away.
func (p *Page) Done() <-chan struct{} {
	if p.ctx == nil {
		return p.done
	}
	return p.ctx.Done()
}

// Close stops event dispatch and shuts the browser down.
func (p *Page) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		if p.cancel != nil {
			p.cancel()
		}
	})
}
