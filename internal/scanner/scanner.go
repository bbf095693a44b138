package scanner

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ibeckermayer/feedrelay/internal/metrics"
	"github.com/ibeckermayer/feedrelay/internal/scraper"
	"github.com/ibeckermayer/feedrelay/internal/types"
)

// ScrollSource delivers the page's scroll events. The returned function
// removes the listener; calling it more than once is safe.
type ScrollSource interface {
	AddScrollListener(fn func()) (remove func())
}

// Enqueuer accepts extracted records.
type Enqueuer interface {
	Enqueue(records ...types.Record) int
}

// Scanner rescans every rendered feed item and enqueues what it extracts.
// Every scan is a full pass; dedup happens in the queue.
type Scanner struct {
	page      scraper.Page
	extractor *scraper.Extractor
	queue     Enqueuer
	metrics   *metrics.Metrics
	log       *zap.Logger

	// serializes scans of one page
	mu sync.Mutex
}

// New creates a scanner. m and log may be nil.
func New(page scraper.Page, extractor *scraper.Extractor, queue Enqueuer, m *metrics.Metrics, log *zap.Logger) *Scanner {
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{page: page, extractor: extractor, queue: queue, metrics: m, log: log}
}

// Scan extracts every item on the page and enqueues the survivors.
// Returns the number of records the queue accepted.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, skipped, err := s.extractor.ExtractAll(ctx, s.page)
	if err != nil {
		return 0, err
	}
	s.metrics.ItemsScanned.Add(float64(len(records) + skipped))
	s.metrics.ItemsSkipped.Add(float64(skipped))

	accepted := s.queue.Enqueue(records...)
	s.log.Debug("scan complete",
		zap.Int("items", len(records)+skipped),
		zap.Int("skipped", skipped),
		zap.Int("enqueued", accepted))
	return accepted, nil
}

// Listen scans on every scroll event from source until the returned function
// is called or ctx is done. Scan errors are logged.
func (s *Scanner) Listen(ctx context.Context, source ScrollSource) (remove func()) {
	return source.AddScrollListener(func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.Scan(ctx); err != nil {
			s.log.Warn("scan failed", zap.Error(err))
		}
	})
}
