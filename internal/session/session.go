// Package session ties one page's scan trigger, outbound queue and flush
// timer together behind an explicit Start/Stop lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/feedrelay/internal/dedup"
	"github.com/ibeckermayer/feedrelay/internal/metrics"
	"github.com/ibeckermayer/feedrelay/internal/relay"
	"github.com/ibeckermayer/feedrelay/internal/scanner"
	"github.com/ibeckermayer/feedrelay/internal/scheduler"
	"github.com/ibeckermayer/feedrelay/internal/scraper"
	"github.com/ibeckermayer/feedrelay/internal/settings"
)

const flushJob = "flush"

// ActionToggleAutoSave switches scroll-triggered scanning on or off.
const ActionToggleAutoSave = "toggleAutoSave"

// StatusSuccess is the only status a message reply carries.
const StatusSuccess = "success"

// Message is a control command sent to a running session.
type Message struct {
	Action  string `json:"action" binding:"required"`
	Enabled bool   `json:"enabled"`
}

// Response acknowledges a Message.
type Response struct {
	Status string `json:"status"`
}

// Status is a point-in-time view of a session.
type Status struct {
	Enabled  bool `json:"enabled"`
	Running  bool `json:"running"`
	Buffered int  `json:"buffered"`
	InFlight int  `json:"in_flight"`
	Seen     int  `json:"seen"`
}

// Deps are the collaborators a session is built from.
type Deps struct {
	Page          scraper.Page
	Source        scanner.ScrollSource
	Deliverer     relay.Deliverer
	Seen          dedup.Set // defaults to an empty MemorySet
	Settings      settings.Store
	Metrics       *metrics.Metrics
	Log           *zap.Logger
	Origin        string
	FlushInterval time.Duration
}

// Session is one scraping session on one page.
type Session struct {
	queue    *relay.Queue
	scanner  *scanner.Scanner
	sched    *scheduler.Scheduler
	source   scanner.ScrollSource
	settings settings.Store
	seen     dedup.Set
	interval time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	running bool
	enabled bool
	remove  func()
}

// New wires a session. Nothing runs until Start.
func New(deps Deps) (*Session, error) {
	if deps.Page == nil || deps.Source == nil || deps.Deliverer == nil || deps.Settings == nil {
		return nil, errors.New("session: page, source, deliverer and settings are required")
	}
	if deps.FlushInterval <= 0 {
		return nil, fmt.Errorf("session: invalid flush interval %v", deps.FlushInterval)
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}
	seen := deps.Seen
	if seen == nil {
		seen = dedup.NewMemorySet()
	}

	sched, err := scheduler.New("", log.Named("scheduler"))
	if err != nil {
		return nil, err
	}
	queue := relay.NewQueue(deps.Deliverer, seen, m, log.Named("relay"))
	extractor := scraper.NewExtractor(deps.Origin, log.Named("scraper"))

	return &Session{
		queue:    queue,
		scanner:  scanner.New(deps.Page, extractor, queue, m, log.Named("scanner")),
		sched:    sched,
		source:   deps.Source,
		settings: deps.Settings,
		seen:     seen,
		interval: deps.FlushInterval,
		log:      log,
	}, nil
}

// Start loads the feature flag, starts the flush timer and, when the flag is
// on, registers the scroll listener. ctx bounds scans triggered by scrolling.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("session already started")
	}

	enabled, err := settings.AutoSaveEnabled(ctx, s.settings)
	if err != nil {
		s.log.Warn("failed to load auto-save flag, starting disabled", zap.Error(err))
		enabled = false
	}

	if err := s.sched.AddIntervalJob(flushJob, s.interval, s.queue.Flush); err != nil {
		return err
	}
	s.sched.Start()

	s.ctx = ctx
	s.running = true
	s.setEnabledLocked(enabled)
	s.log.Info("session started", zap.Bool("auto_save", enabled), zap.Duration("flush_interval", s.interval))
	return nil
}

// Stop removes the scroll listener and stops the flush timer, waiting for
// in-flight flushes until ctx is done. Records still buffered are dropped.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.setEnabledLocked(false)
	s.running = false
	done := s.sched.Stop()
	s.mu.Unlock()

	select {
	case <-done.Done():
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight flushes: %w", ctx.Err())
	}
	if n := s.queue.Len(); n > 0 {
		s.log.Warn("session stopped with undelivered records", zap.Int("buffered", n))
	}
	s.log.Info("session stopped")
	return nil
}

// SetEnabled persists the flag and adds or removes the scroll listener.
// The flush timer keeps running either way, so buffered records still go out.
func (s *Session) SetEnabled(ctx context.Context, enabled bool) error {
	if err := settings.SetAutoSave(ctx, s.settings, enabled); err != nil {
		return fmt.Errorf("failed to persist auto-save flag: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.setEnabledLocked(enabled)
	} else {
		s.enabled = enabled
	}
	s.log.Info("auto-save toggled", zap.Bool("enabled", enabled))
	return nil
}

func (s *Session) setEnabledLocked(enabled bool) {
	s.enabled = enabled
	switch {
	case enabled && s.remove == nil:
		s.remove = s.scanner.Listen(s.ctx, s.source)
	case !enabled && s.remove != nil:
		s.remove()
		s.remove = nil
	}
}

// HandleMessage applies a control message. Every message is acknowledged with
// success, including unknown actions and toggles that failed to persist.
func (s *Session) HandleMessage(ctx context.Context, msg Message) Response {
	switch msg.Action {
	case ActionToggleAutoSave:
		if err := s.SetEnabled(ctx, msg.Enabled); err != nil {
			s.log.Warn("toggle failed", zap.Error(err))
		}
	default:
		s.log.Debug("ignoring unknown action", zap.String("action", msg.Action))
	}
	return Response{Status: StatusSuccess}
}

// Scan runs one scan immediately, outside the scroll trigger.
func (s *Session) Scan(ctx context.Context) (int, error) {
	return s.scanner.Scan(ctx)
}

// Flush delivers buffered records immediately, outside the timer.
func (s *Session) Flush(ctx context.Context) error {
	return s.sched.RunNow(ctx, flushJob, s.queue.Flush)
}

func (s *Session) Status() Status {
	s.mu.Lock()
	enabled, running := s.enabled, s.running
	s.mu.Unlock()
	return Status{
		Enabled:  enabled,
		Running:  running,
		Buffered: s.queue.Len(),
		InFlight: s.queue.InFlight(),
		Seen:     s.seen.Len(),
	}
}
