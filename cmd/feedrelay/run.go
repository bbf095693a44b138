package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/feedrelay/internal/browser"
	"github.com/ibeckermayer/feedrelay/internal/config"
	"github.com/ibeckermayer/feedrelay/internal/control"
	"github.com/ibeckermayer/feedrelay/internal/dedup"
	"github.com/ibeckermayer/feedrelay/internal/metrics"
	"github.com/ibeckermayer/feedrelay/internal/relay"
	"github.com/ibeckermayer/feedrelay/internal/session"
	"github.com/ibeckermayer/feedrelay/internal/settings"
	"github.com/ibeckermayer/feedrelay/internal/store"
)

func newRunCmd(c *cli) *cobra.Command {
	var (
		headless   bool
		autoScroll bool
		autoSave   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open the feed and relay posts as it scrolls",
		Long: `Open the feed in Chrome and relay every new post that scrolls into view.

Scanning only happens while auto-save is on (see 'feedrelay toggle'); the
flush timer runs for the whole session either way.`,
		Example: `  # Relay to the local receiver started with 'feedrelay serve'
  feedrelay run --auto-save

  # Unattended headless run writing straight to SQLite
  FEEDRELAY_RELAY_MODE=local feedrelay run --headless --auto-scroll --auto-save`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("headless") {
				c.cfg.Scraper.Headless = headless
			}
			if cmd.Flags().Changed("auto-scroll") {
				c.cfg.Scraper.AutoScroll = autoScroll
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRelay(ctx, c.cfg, c.log, cmd.Flags().Changed("auto-save"), autoSave)
		},
	}

	cmd.Flags().BoolVar(&headless, "headless", false, "run Chrome without a window")
	cmd.Flags().BoolVar(&autoScroll, "auto-scroll", false, "scroll the feed automatically")
	cmd.Flags().BoolVar(&autoSave, "auto-save", false, "set the auto-save flag before starting")

	return cmd
}

func runRelay(ctx context.Context, cfg *config.Config, log *zap.Logger, setAutoSave, autoSave bool) error {
	settingsPath, err := settings.DefaultPath()
	if err != nil {
		return err
	}
	prefs := settings.NewFileStore(settingsPath)
	if setAutoSave {
		if err := settings.SetAutoSave(ctx, prefs, autoSave); err != nil {
			return err
		}
	}

	deliverer, seen, closeStore, err := newDeliverer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	profileDir, err := cfg.ProfileDir()
	if err != nil {
		return err
	}
	page, err := browser.Open(ctx, browser.OpenOptions{
		FeedURL:     cfg.Scraper.FeedURL,
		Headless:    cfg.Scraper.Headless,
		UserDataDir: profileDir,
		Adapter:     cfg.Scraper.Adapter,
		Log:         log.Named("browser"),
	})
	if err != nil {
		return err
	}
	defer page.Close()

	m := metrics.New()
	sess, err := session.New(session.Deps{
		Page:          page,
		Source:        page,
		Deliverer:     deliverer,
		Seen:          seen,
		Settings:      prefs,
		Metrics:       m,
		Log:           log,
		Origin:        cfg.Relay.Origin,
		FlushInterval: cfg.FlushInterval(),
	})
	if err != nil {
		return err
	}
	if err := sess.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return control.NewServer(cfg.Control.Addr, sess, m, log.Named("control")).Run(gctx)
	})
	if cfg.Scraper.AutoScroll {
		g.Go(func() error {
			return page.AutoScroll(gctx, cfg.ScrollInterval())
		})
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-page.Done():
			return errors.New("browser closed")
		}
	})

	log.Info("relay running",
		zap.String("mode", cfg.Relay.Mode),
		zap.String("control", cfg.Control.Addr))
	runErr := g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sess.Stop(stopCtx); err != nil {
		log.Warn("session did not stop cleanly", zap.Error(err))
	}
	return runErr
}

// newDeliverer builds the deliverer for cfg.Relay.Mode and the dedup set that
// goes with it. In local mode the set is warmed from the database.
func newDeliverer(ctx context.Context, cfg *config.Config, log *zap.Logger) (relay.Deliverer, dedup.Set, func(), error) {
	var (
		d         relay.Deliverer
		seen      = dedup.NewMemorySet()
		closeFunc = func() {}
	)

	switch cfg.Relay.Mode {
	case config.ModeLocal:
		path, err := cfg.StorePath()
		if err != nil {
			return nil, nil, nil, err
		}
		st, err := store.Open(path)
		if err != nil {
			return nil, nil, nil, err
		}
		ids, err := st.IDs(ctx)
		if err != nil {
			st.Close()
			return nil, nil, nil, err
		}
		seen = dedup.NewMemorySet(ids...)
		d = relay.NewStoreDeliverer(st)
		closeFunc = func() { st.Close() }
		log.Info("relaying to local store", zap.String("path", path), zap.Int("known", len(ids)))
	default:
		d = relay.NewHTTPDeliverer(cfg.Relay.Endpoint)
		log.Info("relaying to endpoint", zap.String("endpoint", cfg.Relay.Endpoint))
	}

	if cfg.Relay.CacheBatches {
		dir, err := store.BatchCacheDir()
		if err != nil {
			closeFunc()
			return nil, nil, nil, err
		}
		d = relay.WithBatchCache(d, dir, log.Named("cache"))
	}

	return d, seen, closeFunc, nil
}
