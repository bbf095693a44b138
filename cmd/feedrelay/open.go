package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/chromedp/chromedp"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	browseropts "github.com/ibeckermayer/feedrelay/internal/browser"
	"github.com/ibeckermayer/feedrelay/internal/config"
)

func newOpenCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:       "open <config|cache|data>",
		Short:     "Open the config file, cache or data directory",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"config", "cache", "data"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := openTarget(args[0])
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dirOf(args[0], path), 0700); err != nil {
				return err
			}
			c.log.Debug("opening", zap.String("path", path))
			if err := browser.OpenFile(path); err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}
			return nil
		},
	}
}

func openTarget(target string) (string, error) {
	switch target {
	case "config":
		return config.ConfigPath()
	case "cache":
		return config.CacheDir()
	case "data":
		return config.DataDir()
	default:
		return "", fmt.Errorf("unknown target: %s", target)
	}
}

// dirOf returns the directory that must exist before path can be opened.
func dirOf(target, path string) string {
	if target == "config" {
		dir, _ := config.ConfigDir()
		return dir
	}
	return path
}

// newBotTestCmd opens bot.sannysoft.com with the same stealth options as the
// relay, to audit the browser fingerprint.
func newBotTestCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "bot-test",
		Short: "Open bot.sannysoft.com to audit the browser fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.log.Info("opening bot.sannysoft.com with stealth browser options")

			opts := browseropts.Options(false, "") // non-headless so you can see it

			allocCtx, cancel := chromedp.NewExecAllocator(cmd.Context(), opts...)
			defer cancel()

			ctx, cancel := chromedp.NewContext(allocCtx)
			defer cancel()

			err := chromedp.Run(ctx,
				chromedp.Navigate("https://bot.sannysoft.com"),
				chromedp.WaitVisible("body", chromedp.ByQuery),
			)
			if err != nil {
				return fmt.Errorf("failed to navigate: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Press Enter to close the browser...")
			_, _ = bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			return nil
		},
	}
}
