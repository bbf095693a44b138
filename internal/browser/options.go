// Package browser drives the feed in Chrome with anti-bot-detection measures.
package browser

import "github.com/chromedp/chromedp"

// UserAgent is sent instead of the HeadlessChrome default.
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// X.com checks navigator.webdriver; AutomationControlled is what sets it.
var stealthFlags = map[string]interface{}{
	"disable-blink-features":   "AutomationControlled",
	"disable-extensions":       true,
	"disable-default-apps":     true,
	"disable-infobars":         true,
	"no-first-run":             true,
	"no-default-browser-check": true,
}

// Options returns the allocator options for a relay browser. With a
// userDataDir the profile, and so the login, survives between runs.
func Options(headless bool, userDataDir string) []chromedp.ExecAllocatorOption {
	opts := make([]chromedp.ExecAllocatorOption, 0, len(chromedp.DefaultExecAllocatorOptions)+len(stealthFlags)+5)
	opts = append(opts, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", headless),
		chromedp.UserAgent(UserAgent),
		chromedp.WindowSize(1920, 1080),
	)
	for name, value := range stealthFlags {
		opts = append(opts, chromedp.Flag(name, value))
	}

	if headless {
		opts = append(opts, chromedp.DisableGPU)
	}
	if userDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(userDataDir))
	}
	return opts
}
