// Package browser provides shared chromedp configuration with anti-bot-detection measures.
package browser

import (
	"github.com/chromedp/chromedp"
	useragent "github.com/itzngga/fake-useragent"
)

// Options describes how the browser process is launched.
type Options struct {
	Headless  bool
	ProxyURL  string
	UserAgent string
	Width     int
	Height    int
}

// AllocatorOptions returns chromedp exec allocator options with
// anti-bot-detection measures. All panel jobs use this so the stealth
// configuration stays consistent.
func AllocatorOptions(o Options) []chromedp.ExecAllocatorOption {
	ua := o.UserAgent
	if ua == "" {
		ua = useragent.Chrome()
	}
	w, h := o.Width, o.Height
	if w == 0 || h == 0 {
		w, h = 1920, 1080
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),

		// Prevent navigator.webdriver = true detection. The panels sit
		// behind Cloudflare and this is the first thing it checks.
		chromedp.Flag("disable-blink-features", "AutomationControlled"),

		chromedp.UserAgent(ua),
		chromedp.WindowSize(w, h),

		// CI runners have no sandbox user namespace and a tiny /dev/shm.
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),

		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	if o.Headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	if o.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(o.ProxyURL))
	}

	return opts
}
