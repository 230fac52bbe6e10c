// Package driver wraps a single chromedp browser session behind the small
// set of page operations the panel procedures need: navigation, form fill
// and click with selector fallback lists, JS evaluation, text polling,
// screenshots, and cookie management.
//
// One Session is shared by every account in a batch; ClearCookies resets
// it between accounts.
package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/panelkeeper/panelkeeper/internal/browser"
)

// Session is a live browser session. Not safe for concurrent use; the
// batch driver is strictly sequential.
type Session struct {
	ctx    context.Context
	cancel []context.CancelFunc

	log         *zap.Logger
	shotDir     string
	stepTimeout time.Duration
}

// NewSession launches the browser. The caller must Close it.
func NewSession(parent context.Context, opts browser.Options, shotDir string, stepTimeout time.Duration, log *zap.Logger) (*Session, error) {
	if err := os.MkdirAll(shotDir, 0755); err != nil {
		return nil, fmt.Errorf("create screenshot dir: %w", err)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, browser.AllocatorOptions(opts)...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx:         browserCtx,
		cancel:      []context.CancelFunc{cancelBrowser, cancelAlloc},
		log:         log,
		shotDir:     shotDir,
		stepTimeout: stepTimeout,
	}

	// Start the browser process now so launch failures surface here
	// rather than inside the first account's procedure.
	if err := chromedp.Run(browserCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return s, nil
}

// Close tears down the browser process.
func (s *Session) Close() {
	for _, cancel := range s.cancel {
		cancel()
	}
}

// run executes actions under the per-step timeout.
func (s *Session) run(actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.stepTimeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

// Navigate opens url and waits for the document body to exist. Panel
// pages finish rendering via their own scripts, so callers follow up
// with polling rather than load events.
func (s *Session) Navigate(url string) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.stepTimeout*4)
	defer cancel()
	err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Location returns the current page URL.
func (s *Session) Location() (string, error) {
	var url string
	if err := s.run(chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// PageSource returns the serialized document.
func (s *Session) PageSource() (string, error) {
	var html string
	if err := s.run(chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// BodyText returns document.body.innerText.
func (s *Session) BodyText() (string, error) {
	var text string
	err := s.Eval(`document.body ? document.body.innerText : ""`, &text)
	return text, err
}

// Eval evaluates a JS expression on the page. out may be nil when the
// result is not needed.
func (s *Session) Eval(js string, out any) error {
	if out == nil {
		var discard any
		out = &discard
	}
	return s.run(chromedp.Evaluate(js, out))
}

// firstVisibleJS probes an ordered selector list and returns the first
// selector with a visible match, or "".
const firstVisibleJS = `
(function(sels) {
	for (const sel of sels) {
		try {
			const el = document.querySelector(sel);
			if (!el) continue;
			const r = el.getBoundingClientRect();
			const st = window.getComputedStyle(el);
			if (st.display !== 'none' && st.visibility !== 'hidden' && r.width > 0 && r.height > 0) {
				return sel;
			}
		} catch (e) {}
	}
	return "";
})(%s)`

// FirstVisible returns the first selector in the list with a visible
// match on the page, or "" when none matched.
func (s *Session) FirstVisible(selectors []string) (string, error) {
	encoded, err := json.Marshal(selectors)
	if err != nil {
		return "", err
	}
	var sel string
	if err := s.Eval(fmt.Sprintf(firstVisibleJS, encoded), &sel); err != nil {
		return "", err
	}
	return sel, nil
}

// WaitVisible polls the selector list until one becomes visible, using a
// fixed 1s interval. Returns the matched selector or "" on timeout.
func (s *Session) WaitVisible(selectors []string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		sel, err := s.FirstVisible(selectors)
		if err != nil {
			return "", err
		}
		if sel != "" {
			return sel, nil
		}
		if time.Now().After(deadline) {
			return "", nil
		}
		time.Sleep(time.Second)
	}
}

// Fill types value into the first visible selector from the list,
// clearing the field first. Returns the selector used.
func (s *Session) Fill(selectors []string, value string) (string, error) {
	sel, err := s.FirstVisible(selectors)
	if err != nil {
		return "", err
	}
	if sel == "" {
		return "", fmt.Errorf("no visible field among %v", selectors)
	}
	err = s.run(
		chromedp.Clear(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("fill %s: %w", sel, err)
	}
	return sel, nil
}

// FillJS sets the field value from script and dispatches input/change
// events. Framework-rendered forms (Clerk, React) ignore plain typed
// values unless the events fire.
func (s *Session) FillJS(selector, value string) error {
	sel, _ := json.Marshal(selector)
	val, _ := json.Marshal(value)
	js := fmt.Sprintf(`
		(function() {
			const el = document.querySelector(%s);
			if (!el) return false;
			el.focus();
			el.value = '';
			el.value = %s;
			el.dispatchEvent(new Event('input', { bubbles: true }));
			el.dispatchEvent(new Event('change', { bubbles: true }));
			return true;
		})()`, sel, val)
	var ok bool
	if err := s.Eval(js, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no element for %s", selector)
	}
	return nil
}

// Click clicks the first visible selector from the list. Returns the
// selector used.
func (s *Session) Click(selectors []string) (string, error) {
	sel, err := s.FirstVisible(selectors)
	if err != nil {
		return "", err
	}
	if sel == "" {
		return "", fmt.Errorf("no visible element among %v", selectors)
	}
	if err := s.run(chromedp.Click(sel, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("click %s: %w", sel, err)
	}
	return sel, nil
}

// ClickByText clicks the first button or anchor whose text contains
// needle (case-insensitive). Returns false when nothing matched.
func (s *Session) ClickByText(needle string) (bool, error) {
	n, _ := json.Marshal(strings.ToLower(needle))
	js := fmt.Sprintf(`
		(function() {
			const els = document.querySelectorAll('button, a');
			for (const el of els) {
				if ((el.textContent || '').toLowerCase().includes(%s)) {
					el.click();
					return true;
				}
			}
			return false;
		})()`, n)
	var clicked bool
	err := s.Eval(js, &clicked)
	return clicked, err
}

// TypeKeys dispatches raw keystrokes to the focused element. Canvas
// terminals (xterm.js) take input this way, not through a form field.
func (s *Session) TypeKeys(text string) error {
	return s.run(chromedp.KeyEvent(text))
}

// ClickXY clicks at viewport coordinates, for pages where no stable
// selector exists for the click target.
func (s *Session) ClickXY(x, y float64) error {
	return s.run(chromedp.MouseClickXY(x, y))
}

// PollForText polls document.body.innerText for any of the markers,
// checking once per second. Returns the matched marker or "" on timeout.
func (s *Session) PollForText(markers []string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		text, err := s.BodyText()
		if err != nil {
			return "", err
		}
		for _, m := range markers {
			if strings.Contains(text, m) {
				return m, nil
			}
		}
		if time.Now().After(deadline) {
			return "", nil
		}
		time.Sleep(time.Second)
	}
}

// Screenshot captures the page to <dir>/acc<idx>-<HHMMSS>-<name>.png and
// returns the path. Capture failures are logged and return ""; a missing
// diagnostic never fails a step.
func (s *Session) Screenshot(idx int, name string) string {
	var buf []byte
	if err := s.run(chromedp.CaptureScreenshot(&buf)); err != nil {
		s.log.Warn("screenshot failed", zap.String("name", name), zap.Error(err))
		return ""
	}
	path := filepath.Join(s.shotDir, fmt.Sprintf("acc%d-%s-%s.png", idx, time.Now().Format("150405"), sanitize(name)))
	if err := os.WriteFile(path, buf, 0644); err != nil {
		s.log.Warn("screenshot write failed", zap.String("path", path), zap.Error(err))
		return ""
	}
	return path
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// SetCookies injects cookies into the browser before navigation.
func (s *Session) SetCookies(cookies []*network.Cookie) error {
	return s.run(chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				WithSameSite(c.SameSite).
				Do(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	}))
}

// Cookies returns all cookies held by the browser.
func (s *Session) Cookies() ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := s.run(chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	return cookies, err
}

// ClearCookies wipes browser cookies and parks the session on
// about:blank. Called between accounts so sessions never bleed over.
func (s *Session) ClearCookies() error {
	err := s.run(chromedp.ActionFunc(func(ctx context.Context) error {
		return network.ClearBrowserCookies().Do(ctx)
	}))
	if err != nil {
		return err
	}
	return s.Navigate("about:blank")
}
