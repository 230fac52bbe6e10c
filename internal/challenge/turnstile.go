// Package challenge handles the anti-bot obstacles the panels put in
// front of automation: Cloudflare Turnstile widgets and outright
// blocked-access pages.
package challenge

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

// Kind classifies what the page is showing.
type Kind string

const (
	KindNone      Kind = "none"
	KindVisible   Kind = "visible"
	KindInvisible Kind = "invisible"
	KindUnknown   Kind = "unknown"
)

// WaitResult is the terminal state of a Turnstile wait.
type WaitResult string

const (
	// WaitToken: the cf-turnstile-response input carries a token.
	WaitToken WaitResult = "token"
	// WaitClosed: the hosting modal/container disappeared, which the
	// panels do after a successful pass.
	WaitClosed  WaitResult = "closed"
	WaitTimeout WaitResult = "timeout"
)

// evaluator is the slice of driver.Session this package needs.
type evaluator interface {
	Eval(js string, out any) error
}

// detectJS mirrors the widget probing the upstream scripts do: look for
// the Turnstile container or response input, then judge visibility of
// any challenge iframe.
const detectJS = `
(function() {
	const container = document.getElementById('turnstileContainer');
	const cfInput = document.querySelector("input[name='cf-turnstile-response']");
	if (!container && !cfInput) return "none";

	const iframes = document.querySelectorAll('iframe');
	for (const f of iframes) {
		const src = f.src || "";
		if (src.includes("challenges.cloudflare.com") || src.includes("turnstile")) {
			const r = f.getBoundingClientRect();
			const st = window.getComputedStyle(f);
			const visible = st.display !== 'none' && st.visibility !== 'hidden' && r.width > 0 && r.height > 0;
			if (visible && r.width > 100 && r.height > 50) return "visible";
		}
	}

	const cfDiv = document.querySelector('.cf-turnstile, [data-sitekey]');
	if (cfDiv) {
		const r = cfDiv.getBoundingClientRect();
		if (r.width > 100 && r.height > 50) return "visible";
	}
	if (container) {
		const r = container.getBoundingClientRect();
		if (r.height > 50) return "visible";
	}
	return "invisible";
})()`

// stateJS reports whether the challenge has resolved: the hosting modal
// closed, or a response token of plausible length appeared.
const stateJS = `
(function() {
	const modal = document.querySelector('.confirmation-modal-content');
	const container = document.getElementById('turnstileContainer');
	if (!modal && !container) return "closed";

	const inputs = document.querySelectorAll("input[name='cf-turnstile-response']");
	for (const inp of inputs) {
		if (inp.value && inp.value.length > 20) return "token";
	}
	return "waiting";
})()`

// Detect classifies the Turnstile presence on the current page. Probe
// failures default to visible, the safer assumption.
func Detect(page evaluator, log *zap.Logger) Kind {
	var result string
	if err := page.Eval(detectJS, &result); err != nil {
		log.Warn("turnstile detection failed", zap.Error(err))
		return KindVisible
	}
	switch Kind(result) {
	case KindNone, KindVisible, KindInvisible:
		return Kind(result)
	default:
		return KindUnknown
	}
}

// Wait polls once per second until the challenge resolves or the timeout
// elapses. A probe error counts as closed: the panels replace the whole
// document after a pass, which kills the polling script's context.
func Wait(page evaluator, timeout time.Duration, log *zap.Logger) WaitResult {
	deadline := time.Now().Add(timeout)
	for i := 0; ; i++ {
		var state string
		if err := page.Eval(stateJS, &state); err != nil {
			log.Info("page replaced during challenge wait")
			return WaitClosed
		}
		switch ParseWaitState(state) {
		case WaitToken:
			log.Info("turnstile token obtained", zap.Int("seconds", i))
			return WaitToken
		case WaitClosed:
			log.Info("turnstile modal closed", zap.Int("seconds", i))
			return WaitClosed
		}
		if time.Now().After(deadline) {
			log.Warn("turnstile wait timed out")
			return WaitTimeout
		}
		if i > 0 && i%10 == 0 {
			log.Info("still waiting for turnstile", zap.Int("seconds", i))
		}
		time.Sleep(time.Second)
	}
}

// ParseWaitState maps the raw probe string onto a WaitResult; anything
// unrecognized means the challenge is still pending.
func ParseWaitState(state string) WaitResult {
	switch state {
	case "token":
		return WaitToken
	case "closed":
		return WaitClosed
	default:
		return WaitTimeout
	}
}

// blockedMarkers are the phrases the panels serve instead of content
// when they dislike the egress IP.
var blockedMarkers = []string{
	"Access Blocked",
	"VPN or Proxy Detected",
	"Access denied",
	"access denied",
	"Forbidden",
	"rate limit",
	"Rate limit",
}

// PageBlocked reports whether the page text is an access-denied page
// rather than panel content.
func PageBlocked(text string) bool {
	for _, m := range blockedMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
