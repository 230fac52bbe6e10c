// Package kerit automates the Kerit Cloud billing panel. Login is
// passwordless: the panel emails a 4-digit code, which is pulled from
// the account's mailbox over IMAP. Renewal is the free-panel loop,
// up to seven one-day extensions per visit.
package kerit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/panelkeeper/panelkeeper/internal/account"
	"github.com/panelkeeper/panelkeeper/internal/challenge"
	"github.com/panelkeeper/panelkeeper/internal/driver"
	"github.com/panelkeeper/panelkeeper/internal/otp"
	"github.com/panelkeeper/panelkeeper/internal/runner"
)

// Renewer runs the renew procedure for one account at a time on a
// shared browser session.
type Renewer struct {
	Session *driver.Session
	OTP     *otp.Fetcher
	Log     *zap.Logger
}

// Run implements runner.Task. The account secret is the IMAP password,
// not a panel password.
func (r *Renewer) Run(ctx context.Context, idx int, acc account.Account) runner.Result {
	s := r.Session
	log := r.Log.With(zap.String("account", account.MaskEmail(acc.Identifier)))

	if err := s.ClearCookies(); err != nil {
		return runner.Result{Outcome: runner.OutcomeNetworkError, Message: fmt.Sprintf("reset session: %v", err)}
	}

	outcome, msg := r.login(ctx, s, acc, log)
	if outcome != runner.OutcomeSuccess {
		return runner.Result{Outcome: outcome, Message: msg, Screenshot: s.Screenshot(idx, "login-failed")}
	}

	return r.renew(s, idx, log)
}

// login drives the email-code flow: submit the address, wait out the
// Turnstile gating the send button, then fetch and enter the code.
func (r *Renewer) login(ctx context.Context, s *driver.Session, acc account.Account, log *zap.Logger) (runner.Outcome, string) {
	if err := s.Navigate(loginURL); err != nil {
		return runner.OutcomeNetworkError, fmt.Sprintf("open login page: %v", err)
	}

	if !waitForJS(s, `document.getElementById('email-input') !== null`, 20*time.Second) {
		if text, err := s.BodyText(); err == nil && challenge.PageBlocked(text) {
			return runner.OutcomeBlocked, "login page blocked"
		}
		return runner.OutcomeTimeout, "email form never appeared"
	}
	time.Sleep(3 * time.Second)

	if !r.waitTurnstile(s, log) {
		log.Warn("turnstile may not have passed, continuing")
	}

	if err := s.FillJS("#email-input", acc.Identifier); err != nil {
		return runner.OutcomeTimeout, fmt.Sprintf("enter email: %v", err)
	}
	log.Info("email entered")
	time.Sleep(2 * time.Second)

	if !waitForJS(s, continueEnabledJS, 30*time.Second) {
		return runner.OutcomeTimeout, "send button never enabled, turnstile likely unsolved"
	}
	_ = s.Eval(`(function(){ const b = document.getElementById('continue-btn'); if (b && !b.disabled) b.click(); })()`, nil)
	log.Info("verification code requested")
	time.Sleep(3 * time.Second)

	// Either the code entry appears, or the page surfaces an error.
	deadline := time.Now().Add(20 * time.Second)
	for {
		var otpVisible bool
		_ = s.Eval(`(function(){ const v = document.getElementById('otp-view'); return v && !v.classList.contains('hidden'); })()`, &otpVisible)
		if otpVisible {
			break
		}
		var hasError bool
		_ = s.Eval(`(function(){ const a = document.getElementById('custom-alert'); return a && !a.classList.contains('hidden'); })()`, &hasError)
		if hasError {
			var errMsg string
			_ = s.Eval(`(function(){ const m = document.getElementById('alert-message'); return m ? m.textContent : ''; })()`, &errMsg)
			lower := strings.ToLower(errMsg)
			if strings.Contains(lower, "not found") || strings.Contains(lower, "invalid") {
				return runner.OutcomeWrongCredential, "panel rejected the email: " + errMsg
			}
			return runner.OutcomeUnknown, "login error: " + errMsg
		}
		if time.Now().After(deadline) {
			return runner.OutcomeTimeout, "code entry never appeared"
		}
		time.Sleep(time.Second)
	}

	code, err := r.OTP.Fetch(ctx, acc.Identifier, acc.Secret, 120*time.Second)
	if err != nil {
		if errors.Is(err, otp.ErrAuth) {
			return runner.OutcomeWrongCredential, "mailbox rejected the IMAP password"
		}
		return runner.OutcomeTimeout, fmt.Sprintf("no verification code: %v", err)
	}

	if err := r.enterCode(s, code); err != nil {
		return runner.OutcomeTimeout, fmt.Sprintf("enter code: %v", err)
	}
	log.Info("verification code submitted")
	time.Sleep(5 * time.Second)

	url, _ := s.Location()
	if loggedIn(s, url) {
		log.Info("signed in")
		return runner.OutcomeSuccess, ""
	}
	return runner.OutcomeUnknown, "login did not complete"
}

// waitTurnstile waits for the widget gating the send button. The button
// enabling, or a response token appearing, both count as passed.
func (r *Renewer) waitTurnstile(s *driver.Session, log *zap.Logger) bool {
	for attempt := 0; attempt < 15; attempt++ {
		var enabled bool
		_ = s.Eval(continueEnabledJS, &enabled)
		if enabled {
			return true
		}
		var hasToken bool
		_ = s.Eval(`(function(){ const i = document.querySelector('input[name="cf-turnstile-response"]'); return !!i && !!i.value && i.value.length > 10; })()`, &hasToken)
		if hasToken {
			return true
		}
		time.Sleep(2 * time.Second)
	}
	return false
}

// enterCode distributes the digits across the .otp-input boxes and
// clicks the Verify button inside the code view.
func (r *Renewer) enterCode(s *driver.Session, code string) error {
	js := fmt.Sprintf(`
		(function() {
			const inputs = document.querySelectorAll('.otp-input');
			const code = %q;
			for (let i = 0; i < inputs.length && i < code.length; i++) {
				inputs[i].value = code[i];
				inputs[i].dispatchEvent(new Event('input', { bubbles: true }));
			}
			return inputs.length > 0;
		})()`, code)
	var ok bool
	if err := s.Eval(js, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no code inputs on page")
	}
	time.Sleep(time.Second)
	return s.Eval(`
		(function() {
			for (const b of document.querySelectorAll('#otp-view button')) {
				if (b.textContent.includes('Verify')) { b.click(); return; }
			}
		})()`, nil)
}

// loggedIn checks both the URL and the page content; the panel bounces
// through ?expired=true on a still-valid session.
func loggedIn(s *driver.Session, url string) bool {
	if strings.Contains(url, "/session") || strings.Contains(url, "/free_panel") {
		return true
	}
	var ok bool
	_ = s.Eval(`
		(function() {
			const body = document.body.innerText || '';
			return body.includes('Free Plans') || body.includes('Dashboard') || body.includes('Renewal') ||
				document.querySelector('[href*="logout"]') !== null ||
				document.querySelector('[href*="free_panel"]') !== null;
		})()`, &ok)
	if ok {
		return true
	}
	return strings.Contains(url, "billing.kerit.cloud")
}

// renew runs the free-panel loop until the panel's cap is hit or the
// renew button stops cooperating.
func (r *Renewer) renew(s *driver.Session, idx int, log *zap.Logger) runner.Result {
	if outcome, msg := r.enterFreePanel(s, log); outcome != runner.OutcomeSuccess {
		return runner.Result{Outcome: outcome, Message: msg, Screenshot: s.Screenshot(idx, "free-panel")}
	}

	initialCount := r.renewalCount(s)
	initialDays := r.daysRemaining(s)
	log.Info("renewal state", zap.Int("count", initialCount), zap.Int("days", initialDays))

	if initialCount >= maxRenewals || initialDays >= maxRenewals {
		return runner.Result{
			Outcome:    runner.OutcomeSuccess,
			Message:    fmt.Sprintf("already at cap: %d/7 renewals, %d days left", initialCount, initialDays),
			Screenshot: s.Screenshot(idx, "at-cap"),
		}
	}

	renewed := 0
	for round := 1; round <= maxRenewals; round++ {
		count := r.renewalCount(s)
		days := r.daysRemaining(s)
		if count >= maxRenewals || days >= maxRenewals {
			break
		}

		var disabled bool
		_ = s.Eval(`(function(){ const b = document.getElementById('renewServerBtn'); return !b || b.disabled || b.hasAttribute('disabled'); })()`, &disabled)
		if disabled {
			log.Info("renew button unavailable, stopping", zap.Int("round", round))
			break
		}

		log.Info("renewal round", zap.Int("round", round))
		if !r.renewOnce(s, log) {
			break
		}
		renewed++

		_ = s.Eval(`location.reload()`, nil)
		time.Sleep(3 * time.Second)
		log.Info("round done", zap.Int("count", r.renewalCount(s)), zap.Int("days", r.daysRemaining(s)))
	}

	time.Sleep(2 * time.Second)
	finalCount := r.renewalCount(s)
	finalDays := r.daysRemaining(s)
	shot := s.Screenshot(idx, "final")

	msg := fmt.Sprintf("renewed %d times, %d->%d/7, %d days left", renewed, initialCount, finalCount, finalDays)
	if finalCount >= maxRenewals || finalDays >= maxRenewals || renewed > 0 {
		return runner.Result{Outcome: runner.OutcomeSuccess, Message: msg, Screenshot: shot}
	}
	return runner.Result{Outcome: runner.OutcomeUnknown, Message: msg + ", nothing renewed", Screenshot: shot}
}

// enterFreePanel navigates to the free-panel page, retrying a couple of
// times: the panel sometimes bounces a fresh session back to the root.
func (r *Renewer) enterFreePanel(s *driver.Session, log *zap.Logger) (runner.Outcome, string) {
	for attempt := 0; attempt < 3; attempt++ {
		if err := s.Navigate(freePanelURL); err != nil {
			return runner.OutcomeNetworkError, fmt.Sprintf("open free panel: %v", err)
		}
		time.Sleep(5 * time.Second)

		url, _ := s.Location()
		if strings.Contains(url, "/free_panel") {
			return runner.OutcomeSuccess, ""
		}
		if text, err := s.BodyText(); err == nil && challenge.PageBlocked(text) {
			return runner.OutcomeBlocked, "free panel blocked"
		}
		log.Warn("free panel redirect", zap.String("url", url), zap.Int("attempt", attempt+1))
		time.Sleep(3 * time.Second)
	}
	return runner.OutcomeUnknown, "could not reach free panel page"
}

// renewOnce performs one round: open the modal, unlock it via the ad
// banner, and submit. Returns false when the per-day cap fired.
func (r *Renewer) renewOnce(s *driver.Session, log *zap.Logger) bool {
	_ = s.Eval(`(function(){ const b = document.getElementById('renewServerBtn'); if (b && !b.disabled) b.click(); })()`, nil)
	time.Sleep(3 * time.Second)

	var modalVisible bool
	_ = s.Eval(`(function(){ const m = document.getElementById('renewalModal'); if (!m) return false; return window.getComputedStyle(m).display !== 'none'; })()`, &modalVisible)
	if !modalVisible {
		log.Warn("renewal modal missing, clicking again")
		_ = s.Eval(`(function(){ const b = document.getElementById('renewServerBtn'); if (b) b.click(); })()`, nil)
		time.Sleep(3 * time.Second)
	}

	// The modal requires an ad interaction before the renew button
	// activates. The click may spawn a popup tab, which stays ignored;
	// this session only drives the original target.
	_ = s.Eval(`
		(function() {
			const ad = document.getElementById('adBanner');
			if (ad) {
				const clickable = ad.closest('[onclick]') || ad.parentElement || ad;
				clickable.click();
			}
		})()`, nil)
	time.Sleep(3 * time.Second)

	_ = s.Eval(`
		(function() {
			const b = document.getElementById('renewBtn');
			if (b && !b.disabled) { b.click(); return; }
			const form = document.querySelector('#renewalModal form');
			if (form) form.submit();
		})()`, nil)
	time.Sleep(3 * time.Second)

	var limitReached bool
	_ = s.Eval(`
		(function() {
			const t = document.body.innerText || '';
			return t.includes('Cannot exceed 7 days') || t.includes('exceed 7 days') || t.includes('limit reached');
		})()`, &limitReached)
	if limitReached {
		log.Info("renewal cap reached")
		return false
	}

	// Tear the modal down so the next round starts clean.
	_ = s.Eval(`
		(function() {
			const close = document.querySelector('#renewalModal .close, .btn-close, [data-dismiss="modal"]');
			if (close) close.click();
			const m = document.getElementById('renewalModal');
			if (m) m.style.display = 'none';
			const backdrop = document.querySelector('.modal-backdrop');
			if (backdrop) backdrop.remove();
			document.body.classList.remove('modal-open');
		})()`, nil)
	time.Sleep(2 * time.Second)
	return true
}

// renewalCount reads the banked-renewals counter, preferring the
// dedicated element over the "n / 7" text.
func (r *Renewer) renewalCount(s *driver.Session) int {
	var raw string
	_ = s.Eval(`(function(){ const el = document.getElementById('renewal-count'); return el ? el.textContent.trim() : (document.body.innerText || ''); })()`, &raw)
	return parseRenewalCount(raw)
}

func (r *Renewer) daysRemaining(s *driver.Session) int {
	var text string
	_ = s.Eval(`document.body ? document.body.innerText : ""`, &text)
	return parseDaysRemaining(text)
}

func parseRenewalCount(raw string) int {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if m := renewalCountRe.FindStringSubmatch(raw); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

func parseDaysRemaining(text string) int {
	if m := daysRemainRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

// waitForJS polls a boolean JS expression once per second.
func waitForJS(s *driver.Session, js string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		var ok bool
		if err := s.Eval(js, &ok); err == nil && ok {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Second)
	}
}
