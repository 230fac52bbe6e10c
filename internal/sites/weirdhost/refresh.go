// Package weirdhost keeps a Weirdhost panel session alive. The panel
// guards its password login with reCAPTCHA, so the primary path is
// cookie reuse: inject the stored jar, confirm the hub loads, and
// persist the rotated cookies for the next run. Password login is the
// fallback for a cold jar and only works while the panel serves no
// challenge.
package weirdhost

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/panelkeeper/panelkeeper/internal/account"
	"github.com/panelkeeper/panelkeeper/internal/driver"
	"github.com/panelkeeper/panelkeeper/internal/runner"
	"github.com/panelkeeper/panelkeeper/internal/session"
)

// Refresher refreshes one account's session at a time on a shared
// browser session. CookieDir holds the per-account jars.
type Refresher struct {
	Session   *driver.Session
	CookieDir string
	Log       *zap.Logger
}

// Run implements runner.Task.
func (r *Refresher) Run(ctx context.Context, idx int, acc account.Account) runner.Result {
	s := r.Session
	log := r.Log.With(zap.String("account", account.MaskEmail(acc.Identifier)))

	if err := s.ClearCookies(); err != nil {
		return runner.Result{Outcome: runner.OutcomeNetworkError, Message: fmt.Sprintf("reset session: %v", err)}
	}

	jar := session.New(session.PathFor(r.CookieDir, acc.Identifier), sessionCookies...)

	if jar.IsValid() {
		if res, ok := r.refreshFromJar(s, jar, idx, log); ok {
			return res
		}
		log.Info("stored session rejected, falling back to password login")
		_ = jar.Clear()
		if err := s.ClearCookies(); err != nil {
			return runner.Result{Outcome: runner.OutcomeNetworkError, Message: fmt.Sprintf("reset session: %v", err)}
		}
	} else {
		log.Info("no usable stored session")
	}

	return r.passwordLogin(s, jar, acc, idx, log)
}

// refreshFromJar injects the stored cookies and checks whether the hub
// still accepts them. ok=false means the caller should try a fresh
// login instead of failing the attempt.
func (r *Refresher) refreshFromJar(s *driver.Session, jar *session.Store, idx int, log *zap.Logger) (runner.Result, bool) {
	stored, err := jar.Load()
	if err != nil {
		return runner.Result{}, false
	}
	if err := s.SetCookies(stored.Cookies); err != nil {
		log.Warn("cookie injection failed", zap.Error(err))
		return runner.Result{}, false
	}
	log.Info("stored session injected", zap.Int("cookies", len(stored.Cookies)))

	if err := s.Navigate(hubURL); err != nil {
		return runner.Result{Outcome: runner.OutcomeNetworkError, Message: fmt.Sprintf("open hub: %v", err)}, true
	}
	time.Sleep(3 * time.Second)

	url, _ := s.Location()
	if strings.Contains(url, "/auth/login") {
		// Session expired server-side; not an error yet.
		return runner.Result{}, false
	}

	return r.persist(s, jar, idx, log, "session refreshed"), true
}

// passwordLogin fills the login form. A served reCAPTCHA challenge is a
// hard stop: it cannot be passed headlessly, so the run reports blocked
// and a warm jar has to be seeded from a manual login.
func (r *Refresher) passwordLogin(s *driver.Session, jar *session.Store, acc account.Account, idx int, log *zap.Logger) runner.Result {
	if err := s.Navigate(loginURL); err != nil {
		return runner.Result{Outcome: runner.OutcomeNetworkError, Message: fmt.Sprintf("open login page: %v", err)}
	}
	time.Sleep(2 * time.Second)

	if r.captchaServed(s) {
		return runner.Result{
			Outcome:    runner.OutcomeBlocked,
			Message:    "login page served a recaptcha challenge",
			Screenshot: s.Screenshot(idx, "captcha"),
		}
	}

	if _, err := s.Fill([]string{`input[name="username"]`}, acc.Identifier); err != nil {
		return runner.Result{Outcome: runner.OutcomeTimeout, Message: "username field never appeared", Screenshot: s.Screenshot(idx, "no-form")}
	}
	if _, err := s.Fill([]string{`input[name="password"]`}, acc.Secret); err != nil {
		return runner.Result{Outcome: runner.OutcomeTimeout, Message: "password field never appeared"}
	}
	log.Info("credentials entered")

	// Terms checkbox, when present.
	_ = s.Eval(`
		(function() {
			const cb = document.querySelector('input[type="checkbox"]');
			if (cb && !cb.checked) cb.click();
		})()`, nil)

	var clicked bool
	_ = s.Eval(`
		(function() {
			const direct = document.querySelector('button.jOimeR, button[color="red"]');
			if (direct) { direct.click(); return true; }
			for (const b of document.querySelectorAll('button')) {
				const t = b.textContent || '';
				if (t.includes('로그인') || t.toLowerCase().includes('login')) { b.click(); return true; }
			}
			return false;
		})()`, &clicked)
	if !clicked {
		return runner.Result{Outcome: runner.OutcomeUnknown, Message: "login button not found", Screenshot: s.Screenshot(idx, "no-button")}
	}
	log.Info("login submitted")
	time.Sleep(3 * time.Second)

	if r.captchaServed(s) {
		return runner.Result{
			Outcome:    runner.OutcomeBlocked,
			Message:    "recaptcha challenge after submit",
			Screenshot: s.Screenshot(idx, "captcha"),
		}
	}

	url, _ := s.Location()
	if strings.Contains(url, "/auth/login") {
		text, _ := s.BodyText()
		lower := strings.ToLower(text)
		if strings.Contains(lower, "credentials") || strings.Contains(lower, "incorrect") || strings.Contains(lower, "invalid") {
			return runner.Result{Outcome: runner.OutcomeWrongCredential, Message: "panel rejected the credentials", Screenshot: s.Screenshot(idx, "rejected")}
		}
		return runner.Result{Outcome: runner.OutcomeUnknown, Message: "still on login page after submit", Screenshot: s.Screenshot(idx, "stuck")}
	}

	return r.persist(s, jar, idx, log, "logged in, session stored")
}

// persist saves the browser's current cookie jar for the next run.
func (r *Refresher) persist(s *driver.Session, jar *session.Store, idx int, log *zap.Logger, msg string) runner.Result {
	cookies, err := s.Cookies()
	if err != nil {
		log.Warn("cookie read failed", zap.Error(err))
		return runner.Result{Outcome: runner.OutcomeSuccess, Message: msg + " (jar not updated)", Screenshot: s.Screenshot(idx, "hub")}
	}
	if err := jar.Save(cookies); err != nil {
		log.Warn("cookie save failed", zap.Error(err))
		return runner.Result{Outcome: runner.OutcomeSuccess, Message: msg + " (jar not updated)", Screenshot: s.Screenshot(idx, "hub")}
	}
	log.Info("session persisted", zap.Int("cookies", len(cookies)))
	return runner.Result{Outcome: runner.OutcomeSuccess, Message: msg, Screenshot: s.Screenshot(idx, "hub")}
}

func (r *Refresher) captchaServed(s *driver.Session) bool {
	var served bool
	_ = s.Eval(`
		(function() {
			for (const f of document.querySelectorAll('iframe')) {
				const src = f.src || '';
				if (src.includes('recaptcha') || src.includes('google.com/recaptcha')) return true;
			}
			return document.querySelector('.g-recaptcha, [data-sitekey]') !== null;
		})()`, &served)
	return served
}
