// Package pella automates the Pella free tier: a Clerk-rendered login,
// expiry extraction from the server page, the renew-link loop, and a
// restart when the server sits stopped afterwards.
package pella

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/panelkeeper/panelkeeper/internal/account"
	"github.com/panelkeeper/panelkeeper/internal/driver"
	"github.com/panelkeeper/panelkeeper/internal/runner"
)

const (
	// renewSettle is how long a renew link needs to register the visit.
	renewSettle = 8 * time.Second
	// restartSettle covers the server coming back after a restart click.
	restartSettle = 60 * time.Second
)

// Renewer runs renew-then-restart for one account at a time on a
// shared browser session.
type Renewer struct {
	Session *driver.Session
	Log     *zap.Logger
}

// Run implements runner.Task.
func (r *Renewer) Run(ctx context.Context, idx int, acc account.Account) runner.Result {
	s := r.Session
	log := r.Log.With(zap.String("account", account.MaskEmail(acc.Identifier)))

	if err := s.ClearCookies(); err != nil {
		return runner.Result{Outcome: runner.OutcomeNetworkError, Message: fmt.Sprintf("reset session: %v", err)}
	}

	outcome, msg := r.login(s, acc, log)
	if outcome != runner.OutcomeSuccess {
		return runner.Result{Outcome: outcome, Message: msg, Screenshot: s.Screenshot(idx, "login-failed")}
	}

	serverURL, err := r.openServerPage(s)
	if err != nil {
		return runner.Result{Outcome: runner.OutcomeUnknown, Message: err.Error(), Screenshot: s.Screenshot(idx, "no-server")}
	}
	log.Info("server page opened")

	renewMsg, renewOK, res := r.renewServer(s, serverURL, idx, log)
	if res != nil {
		return *res
	}

	restartMsg := r.restartIfStopped(s, serverURL, log)
	shot := s.Screenshot(idx, "final")

	msg = renewMsg + "; restart: " + restartMsg
	if renewOK {
		return runner.Result{Outcome: runner.OutcomeSuccess, Message: msg, Screenshot: shot}
	}
	return runner.Result{Outcome: runner.OutcomeUnknown, Message: msg, Screenshot: shot}
}

// login drives the two-step Clerk form. Values are set from script with
// input events: Clerk ignores plain synthetic keystrokes.
func (r *Renewer) login(s *driver.Session, acc account.Account, log *zap.Logger) (runner.Outcome, string) {
	if err := s.Navigate(loginURL); err != nil {
		return runner.OutcomeNetworkError, fmt.Sprintf("open login page: %v", err)
	}
	time.Sleep(4 * time.Second)

	if sel, _ := s.WaitVisible([]string{`input[name='identifier']`}, 15*time.Second); sel == "" {
		return runner.OutcomeTimeout, "login form never appeared"
	}
	if err := s.FillJS(`input[name='identifier']`, acc.Identifier); err != nil {
		return runner.OutcomeTimeout, fmt.Sprintf("enter email: %v", err)
	}
	log.Info("email entered")
	time.Sleep(time.Second)

	var clicked bool
	if err := s.Eval(continueButtonJS, &clicked); err != nil || !clicked {
		return runner.OutcomeTimeout, "continue button not found"
	}

	sel, _ := s.WaitVisible(passwordSelectors, 15*time.Second)
	if sel == "" {
		if errText := r.formError(s); errText != "" {
			return runner.OutcomeWrongCredential, "login rejected: " + errText
		}
		return runner.OutcomeTimeout, "password step never appeared"
	}
	if err := s.FillJS(sel, acc.Secret); err != nil {
		return runner.OutcomeTimeout, fmt.Sprintf("enter password: %v", err)
	}
	log.Info("password entered")
	time.Sleep(2 * time.Second)

	if err := s.Eval(continueButtonJS, &clicked); err != nil || !clicked {
		return runner.OutcomeTimeout, "submit button not found"
	}

	// Clerk redirects through a couple of intermediate URLs; poll until
	// the app proper loads.
	deadline := time.Now().Add(20 * time.Second)
	for {
		time.Sleep(2 * time.Second)
		url, _ := s.Location()
		if strings.Contains(url, "/home") || strings.Contains(url, "/dashboard") {
			log.Info("signed in")
			return runner.OutcomeSuccess, ""
		}
		if errText := r.formError(s); errText != "" {
			return runner.OutcomeWrongCredential, "login rejected: " + errText
		}
		if !strings.Contains(url, "/login") && !strings.Contains(url, "/sign-in") {
			if err := s.Navigate(homeURL); err == nil {
				if u, _ := s.Location(); strings.Contains(u, "/home") {
					log.Info("signed in")
					return runner.OutcomeSuccess, ""
				}
			}
		}
		if time.Now().After(deadline) {
			break
		}
	}
	if err := s.Navigate(homeURL); err == nil {
		if u, _ := s.Location(); strings.Contains(u, "/home") {
			return runner.OutcomeSuccess, ""
		}
	}
	return runner.OutcomeTimeout, "login never completed"
}

func (r *Renewer) formError(s *driver.Session) string {
	var text string
	_ = s.Eval(`
		(function() {
			for (const sel of ['.cl-formFieldErrorText', "[data-localization-key*='error']", '.error-message']) {
				const el = document.querySelector(sel);
				if (el && el.offsetParent !== null) return el.textContent.trim();
			}
			return "";
		})()`, &text)
	return text
}

// openServerPage follows the first server link off the home page and
// returns the resulting URL.
func (r *Renewer) openServerPage(s *driver.Session) (string, error) {
	if url, _ := s.Location(); !strings.Contains(url, "/home") {
		if err := s.Navigate(homeURL); err != nil {
			return "", fmt.Errorf("open home: %w", err)
		}
		time.Sleep(3 * time.Second)
	}

	sel, _ := s.WaitVisible([]string{`a[href*='/server/']`}, 15*time.Second)
	if sel == "" {
		return "", fmt.Errorf("no server link on home page")
	}
	if _, err := s.Click([]string{`a[href*='/server/']`}); err != nil {
		return "", fmt.Errorf("open server page: %w", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		url, _ := s.Location()
		if strings.Contains(url, "/server/") {
			return url, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("server page never loaded")
		}
		time.Sleep(time.Second)
	}
}

// renewServer visits every active renew link until none remain, then
// verifies the expiry moved. The third return is non-nil for failures
// that should end the whole account attempt.
func (r *Renewer) renewServer(s *driver.Session, serverURL string, idx int, log *zap.Logger) (string, bool, *runner.Result) {
	if err := s.Navigate(serverURL); err != nil {
		return "", false, &runner.Result{Outcome: runner.OutcomeNetworkError, Message: fmt.Sprintf("open server page: %v", err)}
	}
	time.Sleep(5 * time.Second)

	src, _ := s.PageSource()
	initialDetail, initialVal := extractExpiry(src)
	log.Info("expiry before", zap.String("value", initialDetail))
	if initialVal < 0 {
		shot := s.Screenshot(idx, "no-expiry")
		return "", false, &runner.Result{Outcome: runner.OutcomeUnknown, Message: "could not read expiry time", Screenshot: shot}
	}

	count := 0
	for {
		href := r.activeRenewLink(s)
		if href == "" {
			break
		}
		count++
		log.Info("visiting renew link", zap.Int("n", count))
		if err := s.Navigate(href); err != nil {
			log.Warn("renew link failed", zap.Error(err))
			break
		}
		time.Sleep(renewSettle)
		if err := s.Navigate(serverURL); err != nil {
			return "", false, &runner.Result{Outcome: runner.OutcomeNetworkError, Message: fmt.Sprintf("return to server page: %v", err)}
		}
		time.Sleep(3 * time.Second)
	}

	if count == 0 {
		var disabled bool
		_ = s.Eval(`document.querySelectorAll("a[href*='/renew/'].opacity-50").length > 0`, &disabled)
		s.Screenshot(idx, "already-renewed")
		if disabled {
			return "already renewed today (" + initialDetail + ")", true, nil
		}
		return "no renew link found", false, nil
	}

	if err := s.Navigate(serverURL); err == nil {
		time.Sleep(5 * time.Second)
	}
	src, _ = s.PageSource()
	finalDetail, finalVal := extractExpiry(src)
	log.Info("expiry after", zap.String("value", finalDetail))
	s.Screenshot(idx, "renewed")

	if finalVal > initialVal {
		return fmt.Sprintf("renewed %s -> %s", initialDetail, finalDetail), true, nil
	}
	return fmt.Sprintf("expiry unchanged (%s)", finalDetail), false, nil
}

func (r *Renewer) activeRenewLink(s *driver.Session) string {
	var href string
	_ = s.Eval(`
		(function() {
			const a = document.querySelector("a[href*='/renew/']:not(.opacity-50):not(.pointer-events-none)");
			return a ? a.href : "";
		})()`, &href)
	return href
}

// restartIfStopped restarts the server only when the page says it is
// down; a running server is left alone.
func (r *Renewer) restartIfStopped(s *driver.Session, serverURL string, log *zap.Logger) string {
	status := r.serverStatus(s, serverURL)
	log.Info("server status", zap.String("status", status))
	switch status {
	case "running":
		return "running, not needed"
	case "unknown":
		return "status unknown, skipped"
	}

	var clicked bool
	_ = s.Eval(`
		(function() {
			for (const btn of document.querySelectorAll('button')) {
				const t = (btn.textContent || '').toUpperCase();
				if (t.includes('RESTART')) { btn.scrollIntoView(true); btn.click(); return true; }
			}
			return false;
		})()`, &clicked)
	if !clicked {
		return "restart button not found"
	}
	log.Info("restart clicked")
	time.Sleep(restartSettle)
	return "restarted"
}

func (r *Renewer) serverStatus(s *driver.Session, serverURL string) string {
	if url, _ := s.Location(); !strings.Contains(url, "/server/") {
		if err := s.Navigate(serverURL); err != nil {
			return "unknown"
		}
		time.Sleep(3 * time.Second)
	}
	text, err := s.BodyText()
	if err != nil {
		return "unknown"
	}
	status := classifyStatus(text)
	if status != "unknown" {
		return status
	}
	// A bare enabled START button means the server sits stopped.
	var hasStart bool
	_ = s.Eval(`
		(function() {
			for (const btn of document.querySelectorAll('button')) {
				const t = (btn.textContent || '').toUpperCase().trim();
				if ((t === 'START' || t === 'START SERVER') && !btn.disabled) return true;
			}
			return false;
		})()`, &hasStart)
	if hasStart {
		return "stopped"
	}
	return "unknown"
}

// classifyStatus reads the page text for status markers; stopped
// markers win because "NOT RUNNING" contains "RUNNING".
func classifyStatus(text string) string {
	upper := strings.ToUpper(text)
	for _, m := range []string{"STATUS: STOPPED", "STOPPED", "OFFLINE", "INACTIVE", "NOT RUNNING"} {
		if strings.Contains(upper, m) {
			return "stopped"
		}
	}
	for _, m := range []string{"STATUS: RUNNING", "RUNNING", "ONLINE", "ACTIVE"} {
		if strings.Contains(upper, m) {
			return "running"
		}
	}
	return "unknown"
}

// extractExpiry parses the "Your server expires in 2D 5H 30M" banner.
// The value is expressed in days; -1 means unreadable.
func extractExpiry(src string) (string, float64) {
	if m := expiryFullRe.FindStringSubmatch(src); m != nil {
		d, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		min, _ := strconv.Atoi(m[3])
		return fmt.Sprintf("%dd %dh %dm", d, h, min), float64(d) + float64(h)/24 + float64(min)/1440
	}
	if m := expiryDaysRe.FindStringSubmatch(src); m != nil {
		d, _ := strconv.Atoi(m[1])
		return fmt.Sprintf("%dd", d), float64(d)
	}
	return "unreadable", -1
}
