// Package dataonline runs shell commands through the DataOnline EVO
// panel's web terminal. Each account entry carries its own command in
// the third credential field.
package dataonline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/panelkeeper/panelkeeper/internal/account"
	"github.com/panelkeeper/panelkeeper/internal/driver"
	"github.com/panelkeeper/panelkeeper/internal/runner"
)

// Executor runs the terminal job for one account at a time on a shared
// browser session.
type Executor struct {
	Session *driver.Session
	Log     *zap.Logger
}

// Run implements runner.Task. acc.Extra holds the shell command.
func (e *Executor) Run(ctx context.Context, idx int, acc account.Account) runner.Result {
	s := e.Session
	log := e.Log.With(
		zap.String("account", account.Mask(acc.Identifier, 3)),
		zap.String("command", account.MaskCommand(acc.Extra)),
	)

	if err := s.ClearCookies(); err != nil {
		return runner.Result{Outcome: runner.OutcomeNetworkError, Message: fmt.Sprintf("reset session: %v", err)}
	}

	outcome, msg := e.login(s, acc, idx, log)
	if outcome != runner.OutcomeSuccess {
		return runner.Result{Outcome: outcome, Message: msg, Screenshot: s.Screenshot(idx, "login-failed")}
	}

	return e.execute(s, acc.Extra, idx, log)
}

// login connects to the panel, waits out any Cloudflare interstitial,
// and fills the form. Login status is judged off the post-submit URL.
func (e *Executor) login(s *driver.Session, acc account.Account, idx int, log *zap.Logger) (runner.Outcome, string) {
	var navErr error
	for attempt := 0; attempt < 2; attempt++ {
		if navErr = s.Navigate(loginURL); navErr == nil {
			break
		}
		log.Warn("login page unreachable", zap.Error(navErr), zap.Int("attempt", attempt+1))
		time.Sleep(5 * time.Second)
	}
	if navErr != nil {
		return runner.OutcomeNetworkError, fmt.Sprintf("connect to panel: %v", navErr)
	}

	if !e.waitPageReady(s, 30*time.Second, log) {
		return runner.OutcomeTimeout, "login form never loaded"
	}
	s.Screenshot(idx, "login")

	if _, err := s.Fill(usernameSelectors, acc.Identifier); err != nil {
		return runner.OutcomeTimeout, "username field not fillable"
	}
	log.Info("username entered")
	if _, err := s.Fill(passwordSelectors, acc.Secret); err != nil {
		return runner.OutcomeTimeout, "password field not fillable"
	}
	log.Info("password entered")

	if _, err := s.Click(submitSelectors); err != nil {
		// Some skins label the button without a submit type.
		if ok, _ := s.ClickByText("sign in"); !ok {
			if ok, _ := s.ClickByText("login"); !ok {
				return runner.OutcomeTimeout, "login button not found"
			}
		}
	}
	log.Info("login submitted")
	time.Sleep(3 * time.Second)

	deadline := time.Now().Add(10 * time.Second)
	for {
		url, _ := s.Location()
		text, _ := s.BodyText()
		switch classifyLogin(url, text) {
		case runner.OutcomeDisabled:
			return runner.OutcomeDisabled, "account is disabled"
		case runner.OutcomeWrongCredential:
			return runner.OutcomeWrongCredential, "panel rejected the password"
		case runner.OutcomeSuccess:
			log.Info("signed in")
			s.Screenshot(idx, "loggedin")
			return runner.OutcomeSuccess, ""
		}
		if time.Now().After(deadline) {
			return runner.OutcomeTimeout, "login never completed"
		}
		time.Sleep(time.Second)
	}
}

// waitPageReady waits until the form inputs exist, riding out the
// "checking your browser" interstitial.
func (e *Executor) waitPageReady(s *driver.Session, timeout time.Duration, log *zap.Logger) bool {
	deadline := time.Now().Add(timeout)
	for {
		src, err := s.PageSource()
		if err == nil {
			lower := strings.ToLower(src)
			if strings.Contains(lower, "challenge") || strings.Contains(lower, "checking your browser") {
				log.Info("waiting out browser check")
			} else if strings.Contains(lower, "<input") {
				return true
			}
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Second)
	}
}

// classifyLogin maps the post-submit page onto an outcome. The panel
// encodes failures in the redirect URL; body text is the fallback.
func classifyLogin(url, bodyText string) runner.Outcome {
	if strings.Contains(url, "account-disabled") {
		return runner.OutcomeDisabled
	}
	if strings.Contains(url, "wrong-password") || strings.Contains(url, "invalid") {
		return runner.OutcomeWrongCredential
	}
	if !strings.Contains(url, "/login") {
		return runner.OutcomeSuccess
	}
	lower := strings.ToLower(bodyText)
	if strings.Contains(lower, "disabled") {
		return runner.OutcomeDisabled
	}
	if strings.Contains(lower, "wrong password") || strings.Contains(lower, "invalid") {
		return runner.OutcomeWrongCredential
	}
	return runner.OutcomeUnknown
}

// execute opens the web terminal, focuses it, and types the command.
func (e *Executor) execute(s *driver.Session, command string, idx int, log *zap.Logger) runner.Result {
	if err := s.Navigate(terminalURL); err != nil {
		return runner.Result{Outcome: runner.OutcomeNetworkError, Message: fmt.Sprintf("open terminal: %v", err), Screenshot: s.Screenshot(idx, "terminal-error")}
	}
	time.Sleep(2 * time.Second)

	if url, _ := s.Location(); strings.Contains(url, "/login") {
		return runner.Result{Outcome: runner.OutcomeUnknown, Message: "session expired before terminal", Screenshot: s.Screenshot(idx, "session-expired")}
	}
	log.Info("terminal opened")
	time.Sleep(5 * time.Second)
	s.Screenshot(idx, "terminal")

	if _, err := s.Click(terminalTargets); err != nil {
		// No terminal element matched; click the middle of the
		// viewport to focus whatever renders there.
		if err := s.ClickXY(640, 400); err != nil {
			return runner.Result{Outcome: runner.OutcomeUnknown, Message: "terminal not focusable", Screenshot: s.Screenshot(idx, "no-terminal")}
		}
	}
	time.Sleep(time.Second)

	if err := s.TypeKeys(command); err != nil {
		return runner.Result{Outcome: runner.OutcomeUnknown, Message: fmt.Sprintf("type command: %v", err)}
	}
	time.Sleep(500 * time.Millisecond)
	if err := s.TypeKeys("\r"); err != nil {
		return runner.Result{Outcome: runner.OutcomeUnknown, Message: fmt.Sprintf("send enter: %v", err)}
	}
	log.Info("command sent")

	time.Sleep(5 * time.Second)
	return runner.Result{Outcome: runner.OutcomeSuccess, Message: "command executed", Screenshot: s.Screenshot(idx, "result")}
}
