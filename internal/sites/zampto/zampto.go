// Package zampto automates the Zampto hosting panel: a two-step
// auth.zampto.net login, server discovery off the dashboard, and the
// per-server renew and restart procedures.
package zampto

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/panelkeeper/panelkeeper/internal/account"
	"github.com/panelkeeper/panelkeeper/internal/challenge"
	"github.com/panelkeeper/panelkeeper/internal/driver"
	"github.com/panelkeeper/panelkeeper/internal/runner"
)

// login walks the two-step sign-in. Arriving on dash.zampto.net at any
// point short-circuits: the session cookie may still be warm.
func login(s *driver.Session, acc account.Account, log *zap.Logger) (runner.Outcome, string) {
	if err := s.Navigate(authURL); err != nil {
		return runner.OutcomeNetworkError, fmt.Sprintf("open sign-in page: %v", err)
	}
	time.Sleep(4 * time.Second)

	if url, _ := s.Location(); strings.Contains(url, "dash.zampto.net") {
		log.Info("already signed in")
		return runner.OutcomeSuccess, ""
	}

	// The identifier form is rendered by script; wait for it to exist.
	deadline := time.Now().Add(20 * time.Second)
	for {
		src, err := s.PageSource()
		if err == nil && strings.Contains(src, "identifier") {
			break
		}
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(2 * time.Second)
	}

	if _, err := s.Fill(identifierSelectors, acc.Identifier); err != nil {
		if text, terr := s.BodyText(); terr == nil && challenge.PageBlocked(text) {
			return runner.OutcomeBlocked, "sign-in page blocked"
		}
		return runner.OutcomeTimeout, "identifier field never appeared"
	}
	log.Info("identifier entered")
	time.Sleep(time.Second)
	if _, err := s.Click(submitSelectors); err != nil {
		return runner.OutcomeTimeout, fmt.Sprintf("submit identifier: %v", err)
	}
	time.Sleep(4 * time.Second)

	sel, err := s.WaitVisible(passwordSelectors, 15*time.Second)
	if err != nil || sel == "" {
		return runner.OutcomeTimeout, "password step never appeared"
	}
	if _, err := s.Fill(passwordSelectors, acc.Secret); err != nil {
		return runner.OutcomeTimeout, fmt.Sprintf("enter password: %v", err)
	}
	log.Info("password entered")
	time.Sleep(time.Second)
	if _, err := s.Click(submitSelectors); err != nil {
		return runner.OutcomeTimeout, fmt.Sprintf("submit password: %v", err)
	}
	time.Sleep(6 * time.Second)

	url, err := s.Location()
	if err != nil {
		return runner.OutcomeNetworkError, fmt.Sprintf("read location: %v", err)
	}
	if strings.Contains(url, "dash.zampto.net") || !strings.Contains(url, "sign-in") {
		log.Info("signed in")
		return runner.OutcomeSuccess, ""
	}

	text, _ := s.BodyText()
	if challenge.PageBlocked(text) {
		return runner.OutcomeBlocked, "sign-in blocked after submit"
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "incorrect") || strings.Contains(lower, "invalid") || strings.Contains(lower, "couldn't find") {
		return runner.OutcomeWrongCredential, "sign-in rejected the credentials"
	}
	return runner.OutcomeUnknown, "still on sign-in page after submit"
}

// discoverServers scans the dashboard and overview pages for server ids.
// consoleLinks prefers server-console hrefs, which the restart flow needs.
func discoverServers(s *driver.Session, consoleLinks bool, log *zap.Logger) ([]string, runner.Outcome, string) {
	if err := s.Navigate(dashboardURL); err != nil {
		return nil, runner.OutcomeNetworkError, fmt.Sprintf("open dashboard: %v", err)
	}
	time.Sleep(5 * time.Second)

	if text, err := s.BodyText(); err == nil && challenge.PageBlocked(text) {
		return nil, runner.OutcomeBlocked, "dashboard blocked"
	}

	var ids []string
	seen := map[string]bool{}
	for _, url := range []string{dashboardURL, overviewURL} {
		if url != dashboardURL {
			if err := s.Navigate(url); err != nil {
				continue
			}
			time.Sleep(3 * time.Second)
		}
		src, err := s.PageSource()
		if err != nil {
			continue
		}
		for _, id := range extractServerIDs(src, consoleLinks) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil, runner.OutcomeUnknown, "no servers found"
	}
	log.Info("servers discovered", zap.Int("count", len(ids)))
	return ids, runner.OutcomeSuccess, ""
}

// extractServerIDs pulls server ids from page HTML. With consoleLinks
// set, server-console hrefs are preferred and plain server links are
// the fallback.
func extractServerIDs(src string, consoleLinks bool) []string {
	var ids []string
	seen := map[string]bool{}
	add := func(matches [][]string) {
		for _, m := range matches {
			if !seen[m[1]] {
				seen[m[1]] = true
				ids = append(ids, m[1])
			}
		}
	}
	if consoleLinks {
		add(consoleIDRe.FindAllStringSubmatch(src, -1))
		if len(ids) > 0 {
			return ids
		}
	}
	add(serverIDRe.FindAllStringSubmatch(src, -1))
	return ids
}

// elementText reads an element's trimmed innerText by id, "" if absent.
func elementText(s *driver.Session, id string) string {
	js := fmt.Sprintf(`(function(){ const el = document.getElementById(%q); return el ? el.innerText.trim() : ""; })()`, id)
	var text string
	if err := s.Eval(js, &text); err != nil {
		return ""
	}
	return text
}

// handleTurnstile deals with whatever challenge the renewal modal put
// up. Visible widgets cannot be solved headlessly; the invisible kind
// usually resolves on its own within the wait.
func handleTurnstile(s *driver.Session, log *zap.Logger) bool {
	time.Sleep(3 * time.Second)
	kind := challenge.Detect(s, log)
	log.Info("turnstile detected", zap.String("kind", string(kind)))
	if kind == challenge.KindNone {
		return true
	}
	result := challenge.Wait(s, 45*time.Second, log)
	return result == challenge.WaitToken || result == challenge.WaitClosed
}

func maskID(id string) string {
	if id == "" {
		return "****"
	}
	return id[:1] + "***"
}
