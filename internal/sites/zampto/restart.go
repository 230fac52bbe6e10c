package zampto

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/panelkeeper/panelkeeper/internal/account"
	"github.com/panelkeeper/panelkeeper/internal/challenge"
	"github.com/panelkeeper/panelkeeper/internal/driver"
	"github.com/panelkeeper/panelkeeper/internal/runner"
)

// Restarter runs the restart procedure for one account at a time on a
// shared browser session.
type Restarter struct {
	Session *driver.Session
	Log     *zap.Logger
}

// Run implements runner.Task.
func (r *Restarter) Run(ctx context.Context, idx int, acc account.Account) runner.Result {
	s := r.Session
	log := r.Log.With(zap.String("account", account.Mask(acc.Identifier, 1)))

	if err := s.ClearCookies(); err != nil {
		return runner.Result{Outcome: runner.OutcomeNetworkError, Message: fmt.Sprintf("reset session: %v", err)}
	}

	outcome, msg := login(s, acc, log)
	if outcome != runner.OutcomeSuccess {
		return runner.Result{Outcome: outcome, Message: msg, Screenshot: s.Screenshot(idx, "login-failed")}
	}

	servers, outcome, msg := discoverServers(s, true, log)
	if outcome != runner.OutcomeSuccess {
		return runner.Result{Outcome: outcome, Message: msg, Screenshot: s.Screenshot(idx, "dashboard")}
	}

	var ok int
	var lines []string
	var lastShot string
	for _, sid := range servers {
		res := r.restartServer(s, sid, idx, log)
		if res.Outcome == runner.OutcomeBlocked {
			return runner.Result{Outcome: runner.OutcomeBlocked, Message: res.Message, Screenshot: res.Screenshot}
		}
		if res.Outcome == runner.OutcomeSuccess {
			ok++
		}
		if res.Screenshot != "" {
			lastShot = res.Screenshot
		}
		lines = append(lines, fmt.Sprintf("%s: %s", maskID(sid), res.Message))
		time.Sleep(3 * time.Second)
	}

	msg = fmt.Sprintf("%d/%d servers restarted; %s", ok, len(servers), strings.Join(lines, "; "))
	if ok == 0 {
		return runner.Result{Outcome: runner.OutcomeUnknown, Message: msg, Screenshot: lastShot}
	}
	return runner.Result{Outcome: runner.OutcomeSuccess, Message: msg, Screenshot: lastShot}
}

// clickRestartJS covers the button variants the console page has
// shipped: the restartBtn id, text match, utility classes, and the
// sync icon inside a labelled button.
const clickRestartJS = `
(function() {
	const byId = document.getElementById('restartBtn');
	if (byId) { byId.click(); return "id"; }
	for (const b of document.querySelectorAll('button')) {
		if ((b.textContent || '').toLowerCase().includes('restart')) { b.click(); return "text"; }
	}
	for (const b of document.querySelectorAll('.btn-secondary, .btn')) {
		if ((b.textContent || '').toLowerCase().includes('restart')) { b.click(); return "class"; }
	}
	for (const i of document.querySelectorAll('i.fa-sync-alt, i.fas.fa-sync-alt')) {
		const p = i.closest('button');
		if (p && (p.textContent || '').toLowerCase().includes('restart')) { p.click(); return "icon"; }
	}
	return "";
})()`

// statusJS reads the server status indicator.
const statusJS = `
(function() {
	const el = document.getElementById('serverStatus');
	if (el) return el.textContent.trim();
	const div = document.querySelector('.status-running, .info-card-value');
	return div ? div.textContent.trim() : "";
})()`

func (r *Restarter) restartServer(s *driver.Session, sid string, idx int, log *zap.Logger) runner.Result {
	log.Info("restarting server", zap.String("server", maskID(sid)))

	url := fmt.Sprintf(consoleURLFmt, sid)
	if err := s.Navigate(url); err != nil {
		return runner.Result{Outcome: runner.OutcomeNetworkError, Message: fmt.Sprintf("open console: %v", err)}
	}
	time.Sleep(5 * time.Second)
	shot := s.Screenshot(idx, "console")

	if text, err := s.BodyText(); err == nil && challenge.PageBlocked(text) {
		return runner.Result{Outcome: runner.OutcomeBlocked, Message: "console page blocked", Screenshot: shot}
	}

	var how string
	if err := s.Eval(clickRestartJS, &how); err != nil || how == "" {
		return runner.Result{Outcome: runner.OutcomeUnknown, Message: "restart button not found", Screenshot: s.Screenshot(idx, "nobtn")}
	}
	log.Info("restart clicked", zap.String("via", how))
	time.Sleep(3 * time.Second)
	s.Screenshot(idx, "afterclick")

	// Wait for the panel to report the server back up. Offline or
	// Stopped mean it is mid-restart, so keep polling.
	status := r.waitForRunning(s, log)
	shot = s.Screenshot(idx, "result")

	if strings.Contains(status, "Running") || strings.Contains(status, "Starting") {
		return runner.Result{Outcome: runner.OutcomeSuccess, Message: "restarted, status " + status, Screenshot: shot}
	}
	// The click went through even if the status never settled.
	msg := "restart sent, status " + status
	if status == "" {
		msg = "restart sent, status unknown"
	}
	return runner.Result{Outcome: runner.OutcomeSuccess, Message: msg, Screenshot: shot}
}

func (r *Restarter) waitForRunning(s *driver.Session, log *zap.Logger) string {
	time.Sleep(5 * time.Second)
	var status string
	for attempt := 0; attempt < 6; attempt++ {
		if err := s.Eval(statusJS, &status); err != nil {
			time.Sleep(5 * time.Second)
			continue
		}
		log.Info("server status", zap.String("status", status))
		if strings.Contains(status, "Running") || strings.Contains(status, "Starting") {
			return status
		}
		time.Sleep(5 * time.Second)
		_ = s.Eval(`location.reload()`, nil)
		time.Sleep(3 * time.Second)
	}
	return status
}
