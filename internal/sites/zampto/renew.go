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

// renewalLayout is how the panel prints the lastRenewalTime value.
const renewalLayout = "Jan 2, 2006 3:04 PM"

// renewalPeriod is how long one renewal extends the server.
const renewalPeriod = 2880 * time.Minute

// Renewer runs the renew procedure for one account at a time on a
// shared browser session.
type Renewer struct {
	Session *driver.Session
	Log     *zap.Logger
}

// Run implements runner.Task.
func (r *Renewer) Run(ctx context.Context, idx int, acc account.Account) runner.Result {
	s := r.Session
	log := r.Log.With(zap.String("account", account.Mask(acc.Identifier, 1)))

	if err := s.ClearCookies(); err != nil {
		return runner.Result{Outcome: runner.OutcomeNetworkError, Message: fmt.Sprintf("reset session: %v", err)}
	}

	outcome, msg := login(s, acc, log)
	if outcome != runner.OutcomeSuccess {
		return runner.Result{Outcome: outcome, Message: msg, Screenshot: s.Screenshot(idx, "login-failed")}
	}

	servers, outcome, msg := discoverServers(s, false, log)
	if outcome != runner.OutcomeSuccess {
		return runner.Result{Outcome: outcome, Message: msg, Screenshot: s.Screenshot(idx, "dashboard")}
	}

	var ok int
	var lines []string
	var lastShot string
	for _, sid := range servers {
		res := r.renewServer(s, sid, idx, log)
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

	msg = fmt.Sprintf("%d/%d servers renewed; %s", ok, len(servers), strings.Join(lines, "; "))
	if ok == 0 {
		return runner.Result{Outcome: runner.OutcomeUnknown, Message: msg, Screenshot: lastShot}
	}
	return runner.Result{Outcome: runner.OutcomeSuccess, Message: msg, Screenshot: lastShot}
}

// renewServer opens the server page, clicks renew, rides out the
// challenge, and verifies the renewal timestamp moved.
func (r *Renewer) renewServer(s *driver.Session, sid string, idx int, log *zap.Logger) runner.Result {
	log.Info("renewing server", zap.String("server", maskID(sid)))

	url := fmt.Sprintf(serverURLFmt, sid)
	if err := s.Navigate(url); err != nil {
		return runner.Result{Outcome: runner.OutcomeNetworkError, Message: fmt.Sprintf("open server page: %v", err)}
	}
	time.Sleep(4 * time.Second)

	// The renew control sits below the fold on some themes.
	_ = s.Eval(`window.scrollTo(0, document.body.scrollHeight)`, nil)
	time.Sleep(time.Second)
	_ = s.Eval(`window.scrollTo(0, 0)`, nil)
	time.Sleep(time.Second)

	shot := s.Screenshot(idx, "console")
	if text, err := s.BodyText(); err == nil && challenge.PageBlocked(text) {
		return runner.Result{Outcome: runner.OutcomeBlocked, Message: "server page blocked", Screenshot: shot}
	}

	oldRenewal := elementText(s, "lastRenewalTime")
	log.Info("renewal time before", zap.String("value", oldRenewal))

	_ = s.Eval(`window.scrollTo(0, 600)`, nil)
	time.Sleep(time.Second)

	if !r.clickRenew(s, sid) {
		return runner.Result{Outcome: runner.OutcomeUnknown, Message: "renew button not found", Screenshot: s.Screenshot(idx, "nobtn")}
	}
	log.Info("renew clicked")
	time.Sleep(2 * time.Second)
	s.Screenshot(idx, "modal")

	handleTurnstile(s, log)
	time.Sleep(3 * time.Second)

	if err := s.Navigate(url); err != nil {
		return runner.Result{Outcome: runner.OutcomeNetworkError, Message: fmt.Sprintf("reload server page: %v", err)}
	}
	time.Sleep(4 * time.Second)

	newRenewal := elementText(s, "lastRenewalTime")
	remain := elementText(s, "nextRenewalTime")
	log.Info("renewal time after", zap.String("value", newRenewal), zap.String("remaining", remain))

	ok, msg := judgeRenewal(oldRenewal, newRenewal, remain, time.Now())
	shot = s.Screenshot(idx, "result")
	if !ok {
		return runner.Result{Outcome: runner.OutcomeUnknown, Message: msg, Screenshot: shot}
	}
	return runner.Result{Outcome: runner.OutcomeSuccess, Message: msg, Screenshot: shot}
}

// clickRenew tries the inline handler the panel wires for this server,
// then falls back to any short renew-labelled control.
func (r *Renewer) clickRenew(s *driver.Session, sid string) bool {
	js := fmt.Sprintf(`
		(function() {
			const links = document.querySelectorAll('a[onclick*="handleServerRenewal"]');
			for (const l of links) {
				if ((l.getAttribute('onclick') || '').includes(%q)) { l.click(); return true; }
			}
			const els = document.querySelectorAll('a, button');
			for (const el of els) {
				const t = (el.textContent || '').trim().toLowerCase();
				if (t.includes('renew') && t.length < 30) { el.click(); return true; }
			}
			for (const sel of ['a.action-button', 'button.btn-renew', '.renew-btn', '[class*="renew"]']) {
				for (const el of document.querySelectorAll(sel)) {
					if ((el.textContent || '').toLowerCase().includes('renew')) { el.click(); return true; }
				}
			}
			return false;
		})()`, sid)
	var clicked bool
	if err := s.Eval(js, &clicked); err != nil {
		return false
	}
	return clicked
}

// judgeRenewal decides whether the renewal took, from the timestamps
// around the click. A timestamp from today, or a remaining-time string
// in days or hours, counts even when the click reported nothing.
func judgeRenewal(oldRenewal, newRenewal, remain string, now time.Time) (bool, string) {
	switch {
	case newRenewal != "" && newRenewal != oldRenewal:
		return true, "renewed, expires " + calcExpiry(newRenewal)
	case newRenewal != "" && strings.Contains(newRenewal, now.Format("Jan 2, 2006")):
		return true, "already renewed today, expires " + calcExpiry(newRenewal)
	case remain != "" && (strings.Contains(remain, "day") || strings.Contains(remain, "hour")):
		return true, "renewed, expires " + calcExpiry(newRenewal)
	default:
		return false, "renewal state unclear"
	}
}

// calcExpiry converts the panel's renewal timestamp (UTC) into the
// expiry time one renewal period later, in local time.
func calcExpiry(renewal string) string {
	dt, err := time.ParseInLocation(renewalLayout, renewal, time.UTC)
	if err != nil {
		return "unknown"
	}
	return dt.Add(renewalPeriod).Local().Format("2006-01-02 15:04")
}
