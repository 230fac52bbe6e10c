// Package runner drives a job across a batch of accounts: fixed-backoff
// retries per account, a gap between accounts, per-account notification,
// optional history recording, and the summary plus exit code the CI
// wrapper keys off.
package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/panelkeeper/panelkeeper/internal/account"
	"github.com/panelkeeper/panelkeeper/internal/config"
	"github.com/panelkeeper/panelkeeper/internal/notify"
)

// Outcome classifies how an account's job ended.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeWrongCredential Outcome = "wrong-credential"
	OutcomeDisabled        Outcome = "disabled"
	OutcomeBlocked         Outcome = "blocked"
	OutcomeTimeout         Outcome = "timeout"
	OutcomeNetworkError    Outcome = "network-error"
	OutcomeUnknown         Outcome = "unknown"
)

// Tolerated reports whether the outcome counts as acceptable for the
// batch exit code. A disabled account is an expected state, not a
// failure of the job itself.
func (o Outcome) Tolerated() bool {
	return o == OutcomeSuccess || o == OutcomeDisabled
}

// Retryable reports whether another attempt could plausibly change the
// outcome. Credential and account-state problems are permanent for the
// run; so is a block page, since the same IP will be served it again.
func (o Outcome) Retryable() bool {
	switch o {
	case OutcomeTimeout, OutcomeNetworkError, OutcomeUnknown:
		return true
	}
	return false
}

// Result is what a site task reports back for one attempt.
type Result struct {
	Outcome    Outcome
	Message    string
	Screenshot string
}

// Task runs the job once for one account. idx is the 1-based position
// in the batch, used for screenshot names.
type Task func(ctx context.Context, idx int, acc account.Account) Result

// Attempt is the final result for one account, after retries.
type Attempt struct {
	Label      string
	Outcome    Outcome
	Message    string
	Screenshot string
	Tries      int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Recorder persists attempts. Satisfied by the history store; nil is
// fine when history is disabled.
type Recorder interface {
	RecordAttempt(job, label string, outcome, message string, tries int, started, finished time.Time) error
}

// Runner holds the batch machinery shared by every job.
type Runner struct {
	Cfg    *config.Config
	Log    *zap.Logger
	Notify *notify.Notifier
	Store  Recorder
}

// Report is the outcome of a whole batch.
type Report struct {
	Job        string
	Attempts   []Attempt
	StartedAt  time.Time
	FinishedAt time.Time
}

// Run executes task for each account in order. A fresh attempt gets a
// fresh call into the task (the task owns its browser lifecycle), and a
// panicking task is converted into a failed attempt instead of taking
// the rest of the batch down.
func (r *Runner) Run(ctx context.Context, job string, accounts []account.Account, task Task) *Report {
	report := &Report{Job: job, StartedAt: time.Now()}
	r.Log.Info("batch starting", zap.String("job", job), zap.Int("accounts", len(accounts)))

	gap := time.Duration(r.Cfg.Batch.AccountGapSec) * time.Second
	for i, acc := range accounts {
		if i > 0 && gap > 0 {
			r.Log.Info("waiting before next account", zap.Duration("gap", gap))
			select {
			case <-ctx.Done():
			case <-time.After(gap):
			}
		}
		if ctx.Err() != nil {
			r.Log.Warn("batch cancelled", zap.Int("remaining", len(accounts)-i))
			break
		}

		att := r.runAccount(ctx, i+1, acc, task)
		report.Attempts = append(report.Attempts, att)

		if r.Store != nil {
			err := r.Store.RecordAttempt(job, att.Label, string(att.Outcome), att.Message, att.Tries, att.StartedAt, att.FinishedAt)
			if err != nil {
				r.Log.Warn("history write failed", zap.Error(err))
			}
		}

		line := fmt.Sprintf("[%s] %s: %s", job, att.Label, att.Outcome)
		if att.Message != "" {
			line += " - " + att.Message
		}
		r.Notify.SendWithPhoto(ctx, line, att.Screenshot)
	}

	report.FinishedAt = time.Now()
	r.Log.Info("batch finished",
		zap.Int("success", report.Successes()),
		zap.Int("total", len(report.Attempts)))
	r.Notify.Send(ctx, report.Summary())
	return report
}

// runAccount retries the task up to the configured attempt count with a
// fixed sleep in between. Only transient outcomes are retried.
func (r *Runner) runAccount(ctx context.Context, idx int, acc account.Account, task Task) Attempt {
	label := account.MaskEmail(acc.Identifier)
	log := r.Log.With(zap.String("account", label))

	attempts := r.Cfg.Retry.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := time.Duration(r.Cfg.Retry.SleepSec) * time.Second

	att := Attempt{Label: label, StartedAt: time.Now()}
	var res Result
	for try := 1; try <= attempts; try++ {
		att.Tries = try
		log.Info("attempt starting", zap.Int("try", try), zap.Int("of", attempts))

		res = r.safeRun(ctx, idx, acc, task, log)
		if res.Outcome == OutcomeSuccess || !res.Outcome.Retryable() {
			break
		}
		log.Warn("attempt failed",
			zap.String("outcome", string(res.Outcome)),
			zap.String("reason", res.Message))
		if try < attempts {
			select {
			case <-ctx.Done():
				try = attempts
			case <-time.After(sleep):
			}
		}
	}

	att.Outcome = res.Outcome
	att.Message = res.Message
	att.Screenshot = res.Screenshot
	att.FinishedAt = time.Now()
	log.Info("account done",
		zap.String("outcome", string(att.Outcome)),
		zap.Int("tries", att.Tries),
		zap.Duration("took", att.FinishedAt.Sub(att.StartedAt)))
	return att
}

func (r *Runner) safeRun(ctx context.Context, idx int, acc account.Account, task Task, log *zap.Logger) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("task panicked", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
			res = Result{Outcome: OutcomeUnknown, Message: fmt.Sprintf("panic: %v", p)}
		}
	}()
	if ctx.Err() != nil {
		return Result{Outcome: OutcomeTimeout, Message: "batch cancelled"}
	}
	return task(ctx, idx, acc)
}

// Successes counts accounts that ended in success.
func (rep *Report) Successes() int {
	n := 0
	for _, a := range rep.Attempts {
		if a.Outcome == OutcomeSuccess {
			n++
		}
	}
	return n
}

// ExitCode is 0 when at least one account ended in a tolerated
// outcome, 1 otherwise. An empty batch is a failure: it means the
// credential variable was empty or the filter matched nothing.
func (rep *Report) ExitCode() int {
	for _, a := range rep.Attempts {
		if a.Outcome.Tolerated() {
			return 0
		}
	}
	return 1
}

// Summary renders the end-of-batch report sent to the chat.
func (rep *Report) Summary() string {
	s := fmt.Sprintf("%s finished: %d/%d succeeded (%s)\n",
		rep.Job, rep.Successes(), len(rep.Attempts),
		rep.FinishedAt.Sub(rep.StartedAt).Round(time.Second))
	for _, a := range rep.Attempts {
		mark := "✗"
		if a.Outcome == OutcomeSuccess {
			mark = "✓"
		}
		s += fmt.Sprintf("%s %s: %s", mark, a.Label, a.Outcome)
		if a.Message != "" {
			s += " - " + a.Message
		}
		s += "\n"
	}
	return s
}
