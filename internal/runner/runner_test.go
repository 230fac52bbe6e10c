package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/panelkeeper/panelkeeper/internal/account"
	"github.com/panelkeeper/panelkeeper/internal/config"
	"github.com/panelkeeper/panelkeeper/internal/notify"
)

func testRunner(t *testing.T) *Runner {
	t.Helper()
	cfg := config.Default()
	cfg.Retry.Attempts = 3
	cfg.Retry.SleepSec = 0
	cfg.Batch.AccountGapSec = 0
	n, err := notify.New("", "", zap.NewNop())
	require.NoError(t, err)
	return &Runner{Cfg: cfg, Log: zap.NewNop(), Notify: n}
}

func TestRetryableOutcomes(t *testing.T) {
	assert.True(t, OutcomeTimeout.Retryable())
	assert.True(t, OutcomeNetworkError.Retryable())
	assert.True(t, OutcomeUnknown.Retryable())
	assert.False(t, OutcomeSuccess.Retryable())
	assert.False(t, OutcomeWrongCredential.Retryable())
	assert.False(t, OutcomeDisabled.Retryable())
	assert.False(t, OutcomeBlocked.Retryable())
}

func TestRunRetriesTransientFailures(t *testing.T) {
	r := testRunner(t)
	calls := 0
	task := func(ctx context.Context, idx int, acc account.Account) Result {
		calls++
		if calls < 3 {
			return Result{Outcome: OutcomeTimeout, Message: "slow page"}
		}
		return Result{Outcome: OutcomeSuccess}
	}

	rep := r.Run(context.Background(), "renew", []account.Account{{Identifier: "a@x.com", Secret: "p"}}, task)
	assert.Equal(t, 3, calls)
	require.Len(t, rep.Attempts, 1)
	assert.Equal(t, OutcomeSuccess, rep.Attempts[0].Outcome)
	assert.Equal(t, 3, rep.Attempts[0].Tries)
	assert.Equal(t, 0, rep.ExitCode())
}

func TestRunStopsOnPermanentFailure(t *testing.T) {
	r := testRunner(t)
	calls := 0
	task := func(ctx context.Context, idx int, acc account.Account) Result {
		calls++
		return Result{Outcome: OutcomeWrongCredential, Message: "bad password"}
	}

	rep := r.Run(context.Background(), "renew", []account.Account{{Identifier: "a@x.com", Secret: "p"}}, task)
	assert.Equal(t, 1, calls, "permanent failures must not be retried")
	assert.Equal(t, 1, rep.ExitCode())
}

func TestRunRecoversFromPanic(t *testing.T) {
	r := testRunner(t)
	r.Cfg.Retry.Attempts = 1
	task := func(ctx context.Context, idx int, acc account.Account) Result {
		if idx == 1 {
			panic("selector gone")
		}
		return Result{Outcome: OutcomeSuccess}
	}

	accs := []account.Account{
		{Identifier: "boom@x.com", Secret: "p"},
		{Identifier: "fine@x.com", Secret: "p"},
	}
	rep := r.Run(context.Background(), "renew", accs, task)
	require.Len(t, rep.Attempts, 2)
	assert.Equal(t, OutcomeUnknown, rep.Attempts[0].Outcome)
	assert.Contains(t, rep.Attempts[0].Message, "panic")
	assert.Equal(t, OutcomeSuccess, rep.Attempts[1].Outcome)
	assert.Equal(t, 0, rep.ExitCode(), "one success keeps the batch green")
}

func TestExitCodeEmptyBatch(t *testing.T) {
	rep := &Report{Job: "renew"}
	assert.Equal(t, 1, rep.ExitCode())
}

func TestExitCodeToleratesDisabled(t *testing.T) {
	rep := &Report{Job: "exec", Attempts: []Attempt{
		{Label: "a", Outcome: OutcomeDisabled},
		{Label: "b", Outcome: OutcomeTimeout},
	}}
	assert.Equal(t, 0, rep.ExitCode(), "disabled account is an expected state")
	assert.Equal(t, 0, rep.Successes())

	rep.Attempts[0].Outcome = OutcomeWrongCredential
	assert.Equal(t, 1, rep.ExitCode())
}

func TestSummaryMasksNothingItShouldnt(t *testing.T) {
	rep := &Report{
		Job:        "zampto-renew",
		StartedAt:  time.Now().Add(-90 * time.Second),
		FinishedAt: time.Now(),
		Attempts: []Attempt{
			{Label: "al***ce@x.com", Outcome: OutcomeSuccess},
			{Label: "bo***bb@x.com", Outcome: OutcomeBlocked, Message: "access blocked page"},
		},
	}
	s := rep.Summary()
	assert.Contains(t, s, "1/2 succeeded")
	assert.Contains(t, s, "✓ al***ce@x.com: success")
	assert.Contains(t, s, "✗ bo***bb@x.com: blocked - access blocked page")
}

type fakeStore struct{ rows int }

func (f *fakeStore) RecordAttempt(job, label, outcome, message string, tries int, started, finished time.Time) error {
	f.rows++
	return nil
}

func TestRunRecordsHistory(t *testing.T) {
	r := testRunner(t)
	fs := &fakeStore{}
	r.Store = fs
	task := func(ctx context.Context, idx int, acc account.Account) Result {
		return Result{Outcome: OutcomeSuccess}
	}
	r.Run(context.Background(), "renew", []account.Account{{Identifier: "a@x.com", Secret: "p"}}, task)
	assert.Equal(t, 1, fs.rows)
}
