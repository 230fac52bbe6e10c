package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/panelkeeper/panelkeeper/internal/scheduler"
)

func newDaemonCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the jobs from [schedule.jobs] on their cron expressions",
		Long: `Runs panelkeeper as a long-lived process instead of one-shot CI
invocations. The [schedule.jobs] table in the config file maps job names
(zampto-renew, kerit-renew, ...) to standard cron expressions.`,
		RunE: func(c *cobra.Command, _ []string) error {
			return a.runDaemon()
		},
	}
}

func (a *app) runDaemon() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Schedule.Jobs) == 0 {
		return fmt.Errorf("no jobs in [schedule.jobs]; nothing to run")
	}

	sched, err := scheduler.New(cfg.Schedule.Timezone, time.Duration(cfg.Batch.JobTimeoutMin)*time.Minute, a.log)
	if err != nil {
		return err
	}

	for name, expr := range cfg.Schedule.Jobs {
		j, ok := a.findJob(name)
		if !ok {
			return fmt.Errorf("unknown job %q in [schedule.jobs]", name)
		}
		err := sched.AddJob(j.name, expr, func(ctx context.Context) error {
			return a.runBatch(ctx, j.name, j.accounts(a), j.factory)
		})
		if err != nil {
			return err
		}
	}

	sched.Start()
	for _, info := range sched.ListJobs() {
		a.log.Info("job armed", zap.String("job", info.Name), zap.Time("next", info.NextRun))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	a.log.Info("shutting down, waiting for running jobs")
	<-sched.Stop().Done()
	return nil
}
