package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/panelkeeper/panelkeeper/internal/account"
	"github.com/panelkeeper/panelkeeper/internal/browser"
	"github.com/panelkeeper/panelkeeper/internal/config"
	"github.com/panelkeeper/panelkeeper/internal/driver"
	"github.com/panelkeeper/panelkeeper/internal/notify"
	"github.com/panelkeeper/panelkeeper/internal/runner"
	"github.com/panelkeeper/panelkeeper/internal/store"
)

// app carries the pieces every subcommand needs. Config is loaded per
// run so daemon mode picks up file edits between scheduled jobs.
type app struct {
	log     *zap.Logger
	env     config.Env
	headful *bool
	cfgPath *string
}

// taskFactory builds the site task once the shared browser session is up.
type taskFactory func(cfg *config.Config, s *driver.Session) runner.Task

// runBatch is the one-shot job path: load config, launch the browser,
// run the batch, and fail the command when nothing succeeded so the CI
// wrapper sees a non-zero exit.
func (a *app) runBatch(ctx context.Context, job string, accounts []account.Account, factory taskFactory) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return fmt.Errorf("%s: no accounts configured", job)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Batch.JobTimeoutMin)*time.Minute)
	defer cancel()

	proxyURL := a.resolveProxy()

	session, err := driver.NewSession(ctx, browser.Options{
		Headless: cfg.Browser.Headless,
		ProxyURL: proxyURL,
		Width:    cfg.Browser.WindowWidth,
		Height:   cfg.Browser.WindowHeight,
	}, cfg.Output.ScreenshotDir, time.Duration(cfg.Browser.StepTimeoutSec)*time.Second, a.log)
	if err != nil {
		return err
	}
	defer session.Close()

	notifier, err := notify.New(a.env.BotToken(), a.env.ChatID(), a.log)
	if err != nil {
		return err
	}

	run := runner.Runner{Cfg: cfg, Log: a.log, Notify: notifier}
	if cfg.History.DBPath != "" {
		st, err := store.New(cfg.History.DBPath)
		if err != nil {
			return fmt.Errorf("open history db: %w", err)
		}
		defer st.Close()
		run.Store = st
	}

	report := run.Run(ctx, job, accounts, factory(cfg, session))
	if report.ExitCode() != 0 {
		return fmt.Errorf("%s: no account succeeded", job)
	}
	return nil
}

// resolveProxy normalizes the configured proxy and probes it. A failed
// probe is only a warning: panels sometimes block the probe endpoint
// while the proxy itself works fine.
func (a *app) resolveProxy() string {
	raw := a.env.Proxy()
	if raw == "" {
		return ""
	}
	url, err := config.NormalizeProxy(raw)
	if err != nil {
		a.log.Warn("proxy ignored", zap.Error(err))
		return ""
	}
	if ip, err := config.CheckProxy(url); err != nil {
		a.log.Warn("proxy probe failed, using it anyway", zap.Error(err))
	} else {
		a.log.Info("proxy up", zap.String("egress", ip))
	}
	return url
}
