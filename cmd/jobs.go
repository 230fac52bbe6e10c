package cmd

import (
	"github.com/spf13/cobra"

	"github.com/panelkeeper/panelkeeper/internal/account"
	"github.com/panelkeeper/panelkeeper/internal/config"
	"github.com/panelkeeper/panelkeeper/internal/driver"
	"github.com/panelkeeper/panelkeeper/internal/otp"
	"github.com/panelkeeper/panelkeeper/internal/runner"
	"github.com/panelkeeper/panelkeeper/internal/sites/dataonline"
	"github.com/panelkeeper/panelkeeper/internal/sites/kerit"
	"github.com/panelkeeper/panelkeeper/internal/sites/pella"
	"github.com/panelkeeper/panelkeeper/internal/sites/weirdhost"
	"github.com/panelkeeper/panelkeeper/internal/sites/zampto"
)

// job bundles everything a scheduled or one-shot run needs: the batch
// name, how to read its accounts from the environment, and the task
// factory. The daemon registry reuses the same table.
type job struct {
	name     string
	accounts func(a *app) []account.Account
	factory  taskFactory
}

func (a *app) jobs() []job {
	return []job{
		{
			name: "zampto-renew",
			accounts: func(a *app) []account.Account {
				return account.ParsePairs(a.env.Accounts("ZAMPTO_ACCOUNT"))
			},
			factory: func(cfg *config.Config, s *driver.Session) runner.Task {
				return (&zampto.Renewer{Session: s, Log: a.log}).Run
			},
		},
		{
			name: "zampto-restart",
			accounts: func(a *app) []account.Account {
				return account.ParsePairs(a.env.Accounts("ZAMPTO_ACCOUNT"))
			},
			factory: func(cfg *config.Config, s *driver.Session) runner.Task {
				return (&zampto.Restarter{Session: s, Log: a.log}).Run
			},
		},
		{
			name: "kerit-renew",
			accounts: func(a *app) []account.Account {
				return account.ParseFlatPairs(a.env.Accounts("BILLING_KERIT_MAIL"))
			},
			factory: func(cfg *config.Config, s *driver.Session) runner.Task {
				fetcher := &otp.Fetcher{Panel: "kerit", Log: a.log}
				return (&kerit.Renewer{Session: s, OTP: fetcher, Log: a.log}).Run
			},
		},
		{
			name: "pella-renew",
			accounts: func(a *app) []account.Account {
				accs := account.ParseColonPairs(a.env.Accounts("PELLA_ACCOUNTS"))
				return account.Filter(accs, a.env.AccountFilter())
			},
			factory: func(cfg *config.Config, s *driver.Session) runner.Task {
				return (&pella.Renewer{Session: s, Log: a.log}).Run
			},
		},
		{
			name: "weirdhost-refresh",
			accounts: func(a *app) []account.Account {
				return account.ParsePairs(a.env.Accounts("WEIRDHOST_ACCOUNT"))
			},
			factory: func(cfg *config.Config, s *driver.Session) runner.Task {
				return (&weirdhost.Refresher{Session: s, CookieDir: cfg.Output.CookieDir, Log: a.log}).Run
			},
		},
		{
			name: "dataonline-exec",
			accounts: func(a *app) []account.Account {
				accs := account.ParseTriples(a.env.Accounts("DATA_ACCOUNT"))
				return account.Filter(accs, a.env.AccountFilter())
			},
			factory: func(cfg *config.Config, s *driver.Session) runner.Task {
				return (&dataonline.Executor{Session: s, Log: a.log}).Run
			},
		},
	}
}

func (a *app) findJob(name string) (job, bool) {
	for _, j := range a.jobs() {
		if j.name == name {
			return j, true
		}
	}
	return job{}, false
}

func (a *app) runJobCmd(cmd *cobra.Command, name string) error {
	j, ok := a.findJob(name)
	if !ok {
		panic("unregistered job " + name)
	}
	return a.runBatch(cmd.Context(), j.name, j.accounts(a), j.factory)
}

func newZamptoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zampto",
		Short: "Zampto dashboard jobs (ZAMPTO_ACCOUNT)",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "renew",
			Short: "Renew every server on each Zampto account",
			RunE: func(c *cobra.Command, _ []string) error {
				return a.runJobCmd(c, "zampto-renew")
			},
		},
		&cobra.Command{
			Use:   "restart",
			Short: "Restart every server on each Zampto account",
			RunE: func(c *cobra.Command, _ []string) error {
				return a.runJobCmd(c, "zampto-restart")
			},
		},
	)
	return cmd
}

func newKeritCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kerit",
		Short: "Kerit billing jobs (BILLING_KERIT_MAIL)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "renew",
		Short: "Run the free-panel renewal loop, logging in via emailed code",
		RunE: func(c *cobra.Command, _ []string) error {
			return a.runJobCmd(c, "kerit-renew")
		},
	})
	return cmd
}

func newPellaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pella",
		Short: "Pella panel jobs (PELLA_ACCOUNTS, optional ACCOUNT_NAME filter)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "renew",
		Short: "Renew server expiry and restart it if stopped",
		RunE: func(c *cobra.Command, _ []string) error {
			return a.runJobCmd(c, "pella-renew")
		},
	})
	return cmd
}

func newWeirdhostCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weirdhost",
		Short: "Weirdhost hub jobs (WEIRDHOST_ACCOUNT)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Keep the panel session alive from the stored cookie jar",
		RunE: func(c *cobra.Command, _ []string) error {
			return a.runJobCmd(c, "weirdhost-refresh")
		},
	})
	return cmd
}

func newDataonlineCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataonline",
		Short: "DataOnline Evo jobs (DATA_ACCOUNT, optional ACCOUNT_NAME filter)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "exec",
		Short: "Run each account's configured command in the web terminal",
		RunE: func(c *cobra.Command, _ []string) error {
			return a.runJobCmd(c, "dataonline-exec")
		},
	})
	return cmd
}
