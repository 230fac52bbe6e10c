package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/panelkeeper/panelkeeper/internal/store"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		jobFilter string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent job attempts from the history database",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cfg.History.DBPath == "" {
				return fmt.Errorf("history disabled: set history.db_path in the config file")
			}

			st, err := store.New(cfg.History.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			rows, err := st.ListRecent(jobFilter, limit)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("no attempts recorded")
				return nil
			}
			for _, r := range rows {
				line := fmt.Sprintf("%s  %-18s %-22s %-16s tries=%d",
					r.FinishedAt.Format("2006-01-02 15:04"), r.Job, r.Account, r.Outcome, r.Tries)
				if r.Message != "" {
					line += "  " + r.Message
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&jobFilter, "job", "", "only show attempts for this job")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of attempts to show")
	return cmd
}
