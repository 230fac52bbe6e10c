package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/panelkeeper/panelkeeper/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default tunables",
		RunE: func(c *cobra.Command, _ []string) error {
			path := *a.cfgPath
			if err := config.Default().Save(path); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	})
	return cmd
}
