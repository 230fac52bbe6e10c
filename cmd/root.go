// Package cmd wires the panelkeeper CLI: one subcommand per panel job,
// plus daemon mode, run history, and maintenance helpers.
package cmd

import (
	"github.com/mattn/go-colorable"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/panelkeeper/panelkeeper/internal/config"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		headful    bool
	)

	rootCmd := &cobra.Command{
		Use:           "panelkeeper",
		Short:         "Keep free hosting panel servers alive",
		Long:          "panelkeeper automates the renew/restart chores that free hosting and billing panels demand, one browser session per batch, with Telegram reports.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "panelkeeper.toml", "path to the TOML config file")
	rootCmd.PersistentFlags().BoolVar(&headful, "headful", false, "run the browser with a visible window")

	app := &app{
		log:     newLogger(),
		headful: &headful,
		cfgPath: &configPath,
	}

	rootCmd.AddCommand(
		newZamptoCmd(app),
		newKeritCmd(app),
		newPellaCmd(app),
		newWeirdhostCmd(app),
		newDataonlineCmd(app),
		newDaemonCmd(app),
		newHistoryCmd(app),
		newFingerprintCmd(app),
		newConfigCmd(app),
	)
	return rootCmd
}

func newLogger() *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(colorable.NewColorableStdout()),
		zapcore.InfoLevel,
	))
}

// loadConfig reads the TOML file and applies the command-line overrides.
func (a *app) loadConfig() (*config.Config, error) {
	config.LoadDotenv()
	cfg, err := config.Load(*a.cfgPath)
	if err != nil {
		return nil, err
	}
	if *a.headful {
		cfg.Browser.Headless = false
	}
	return cfg, nil
}
