package cmd

import (
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/spf13/cobra"

	"github.com/panelkeeper/panelkeeper/internal/browser"
)

func newFingerprintCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Open bot.sannysoft.com to audit the browser fingerprint",
		Long: `Launches the browser with the same stealth options the panel jobs
use and loads a fingerprinting test page, so you can check what the
panels' bot detection sees. Runs headful regardless of config.`,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			opts := browser.AllocatorOptions(browser.Options{
				Headless: false, // you need to see the result table
				ProxyURL: a.resolveProxy(),
				Width:    cfg.Browser.WindowWidth,
				Height:   cfg.Browser.WindowHeight,
			})

			allocCtx, cancelAlloc := chromedp.NewExecAllocator(c.Context(), opts...)
			defer cancelAlloc()
			ctx, cancel := chromedp.NewContext(allocCtx)
			defer cancel()

			err = chromedp.Run(ctx,
				chromedp.Navigate("https://bot.sannysoft.com"),
				chromedp.WaitVisible("body", chromedp.ByQuery),
			)
			if err != nil {
				return fmt.Errorf("open fingerprint page: %w", err)
			}

			fmt.Println("Press Enter to close the browser...")
			fmt.Scanln()
			return nil
		},
	}
}
