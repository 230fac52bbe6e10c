// Command panelkeeper runs browser-automation chores against free
// hosting and billing panels: renewals, restarts, session refreshes,
// and web-terminal commands.
package main

import (
	"os"

	"github.com/panelkeeper/panelkeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
