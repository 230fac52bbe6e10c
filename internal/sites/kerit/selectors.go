package kerit

import "regexp"

const (
	loginURL     = "https://billing.kerit.cloud/"
	freePanelURL = "https://billing.kerit.cloud/free_panel"
)

// maxRenewals is the panel's per-server cap: seven days banked at most.
const maxRenewals = 7

var (
	renewalCountRe = regexp.MustCompile(`(\d+)\s*/\s*7`)
	daysRemainRe   = regexp.MustCompile(`(?i)(\d+)\s*Days?`)
)

const continueEnabledJS = `(function(){ const b = document.getElementById('continue-btn'); return !!b && !b.disabled; })()`
