package zampto

import "regexp"

const (
	authURL       = "https://auth.zampto.net/sign-in?app_id=bmhk6c8qdqxphlyscztgl"
	dashboardURL  = "https://dash.zampto.net/homepage"
	overviewURL   = "https://dash.zampto.net/overview"
	serverURLFmt  = "https://dash.zampto.net/server?id=%s"
	consoleURLFmt = "https://dash.zampto.net/server-console?id=%s"
)

// The auth pages render the identifier and password steps with varying
// markup, so each field gets an ordered fallback list.
var (
	identifierSelectors = []string{`input[name="identifier"]`, `input[type="email"]`, `input[type="text"]`}
	passwordSelectors   = []string{`input[name="password"]`, `input[type="password"]`}
	submitSelectors     = []string{`button[type="submit"]`, `button`}
)

var (
	serverIDRe  = regexp.MustCompile(`/server\?id=(\d+)`)
	consoleIDRe = regexp.MustCompile(`href="[^"]*?/server-console\?id=(\d+)"`)
)
