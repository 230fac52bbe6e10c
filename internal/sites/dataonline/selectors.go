package dataonline

const (
	baseURL     = "https://sv66.dataonline.vn:2222"
	loginURL    = baseURL + "/evo/login"
	terminalURL = baseURL + "/evo/user/terminal"
)

// The EVO login form wraps its inputs in styled containers; plain
// name attributes are not guaranteed.
var (
	usernameSelectors = []string{
		`#username input`, `input[placeholder*="username" i]`,
		`input[name="username"]`, `input[type="text"]`,
		`.Input__Text`, `div.Input input`,
	}
	passwordSelectors = []string{
		`#password input`, `input[type="password"]`,
		`input[placeholder*="password" i]`, `.InputPassword__Input`,
	}
	submitSelectors = []string{`button[type="submit"]`, `.Button[type="submit"]`}
	terminalTargets = []string{`.xterm`, `.xterm-screen`, `.terminal`, `canvas`}
)
