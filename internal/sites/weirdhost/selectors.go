package weirdhost

const (
	hubURL   = "https://hub.weirdhost.xyz"
	loginURL = "https://hub.weirdhost.xyz/auth/login"
)

// sessionCookies are the names that carry a Pterodactyl login.
var sessionCookies = []string{"pterodactyl_session", "remember_web_"}
