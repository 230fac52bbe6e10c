// Package otp retrieves one-time passcodes from a mailbox over IMAP.
// The Kerit login flow emails a 4-digit code; this package polls the
// inbox, decodes the message bodies, and digs the code out of whatever
// HTML template the panel is using this week.
package otp

import (
	"regexp"
	"strings"
)

// imapServers maps mail domains to their IMAP endpoints. Domains not
// listed fall back to imap.<domain>:993.
var imapServers = map[string]string{
	"gmail.com":      "imap.gmail.com:993",
	"googlemail.com": "imap.gmail.com:993",
	"outlook.com":    "imap-mail.outlook.com:993",
	"hotmail.com":    "imap-mail.outlook.com:993",
	"live.com":       "imap-mail.outlook.com:993",
	"yahoo.com":      "imap.mail.yahoo.com:993",
	"163.com":        "imap.163.com:993",
	"126.com":        "imap.126.com:993",
	"qq.com":         "imap.qq.com:993",
	"foxmail.com":    "imap.qq.com:993",
	"icloud.com":     "imap.mail.me.com:993",
	"me.com":         "imap.mail.me.com:993",
	"zoho.com":       "imap.zoho.com:993",
	// Proton requires the local bridge.
	"proton.me":      "127.0.0.1:1143",
	"protonmail.com": "127.0.0.1:1143",
}

// ServerFor returns the IMAP server address for an email address.
func ServerFor(addr string) string {
	domain := addr
	if i := strings.LastIndexByte(addr, '@'); i >= 0 {
		domain = addr[i+1:]
	}
	domain = strings.ToLower(domain)
	if server, ok := imapServers[domain]; ok {
		return server
	}
	return "imap." + domain + ":993"
}

// codePatterns are tried in order against the decoded message body. The
// capture group is the 4-digit code. Later patterns match the styled
// <div> the code is rendered in when the wording changes.
var codePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)YOUR VERIFICATION CODE[^0-9]*(\d{4})`),
	regexp.MustCompile(`(?is)verification code[^0-9]*(\d{4})`),
	regexp.MustCompile(`(?is)letter-spacing[^>]*>\s*(\d{4})\s*<`),
	regexp.MustCompile(`(?is)>\s*(\d{4})\s*</div>`),
	regexp.MustCompile(`(?is)font-size:\s*36px[^>]*>\s*(\d{4})`),
	regexp.MustCompile(`(?is)code[^0-9]{0,20}(\d{4})`),
}

var anyFourDigits = regexp.MustCompile(`\b(\d{4})\b`)

// Extract pulls a 4-digit code out of a message body. After the known
// patterns it falls back to any standalone 4-digit group that does not
// look like a year.
func Extract(body string) (string, bool) {
	for _, re := range codePatterns {
		if m := re.FindStringSubmatch(body); m != nil {
			return m[1], true
		}
	}
	for _, m := range anyFourDigits.FindAllStringSubmatch(body, -1) {
		code := m[1]
		if strings.HasPrefix(code, "19") || strings.HasPrefix(code, "20") {
			continue
		}
		return code, true
	}
	return "", false
}

// MatchesSender reports whether the message looks like it came from the
// panel: sender or subject mentions the panel name, or the subject is a
// verification mail.
func MatchesSender(from, subject, panel string) bool {
	from = strings.ToLower(from)
	subject = strings.ToLower(subject)
	panel = strings.ToLower(panel)
	return strings.Contains(from, panel) ||
		strings.Contains(subject, panel) ||
		strings.Contains(subject, "verification")
}
