// Package account parses the delimiter-separated credential strings the
// panel jobs receive through environment variables, and provides the
// masking helpers used before anything sensitive reaches a log line.
package account

import (
	"regexp"
	"strings"
)

// Delimiter separates fields within one credential entry.
const Delimiter = "----"

// Account is one panel credential. Extra carries a site-specific third
// field (the DataOnline jobs put the shell command there).
type Account struct {
	Identifier string
	Secret     string
	Extra      string
}

// Username returns the part of the identifier before the "@", or the
// whole identifier when it is not an email address.
func (a Account) Username() string {
	if i := strings.IndexByte(a.Identifier, '@'); i >= 0 {
		return a.Identifier[:i]
	}
	return a.Identifier
}

// ParsePairs reads newline-separated "identifier----secret" entries.
// Blank lines and lines starting with "#" are skipped; entries missing
// the delimiter or either field are dropped. Order is preserved.
func ParsePairs(s string) []Account {
	var accounts []Account
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, Delimiter, 2)
		if len(parts) != 2 {
			continue
		}
		id, secret := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if id == "" || secret == "" {
			continue
		}
		accounts = append(accounts, Account{Identifier: id, Secret: secret})
	}
	return accounts
}

// ParseTriples reads newline-separated "identifier----secret----extra"
// entries. The extra field may itself contain the delimiter; everything
// after the second delimiter is kept verbatim.
func ParseTriples(s string) []Account {
	var accounts []Account
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, Delimiter)
		if len(parts) < 3 {
			continue
		}
		id := strings.TrimSpace(parts[0])
		secret := strings.TrimSpace(parts[1])
		extra := strings.TrimSpace(strings.Join(parts[2:], Delimiter))
		if id == "" || secret == "" || extra == "" {
			continue
		}
		accounts = append(accounts, Account{Identifier: id, Secret: secret, Extra: extra})
	}
	return accounts
}

// ParseFlatPairs reads a single "id1----secret1----id2----secret2..."
// string, the format the Kerit mail variable uses. Identifiers must
// contain "@"; entries with an empty field are dropped.
func ParseFlatPairs(s string) []Account {
	parts := strings.Split(strings.TrimSpace(s), Delimiter)
	var accounts []Account
	for i := 0; i+1 < len(parts); i += 2 {
		id := strings.TrimSpace(parts[i])
		secret := strings.TrimSpace(parts[i+1])
		if id == "" || secret == "" || !strings.Contains(id, "@") {
			continue
		}
		accounts = append(accounts, Account{Identifier: id, Secret: secret})
	}
	return accounts
}

var colonPairSep = regexp.MustCompile(`[;,]`)

// ParseColonPairs reads "email1:pw1,email2:pw2" entries separated by
// commas or semicolons, the format the Pella variable uses. The secret
// may contain further colons.
func ParseColonPairs(s string) []Account {
	var accounts []Account
	for _, pair := range colonPairSep.Split(strings.TrimSpace(s), -1) {
		pair = strings.TrimSpace(pair)
		if pair == "" || !strings.Contains(pair, ":") {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		id, secret := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if id == "" || secret == "" {
			continue
		}
		accounts = append(accounts, Account{Identifier: id, Secret: secret})
	}
	return accounts
}

// Filter keeps accounts whose identifier or username part equals target
// (case-insensitive). An empty target keeps everything.
func Filter(accounts []Account, target string) []Account {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return accounts
	}
	var out []Account
	for _, a := range accounts {
		id := strings.ToLower(a.Identifier)
		if id == target || strings.ToLower(a.Username()) == target {
			out = append(out, a)
		}
	}
	return out
}

// Mask hides all but the first show characters of s. The masked tail is
// capped at three stars so the output never leaks the secret's length.
func Mask(s string, show int) string {
	if s == "" {
		return "***"
	}
	if len(s) <= show {
		return s[:1] + "***"
	}
	stars := len(s) - show
	if stars > 3 {
		stars = 3
	}
	return s[:show] + strings.Repeat("*", stars)
}

// MaskEmail hides the local part of an email address, keeping the first
// and last two characters and the full domain. Non-addresses fall back
// to Mask.
func MaskEmail(addr string) string {
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 {
		return Mask(addr, 2)
	}
	local, domain := addr[:at], addr[at+1:]
	if len(local) <= 4 {
		return local[:1] + "***@" + domain
	}
	return local[:2] + "***" + local[len(local)-2:] + "@" + domain
}

// MaskCommand reduces a shell command to its program name for logging.
func MaskCommand(cmd string) string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return "***"
	}
	name := fields[0]
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name + " ..."
}
