// Package session persists browser cookies between runs so panels that
// rate-limit or challenge fresh logins (Weirdhost in particular) can be
// reached with a still-warm session instead of a password.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
)

// Store reads and writes one account's cookie jar on disk. Each account
// gets its own file so a batch can carry independent sessions.
type Store struct {
	path string
	// sessionNames mark the cookies that must be present and unexpired
	// for the jar to be worth injecting.
	sessionNames []string
}

// StoredCookies is the on-disk format.
type StoredCookies struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// New creates a store at path. sessionNames are the cookie names that
// carry the login (e.g. "pterodactyl_session", "remember_web_...").
func New(path string, sessionNames ...string) *Store {
	return &Store{path: path, sessionNames: sessionNames}
}

// PathFor builds a per-account file name under dir, derived from the
// account identifier with unsafe characters replaced.
func PathFor(dir, identifier string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, identifier)
	return filepath.Join(dir, name+".json")
}

// Save writes the jar. ExpiresAt is the earliest expiry among the
// session cookies, so IsValid can answer without parsing every cookie.
func (s *Store) Save(cookies []*network.Cookie) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}

	var earliest time.Time
	for _, c := range cookies {
		if !s.isSessionCookie(c.Name) || c.Expires <= 0 {
			continue
		}
		exp := time.Unix(int64(c.Expires), 0)
		if earliest.IsZero() || exp.Before(earliest) {
			earliest = exp
		}
	}

	stored := StoredCookies{
		Cookies:    cookies,
		CapturedAt: time.Now(),
		ExpiresAt:  earliest,
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// Load reads the jar from disk.
func (s *Store) Load() (*StoredCookies, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var stored StoredCookies
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// IsValid reports whether the stored jar still looks like a usable
// session: unexpired, and containing every required session cookie.
func (s *Store) IsValid() bool {
	stored, err := s.Load()
	if err != nil {
		return false
	}
	if !stored.ExpiresAt.IsZero() && time.Now().After(stored.ExpiresAt) {
		return false
	}
	for _, want := range s.sessionNames {
		found := false
		for _, c := range stored.Cookies {
			if s.nameMatches(c.Name, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return len(stored.Cookies) > 0
}

// Clear removes the jar. Missing file is fine.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *Store) isSessionCookie(name string) bool {
	for _, want := range s.sessionNames {
		if s.nameMatches(name, want) {
			return true
		}
	}
	return false
}

// nameMatches treats the wanted name as a prefix: Laravel's remember
// cookie embeds a per-install hash ("remember_web_59ba36...").
func (s *Store) nameMatches(name, want string) bool {
	return strings.HasPrefix(name, want)
}
