package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathFor(t *testing.T) {
	got := PathFor("/tmp/jars", "alice@example.com")
	assert.Equal(t, filepath.Join("/tmp/jars", "alice_example.com.json"), got)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "jar.json"), "pterodactyl_session")

	future := float64(time.Now().Add(24 * time.Hour).Unix())
	cookies := []*network.Cookie{
		{Name: "pterodactyl_session", Value: "abc", Domain: "hub.weirdhost.xyz", Expires: future},
		{Name: "XSRF-TOKEN", Value: "tok", Domain: "hub.weirdhost.xyz", Expires: future},
	}
	require.NoError(t, s.Save(cookies))

	stored, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, stored.Cookies, 2)
	assert.False(t, stored.CapturedAt.IsZero())
	assert.True(t, s.IsValid())
}

func TestIsValidRejectsExpired(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "jar.json"), "pterodactyl_session")

	past := float64(time.Now().Add(-time.Hour).Unix())
	require.NoError(t, s.Save([]*network.Cookie{
		{Name: "pterodactyl_session", Value: "abc", Expires: past},
	}))
	assert.False(t, s.IsValid())
}

func TestIsValidRequiresSessionCookie(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "jar.json"), "remember_web_")

	future := float64(time.Now().Add(time.Hour).Unix())
	require.NoError(t, s.Save([]*network.Cookie{
		{Name: "unrelated", Value: "x", Expires: future},
	}))
	assert.False(t, s.IsValid())

	// Prefix match covers Laravel's hashed remember cookie name.
	require.NoError(t, s.Save([]*network.Cookie{
		{Name: "remember_web_59ba36addc2b2f94", Value: "x", Expires: future},
	}))
	assert.True(t, s.IsValid())
}

func TestIsValidMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent.json"))
	assert.False(t, s.IsValid())
	assert.NoError(t, s.Clear())
}
