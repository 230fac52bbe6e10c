package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobRegistry(t *testing.T) {
	a := &app{log: newLogger()}

	names := []string{}
	for _, j := range a.jobs() {
		names = append(names, j.name)
	}
	assert.ElementsMatch(t, []string{
		"zampto-renew", "zampto-restart", "kerit-renew",
		"pella-renew", "weirdhost-refresh", "dataonline-exec",
	}, names)

	_, ok := a.findJob("kerit-renew")
	assert.True(t, ok)
	_, ok = a.findJob("nope")
	assert.False(t, ok)
}

func TestJobAccountsFromEnv(t *testing.T) {
	t.Setenv("ZAMPTO_ACCOUNT", "alice@example.com----pw1\nbob@example.com----pw2")
	t.Setenv("PELLA_ACCOUNTS", "carol@example.com:pw3,dave@example.com:pw4")
	t.Setenv("ACCOUNT_NAME", "carol@example.com")

	a := &app{log: newLogger()}

	j, ok := a.findJob("zampto-renew")
	require.True(t, ok)
	accs := j.accounts(a)
	require.Len(t, accs, 2)
	assert.Equal(t, "alice@example.com", accs[0].Identifier)

	// The Pella job honors the ACCOUNT_NAME filter.
	j, ok = a.findJob("pella-renew")
	require.True(t, ok)
	accs = j.accounts(a)
	require.Len(t, accs, 1)
	assert.Equal(t, "carol@example.com", accs[0].Identifier)
}
