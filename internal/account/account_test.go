package account

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePairs(t *testing.T) {
	accounts := ParsePairs("ABC----pass1\nDEF----pass2")
	require.Len(t, accounts, 2)
	assert.Equal(t, "ABC", accounts[0].Identifier)
	assert.Equal(t, "pass1", accounts[0].Secret)
	assert.Equal(t, "DEF", accounts[1].Identifier)
	assert.Equal(t, "pass2", accounts[1].Secret)
}

func TestParsePairsDropsMalformed(t *testing.T) {
	in := strings.Join([]string{
		"good----secret",
		"no-delimiter-here",
		"----missing-id",
		"missing-secret----",
		"",
		"# a comment",
		"  trimmed  ----  spaced  ",
	}, "\n")

	accounts := ParsePairs(in)
	require.Len(t, accounts, 2)
	assert.Equal(t, "good", accounts[0].Identifier)
	assert.Equal(t, "trimmed", accounts[1].Identifier)
	assert.Equal(t, "spaced", accounts[1].Secret)
}

func TestParsePairsSecretMayContainDelimiterChars(t *testing.T) {
	accounts := ParsePairs("user----pa--ss")
	require.Len(t, accounts, 1)
	assert.Equal(t, "pa--ss", accounts[0].Secret)
}

func TestParseTriples(t *testing.T) {
	accounts := ParseTriples("a@x.com----pw----/usr/bin/restart --force\nb@x.com----pw2")
	require.Len(t, accounts, 1)
	assert.Equal(t, "a@x.com", accounts[0].Identifier)
	assert.Equal(t, "/usr/bin/restart --force", accounts[0].Extra)
}

func TestParseTriplesExtraKeepsDelimiter(t *testing.T) {
	accounts := ParseTriples("a@x.com----pw----echo ----marker")
	require.Len(t, accounts, 1)
	assert.Equal(t, "echo ----marker", accounts[0].Extra)
}

func TestParseFlatPairs(t *testing.T) {
	accounts := ParseFlatPairs("a@x.com----pw1----b@y.com----pw2")
	require.Len(t, accounts, 2)
	assert.Equal(t, "a@x.com", accounts[0].Identifier)
	assert.Equal(t, "pw2", accounts[1].Secret)

	// Odd trailing identifier without a secret is dropped.
	accounts = ParseFlatPairs("a@x.com----pw1----dangling@y.com")
	require.Len(t, accounts, 1)

	// Identifiers must look like email addresses.
	accounts = ParseFlatPairs("notanemail----pw1")
	assert.Empty(t, accounts)
}

func TestParseColonPairs(t *testing.T) {
	accounts := ParseColonPairs("a@x.com:pw1,b@y.com:pw2; c@z.com:pw3")
	require.Len(t, accounts, 3)
	assert.Equal(t, "a@x.com", accounts[0].Identifier)
	assert.Equal(t, "pw2", accounts[1].Secret)
	assert.Equal(t, "c@z.com", accounts[2].Identifier)

	// Secrets keep any further colons.
	accounts = ParseColonPairs("a@x.com:pw:with:colons")
	require.Len(t, accounts, 1)
	assert.Equal(t, "pw:with:colons", accounts[0].Secret)

	// Entries missing a colon or a field are dropped.
	assert.Empty(t, ParseColonPairs("nocolon,:nopw,noid:"))
}

func TestFilter(t *testing.T) {
	accounts := []Account{
		{Identifier: "alice@x.com"},
		{Identifier: "bob@y.com"},
	}
	assert.Len(t, Filter(accounts, ""), 2)
	assert.Len(t, Filter(accounts, "alice"), 1)
	assert.Len(t, Filter(accounts, "BOB@Y.COM"), 1)
	assert.Empty(t, Filter(accounts, "carol"))
}

func TestMaskNeverRevealsTail(t *testing.T) {
	for _, s := range []string{"a", "ab", "abcdef", "a-very-long-secret-value"} {
		masked := Mask(s, 2)
		assert.True(t, strings.HasSuffix(masked, "***") || strings.Contains(masked, "*"), masked)
		if len(s) > 2 {
			assert.NotContains(t, masked, s[2:], "masked output leaked the tail")
		}
	}
	assert.Equal(t, "***", Mask("", 2))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "al***ce@x.com", MaskEmail("alice@x.com"))
	assert.Equal(t, "b***@y.com", MaskEmail("bob@y.com"))
	// Non-address falls back to plain masking.
	assert.NotContains(t, MaskEmail("plainuser"), "ainuser")
}

func TestMaskCommand(t *testing.T) {
	assert.Equal(t, "restart ...", MaskCommand("/usr/bin/restart --force --now"))
	assert.Equal(t, "ls ...", MaskCommand("ls -la /"))
	assert.Equal(t, "***", MaskCommand("  "))
}

func TestUsername(t *testing.T) {
	assert.Equal(t, "alice", Account{Identifier: "alice@x.com"}.Username())
	assert.Equal(t, "raw", Account{Identifier: "raw"}.Username())
}
