package otp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerFor(t *testing.T) {
	assert.Equal(t, "imap.gmail.com:993", ServerFor("alice@gmail.com"))
	assert.Equal(t, "imap-mail.outlook.com:993", ServerFor("bob@HOTMAIL.com"))
	assert.Equal(t, "imap.qq.com:993", ServerFor("c@foxmail.com"))
	assert.Equal(t, "127.0.0.1:1143", ServerFor("d@proton.me"))
	// Unlisted domains get the conventional endpoint.
	assert.Equal(t, "imap.example.org:993", ServerFor("e@example.org"))
}

func TestExtractWordedCode(t *testing.T) {
	code, ok := Extract("Hello,\n\nYOUR VERIFICATION CODE IS: 4821\n\nIt expires in 10 minutes.")
	assert.True(t, ok)
	assert.Equal(t, "4821", code)
}

func TestExtractStyledDiv(t *testing.T) {
	body := `<html><body>
	<p>Use this code to sign in:</p>
	<div style="font-size: 36px; letter-spacing: 8px; font-weight: bold;"> 7305 </div>
	<p>Sent 2024-06-01</p>
	</body></html>`
	code, ok := Extract(body)
	assert.True(t, ok)
	assert.Equal(t, "7305", code)
}

func TestExtractFallbackSkipsYears(t *testing.T) {
	code, ok := Extract("Copyright 2024. Your pin: 6142 thanks")
	assert.True(t, ok)
	assert.Equal(t, "6142", code)
}

func TestExtractNothing(t *testing.T) {
	_, ok := Extract("No digits here, and 2025 does not count.")
	assert.False(t, ok)
}

func TestMatchesSender(t *testing.T) {
	assert.True(t, MatchesSender("noreply@billing.kerit.cloud", "Sign in", "kerit"))
	assert.True(t, MatchesSender("mailer@sendgrid.net", "Kerit login code", "kerit"))
	assert.True(t, MatchesSender("mailer@sendgrid.net", "Your verification code", "kerit"))
	assert.False(t, MatchesSender("news@example.com", "Weekly digest", "kerit"))
}
