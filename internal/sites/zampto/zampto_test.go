package zampto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractServerIDs(t *testing.T) {
	src := `<a href="/server?id=123">one</a>
	<a href="https://dash.zampto.net/server?id=456">two</a>
	<a href="/server?id=123">dup</a>`
	assert.Equal(t, []string{"123", "456"}, extractServerIDs(src, false))
}

func TestExtractServerIDsPrefersConsoleLinks(t *testing.T) {
	src := `<a href="/server?id=1">plain</a>
	<a href="https://dash.zampto.net/server-console?id=7">console</a>`
	assert.Equal(t, []string{"7"}, extractServerIDs(src, true))

	// No console links at all falls back to server links.
	assert.Equal(t, []string{"1"}, extractServerIDs(`<a href="/server?id=1">x</a>`, true))
}

func TestCalcExpiry(t *testing.T) {
	// 2880 minutes = 48 hours after the renewal timestamp.
	got := calcExpiry("Jun 1, 2024 3:04 PM")
	want := time.Date(2024, 6, 1, 15, 4, 0, 0, time.UTC).Add(48 * time.Hour).Local().Format("2006-01-02 15:04")
	assert.Equal(t, want, got)

	assert.Equal(t, "unknown", calcExpiry("not a timestamp"))
	assert.Equal(t, "unknown", calcExpiry(""))
}

func TestJudgeRenewal(t *testing.T) {
	now := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)

	ok, msg := judgeRenewal("Jun 1, 2024 3:04 PM", "Jun 2, 2024 9:58 AM", "", now)
	assert.True(t, ok)
	assert.Contains(t, msg, "renewed")

	// Timestamp unchanged but from today: an earlier run already renewed.
	ok, msg = judgeRenewal("Jun 2, 2024 8:00 AM", "Jun 2, 2024 8:00 AM", "", now)
	assert.True(t, ok)
	assert.Contains(t, msg, "already renewed today")

	// Remaining-time text is enough when the timestamps are blank.
	ok, _ = judgeRenewal("", "", "1 day 3 hours", now)
	assert.True(t, ok)
	ok, _ = judgeRenewal("", "", "5 hours", now)
	assert.True(t, ok)

	ok, _ = judgeRenewal("Jun 1, 2024 3:04 PM", "Jun 1, 2024 3:04 PM", "", now)
	assert.False(t, ok)
	ok, _ = judgeRenewal("", "", "", now)
	assert.False(t, ok)
}

func TestMaskID(t *testing.T) {
	assert.Equal(t, "1***", maskID("12345"))
	assert.Equal(t, "****", maskID(""))
}
