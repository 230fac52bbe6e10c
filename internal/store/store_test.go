package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := openTest(t)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.RecordAttempt("zampto-renew", "al***ce@x.com", "success", "", 1, now.Add(-time.Minute), now))
	require.NoError(t, s.RecordAttempt("kerit-renew", "bo***bb@x.com", "timeout", "otp never arrived", 3, now, now.Add(time.Minute)))

	all, err := s.ListRecent("", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)

	kerit, err := s.ListRecent("kerit-renew", 10)
	require.NoError(t, err)
	require.Len(t, kerit, 1)
	assert.Equal(t, "timeout", kerit[0].Outcome)
	assert.Equal(t, "otp never arrived", kerit[0].Message)
	assert.Equal(t, 3, kerit[0].Tries)
}

func TestLastSuccess(t *testing.T) {
	s := openTest(t)

	never, err := s.LastSuccess("zampto-renew", "al***ce@x.com")
	require.NoError(t, err)
	assert.True(t, never.IsZero())

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.RecordAttempt("zampto-renew", "al***ce@x.com", "success", "", 1, now.Add(-time.Hour), now.Add(-time.Hour)))
	require.NoError(t, s.RecordAttempt("zampto-renew", "al***ce@x.com", "success", "", 1, now, now))
	require.NoError(t, s.RecordAttempt("zampto-renew", "al***ce@x.com", "blocked", "", 1, now.Add(time.Minute), now.Add(time.Minute)))

	last, err := s.LastSuccess("zampto-renew", "al***ce@x.com")
	require.NoError(t, err)
	assert.WithinDuration(t, now, last, time.Second)
}
