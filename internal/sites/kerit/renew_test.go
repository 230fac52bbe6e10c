package kerit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRenewalCount(t *testing.T) {
	// Dedicated counter element renders a bare number.
	assert.Equal(t, 3, parseRenewalCount("3"))
	assert.Equal(t, 3, parseRenewalCount(" 3 "))

	// Body-text fallback carries the "n / 7" fraction.
	assert.Equal(t, 5, parseRenewalCount("Renewals used: 5 / 7 this cycle"))
	assert.Equal(t, 7, parseRenewalCount("7/7"))

	assert.Equal(t, 0, parseRenewalCount(""))
	assert.Equal(t, 0, parseRenewalCount("no counters here"))
}

func TestParseDaysRemaining(t *testing.T) {
	assert.Equal(t, 4, parseDaysRemaining("Your server expires in 4 Days"))
	assert.Equal(t, 1, parseDaysRemaining("1 day remaining"))
	assert.Equal(t, 0, parseDaysRemaining("expired"))
}
