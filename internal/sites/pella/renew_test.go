package pella

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractExpiry(t *testing.T) {
	detail, val := extractExpiry("banner: Your server expires in 2D 5H 30M, renew below")
	assert.Equal(t, "2d 5h 30m", detail)
	assert.InDelta(t, 2.0+5.0/24+30.0/1440, val, 1e-9)

	// Days-only rendering.
	detail, val = extractExpiry("Your server expires in 3D")
	assert.Equal(t, "3d", detail)
	assert.Equal(t, 3.0, val)

	detail, val = extractExpiry("no banner on this page")
	assert.Equal(t, "unreadable", detail)
	assert.Equal(t, -1.0, val)
}

func TestExtractExpiryOrdering(t *testing.T) {
	// Renewal moved the expiry up: later value must compare greater.
	_, before := extractExpiry("Your server expires in 1D 2H 0M")
	_, after := extractExpiry("Your server expires in 2D 1H 55M")
	assert.Greater(t, after, before)
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, "running", classifyStatus("Status: Running since 10:00"))
	assert.Equal(t, "stopped", classifyStatus("Your server is OFFLINE"))
	// Stopped markers win over the RUNNING substring.
	assert.Equal(t, "stopped", classifyStatus("Server NOT RUNNING"))
	assert.Equal(t, "unknown", classifyStatus("loading..."))
}
