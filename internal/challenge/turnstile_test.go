package challenge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// scriptedPage returns canned results for successive Eval calls.
type scriptedPage struct {
	results []string
	calls   int
}

func (p *scriptedPage) Eval(js string, out any) error {
	r := p.results[len(p.results)-1]
	if p.calls < len(p.results) {
		r = p.results[p.calls]
	}
	p.calls++
	*(out.(*string)) = r
	return nil
}

func TestParseWaitState(t *testing.T) {
	assert.Equal(t, WaitToken, ParseWaitState("token"))
	assert.Equal(t, WaitClosed, ParseWaitState("closed"))
	assert.Equal(t, WaitTimeout, ParseWaitState("waiting"))
	assert.Equal(t, WaitTimeout, ParseWaitState(""))
}

func TestDetect(t *testing.T) {
	log := zap.NewNop()
	for raw, want := range map[string]Kind{
		"none":      KindNone,
		"visible":   KindVisible,
		"invisible": KindInvisible,
		"garbage":   KindUnknown,
	} {
		page := &scriptedPage{results: []string{raw}}
		assert.Equal(t, want, Detect(page, log), raw)
	}
}

func TestWaitResolvesOnToken(t *testing.T) {
	page := &scriptedPage{results: []string{"waiting", "token"}}
	got := Wait(page, 10*time.Second, zap.NewNop())
	assert.Equal(t, WaitToken, got)
}

func TestWaitTimesOut(t *testing.T) {
	page := &scriptedPage{results: []string{"waiting"}}
	got := Wait(page, 0, zap.NewNop())
	assert.Equal(t, WaitTimeout, got)
}

func TestPageBlocked(t *testing.T) {
	assert.True(t, PageBlocked("…Access Blocked…"))
	assert.True(t, PageBlocked("VPN or Proxy Detected on your connection"))
	assert.True(t, PageBlocked("you hit a rate limit"))
	assert.False(t, PageBlocked("Welcome to your dashboard"))
}
