package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDisabledWithoutToken(t *testing.T) {
	n, err := New("", "12345", zap.NewNop())
	require.NoError(t, err)
	assert.False(t, n.Enabled())

	// Must not attempt any network call.
	n.Send(context.Background(), "hello")
	n.SendWithPhoto(context.Background(), "hello", "missing.png")
}

func TestDisabledWithoutChatID(t *testing.T) {
	n, err := New("123:abc", "", zap.NewNop())
	require.NoError(t, err)
	assert.False(t, n.Enabled())
	n.Send(context.Background(), "hello")
}

func TestSendHitsAPI(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"t","username":"t_bot"}}`))
	}))
	defer srv.Close()

	n, err := New("123:abc", "12345", zap.NewNop(), WithServerURL(srv.URL))
	require.NoError(t, err)
	require.True(t, n.Enabled())

	before := calls.Load()
	n.Send(context.Background(), "hello")
	assert.Greater(t, calls.Load(), before)
}
