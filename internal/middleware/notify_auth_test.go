package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNotifyIPAllowlist_Allowed(t *testing.T) {
	allowlist, err := NewNotifyIPAllowlist([]string{"203.0.113.0/24", " 198.51.100.7 ", ""}, false, zaptest.NewLogger(t))
	require.NoError(t, err)

	tests := []struct {
		ip      string
		allowed bool
	}{
		{"203.0.113.5", true},
		{"198.51.100.7", true},
		{"::ffff:203.0.113.9", true},
		{"198.51.100.8", false},
		{"10.0.0.1", false},
		{"127.0.0.1", false},
		{"not-an-ip", false},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.allowed, allowlist.Allowed(tt.ip))
		})
	}
}

func TestNotifyIPAllowlist_Private(t *testing.T) {
	allowlist, err := NewNotifyIPAllowlist([]string{"203.0.113.0/24"}, true, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.True(t, allowlist.Allowed("127.0.0.1"))
	assert.True(t, allowlist.Allowed("192.168.1.10"))
	assert.False(t, allowlist.Allowed("8.8.8.8"))
}

func TestNotifyIPAllowlist_InvalidEntry(t *testing.T) {
	_, err := NewNotifyIPAllowlist([]string{"203.0.113.0/99"}, false, zaptest.NewLogger(t))
	assert.Error(t, err)

	_, err = NewNotifyIPAllowlist([]string{"gateway.example.com"}, false, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestNotifyIPAllowlist_Middleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("1|OK"))
	})

	t.Run("rejects outsiders", func(t *testing.T) {
		allowlist, err := NewNotifyIPAllowlist([]string{"203.0.113.0/24"}, false, zaptest.NewLogger(t))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/payment/newebpay/notify", nil)
		req.RemoteAddr = "198.51.100.1:443"
		rr := httptest.NewRecorder()
		allowlist.Middleware(next).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)

		req.RemoteAddr = "203.0.113.1:443"
		rr = httptest.NewRecorder()
		allowlist.Middleware(next).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "1|OK", rr.Body.String())
	})

	t.Run("empty list allows all", func(t *testing.T) {
		allowlist, err := NewNotifyIPAllowlist(nil, false, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.False(t, allowlist.Enabled())

		req := httptest.NewRequest(http.MethodPost, "/payment/newebpay/notify", nil)
		req.RemoteAddr = "198.51.100.1:443"
		rr := httptest.NewRecorder()
		allowlist.Middleware(next).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
