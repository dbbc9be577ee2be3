package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/payment/status?reference=SO001", http.StatusFound)
	})

	tests := []struct {
		name     string
		hsts     bool
		wantHSTS bool
	}{
		{name: "production", hsts: true, wantHSTS: true},
		{name: "development", hsts: false, wantHSTS: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			SecurityHeaders(tt.hsts)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/payment/newebpay/return", nil))

			assert.Equal(t, http.StatusFound, rr.Code)
			assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
			assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
			assert.Equal(t, tt.wantHSTS, rr.Header().Get("Strict-Transport-Security") != "")
		})
	}
}
