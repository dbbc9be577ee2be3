package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient_AppliesConfig(t *testing.T) {
	cfg := NewebPayClientConfig()
	client := NewHTTPClient(cfg, 30*time.Second)

	assert.Equal(t, 30*time.Second, client.Timeout)
	ua, ok := client.Transport.(*userAgentTransport)
	require.True(t, ok)
	transport, ok := ua.next.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, cfg.MaxIdleConnsPerHost, transport.MaxIdleConnsPerHost)
	assert.Equal(t, cfg.MaxConnsPerHost, transport.MaxConnsPerHost)
	assert.True(t, transport.DisableCompression)
}

func TestNewHTTPClient_UserAgent(t *testing.T) {
	var got []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("User-Agent"))
	}))
	defer server.Close()

	client := NewHTTPClient(NewebPayClientConfig(), 5*time.Second)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom")
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{"newebpay-service", "custom"}, got)
}

func TestNewHTTPClient_DoesNotFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://example.invalid/elsewhere", http.StatusFound)
	}))
	defer server.Close()

	cfg := NewebPayClientConfig()
	cfg.UserAgent = ""
	client := NewHTTPClient(cfg, 5*time.Second)
	_, isTransport := client.Transport.(*http.Transport)
	assert.True(t, isTransport)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
}
