package secrets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newVaultTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("X-Vault-Token"))
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/secret/data/newebpay/hash_key":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"data": map[string]interface{}{"value": "0123456789ABCDEF0123456789ABCDEF", "owner": "payments"},
					"metadata": map[string]interface{}{
						"version":      3,
						"created_time": "2024-01-01T00:00:00Z",
					},
				},
			})
		case (r.Method == http.MethodPut || r.Method == http.MethodPost) && r.URL.Path == "/v1/secret/data/newebpay/hash_iv":
			var body struct {
				Data map[string]interface{} `json:"data"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "0123456789ABCDEF", body.Data["value"])
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{"version": 7},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
		}
	}))
}

func newTestVaultAdapter(t *testing.T, address string) *vaultAdapter {
	t.Helper()
	cfg := DefaultVaultConfig(address)
	cfg.Token = "test-token"

	adapter, err := NewVaultAdapter(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	return adapter.(*vaultAdapter)
}

func TestVaultAdapter_GetSecret(t *testing.T) {
	server := newVaultTestServer(t)
	defer server.Close()

	adapter := newTestVaultAdapter(t, server.URL)
	secret, err := adapter.GetSecret(context.Background(), "newebpay/hash_key")
	require.NoError(t, err)

	assert.Equal(t, "0123456789ABCDEF0123456789ABCDEF", secret.Value)
	assert.Equal(t, "3", secret.Version)
	assert.Equal(t, "2024-01-01T00:00:00Z", secret.CreatedAt)
	assert.Equal(t, "payments", secret.Metadata["owner"])
}

func TestVaultAdapter_GetSecretNotFound(t *testing.T) {
	server := newVaultTestServer(t)
	defer server.Close()

	adapter := newTestVaultAdapter(t, server.URL)
	_, err := adapter.GetSecret(context.Background(), "newebpay/missing")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestVaultAdapter_PutSecret(t *testing.T) {
	server := newVaultTestServer(t)
	defer server.Close()

	adapter := newTestVaultAdapter(t, server.URL)
	version, err := adapter.PutSecret(context.Background(), "newebpay/hash_iv", "0123456789ABCDEF", nil)
	require.NoError(t, err)
	assert.Equal(t, "7", version)
}

func TestAuthenticateVault_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  *VaultConfig
	}{
		{name: "token missing", cfg: &VaultConfig{AuthMethod: "token"}},
		{name: "approle missing ids", cfg: &VaultConfig{AuthMethod: "approle"}},
		{name: "unknown method", cfg: &VaultConfig{AuthMethod: "kubernetes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Address = "http://127.0.0.1:1"
			_, err := NewVaultAdapter(context.Background(), tt.cfg, zap.NewNop())
			assert.Error(t, err)
		})
	}
}
