package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevin07696/newebpay-service/internal/config"
)

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("local", func(t *testing.T) {
		sm, err := NewFromConfig(ctx, config.SecretsConfig{Backend: "local", BasePath: t.TempDir()}, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &localSecretManager{}, sm)
	})

	t.Run("vault with token", func(t *testing.T) {
		server := newVaultTestServer(t)
		defer server.Close()

		sm, err := NewFromConfig(ctx, config.SecretsConfig{
			Backend:      "vault",
			VaultAddress: server.URL,
			VaultToken:   "test-token",
		}, zap.NewNop())
		require.NoError(t, err)

		secret, err := sm.GetSecret(ctx, "newebpay/hash_key")
		require.NoError(t, err)
		assert.Equal(t, "0123456789ABCDEF0123456789ABCDEF", secret.Value)
	})

	t.Run("vault approle without ids", func(t *testing.T) {
		_, err := NewFromConfig(ctx, config.SecretsConfig{Backend: "vault", VaultAddress: "http://127.0.0.1:1"}, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "role_id and secret_id")
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := NewFromConfig(ctx, config.SecretsConfig{Backend: "gcp"}, zap.NewNop())
		require.Error(t, err)
	})
}
