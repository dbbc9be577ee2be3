package secrets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/kevin07696/newebpay-service/internal/adapters/ports"
)

// VaultConfig contains configuration for HashiCorp Vault adapter
type VaultConfig struct {
	// Vault server address (e.g., "https://vault.example.com:8200")
	Address string

	// Authentication method: "token" or "approle"
	AuthMethod string

	Token string

	// AppRole credentials (if using AppRole auth)
	RoleID   string
	SecretID string

	// Vault namespace (Vault Enterprise)
	Namespace string

	// KV secrets engine mount path (default: "secret")
	MountPath string

	// KV version: "v1" or "v2" (default: "v2")
	KVVersion string

	CacheTTL    time.Duration
	EnableCache bool
}

// DefaultVaultConfig returns default configuration for Vault adapter
func DefaultVaultConfig(address string) *VaultConfig {
	return &VaultConfig{
		Address:     address,
		AuthMethod:  "token",
		MountPath:   "secret",
		KVVersion:   "v2",
		CacheTTL:    5 * time.Minute,
		EnableCache: true,
	}
}

// vaultAdapter implements the SecretManagerAdapter port on a Vault KV mount.
// Each secret stores the hash key or IV under "value"; other string fields
// are returned as metadata.
type vaultAdapter struct {
	kv     kvStore
	logger *zap.Logger
	cache  *secretCache
}

// kvStore hides the KV v1 / v2 differences of the vault client
type kvStore interface {
	get(ctx context.Context, path string) (*vault.KVSecret, error)
	put(ctx context.Context, path string, data map[string]interface{}) (version string, err error)
}

type kvV2Store struct{ kv *vault.KVv2 }

func (s kvV2Store) get(ctx context.Context, path string) (*vault.KVSecret, error) {
	return s.kv.Get(ctx, path)
}

func (s kvV2Store) put(ctx context.Context, path string, data map[string]interface{}) (string, error) {
	written, err := s.kv.Put(ctx, path, data)
	if err != nil {
		return "", err
	}
	if written == nil || written.VersionMetadata == nil {
		return "", nil
	}
	return strconv.Itoa(written.VersionMetadata.Version), nil
}

type kvV1Store struct{ kv *vault.KVv1 }

func (s kvV1Store) get(ctx context.Context, path string) (*vault.KVSecret, error) {
	return s.kv.Get(ctx, path)
}

func (s kvV1Store) put(ctx context.Context, path string, data map[string]interface{}) (string, error) {
	return "1", s.kv.Put(ctx, path, data)
}

// NewVaultAdapter authenticates against Vault and returns an adapter bound to cfg.MountPath
func NewVaultAdapter(ctx context.Context, cfg *VaultConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	if err := authenticateVault(ctx, client, cfg); err != nil {
		return nil, fmt.Errorf("failed to authenticate with Vault: %w", err)
	}

	var kv kvStore
	switch cfg.KVVersion {
	case "v1":
		kv = kvV1Store{kv: client.KVv1(cfg.MountPath)}
	case "v2", "":
		kv = kvV2Store{kv: client.KVv2(cfg.MountPath)}
	default:
		return nil, fmt.Errorf("unsupported KV version: %s", cfg.KVVersion)
	}

	logger.Info("Vault adapter initialized",
		zap.String("address", cfg.Address),
		zap.String("auth_method", cfg.AuthMethod),
		zap.String("mount_path", cfg.MountPath),
		zap.String("kv_version", cfg.KVVersion),
	)

	return &vaultAdapter{
		kv:     kv,
		logger: logger,
		cache:  newSecretCache(cfg.EnableCache, cfg.CacheTTL),
	}, nil
}

// authenticateVault handles authentication with Vault
func authenticateVault(ctx context.Context, client *vault.Client, cfg *VaultConfig) error {
	switch cfg.AuthMethod {
	case "token":
		if cfg.Token == "" {
			return fmt.Errorf("token is required for token auth")
		}
		client.SetToken(cfg.Token)
		return nil

	case "approle":
		if cfg.RoleID == "" || cfg.SecretID == "" {
			return fmt.Errorf("role_id and secret_id are required for AppRole auth")
		}

		resp, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		})
		if err != nil {
			return fmt.Errorf("AppRole login failed: %w", err)
		}
		if resp == nil || resp.Auth == nil {
			return fmt.Errorf("AppRole login returned no auth info")
		}
		client.SetToken(resp.Auth.ClientToken)
		return nil

	default:
		return fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
}

// GetSecret reads the "value" field of the secret at path
func (a *vaultAdapter) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	if cached := a.cache.get(path); cached != nil {
		return cached, nil
	}

	start := time.Now()
	kvSecret, err := a.kv.get(ctx, path)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, path)
		}
		a.logger.Error("Vault read failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("failed to read secret from Vault: %w", err)
	}

	value, _ := kvSecret.Data["value"].(string)
	if value == "" {
		return nil, fmt.Errorf("secret at %s has no value field", path)
	}

	result := &ports.Secret{
		Value:    value,
		Version:  "1",
		Metadata: make(map[string]string, len(kvSecret.Data)),
	}
	if meta := kvSecret.VersionMetadata; meta != nil {
		result.Version = strconv.Itoa(meta.Version)
		if !meta.CreatedTime.IsZero() {
			result.CreatedAt = meta.CreatedTime.UTC().Format(time.RFC3339)
		}
	}
	for k, v := range kvSecret.Data {
		if str, ok := v.(string); ok && k != "value" {
			result.Metadata[k] = str
		}
	}

	a.logger.Debug("Secret read from Vault",
		zap.String("path", path),
		zap.String("version", result.Version),
		zap.Duration("elapsed", time.Since(start)),
	)
	a.cache.set(path, result)
	return result, nil
}

// PutSecret writes value plus string metadata fields to path
func (a *vaultAdapter) PutSecret(ctx context.Context, path string, value string, metadata map[string]string) (string, error) {
	defer a.cache.invalidate(path)

	data := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		data[k] = v
	}
	data["value"] = value

	version, err := a.kv.put(ctx, path, data)
	if err != nil {
		return "", fmt.Errorf("failed to write secret to Vault: %w", err)
	}
	a.logger.Info("Secret written to Vault", zap.String("path", path), zap.String("version", version))
	return version, nil
}
