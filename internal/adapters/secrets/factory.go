package secrets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kevin07696/newebpay-service/internal/adapters/ports"
	"github.com/kevin07696/newebpay-service/internal/config"
)

// NewFromConfig builds the secret backend selected by SECRET_MANAGER:
//   - local: files under SECRETS_BASE_PATH (development)
//   - aws: AWS Secrets Manager, AWS_ENDPOINT_URL points at LocalStack in tests
//   - vault: HashiCorp Vault KV, token or AppRole auth
func NewFromConfig(ctx context.Context, cfg config.SecretsConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	switch cfg.Backend {
	case "local", "":
		logger.Warn("Using local secret manager, not for production",
			zap.String("base_path", cfg.BasePath),
		)
		return NewLocalSecretManager(cfg.BasePath, logger), nil

	case "aws":
		awsCfg := DefaultAWSSecretsManagerConfig(cfg.AWSRegion)
		awsCfg.Profile = cfg.AWSProfile
		awsCfg.Endpoint = cfg.AWSEndpoint
		if cfg.CacheTTL > 0 {
			awsCfg.CacheTTL = cfg.CacheTTL
		}
		return NewAWSSecretsManagerAdapter(ctx, awsCfg, logger)

	case "vault":
		vaultCfg := DefaultVaultConfig(cfg.VaultAddress)
		vaultCfg.Token = cfg.VaultToken
		vaultCfg.Namespace = cfg.VaultNamespace
		if cfg.VaultToken == "" {
			vaultCfg.AuthMethod = "approle"
			vaultCfg.RoleID = cfg.VaultRoleID
			vaultCfg.SecretID = cfg.VaultSecretID
		}
		if cfg.VaultMountPath != "" {
			vaultCfg.MountPath = cfg.VaultMountPath
		}
		if cfg.VaultKVVersion != "" {
			vaultCfg.KVVersion = cfg.VaultKVVersion
		}
		if cfg.CacheTTL > 0 {
			vaultCfg.CacheTTL = cfg.CacheTTL
		}
		return NewVaultAdapter(ctx, vaultCfg, logger)

	default:
		return nil, fmt.Errorf("unknown secret manager %q", cfg.Backend)
	}
}
