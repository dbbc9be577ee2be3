package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	secretsmanagertypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kevin07696/newebpay-service/internal/adapters/ports"
)

// AWSSecretsManagerConfig contains configuration for AWS Secrets Manager adapter
type AWSSecretsManagerConfig struct {
	// AWS Region (e.g., "ap-northeast-1")
	Region string

	// Optional: AWS profile name (for local development)
	Profile string

	// Optional: Custom endpoint (for LocalStack testing)
	Endpoint string

	// Cache TTL for secrets (default: 5 minutes)
	CacheTTL time.Duration

	EnableCache bool
}

// DefaultAWSSecretsManagerConfig returns default configuration
func DefaultAWSSecretsManagerConfig(region string) *AWSSecretsManagerConfig {
	return &AWSSecretsManagerConfig{
		Region:      region,
		CacheTTL:    5 * time.Minute,
		EnableCache: true,
	}
}

// secretsManagerAPI is the subset of *secretsmanager.Client the adapter uses
type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
}

// awsSecretsManagerAdapter implements the SecretManagerAdapter port for AWS Secrets Manager
type awsSecretsManagerAdapter struct {
	client secretsManagerAPI
	logger *zap.Logger
	cache  *secretCache
}

// NewAWSSecretsManagerAdapter creates a new AWS Secrets Manager adapter
func NewAWSSecretsManagerAdapter(ctx context.Context, cfg *AWSSecretsManagerConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		// Use specific profile (local development)
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOptions []func(*secretsmanager.Options)
	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	logger.Info("AWS Secrets Manager adapter initialized",
		zap.String("region", cfg.Region),
		zap.Bool("cache_enabled", cfg.EnableCache),
		zap.Duration("cache_ttl", cfg.CacheTTL),
	)

	return newAWSSecretsManagerAdapter(secretsmanager.NewFromConfig(awsConfig, clientOptions...), cfg, logger), nil
}

func newAWSSecretsManagerAdapter(client secretsManagerAPI, cfg *AWSSecretsManagerConfig, logger *zap.Logger) *awsSecretsManagerAdapter {
	return &awsSecretsManagerAdapter{
		client: client,
		logger: logger,
		cache:  newSecretCache(cfg.EnableCache, cfg.CacheTTL),
	}
}

// GetSecret reads the current version of the secret named path (or its ARN).
// Binary secrets are returned as their raw bytes.
func (a *awsSecretsManagerAdapter) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	if cached := a.cache.get(path); cached != nil {
		return cached, nil
	}

	start := time.Now()
	out, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(path),
	})
	if err != nil {
		if isResourceNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, path)
		}
		a.logger.Error("Secrets Manager read failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("failed to get secret %s: %w", path, err)
	}

	value := aws.ToString(out.SecretString)
	if out.SecretString == nil && out.SecretBinary != nil {
		value = string(out.SecretBinary)
	}

	secret := &ports.Secret{
		Value:    value,
		Version:  aws.ToString(out.VersionId),
		Metadata: map[string]string{},
	}
	if out.CreatedDate != nil {
		secret.CreatedAt = out.CreatedDate.UTC().Format(time.RFC3339)
	}
	if out.ARN != nil {
		secret.Metadata["arn"] = aws.ToString(out.ARN)
	}
	if out.Name != nil {
		secret.Metadata["name"] = aws.ToString(out.Name)
	}
	if len(out.VersionStages) > 0 {
		secret.Metadata["stages"] = strings.Join(out.VersionStages, ",")
	}

	a.logger.Debug("Secret read from Secrets Manager",
		zap.String("path", path),
		zap.String("version", secret.Version),
		zap.Duration("elapsed", time.Since(start)),
	)
	a.cache.set(path, secret)
	return secret, nil
}

// PutSecret stores value as a new version of path, creating the secret on
// first use. One client request token covers both calls so a retried seed
// run does not create duplicate versions.
func (a *awsSecretsManagerAdapter) PutSecret(ctx context.Context, path string, value string, metadata map[string]string) (string, error) {
	defer a.cache.invalidate(path)
	token := uuid.NewString()

	put, err := a.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:           aws.String(path),
		SecretString:       aws.String(value),
		ClientRequestToken: aws.String(token),
	})
	switch {
	case err == nil:
		a.logger.Info("Secret version stored", zap.String("path", path), zap.String("version", aws.ToString(put.VersionId)))
		return aws.ToString(put.VersionId), nil
	case !isResourceNotFound(err):
		return "", fmt.Errorf("failed to update secret: %w", err)
	}

	tags := make([]secretsmanagertypes.Tag, 0, len(metadata))
	for key, val := range metadata {
		tags = append(tags, secretsmanagertypes.Tag{Key: aws.String(key), Value: aws.String(val)})
	}

	created, err := a.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:               aws.String(path),
		SecretString:       aws.String(value),
		Description:        aws.String("NewebPay provider secret"),
		ClientRequestToken: aws.String(token),
		Tags:               tags,
	})
	if err != nil {
		a.logger.Error("Secrets Manager create failed", zap.String("path", path), zap.Error(err))
		return "", fmt.Errorf("failed to create secret: %w", err)
	}

	a.logger.Info("Secret created", zap.String("path", path), zap.String("version", aws.ToString(created.VersionId)))
	return aws.ToString(created.VersionId), nil
}

func isResourceNotFound(err error) bool {
	var notFound *secretsmanagertypes.ResourceNotFoundException
	return errors.As(err, &notFound)
}
