package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kevin07696/newebpay-service/internal/adapters/ports"
)

// localRecord is the on-disk format written by PutSecret
type localRecord struct {
	Value     string            `json:"value"`
	Version   int               `json:"version"`
	Tags      map[string]string `json:"tags,omitempty"`
	CreatedAt string            `json:"created_at"`
}

// localSecretManager keeps provider secrets as files under basePath.
// Development only: production deployments use AWS Secrets Manager or Vault.
type localSecretManager struct {
	basePath string
	logger   *zap.Logger
	mu       sync.Mutex // serializes read-modify-write in PutSecret
}

// NewLocalSecretManager creates a new local filesystem secret manager
func NewLocalSecretManager(basePath string, logger *zap.Logger) ports.SecretManagerAdapter {
	return &localSecretManager{
		basePath: basePath,
		logger:   logger,
	}
}

// resolve keeps secret paths inside the base directory
func (m *localSecretManager) resolve(secretPath string) (string, error) {
	filePath := filepath.Join(m.basePath, filepath.Clean("/"+secretPath))
	rel, err := filepath.Rel(m.basePath, filePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("secret path escapes base directory: %s", secretPath)
	}
	return filePath, nil
}

// read returns the stored record. Plain text files, as dropped in by hand,
// are reported as version 1 with the trailing newline removed.
func (m *localSecretManager) read(filePath, secretPath string) (*localRecord, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, secretPath)
		}
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	var rec localRecord
	if err := json.Unmarshal(data, &rec); err == nil && rec.Value != "" {
		if rec.Version == 0 {
			rec.Version = 1
		}
		return &rec, nil
	}
	return &localRecord{Value: strings.TrimRight(string(data), "\r\n"), Version: 1}, nil
}

func (m *localSecretManager) GetSecret(ctx context.Context, secretPath string) (*ports.Secret, error) {
	filePath, err := m.resolve(secretPath)
	if err != nil {
		return nil, err
	}

	rec, err := m.read(filePath, secretPath)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("Secret read from filesystem", zap.String("path", secretPath), zap.Int("version", rec.Version))

	return &ports.Secret{
		Value:     rec.Value,
		Version:   "v" + strconv.Itoa(rec.Version),
		Metadata:  rec.Tags,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// PutSecret writes the next version of the secret. The file is replaced by
// rename so a concurrent reader never sees a partial write.
func (m *localSecretManager) PutSecret(ctx context.Context, secretPath, secretValue string, tags map[string]string) (string, error) {
	filePath, err := m.resolve(secretPath)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := 1
	if prev, err := m.read(filePath, secretPath); err == nil {
		next = prev.Version + 1
	}

	data, err := json.MarshalIndent(localRecord{
		Value:     secretValue,
		Version:   next,
		Tags:      tags,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal secret: %w", err)
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".secret-*")
	if err != nil {
		return "", fmt.Errorf("failed to write secret: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write secret: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write secret: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return "", fmt.Errorf("failed to write secret: %w", err)
	}

	version := "v" + strconv.Itoa(next)
	m.logger.Info("Secret stored to filesystem", zap.String("path", secretPath), zap.String("version", version))
	return version, nil
}
