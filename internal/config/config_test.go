package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_PASSWORD", "postgres")
	t.Setenv("NEWEBPAY_CALLBACK_BASE_URL", "https://shop.example.com/payment/newebpay")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 9090, cfg.Server.MetricsPort)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.False(t, cfg.Server.IsProduction())
	assert.Equal(t, "newebpay", cfg.NewebPay.ProviderCode)
	assert.Equal(t, "/payment/status", cfg.NewebPay.StatusPath)
	assert.Equal(t, "/payment/process", cfg.NewebPay.ProcessPath)
	assert.Equal(t, 30*time.Second, cfg.NewebPay.RefundTimeout)
	assert.True(t, cfg.NewebPay.AllowPrivateIPs)
	assert.Equal(t, "local", cfg.Secrets.Backend)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.True(t, cfg.Logger.Development)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SERVER_PORT", "8000")
	t.Setenv("NEWEBPAY_REFUND_TIMEOUT", "45")
	t.Setenv("NEWEBPAY_NOTIFY_ALLOWLIST", "203.0.113.0/24, ,198.51.100.7")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.example.com")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("SECRET_MANAGER", "aws")
	t.Setenv("AWS_REGION", "ap-northeast-1")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.Server.IsProduction())
	assert.False(t, cfg.Logger.Development)
	assert.False(t, cfg.NewebPay.AllowPrivateIPs)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.NewebPay.RefundTimeout)
	assert.Equal(t, []string{"203.0.113.0/24", "198.51.100.7"}, cfg.NewebPay.NotifyAllowlist)
	assert.Equal(t, []string{"https://shop.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing callback base url",
			env:     map[string]string{"NEWEBPAY_CALLBACK_BASE_URL": ""},
			wantErr: "CallbackBaseURL",
		},
		{
			name:    "unknown secret backend",
			env:     map[string]string{"SECRET_MANAGER": "gcp"},
			wantErr: "Backend",
		},
		{
			name:    "aws without region",
			env:     map[string]string{"SECRET_MANAGER": "aws", "AWS_REGION": ""},
			wantErr: "AWSRegion",
		},
		{
			name:    "vault without credentials",
			env:     map[string]string{"SECRET_MANAGER": "vault", "VAULT_ADDR": "http://vault:8200"},
			wantErr: "VAULT_TOKEN",
		},
		{
			name:    "plain http in production",
			env:     map[string]string{"ENVIRONMENT": "production", "NEWEBPAY_CALLBACK_BASE_URL": "http://shop.example.com/payment/newebpay"},
			wantErr: "https in production",
		},
		{
			name:    "status path without slash",
			env:     map[string]string{"NEWEBPAY_STATUS_PATH": "payment/status"},
			wantErr: "StatusPath",
		},
		{
			name:    "metrics port equals server port",
			env:     map[string]string{"METRICS_PORT": "8080"},
			wantErr: "MetricsPort",
		},
		{
			name:    "bad log level",
			env:     map[string]string{"LOG_LEVEL": "verbose"},
			wantErr: "Level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	db := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "app",
		Password: "p@ss word",
		Database: "newebpay",
		SSLMode:  "require",
	}
	assert.Equal(t, "postgres://app:p%40ss%20word@db:5432/newebpay?sslmode=require", db.ConnectionString())
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("D1", "1m30s")
	t.Setenv("D2", "12")
	t.Setenv("D3", "soon")

	assert.Equal(t, 90*time.Second, getEnvAsDuration("D1", 0))
	assert.Equal(t, 12*time.Second, getEnvAsDuration("D2", 0))
	assert.Equal(t, time.Second, getEnvAsDuration("D3", time.Second))
	assert.Equal(t, time.Minute, getEnvAsDuration("UNSET_DURATION", time.Minute))
}
