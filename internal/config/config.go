package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	NewebPay  NewebPayConfig
	Secrets   SecretsConfig
	RateLimit RateLimitConfig
	Logger    LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int    `validate:"min=1,max=65535"`
	Host           string `validate:"required"`
	MetricsPort    int    `validate:"min=1,max=65535,nefield=Port"`
	Environment    string `validate:"oneof=development staging production"`
	AllowedOrigins []string
	TrustProxy     bool // Honor X-Forwarded-For / X-Real-IP from a fronting proxy
	RequestTimeout time.Duration `validate:"min=1s"`
}

// IsProduction reports whether the service runs with production settings
func (c ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"min=1,max=65535"`
	User     string `validate:"required"`
	Password string `validate:"required"`
	Database string `validate:"required"`
	SSLMode  string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns int32  `validate:"min=1"`
	MinConns int32  `validate:"min=0,ltefield=MaxConns"`
}

// NewebPayConfig holds the gateway integration settings. Merchant credentials
// live in the payment_providers table and the secret backend.
type NewebPayConfig struct {
	ProviderCode    string        `validate:"required"`
	CallbackBaseURL string        `validate:"required,url"` // e.g. https://shop.example.com/payment/newebpay
	ClientBackURL   string        `validate:"omitempty,url"`
	StatusPath      string        `validate:"required,startswith=/"`
	ProcessPath     string        `validate:"required,startswith=/"`
	RefundTimeout   time.Duration `validate:"min=1s"`
	RefundEndpoint  string        `validate:"omitempty,url"` // Overrides the test/live cancel URL
	NotifyAllowlist []string
	AllowPrivateIPs bool
	CredentialTTL   time.Duration
}

// SecretsConfig selects and configures the secret backend holding hash keys and IVs
type SecretsConfig struct {
	Backend  string `validate:"oneof=local aws vault"`
	BasePath string `validate:"required_if=Backend local"`
	CacheTTL time.Duration

	AWSRegion   string `validate:"required_if=Backend aws"`
	AWSEndpoint string `validate:"omitempty,url"`
	AWSProfile  string

	VaultAddress   string `validate:"required_if=Backend vault"`
	VaultToken     string
	VaultRoleID    string
	VaultSecretID  string
	VaultMountPath string
	VaultKVVersion string `validate:"omitempty,oneof=v1 v2"`
	VaultNamespace string
}

// RateLimitConfig holds per-IP limits
type RateLimitConfig struct {
	RequestsPerSecond float64 `validate:"gt=0"`
	Burst             int     `validate:"min=1"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string `validate:"oneof=debug info warn error"`
	Development bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFromEnv loads configuration from environment variables, reading an
// optional .env file first. Variables already set take precedence.
func LoadFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	environment := getEnv("ENVIRONMENT", "development")
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
			Environment:    environment,
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
			TrustProxy:     getEnvAsBool("TRUST_PROXY_HEADERS", false),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseFromEnv(),
		NewebPay: NewebPayConfig{
			ProviderCode:    getEnv("NEWEBPAY_PROVIDER_CODE", "newebpay"),
			CallbackBaseURL: getEnv("NEWEBPAY_CALLBACK_BASE_URL", ""),
			ClientBackURL:   getEnv("NEWEBPAY_CLIENT_BACK_URL", ""),
			StatusPath:      getEnv("NEWEBPAY_STATUS_PATH", "/payment/status"),
			ProcessPath:     getEnv("NEWEBPAY_PROCESS_PATH", "/payment/process"),
			RefundTimeout:   getEnvAsDuration("NEWEBPAY_REFUND_TIMEOUT", 30*time.Second),
			RefundEndpoint:  getEnv("NEWEBPAY_REFUND_ENDPOINT", ""),
			NotifyAllowlist: getEnvAsList("NEWEBPAY_NOTIFY_ALLOWLIST", nil),
			AllowPrivateIPs: getEnvAsBool("NEWEBPAY_NOTIFY_ALLOW_PRIVATE", environment == "development"),
			CredentialTTL:   getEnvAsDuration("NEWEBPAY_CREDENTIAL_TTL", 5*time.Minute),
		},
		Secrets: SecretsFromEnv(),
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: environment != "production",
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DatabaseFromEnv reads the DB_* variables
func DatabaseFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvAsInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Database: getEnv("DB_NAME", "newebpay_service"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
		MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
	}
}

// SecretsFromEnv reads the secret backend selection and its settings
func SecretsFromEnv() SecretsConfig {
	return SecretsConfig{
		Backend:        getEnv("SECRET_MANAGER", "local"),
		BasePath:       getEnv("SECRETS_BASE_PATH", "./secrets"),
		CacheTTL:       getEnvAsDuration("SECRET_CACHE_TTL", 5*time.Minute),
		AWSRegion:      getEnv("AWS_REGION", ""),
		AWSEndpoint:    getEnv("AWS_ENDPOINT_URL", ""),
		AWSProfile:     getEnv("AWS_PROFILE", ""),
		VaultAddress:   getEnv("VAULT_ADDR", ""),
		VaultToken:     getEnv("VAULT_TOKEN", ""),
		VaultRoleID:    getEnv("VAULT_ROLE_ID", ""),
		VaultSecretID:  getEnv("VAULT_SECRET_ID", ""),
		VaultMountPath: getEnv("VAULT_MOUNT_PATH", "secret"),
		VaultKVVersion: getEnv("VAULT_KV_VERSION", "v2"),
		VaultNamespace: getEnv("VAULT_NAMESPACE", ""),
	}
}

// Validate checks struct constraints and cross-field rules
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Secrets.Backend == "vault" && c.Secrets.VaultToken == "" &&
		(c.Secrets.VaultRoleID == "" || c.Secrets.VaultSecretID == "") {
		return fmt.Errorf("invalid configuration: vault needs VAULT_TOKEN or VAULT_ROLE_ID and VAULT_SECRET_ID")
	}

	// NewebPay only calls back on the default ports
	u, err := url.Parse(c.NewebPay.CallbackBaseURL)
	if err != nil {
		return fmt.Errorf("invalid configuration: NEWEBPAY_CALLBACK_BASE_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid configuration: NEWEBPAY_CALLBACK_BASE_URL must be http or https")
	}
	if c.Server.IsProduction() && u.Scheme != "https" {
		return fmt.Errorf("invalid configuration: NEWEBPAY_CALLBACK_BASE_URL must be https in production")
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection URL
func (c *DatabaseConfig) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("30s") or whole seconds ("30")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
