// Command seed registers a NewebPay merchant account: the hash key and IV go
// to the configured secret backend, the account row to payment_providers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kevin07696/newebpay-service/internal/adapters/postgres"
	"github.com/kevin07696/newebpay-service/internal/adapters/secrets"
	"github.com/kevin07696/newebpay-service/internal/config"
	"github.com/kevin07696/newebpay-service/internal/domain"
	"github.com/kevin07696/newebpay-service/pkg/security"
)

func main() {
	var (
		code       = flag.String("code", domain.ProviderCodeNewebPay, "provider code")
		merchantID = flag.String("merchant-id", os.Getenv("NEWEBPAY_MERCHANT_ID"), "NewebPay MerchantID")
		live       = flag.Bool("live", false, "use the production gateway")
		methods    = flag.String("methods", "CREDIT", "comma separated payment types: CREDIT,WEBATM,VACC,CVS,BARCODE")
		inactive   = flag.Bool("inactive", false, "store the account disabled")
	)
	flag.Parse()

	_ = godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Secrets come from the environment so they stay out of shell history
	hashKey := os.Getenv("NEWEBPAY_HASH_KEY")
	hashIV := os.Getenv("NEWEBPAY_HASH_IV")

	cred := domain.NewProviderCredential(*code, *merchantID, hashKey, hashIV)
	if err := cred.Validate(); err != nil {
		logger.Fatal("Incomplete credential, set -merchant-id, NEWEBPAY_HASH_KEY and NEWEBPAY_HASH_IV", zap.Error(err))
	}

	account, err := buildAccount(*code, *merchantID, *methods, !*live, !*inactive)
	if err != nil {
		logger.Fatal("Invalid payment methods", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	secretMgr, err := secrets.NewFromConfig(ctx, config.SecretsFromEnv(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize secret manager", zap.Error(err))
	}
	for path, value := range map[string]string{account.HashKeyPath: hashKey, account.HashIVPath: hashIV} {
		version, err := secretMgr.PutSecret(ctx, path, value, map[string]string{"provider": *code})
		if err != nil {
			logger.Fatal("Failed to store secret", zap.String("path", path), zap.Error(err))
		}
		logger.Info("Stored secret",
			zap.String("path", path),
			zap.String("value", security.MaskSecret(value)),
			zap.String("version", version),
		)
	}

	dbCfg := config.DatabaseFromEnv()
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbCfg.ConnectionString()), logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := postgres.NewProviderRepository(postgres.NewDBExecutor(pool)).Upsert(ctx, account); err != nil {
		logger.Fatal("Failed to store provider", zap.Error(err))
	}

	logger.Info("Provider registered",
		zap.String("code", account.Code),
		zap.String("merchant_id", security.MaskIdentifier(account.MerchantID)),
		zap.Bool("test_mode", account.TestMode),
		zap.Bool("active", account.Active),
		zap.String("methods", *methods),
	)
}

// buildAccount maps the -methods list onto the enable flags
func buildAccount(code, merchantID, methods string, testMode, active bool) (*domain.ProviderAccount, error) {
	account := &domain.ProviderAccount{
		Code:        code,
		MerchantID:  merchantID,
		HashKeyPath: fmt.Sprintf("newebpay-service/providers/%s/hash_key", code),
		HashIVPath:  fmt.Sprintf("newebpay-service/providers/%s/hash_iv", code),
		TestMode:    testMode,
		Active:      active,
	}

	for _, m := range strings.Split(methods, ",") {
		switch domain.PaymentType(strings.ToUpper(strings.TrimSpace(m))) {
		case domain.PaymentTypeCredit:
			account.Credit = true
		case domain.PaymentTypeWebATM:
			account.WebATM = true
		case domain.PaymentTypeVACC:
			account.VACC = true
		case domain.PaymentTypeCVS:
			account.CVS = true
		case domain.PaymentTypeBarcode:
			account.Barcode = true
		case "":
		default:
			return nil, fmt.Errorf("unknown payment type %q", m)
		}
	}
	return account, nil
}
