package payment

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevin07696/newebpay-service/internal/adapters/newebpay"
	"github.com/kevin07696/newebpay-service/internal/domain"
	serviceports "github.com/kevin07696/newebpay-service/internal/services/ports"
	"github.com/kevin07696/newebpay-service/internal/testutil/fixtures"
	"github.com/kevin07696/newebpay-service/internal/testutil/mocks"
)

func setupService(t *testing.T, txns ...*domain.Transaction) (*Service, *mocks.TransactionStore) {
	t.Helper()
	store := mocks.NewTransactionStore(txns...)
	creds := mocks.StaticCredentials{Credential: fixtures.NewCredential()}
	svc := NewService(Config{
		CallbackBaseURL: "https://shop.example.com/payment/newebpay",
		ClientBackURL:   "https://shop.example.com/cart",
	}, store, creds, newebpay.NewRequestBuilder(zap.NewNop()), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	return svc, store
}

func checkoutRequest(reference, amount, currency string) *serviceports.CheckoutRequest {
	return &serviceports.CheckoutRequest{
		Reference:     reference,
		Amount:        decimal.RequireFromString(amount),
		Currency:      currency,
		Description:   "Coffee beans",
		CustomerEmail: "buyer@example.com",
	}
}

func TestCheckout_CreatesPendingTransaction(t *testing.T) {
	svc, store := setupService(t)

	result, err := svc.Checkout(context.Background(), checkoutRequest("ORDER-2024/001", "1500", "twd"))
	require.NoError(t, err)

	stored := store.Get("ORDER-2024/001")
	require.NotNil(t, stored)
	assert.Equal(t, domain.TransactionStatePending, stored.State)
	assert.Equal(t, "ORDER2024001", stored.MerchantOrderNo)
	assert.Equal(t, "TWD", stored.Currency)
	assert.Equal(t, domain.ProviderCodeNewebPay, stored.ProviderCode)

	form := result.Form
	assert.Equal(t, newebpay.MPGURL(true), form.APIURL)
	assert.Equal(t, fixtures.TestMerchantID, form.MerchantID)
	assert.Equal(t, newebpay.MPGVersion, form.Version)
	assert.Equal(t, "ORDER2024001", form.MerchantOrderNo)

	info, err := newebpay.Open(&newebpay.Envelope{TradeInfo: form.TradeInfo, TradeSha: form.TradeSha}, fixtures.NewCredential())
	require.NoError(t, err)
	assert.Equal(t, "1500", info.Value("Amt"))
	assert.Equal(t, "ORDER2024001", info.Value("MerchantOrderNo"))
	assert.Equal(t, "https%3A%2F%2Fshop.example.com%3A443%2Fpayment%2Fnewebpay%2Fnotify", info.Value("NotifyURL"))
	assert.Equal(t, "1", info.Value("CREDIT"))
}

func TestCheckout_RepeatForPendingReference(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()

	first, err := svc.Checkout(ctx, checkoutRequest("S0001", "1000", "TWD"))
	require.NoError(t, err)
	second, err := svc.Checkout(ctx, checkoutRequest("S0001", "1000", "TWD"))
	require.NoError(t, err)

	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.Equal(t, first.Transaction.ID, store.Get("S0001").ID)
}

func TestCheckout_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		existing *domain.Transaction
		req      *serviceports.CheckoutRequest
		check    func(t *testing.T, err error)
	}{
		{
			name: "unsupported currency",
			req:  checkoutRequest("S0001", "1000", "JPY"),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrCurrencyUnsupported)
			},
		},
		{
			name: "fractional amount",
			req:  checkoutRequest("S0001", "10.50", "TWD"),
			check: func(t *testing.T, err error) {
				assert.True(t, domain.IsValidationError(err))
			},
		},
		{
			name: "zero amount",
			req:  checkoutRequest("S0001", "0", "TWD"),
			check: func(t *testing.T, err error) {
				assert.True(t, domain.IsValidationError(err))
			},
		},
		{
			name:     "reference already paid",
			existing: fixtures.NewTransaction().Done("24050112345678").Build(),
			req:      checkoutRequest("S0001", "1000", "TWD"),
			check: func(t *testing.T, err error) {
				assert.True(t, domain.IsDomainError(err, domain.ErrorCodeTxnInvalidState))
			},
		},
		{
			name:     "reference reused with another amount",
			existing: fixtures.NewTransaction().Build(),
			req:      checkoutRequest("S0001", "2000", "TWD"),
			check: func(t *testing.T, err error) {
				assert.True(t, domain.IsDomainError(err, domain.ErrorCodeTxnDuplicate))
			},
		},
		{
			name:     "sanitized order number collides",
			existing: fixtures.NewTransaction().WithReference("S0001", "S0001").Build(),
			req:      checkoutRequest("S-0001", "1000", "TWD"),
			check: func(t *testing.T, err error) {
				assert.True(t, domain.IsDomainError(err, domain.ErrorCodeTxnDuplicate))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seed []*domain.Transaction
			if tt.existing != nil {
				seed = append(seed, tt.existing)
			}
			svc, _ := setupService(t, seed...)

			result, err := svc.Checkout(context.Background(), tt.req)
			assert.Nil(t, result)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestCheckout_IncompleteCredential(t *testing.T) {
	cred := fixtures.NewCredential()
	cred.HashKey = ""
	store := mocks.NewTransactionStore()
	svc := NewService(Config{CallbackBaseURL: "https://shop.example.com"}, store,
		mocks.StaticCredentials{Credential: cred}, newebpay.NewRequestBuilder(zap.NewNop()), zap.NewNop())

	_, err := svc.Checkout(context.Background(), checkoutRequest("S0001", "1000", "TWD"))
	assert.True(t, domain.IsConfigurationError(err))
	assert.Nil(t, store.Get("S0001"))
}

func TestGetTransaction(t *testing.T) {
	svc, _ := setupService(t, fixtures.NewTransaction().Build())

	txn, err := svc.GetTransaction(context.Background(), "S0001")
	require.NoError(t, err)
	assert.Equal(t, "S0001", txn.Reference)

	_, err = svc.GetTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrTxnNotFound)
}
