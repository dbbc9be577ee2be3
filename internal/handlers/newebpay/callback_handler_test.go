package newebpay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	adapternewebpay "github.com/kevin07696/newebpay-service/internal/adapters/newebpay"
	"github.com/kevin07696/newebpay-service/internal/domain"
	"github.com/kevin07696/newebpay-service/internal/services/reconcile"
	serviceports "github.com/kevin07696/newebpay-service/internal/services/ports"
	"github.com/kevin07696/newebpay-service/internal/testutil/fixtures"
	"github.com/kevin07696/newebpay-service/internal/testutil/mocks"
	"github.com/kevin07696/newebpay-service/pkg/lockmap"
)

// MockReconcileService is a mock implementation of serviceports.ReconcileService
type MockReconcileService struct {
	mock.Mock
}

func (m *MockReconcileService) LocateTransaction(ctx context.Context, cb *serviceports.Callback) (*domain.Transaction, error) {
	args := m.Called(ctx, cb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockReconcileService) ApplyNotification(ctx context.Context, txn *domain.Transaction, cb *serviceports.Callback) (*serviceports.Outcome, error) {
	args := m.Called(ctx, txn, cb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*serviceports.Outcome), args.Error(1)
}

func (m *MockReconcileService) Process(ctx context.Context, cb *serviceports.Callback) (*serviceports.Outcome, error) {
	args := m.Called(ctx, cb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*serviceports.Outcome), args.Error(1)
}

func setupCallbackHandler(t *testing.T, txns ...*domain.Transaction) (*CallbackHandler, *mocks.TransactionStore) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := mocks.NewTransactionStore(txns...)
	creds := mocks.StaticCredentials{Credential: fixtures.NewCredential()}
	svc := reconcile.NewService(reconcile.DefaultConfig(), store, creds, lockmap.New(), logger)
	return NewCallbackHandler(DefaultCallbackConfig(), svc, logger), store
}

func callbackForm(env *adapternewebpay.Envelope) url.Values {
	return url.Values{
		"Status":     {"SUCCESS"},
		"MerchantID": {fixtures.TestMerchantID},
		"TradeInfo":  {env.TradeInfo},
		"TradeSha":   {env.TradeSha},
		"Version":    {adapternewebpay.MPGVersion},
	}
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHandleNotify(t *testing.T) {
	cred := fixtures.NewCredential()

	tests := []struct {
		name        string
		txns        []*domain.Transaction
		form        url.Values
		expectBody  string
		expectState domain.TransactionState
	}{
		{
			name:        "success is acknowledged",
			txns:        []*domain.Transaction{fixtures.NewTransaction().Build()},
			form:        callbackForm(fixtures.NewCallback().Sealed(cred)),
			expectBody:  NotifyOK,
			expectState: domain.TransactionStateDone,
		},
		{
			name:       "unknown transaction",
			txns:       []*domain.Transaction{fixtures.NewTransaction().Build()},
			form:       callbackForm(fixtures.NewCallback().With("MerchantOrderNo", "UNKNOWN1").Sealed(cred)),
			expectBody: NotifyNotFound,
		},
		{
			name:       "empty body",
			txns:       []*domain.Transaction{fixtures.NewTransaction().Build()},
			form:       url.Values{},
			expectBody: NotifyNotFound,
		},
		{
			name:        "tampered signature is acknowledged and recorded",
			txns:        []*domain.Transaction{fixtures.NewTransaction().Build()},
			form:        func() url.Values { f := callbackForm(fixtures.NewCallback().Sealed(cred)); f.Set("TradeSha", strings.Repeat("0", 64)); return f }(),
			expectBody:  NotifyOK,
			expectState: domain.TransactionStateError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, store := setupCallbackHandler(t, tt.txns...)

			rr := httptest.NewRecorder()
			handler.HandleNotify(rr, postForm("/payment/newebpay/notify", tt.form))

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
			assert.Equal(t, tt.expectBody, rr.Body.String())
			if tt.expectState != "" {
				assert.Equal(t, tt.expectState, store.Get("S0001").State)
			}
		})
	}
}

func TestHandleNotify_Failures(t *testing.T) {
	txn := fixtures.NewTransaction().Build()

	t.Run("apply failure", func(t *testing.T) {
		svc := new(MockReconcileService)
		svc.On("LocateTransaction", mock.Anything, mock.Anything).Return(txn, nil)
		svc.On("ApplyNotification", mock.Anything, txn, mock.Anything).Return(nil, domain.ErrDatabaseError)
		handler := NewCallbackHandler(DefaultCallbackConfig(), svc, zaptest.NewLogger(t))

		rr := httptest.NewRecorder()
		handler.HandleNotify(rr, postForm("/payment/notify", url.Values{"TradeInfo": {"00"}}))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "0|處理錯誤: database error", rr.Body.String())
	})

	t.Run("lookup failure", func(t *testing.T) {
		svc := new(MockReconcileService)
		svc.On("LocateTransaction", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
		handler := NewCallbackHandler(DefaultCallbackConfig(), svc, zaptest.NewLogger(t))

		rr := httptest.NewRecorder()
		handler.HandleNotify(rr, postForm("/payment/notify", url.Values{"TradeInfo": {"00"}}))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "0|系統錯誤: connection refused", rr.Body.String())
	})

	t.Run("panic", func(t *testing.T) {
		svc := new(MockReconcileService)
		svc.On("LocateTransaction", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
			panic("boom")
		})
		handler := NewCallbackHandler(DefaultCallbackConfig(), svc, zaptest.NewLogger(t))

		rr := httptest.NewRecorder()
		handler.HandleNotify(rr, postForm("/payment/notify", url.Values{"TradeInfo": {"00"}}))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "0|系統錯誤: boom", rr.Body.String())
	})
}

func TestHandleReturn(t *testing.T) {
	cred := fixtures.NewCredential()

	t.Run("POST redirects to the status page", func(t *testing.T) {
		handler, store := setupCallbackHandler(t, fixtures.NewTransaction().WithReference("ORDER-2024/001", "ORDER2024001").Build())
		form := callbackForm(fixtures.NewCallback().With("MerchantOrderNo", "ORDER2024001").Sealed(cred))

		rr := httptest.NewRecorder()
		handler.HandleReturn(rr, postForm("/payment/newebpay/return", form))

		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "/payment/status?reference=ORDER-2024%2F001", rr.Header().Get("Location"))
		assert.Equal(t, domain.TransactionStateDone, store.Get("ORDER-2024/001").State)
	})

	t.Run("GET with query parameters", func(t *testing.T) {
		handler, _ := setupCallbackHandler(t, fixtures.NewTransaction().Build())
		form := callbackForm(fixtures.NewCallback().Sealed(cred))

		rr := httptest.NewRecorder()
		handler.HandleReturn(rr, httptest.NewRequest(http.MethodGet, "/payment/newebpay/return?"+form.Encode(), nil))

		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "/payment/status?reference=S0001", rr.Header().Get("Location"))
	})

	t.Run("miss redirects to process", func(t *testing.T) {
		handler, _ := setupCallbackHandler(t)

		rr := httptest.NewRecorder()
		handler.HandleReturn(rr, postForm("/payment/newebpay/return", url.Values{"TradeInfo": {"zz"}}))

		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "/payment/process", rr.Header().Get("Location"))
	})

	t.Run("apply failure still shows status", func(t *testing.T) {
		txn := fixtures.NewTransaction().Build()
		svc := new(MockReconcileService)
		svc.On("LocateTransaction", mock.Anything, mock.Anything).Return(txn, nil)
		svc.On("ApplyNotification", mock.Anything, txn, mock.Anything).Return(nil, domain.ErrDatabaseError)
		handler := NewCallbackHandler(DefaultCallbackConfig(), svc, zaptest.NewLogger(t))

		rr := httptest.NewRecorder()
		handler.HandleReturn(rr, postForm("/payment/return", url.Values{"TradeInfo": {"00"}}))

		require.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "/payment/status?reference=S0001", rr.Header().Get("Location"))
	})
}

func TestRateLimitedReplies(t *testing.T) {
	t.Run("notify", func(t *testing.T) {
		rr := httptest.NewRecorder()
		NotifyRateLimited(rr, postForm("/payment/newebpay/notify", url.Values{}))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
		assert.Equal(t, "0|系統錯誤: rate limit exceeded", rr.Body.String())
	})

	t.Run("return", func(t *testing.T) {
		handler := NewCallbackHandler(DefaultCallbackConfig(), new(MockReconcileService), zaptest.NewLogger(t))

		rr := httptest.NewRecorder()
		handler.ReturnRateLimited(rr, postForm("/payment/newebpay/return", url.Values{}))

		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "/payment/process", rr.Header().Get("Location"))
	})
}
