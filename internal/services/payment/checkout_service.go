// Package payment starts MPG checkouts and serves transaction status.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kevin07696/newebpay-service/internal/adapters/newebpay"
	adapterports "github.com/kevin07696/newebpay-service/internal/adapters/ports"
	"github.com/kevin07696/newebpay-service/internal/domain"
	"github.com/kevin07696/newebpay-service/internal/domain/ports"
	serviceports "github.com/kevin07696/newebpay-service/internal/services/ports"
	"github.com/kevin07696/newebpay-service/pkg/observability"
)

// Config holds checkout settings
type Config struct {
	ProviderCode    string // Used when the request names none
	CallbackBaseURL string // Public base the return and notify paths hang off
	ClientBackURL   string // Optional "back to shop" link on the MPG page
}

// Service implements serviceports.CheckoutService and serviceports.TransactionQuery
type Service struct {
	config      Config
	txns        ports.TransactionRepository
	credentials ports.CredentialLookup
	builder     adapterports.PaymentRequestBuilder
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates a checkout service
func NewService(
	config Config,
	txns ports.TransactionRepository,
	credentials ports.CredentialLookup,
	builder adapterports.PaymentRequestBuilder,
	logger *zap.Logger,
) *Service {
	if config.ProviderCode == "" {
		config.ProviderCode = domain.ProviderCodeNewebPay
	}
	return &Service{
		config:      config,
		txns:        txns,
		credentials: credentials,
		builder:     builder,
		logger:      logger,
		now:         time.Now,
	}
}

var (
	_ serviceports.CheckoutService  = (*Service)(nil)
	_ serviceports.TransactionQuery = (*Service)(nil)
)

// Checkout creates the pending transaction when absent and returns its signed MPG form.
// Repeating a checkout for a pending reference rebuilds the form with a fresh TimeStamp.
func (s *Service) Checkout(ctx context.Context, req *serviceports.CheckoutRequest) (*serviceports.CheckoutResult, error) {
	currency := strings.ToUpper(req.Currency)
	code := req.ProviderCode
	if code == "" {
		code = s.config.ProviderCode
	}

	result, err := s.checkout(ctx, code, currency, req)
	if err != nil {
		observability.RecordCheckout(currency, "rejected")
		s.logger.Warn("Checkout rejected",
			zap.String("reference", req.Reference),
			zap.String("currency", currency),
			zap.Error(err),
		)
		return nil, err
	}

	observability.RecordCheckout(currency, "built")
	return result, nil
}

func (s *Service) checkout(ctx context.Context, code, currency string, req *serviceports.CheckoutRequest) (*serviceports.CheckoutResult, error) {
	cred, err := s.credentials.FindCredential(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credential: %w", err)
	}
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	if !cred.SupportsCurrency(currency) {
		return nil, domain.NewDomainError(domain.ErrorCodeCurrencyUnsupported, "currency not supported by provider").
			WithDetail("currency", currency)
	}

	amt, err := newebpay.WholeAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if amt <= 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationAmountInvalid, "amount must be positive").
			WithDetail("amount", req.Amount.String())
	}

	txn, err := s.findOrCreate(ctx, code, currency, req)
	if err != nil {
		return nil, err
	}

	urls, err := newebpay.CallbackURLsFor(s.config.CallbackBaseURL)
	if err != nil {
		return nil, err
	}
	urls.ClientBackURL = s.config.ClientBackURL

	form, err := s.builder.BuildPaymentPayload(txn, cred, urls)
	if err != nil {
		return nil, err
	}

	return &serviceports.CheckoutResult{Transaction: txn, Form: form}, nil
}

func (s *Service) findOrCreate(ctx context.Context, code, currency string, req *serviceports.CheckoutRequest) (*domain.Transaction, error) {
	existing, err := s.txns.FindByReference(ctx, req.Reference)
	switch {
	case err == nil:
		return existing, checkReusable(existing, req, currency)
	case !errors.Is(err, domain.ErrTxnNotFound):
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}

	now := s.now()
	txn := &domain.Transaction{
		ID:              uuid.New().String(),
		Reference:       req.Reference,
		MerchantOrderNo: newebpay.MerchantOrderNo(req.Reference, now),
		ProviderCode:    code,
		Amount:          req.Amount,
		Currency:        currency,
		Description:     req.Description,
		CustomerEmail:   req.CustomerEmail,
		State:           domain.TransactionStatePending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.txns.Create(ctx, txn); err != nil {
		if !errors.Is(err, domain.ErrTxnDuplicate) {
			return nil, fmt.Errorf("failed to create transaction: %w", err)
		}
		// Lost a race for the same reference, or the sanitized order number collides
		existing, findErr := s.txns.FindByReference(ctx, req.Reference)
		if findErr != nil {
			return nil, domain.NewDomainError(domain.ErrorCodeTxnDuplicate, "merchant order number already in use").
				WithDetail("merchant_order_no", txn.MerchantOrderNo)
		}
		return existing, checkReusable(existing, req, currency)
	}

	s.logger.Info("Created pending transaction",
		zap.String("reference", txn.Reference),
		zap.String("merchant_order_no", txn.MerchantOrderNo),
		zap.String("amount", txn.Amount.String()),
		zap.String("currency", txn.Currency),
	)
	return txn, nil
}

// checkReusable allows a repeated checkout only for the same pending order
func checkReusable(txn *domain.Transaction, req *serviceports.CheckoutRequest, currency string) error {
	if txn.State != domain.TransactionStatePending {
		return domain.NewDomainError(domain.ErrorCodeTxnInvalidState, "transaction is no longer pending").
			WithDetail("state", string(txn.State))
	}
	if !txn.Amount.Equal(req.Amount) || txn.Currency != currency {
		return domain.NewDomainError(domain.ErrorCodeTxnDuplicate, "reference already used for a different order").
			WithDetail("reference", txn.Reference)
	}
	return nil
}

// GetTransaction returns the transaction for the status page
func (s *Service) GetTransaction(ctx context.Context, reference string) (*domain.Transaction, error) {
	return s.txns.FindByReference(ctx, reference)
}
