// Package reconcile applies NewebPay return and notify callbacks to transactions.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kevin07696/newebpay-service/internal/adapters/newebpay"
	"github.com/kevin07696/newebpay-service/internal/domain"
	"github.com/kevin07696/newebpay-service/internal/domain/ports"
	serviceports "github.com/kevin07696/newebpay-service/internal/services/ports"
	"github.com/kevin07696/newebpay-service/pkg/lockmap"
	"github.com/kevin07696/newebpay-service/pkg/observability"
)

// Transition messages recorded on the transaction
const (
	MessageSignatureFailed = "signature verification failed"
	MessageMalformed       = "malformed callback"
	MessageAmountMismatch  = "amount mismatch"
	MessagePaymentFailed   = "payment failed"
	MessageProcessing      = "processing"
)

// Gateway status values
const (
	StatusSuccess = "SUCCESS"
	StatusFail    = "FAIL"
)

// AmountTolerance is the largest |Amt - amount| still treated as a match
var AmountTolerance = decimal.RequireFromString("0.01")

// Config holds reconcile settings
type Config struct {
	ProviderCode string // Credential used to decrypt callbacks before the transaction is known
}

// DefaultConfig returns the NewebPay provider settings
func DefaultConfig() Config {
	return Config{ProviderCode: domain.ProviderCodeNewebPay}
}

// Service implements serviceports.ReconcileService
type Service struct {
	config      Config
	txns        ports.TransactionRepository
	credentials ports.CredentialLookup
	locks       *lockmap.Map
	logger      *zap.Logger
}

// NewService creates a reconcile service. Callers that also refund should
// share locks so both paths serialize on the same reference.
func NewService(
	config Config,
	txns ports.TransactionRepository,
	credentials ports.CredentialLookup,
	locks *lockmap.Map,
	logger *zap.Logger,
) *Service {
	if config.ProviderCode == "" {
		config.ProviderCode = domain.ProviderCodeNewebPay
	}
	if locks == nil {
		locks = lockmap.New()
	}
	return &Service{
		config:      config,
		txns:        txns,
		credentials: credentials,
		locks:       locks,
		logger:      logger,
	}
}

var _ serviceports.ReconcileService = (*Service)(nil)

// LocateTransaction decrypts the callback and finds the transaction it names.
// Malformed input never escapes as anything but a reconciliation miss.
func (s *Service) LocateTransaction(ctx context.Context, cb *serviceports.Callback) (*domain.Transaction, error) {
	if cb == nil || cb.TradeInfo == "" {
		return nil, s.miss("callback has no TradeInfo", nil)
	}

	cred, err := s.credentials.FindCredential(ctx, s.config.ProviderCode)
	if err != nil {
		return nil, s.miss("provider credential unavailable", err)
	}

	info, err := newebpay.Decrypt(cb.TradeInfo, cred.HashKey, cred.HashIV)
	if err != nil {
		observability.RecordCryptoFailure("decrypt")
		return nil, s.miss("callback TradeInfo could not be decrypted", err)
	}

	orderNo := info.Value("MerchantOrderNo")
	if orderNo == "" {
		return nil, s.miss("callback has no MerchantOrderNo", nil)
	}

	txn, err := s.txns.FindByMerchantOrderNo(ctx, orderNo)
	if err != nil {
		if errors.Is(err, domain.ErrTxnNotFound) {
			return nil, s.miss("no transaction for MerchantOrderNo", err, zap.String("merchant_order_no", orderNo))
		}
		return nil, fmt.Errorf("failed to find transaction %s: %w", orderNo, err)
	}

	return txn, nil
}

func (s *Service) miss(reason string, cause error, fields ...zap.Field) error {
	fields = append(fields, zap.String("reason", reason))
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	s.logger.Warn("NewebPay callback reconciliation miss", fields...)

	return domain.WrapError(domain.ErrorCodeReconciliationMiss, reason, cause)
}

// ApplyNotification runs the callback state machine against txn under the
// per-reference lock and a row lock. A terminal transaction is left untouched.
// Verification failures are recorded as the error state, not returned.
func (s *Service) ApplyNotification(ctx context.Context, txn *domain.Transaction, cb *serviceports.Callback) (*serviceports.Outcome, error) {
	unlock := s.locks.Lock(txn.Reference)
	defer unlock()

	code := txn.ProviderCode
	if code == "" {
		code = s.config.ProviderCode
	}
	cred, err := s.credentials.FindCredential(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credential: %w", err)
	}

	outcome := &serviceports.Outcome{}
	updated, err := s.txns.UpdateLocked(ctx, txn.Reference, func(current *domain.Transaction) (bool, error) {
		if current.IsTerminal() {
			return false, nil
		}
		outcome.Applied = true
		outcome.Status = s.transition(current, cb, cred)
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply callback: %w", err)
	}
	outcome.Transaction = updated

	if !outcome.Applied {
		observability.RecordTransition("noop")
		s.logger.Info("Ignoring callback for terminal transaction",
			zap.String("reference", updated.Reference),
			zap.String("state", string(updated.State)),
		)
		return outcome, nil
	}

	observability.RecordTransition(string(updated.State))
	s.logger.Info("Applied NewebPay callback",
		zap.String("reference", updated.Reference),
		zap.String("status", outcome.Status),
		zap.String("state", string(updated.State)),
		zap.String("state_message", updated.StateMessage),
		zap.String("trade_no", updated.TradeNo),
	)
	return outcome, nil
}

// transition mutates txn and returns the decrypted gateway Status
func (s *Service) transition(txn *domain.Transaction, cb *serviceports.Callback, cred *domain.ProviderCredential) string {
	if !newebpay.Verify(cb.TradeInfo, cb.TradeSha, cred.HashKey, cred.HashIV) {
		observability.RecordCryptoFailure("verify")
		s.logger.Warn("NewebPay callback signature mismatch", zap.String("reference", txn.Reference))
		txn.Apply(domain.Transition{State: domain.TransactionStateError, Message: MessageSignatureFailed})
		return ""
	}

	info, err := newebpay.Decrypt(cb.TradeInfo, cred.HashKey, cred.HashIV)
	if err != nil {
		observability.RecordCryptoFailure("decrypt")
		s.logger.Warn("NewebPay callback could not be decrypted",
			zap.String("reference", txn.Reference),
			zap.Error(err),
		)
		txn.Apply(domain.Transition{State: domain.TransactionStateError, Message: MessageMalformed})
		return ""
	}

	txn.TradeNo = info.Value("TradeNo")
	txn.PaymentType = domain.PaymentType(info.Value("PaymentType"))

	status := info.Value("Status")
	message := info.Value("Message")
	switch status {
	case StatusSuccess:
		if !amountMatches(info.Value("Amt"), txn.Amount) {
			s.logger.Warn("NewebPay callback amount mismatch",
				zap.String("reference", txn.Reference),
				zap.String("amt", info.Value("Amt")),
				zap.String("expected", txn.Amount.String()),
			)
			txn.Apply(domain.Transition{State: domain.TransactionStateError, Message: MessageAmountMismatch})
			return status
		}
		txn.Apply(domain.Transition{State: domain.TransactionStateDone})
	case StatusFail:
		txn.Apply(domain.Transition{State: domain.TransactionStateError, Message: orDefault(message, MessagePaymentFailed)})
	default:
		txn.Apply(domain.Transition{State: domain.TransactionStatePending, Message: orDefault(message, MessageProcessing)})
	}
	return status
}

// Process locates the callback's transaction and applies it
func (s *Service) Process(ctx context.Context, cb *serviceports.Callback) (*serviceports.Outcome, error) {
	txn, err := s.LocateTransaction(ctx, cb)
	if err != nil {
		return nil, err
	}
	return s.ApplyNotification(ctx, txn, cb)
}

func amountMatches(amt string, expected decimal.Decimal) bool {
	got, err := decimal.NewFromString(amt)
	if err != nil {
		return false
	}
	return got.Sub(expected).Abs().LessThanOrEqual(AmountTolerance)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
