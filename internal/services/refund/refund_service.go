// Package refund issues NewebPay CreditCard/Cancel refunds against done transactions.
package refund

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kevin07696/newebpay-service/internal/adapters/newebpay"
	adapterports "github.com/kevin07696/newebpay-service/internal/adapters/ports"
	"github.com/kevin07696/newebpay-service/internal/domain"
	"github.com/kevin07696/newebpay-service/internal/domain/ports"
	serviceports "github.com/kevin07696/newebpay-service/internal/services/ports"
	"github.com/kevin07696/newebpay-service/pkg/lockmap"
	"github.com/kevin07696/newebpay-service/pkg/observability"
)

// Service implements serviceports.RefundService.
//
// A refund is claimed by writing RefundStatus=PROCESSING under the row lock,
// the gateway is called with no lock held, and the result is written back
// under the row lock again.
type Service struct {
	txns        ports.TransactionRepository
	credentials ports.CredentialLookup
	gateway     adapterports.RefundGateway
	locks       *lockmap.Map
	logger      *zap.Logger
}

// NewService creates a refund service
func NewService(
	txns ports.TransactionRepository,
	credentials ports.CredentialLookup,
	gateway adapterports.RefundGateway,
	locks *lockmap.Map,
	logger *zap.Logger,
) *Service {
	if locks == nil {
		locks = lockmap.New()
	}
	return &Service{
		txns:        txns,
		credentials: credentials,
		gateway:     gateway,
		locks:       locks,
		logger:      logger,
	}
}

var _ serviceports.RefundService = (*Service)(nil)

// Refund refunds amount, or everything not yet refunded when amount is nil
func (s *Service) Refund(ctx context.Context, reference string, amount *decimal.Decimal) (*domain.Transaction, error) {
	txn, err := s.txns.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if txn.TradeNo == "" {
		observability.RecordRefund("invalid")
		return nil, domain.NewDomainError(domain.ErrorCodeConfiguration, "transaction has no NewebPay trade number").
			WithDetail("reference", reference)
	}

	cred, err := s.credentials.FindCredential(ctx, txn.ProviderCode)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credential: %w", err)
	}
	if err := cred.Validate(); err != nil {
		observability.RecordRefund("invalid")
		return nil, err
	}

	var amt int64
	unlock := s.locks.Lock(reference)
	claimed, err := s.txns.UpdateLocked(ctx, reference, func(current *domain.Transaction) (bool, error) {
		var claimErr error
		amt, claimErr = checkRefundable(current, amount)
		if claimErr != nil {
			return false, claimErr
		}
		current.RefundStatus = domain.RefundStatusProcessing
		return true, nil
	})
	unlock()
	if err != nil {
		if domain.IsRefundError(err) {
			observability.RecordRefund("in_progress")
		} else {
			observability.RecordRefund("invalid")
		}
		s.logger.Warn("Refund rejected before gateway call",
			zap.String("reference", reference),
			zap.Error(err),
		)
		return nil, err
	}

	req := &adapterports.RefundRequest{
		TradeNo:         claimed.TradeNo,
		Amount:          amt,
		MerchantOrderNo: claimed.MerchantOrderNo,
	}
	result, gatewayErr := s.gateway.Cancel(ctx, cred, req)

	// The outcome must be written even if the caller went away mid-request
	recordCtx := context.WithoutCancel(ctx)
	unlock = s.locks.Lock(reference)
	updated, err := s.txns.UpdateLocked(recordCtx, reference, func(current *domain.Transaction) (bool, error) {
		recordOutcome(current, amt, result, gatewayErr)
		return true, nil
	})
	unlock()
	if err != nil {
		s.logger.Error("Failed to record refund outcome",
			zap.String("reference", reference),
			zap.NamedError("gateway_error", gatewayErr),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to record refund outcome: %w", err)
	}

	switch {
	case gatewayErr == nil:
		observability.RecordRefund("success")
		s.logger.Info("Refund succeeded",
			zap.String("reference", reference),
			zap.Int64("amt", amt),
			zap.String("refund_trade_no", updated.RefundTradeNo),
			zap.String("refunded_amount", updated.RefundedAmount.String()),
		)
		return updated, nil
	case domain.IsNetworkError(gatewayErr):
		observability.RecordRefund("network_error")
		s.logger.Error("Refund outcome unknown, claim released",
			zap.String("reference", reference),
			zap.Int64("amt", amt),
			zap.Error(gatewayErr),
		)
	default:
		observability.RecordRefund("rejected")
		s.logger.Warn("Refund rejected",
			zap.String("reference", reference),
			zap.String("refund_status", updated.RefundStatus),
			zap.Error(gatewayErr),
		)
	}
	return updated, gatewayErr
}

// checkRefundable validates the claim and returns the whole-unit amount to refund
func checkRefundable(txn *domain.Transaction, requested *decimal.Decimal) (int64, error) {
	if txn.RefundInProgress() {
		return 0, domain.ErrRefundInProgress
	}
	if txn.TradeNo == "" {
		return 0, domain.NewDomainError(domain.ErrorCodeConfiguration, "transaction has no NewebPay trade number")
	}
	if txn.State != domain.TransactionStateDone {
		return 0, domain.NewDomainError(domain.ErrorCodeTxnInvalidState, "only done transactions can be refunded").
			WithDetail("state", string(txn.State))
	}

	remaining := txn.RefundableAmount()
	amount := remaining
	if requested != nil {
		amount = *requested
	}

	amt, err := newebpay.WholeAmount(amount)
	if err != nil {
		return 0, err
	}
	if amt <= 0 {
		return 0, domain.NewDomainError(domain.ErrorCodeValidationAmountInvalid, "refund amount must be positive").
			WithDetail("amount", amount.String())
	}
	if amount.GreaterThan(remaining) {
		return 0, domain.NewDomainError(domain.ErrorCodeValidationAmountInvalid, "refund amount exceeds refundable amount").
			WithDetail("amount", amount.String()).
			WithDetail("refundable", remaining.String())
	}
	return amt, nil
}

// recordOutcome writes the gateway result onto the refund fields and drops the claim
func recordOutcome(txn *domain.Transaction, amt int64, result *adapterports.RefundResult, gatewayErr error) {
	switch {
	case gatewayErr == nil:
		txn.RefundStatus = domain.RefundStatusSuccess
		txn.RefundTradeNo = result.TradeNo
		txn.RefundedAmount = txn.RefundedAmount.Add(decimal.NewFromInt(amt))
	case domain.IsNetworkError(gatewayErr):
		// The gateway may have refunded anyway, leave the status unset for investigation
		txn.RefundStatus = ""
	case result != nil && result.Message != "":
		txn.RefundStatus = result.Message
	default:
		txn.RefundStatus = domain.ErrorMessage(gatewayErr)
	}
}
