// Package fixtures builds NewebPay transactions, credentials and callbacks for tests.
package fixtures

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kevin07696/newebpay-service/internal/domain"
)

// TransactionBuilder provides fluent API for building test transactions.
type TransactionBuilder struct {
	transaction *domain.Transaction
}

// NewTransaction creates a pending 1000 TWD NewebPay transaction with reference S0001
func NewTransaction() *TransactionBuilder {
	now := time.Now()
	return &TransactionBuilder{
		transaction: &domain.Transaction{
			ID:              uuid.New().String(),
			Reference:       "S0001",
			MerchantOrderNo: "S0001",
			ProviderCode:    domain.ProviderCodeNewebPay,
			Amount:          decimal.NewFromInt(1000),
			Currency:        "TWD",
			Description:     "Test order",
			State:           domain.TransactionStatePending,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
	}
}

func (b *TransactionBuilder) WithReference(reference, orderNo string) *TransactionBuilder {
	b.transaction.Reference = reference
	b.transaction.MerchantOrderNo = orderNo
	return b
}

func (b *TransactionBuilder) WithAmount(amount string) *TransactionBuilder {
	b.transaction.Amount = decimal.RequireFromString(amount)
	return b
}

func (b *TransactionBuilder) WithState(state domain.TransactionState) *TransactionBuilder {
	b.transaction.State = state
	return b
}

// Done marks the transaction paid by card under tradeNo
func (b *TransactionBuilder) Done(tradeNo string) *TransactionBuilder {
	b.transaction.State = domain.TransactionStateDone
	b.transaction.TradeNo = tradeNo
	b.transaction.PaymentType = domain.PaymentTypeCredit
	return b
}

func (b *TransactionBuilder) WithRefunded(amount string) *TransactionBuilder {
	b.transaction.RefundedAmount = decimal.RequireFromString(amount)
	return b
}

func (b *TransactionBuilder) WithRefundStatus(status string) *TransactionBuilder {
	b.transaction.RefundStatus = status
	return b
}

func (b *TransactionBuilder) Build() *domain.Transaction {
	return b.transaction
}

// DecimalPtr parses s for optional amount arguments. Panics on invalid input.
func DecimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
