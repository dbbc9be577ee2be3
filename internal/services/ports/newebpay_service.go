package ports

import (
	"context"

	"github.com/shopspring/decimal"

	adapterports "github.com/kevin07696/newebpay-service/internal/adapters/ports"
	"github.com/kevin07696/newebpay-service/internal/domain"
)

// Callback is the gateway's callback form as received on return or notify
type Callback struct {
	Status     string // Plaintext outer status, informational only
	MerchantID string
	TradeInfo  string
	TradeSha   string
	Version    string
}

// Outcome describes what a callback did to its transaction
type Outcome struct {
	Transaction *domain.Transaction
	Applied     bool   // False when the transaction was already terminal
	Status      string // Decrypted Status field
}

// ReconcileService matches gateway callbacks to transactions and applies them
type ReconcileService interface {
	// LocateTransaction finds the transaction a callback belongs to.
	// Every failure is a reconciliation miss.
	LocateTransaction(ctx context.Context, cb *Callback) (*domain.Transaction, error)

	// ApplyNotification verifies the callback and moves txn through its state machine
	ApplyNotification(ctx context.Context, txn *domain.Transaction, cb *Callback) (*Outcome, error)

	// Process locates then applies
	Process(ctx context.Context, cb *Callback) (*Outcome, error)
}

// RefundService issues refunds against done transactions
type RefundService interface {
	// Refund refunds amount, or the remaining refundable amount when nil
	Refund(ctx context.Context, reference string, amount *decimal.Decimal) (*domain.Transaction, error)
}

// CheckoutRequest contains parameters for starting an MPG checkout
type CheckoutRequest struct {
	Reference     string
	ProviderCode  string
	Amount        decimal.Decimal
	Currency      string
	Description   string
	CustomerEmail string
}

// CheckoutResult is the pending transaction plus the form the browser posts to the gateway
type CheckoutResult struct {
	Transaction *domain.Transaction
	Form        *adapterports.PaymentForm
}

// CheckoutService creates pending transactions and their signed MPG forms
type CheckoutService interface {
	Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResult, error)
}

// TransactionQuery reads transactions for the status page
type TransactionQuery interface {
	GetTransaction(ctx context.Context, reference string) (*domain.Transaction, error)
}
