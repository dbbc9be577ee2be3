package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionState is the host framework's lifecycle state of a transaction
type TransactionState string

const (
	TransactionStatePending   TransactionState = "pending"
	TransactionStateDone      TransactionState = "done"
	TransactionStateError     TransactionState = "error"
	TransactionStateCancelled TransactionState = "cancelled"
)

// PaymentType is the payment method code NewebPay reports back in PaymentType
type PaymentType string

const (
	PaymentTypeCredit  PaymentType = "CREDIT"
	PaymentTypeWebATM  PaymentType = "WEBATM"
	PaymentTypeVACC    PaymentType = "VACC"
	PaymentTypeCVS     PaymentType = "CVS"
	PaymentTypeBarcode PaymentType = "BARCODE"
)

var paymentTypeLabels = map[PaymentType]string{
	PaymentTypeCredit:  "信用卡",
	PaymentTypeWebATM:  "網路 ATM",
	PaymentTypeVACC:    "虛擬帳號",
	PaymentTypeCVS:     "超商代碼",
	PaymentTypeBarcode: "條碼繳費",
}

// Label returns the display name of the payment type, or the raw code when unknown
func (p PaymentType) Label() string {
	if label, ok := paymentTypeLabels[p]; ok {
		return label
	}
	return string(p)
}

// IsKnown reports whether the code is one of the five MPG payment types
func (p PaymentType) IsKnown() bool {
	_, ok := paymentTypeLabels[p]
	return ok
}

// RefundStatusProcessing marks a refund claimed by a running request
const RefundStatusProcessing = "PROCESSING"

// RefundStatusSuccess is the gateway status of an accepted refund
const RefundStatusSuccess = "SUCCESS"

// Transaction is a payment transaction owned by the host store.
// TradeNo, PaymentType and the Refund* fields are written by this service.
type Transaction struct {
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Amount          decimal.Decimal  `json:"amount"`
	RefundedAmount  decimal.Decimal  `json:"refunded_amount"`
	ID              string           `json:"id"`
	Reference       string           `json:"reference"`
	MerchantOrderNo string           `json:"merchant_order_no"`
	ProviderCode    string           `json:"provider_code"`
	Currency        string           `json:"currency"`
	Description     string           `json:"description,omitempty"`
	CustomerEmail   string           `json:"customer_email,omitempty"`
	State           TransactionState `json:"state"`
	StateMessage    string           `json:"state_message,omitempty"`
	TradeNo         string           `json:"newebpay_trade_no,omitempty"`
	PaymentType     PaymentType      `json:"newebpay_payment_type,omitempty"`
	RefundTradeNo   string           `json:"refund_trade_no,omitempty"`
	RefundStatus    string           `json:"refund_status,omitempty"`
}

// IsTerminal returns true once the transaction reached done, error or cancelled
func (t *Transaction) IsTerminal() bool {
	switch t.State {
	case TransactionStateDone, TransactionStateError, TransactionStateCancelled:
		return true
	default:
		return false
	}
}

// RefundableAmount is the captured amount not yet refunded
func (t *Transaction) RefundableAmount() decimal.Decimal {
	remaining := t.Amount.Sub(t.RefundedAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// CanBeRefunded returns true if the transaction can be refunded
func (t *Transaction) CanBeRefunded() bool {
	return t.State == TransactionStateDone &&
		t.TradeNo != "" &&
		t.RefundableAmount().IsPositive()
}

// RefundInProgress reports whether another request holds the refund claim
func (t *Transaction) RefundInProgress() bool {
	return t.RefundStatus == RefundStatusProcessing
}

// Transition is the state a callback asks the transaction to move to
type Transition struct {
	State   TransactionState
	Message string
}

// Apply moves the transaction to the transition's state
func (t *Transaction) Apply(tr Transition) {
	t.State = tr.State
	t.StateMessage = tr.Message
}
