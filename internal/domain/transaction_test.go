package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransaction_IsTerminal(t *testing.T) {
	tests := []struct {
		state TransactionState
		want  bool
	}{
		{TransactionStatePending, false},
		{TransactionStateDone, true},
		{TransactionStateError, true},
		{TransactionStateCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			txn := &Transaction{State: tt.state}
			assert.Equal(t, tt.want, txn.IsTerminal())
		})
	}
}

func TestTransaction_CanBeRefunded(t *testing.T) {
	base := func() *Transaction {
		return &Transaction{
			State:   TransactionStateDone,
			TradeNo: "24010112345678",
			Amount:  decimal.NewFromInt(100),
		}
	}

	t.Run("done with trade number", func(t *testing.T) {
		assert.True(t, base().CanBeRefunded())
	})

	t.Run("pending", func(t *testing.T) {
		txn := base()
		txn.State = TransactionStatePending
		assert.False(t, txn.CanBeRefunded())
	})

	t.Run("missing trade number", func(t *testing.T) {
		txn := base()
		txn.TradeNo = ""
		assert.False(t, txn.CanBeRefunded())
	})

	t.Run("fully refunded", func(t *testing.T) {
		txn := base()
		txn.RefundedAmount = decimal.NewFromInt(100)
		assert.False(t, txn.CanBeRefunded())
		assert.True(t, txn.RefundableAmount().IsZero())
	})

	t.Run("partially refunded", func(t *testing.T) {
		txn := base()
		txn.RefundedAmount = decimal.NewFromInt(30)
		assert.True(t, txn.CanBeRefunded())
		assert.True(t, txn.RefundableAmount().Equal(decimal.NewFromInt(70)))
	})
}

func TestTransaction_Apply(t *testing.T) {
	txn := &Transaction{State: TransactionStatePending}
	txn.Apply(Transition{State: TransactionStateError, Message: "amount mismatch"})

	assert.Equal(t, TransactionStateError, txn.State)
	assert.Equal(t, "amount mismatch", txn.StateMessage)
}

func TestPaymentType_Label(t *testing.T) {
	assert.Equal(t, "信用卡", PaymentTypeCredit.Label())
	assert.Equal(t, "條碼繳費", PaymentTypeBarcode.Label())
	assert.Equal(t, "LINEPAY", PaymentType("LINEPAY").Label())
	assert.True(t, PaymentTypeVACC.IsKnown())
	assert.False(t, PaymentType("LINEPAY").IsKnown())
}
