package ports

import (
	"context"

	"github.com/kevin07696/newebpay-service/internal/domain"
)

// MutateFunc changes a row-locked transaction in place.
// Returning false leaves the stored row untouched.
type MutateFunc func(txn *domain.Transaction) (changed bool, err error)

// TransactionRepository defines the interface for transaction persistence
type TransactionRepository interface {
	// Create inserts a new pending transaction
	// Returns domain.ErrTxnDuplicate when the reference already exists
	Create(ctx context.Context, txn *domain.Transaction) error

	// FindByReference retrieves the unique transaction for a merchant order reference
	// Returns domain.ErrTxnNotFound when none exists
	FindByReference(ctx context.Context, reference string) (*domain.Transaction, error)

	// FindByMerchantOrderNo resolves a gateway order number back to its transaction.
	// An exact reference match wins over a stored merchant order number.
	// Returns domain.ErrTxnNotFound when none exists
	FindByMerchantOrderNo(ctx context.Context, orderNo string) (*domain.Transaction, error)

	// UpdateLocked loads the transaction under a row lock (SELECT ... FOR UPDATE),
	// applies fn and writes the result in the same database transaction.
	// Concurrent callers for the same reference are serialized.
	UpdateLocked(ctx context.Context, reference string, fn MutateFunc) (*domain.Transaction, error)
}
