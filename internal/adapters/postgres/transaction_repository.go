package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kevin07696/newebpay-service/internal/domain"
	"github.com/kevin07696/newebpay-service/internal/domain/ports"
)

const transactionColumns = `id, reference, merchant_order_no, provider_code, amount, currency,
	description, customer_email, state, state_message, newebpay_trade_no,
	newebpay_payment_type, refund_trade_no, refund_status, refunded_amount,
	created_at, updated_at`

// TransactionRepository implements ports.TransactionRepository using pgx
type TransactionRepository struct {
	db *DBExecutor
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *DBExecutor) *TransactionRepository {
	return &TransactionRepository{db: db}
}

var _ ports.TransactionRepository = (*TransactionRepository)(nil)

// Create inserts a new transaction. An empty ID gets a fresh UUID.
func (r *TransactionRepository) Create(ctx context.Context, txn *domain.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	txID, err := uuid.Parse(txn.ID)
	if err != nil {
		return fmt.Errorf("invalid transaction ID: %w", err)
	}
	if txn.State == "" {
		txn.State = domain.TransactionStatePending
	}

	amount, err := decimalToPgNumeric(txn.Amount)
	if err != nil {
		return err
	}
	refunded, err := decimalToPgNumeric(txn.RefundedAmount)
	if err != nil {
		return err
	}

	err = r.db.conn().QueryRow(ctx, `
		INSERT INTO payment_transactions (
			id, reference, merchant_order_no, provider_code, amount, currency,
			description, customer_email, state, state_message, refunded_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		txID,
		txn.Reference,
		txn.MerchantOrderNo,
		txn.ProviderCode,
		amount,
		txn.Currency,
		nullText(txn.Description),
		nullText(txn.CustomerEmail),
		string(txn.State),
		nullText(txn.StateMessage),
		refunded,
	).Scan(&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrorCodeTxnDuplicate, "transaction reference already exists", err).
				WithDetail("reference", txn.Reference)
		}
		return fmt.Errorf("create transaction: %w", err)
	}

	return nil
}

// FindByReference retrieves a transaction by its reference
func (r *TransactionRepository) FindByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	row := r.db.conn().QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM payment_transactions WHERE reference = $1`,
		reference,
	)
	return scanTransaction(row, reference)
}

// FindByMerchantOrderNo retrieves the transaction a gateway order number belongs to
func (r *TransactionRepository) FindByMerchantOrderNo(ctx context.Context, orderNo string) (*domain.Transaction, error) {
	row := r.db.conn().QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM payment_transactions
		WHERE reference = $1 OR merchant_order_no = $1
		ORDER BY (reference = $1) DESC
		LIMIT 1`,
		orderNo,
	)
	return scanTransaction(row, orderNo)
}

// UpdateLocked loads the row with SELECT ... FOR UPDATE, applies fn and writes
// the mutable columns back before committing
func (r *TransactionRepository) UpdateLocked(ctx context.Context, reference string, fn ports.MutateFunc) (*domain.Transaction, error) {
	var result *domain.Transaction

	err := r.db.InTx(ctx, func(tx querier) error {
		row := tx.QueryRow(ctx,
			`SELECT `+transactionColumns+` FROM payment_transactions WHERE reference = $1 FOR UPDATE`,
			reference,
		)
		txn, err := scanTransaction(row, reference)
		if err != nil {
			return err
		}

		changed, err := fn(txn)
		if err != nil {
			return err
		}
		if !changed {
			result = txn
			return nil
		}

		if err := updateTransaction(ctx, tx, txn); err != nil {
			return err
		}
		result = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func updateTransaction(ctx context.Context, db querier, txn *domain.Transaction) error {
	refunded, err := decimalToPgNumeric(txn.RefundedAmount)
	if err != nil {
		return err
	}

	err = db.QueryRow(ctx, `
		UPDATE payment_transactions SET
			state = $2,
			state_message = $3,
			newebpay_trade_no = $4,
			newebpay_payment_type = $5,
			refund_trade_no = $6,
			refund_status = $7,
			refunded_amount = $8,
			updated_at = NOW()
		WHERE reference = $1
		RETURNING updated_at`,
		txn.Reference,
		string(txn.State),
		nullText(txn.StateMessage),
		nullText(txn.TradeNo),
		nullText(string(txn.PaymentType)),
		nullText(txn.RefundTradeNo),
		nullText(txn.RefundStatus),
		refunded,
	).Scan(&txn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

func scanTransaction(row pgx.Row, key string) (*domain.Transaction, error) {
	var (
		txn                                      domain.Transaction
		id                                       pgtype.UUID
		amount, refunded                         pgtype.Numeric
		description, email, stateMessage         pgtype.Text
		tradeNo, paymentType, refundNo, refundSt pgtype.Text
		state                                    string
	)

	err := row.Scan(
		&id,
		&txn.Reference,
		&txn.MerchantOrderNo,
		&txn.ProviderCode,
		&amount,
		&txn.Currency,
		&description,
		&email,
		&state,
		&stateMessage,
		&tradeNo,
		&paymentType,
		&refundNo,
		&refundSt,
		&refunded,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewDomainError(domain.ErrorCodeTxnNotFound, "transaction not found").
				WithDetail("reference", key)
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "load transaction", err)
	}

	txn.ID = uuid.UUID(id.Bytes).String()
	txn.State = domain.TransactionState(state)
	txn.Description = textValue(description)
	txn.CustomerEmail = textValue(email)
	txn.StateMessage = textValue(stateMessage)
	txn.TradeNo = textValue(tradeNo)
	txn.PaymentType = domain.PaymentType(textValue(paymentType))
	txn.RefundTradeNo = textValue(refundNo)
	txn.RefundStatus = textValue(refundSt)

	if txn.Amount, err = pgNumericToDecimal(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if txn.RefundedAmount, err = pgNumericToDecimal(refunded); err != nil {
		return nil, fmt.Errorf("parse refunded amount: %w", err)
	}

	return &txn, nil
}
