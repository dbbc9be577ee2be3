package newebpay

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	adapterports "github.com/kevin07696/newebpay-service/internal/adapters/ports"
	"github.com/kevin07696/newebpay-service/internal/domain"
	serviceports "github.com/kevin07696/newebpay-service/internal/services/ports"
)

// CheckoutRequest is the JSON body of a checkout call
type CheckoutRequest struct {
	Reference    string          `json:"reference" validate:"required,max=100"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency" validate:"required,len=3,alpha"`
	Description  string          `json:"description" validate:"max=255"`
	Email        string          `json:"email" validate:"omitempty,email,max=255"`
	ProviderCode string          `json:"provider_code" validate:"omitempty,max=50"`
}

// CheckoutResponse carries the fields the storefront posts to the MPG gateway
type CheckoutResponse struct {
	Reference     string                    `json:"reference"`
	TransactionID string                    `json:"transaction_id"`
	State         domain.TransactionState   `json:"state"`
	Form          *adapterports.PaymentForm `json:"form"`
}

// RefundRequest is the JSON body of a refund call. A missing amount refunds
// everything not yet refunded.
type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// TransactionResponse is the status view of a transaction
type TransactionResponse struct {
	Reference        string                  `json:"reference"`
	MerchantOrderNo  string                  `json:"merchant_order_no"`
	State            domain.TransactionState `json:"state"`
	StateMessage     string                  `json:"state_message,omitempty"`
	Amount           decimal.Decimal         `json:"amount"`
	Currency         string                  `json:"currency"`
	TradeNo          string                  `json:"newebpay_trade_no,omitempty"`
	PaymentType      domain.PaymentType      `json:"newebpay_payment_type,omitempty"`
	PaymentTypeLabel string                  `json:"payment_type_label,omitempty"`
	RefundedAmount   decimal.Decimal         `json:"refunded_amount"`
	RefundStatus     string                  `json:"refund_status,omitempty"`
	RefundTradeNo    string                  `json:"refund_trade_no,omitempty"`
	Refundable       bool                    `json:"refundable"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

func toTransactionResponse(txn *domain.Transaction) *TransactionResponse {
	resp := &TransactionResponse{
		Reference:       txn.Reference,
		MerchantOrderNo: txn.MerchantOrderNo,
		State:           txn.State,
		StateMessage:    txn.StateMessage,
		Amount:          txn.Amount,
		Currency:        txn.Currency,
		TradeNo:         txn.TradeNo,
		PaymentType:     txn.PaymentType,
		RefundedAmount:  txn.RefundedAmount,
		RefundStatus:    txn.RefundStatus,
		RefundTradeNo:   txn.RefundTradeNo,
		Refundable:      txn.CanBeRefunded() && !txn.RefundInProgress(),
		UpdatedAt:       txn.UpdatedAt,
	}
	if txn.PaymentType != "" {
		resp.PaymentTypeLabel = txn.PaymentType.Label()
	}
	return resp
}

// APIHandler serves the JSON checkout, status and refund endpoints
type APIHandler struct {
	checkout     serviceports.CheckoutService
	transactions serviceports.TransactionQuery
	refunds      serviceports.RefundService
	logger       *zap.Logger
}

// NewAPIHandler creates the JSON API handler
func NewAPIHandler(
	checkout serviceports.CheckoutService,
	transactions serviceports.TransactionQuery,
	refunds serviceports.RefundService,
	logger *zap.Logger,
) *APIHandler {
	return &APIHandler{
		checkout:     checkout,
		transactions: transactions,
		refunds:      refunds,
		logger:       logger,
	}
}

// Checkout creates a pending transaction and returns its signed MPG form
// Endpoint: POST /api/v1/payments/newebpay/checkout
func (h *APIHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := readJSON(w, r, &req); err != nil {
		_ = writeJSONError(w, http.StatusBadRequest, domain.ErrorCodeValidationFailed, err.Error())
		return
	}
	if err := Validate.Struct(req); err != nil {
		_ = writeJSONError(w, http.StatusBadRequest, domain.ErrorCodeValidationFailed, validationMessage(err))
		return
	}

	result, err := h.checkout.Checkout(r.Context(), &serviceports.CheckoutRequest{
		Reference:     req.Reference,
		ProviderCode:  req.ProviderCode,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Description:   req.Description,
		CustomerEmail: req.Email,
	})
	if err != nil {
		h.logError("Checkout failed", req.Reference, err)
		_ = writeDomainError(w, err)
		return
	}

	_ = jsonResponse(w, http.StatusOK, &CheckoutResponse{
		Reference:     result.Transaction.Reference,
		TransactionID: result.Transaction.ID,
		State:         result.Transaction.State,
		Form:          result.Form,
	})
}

// GetTransaction returns the transaction status
// Endpoint: GET /api/v1/transactions/{reference}
func (h *APIHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	txn, err := h.transactions.GetTransaction(r.Context(), reference)
	if err != nil {
		h.logError("Transaction lookup failed", reference, err)
		_ = writeDomainError(w, err)
		return
	}

	_ = jsonResponse(w, http.StatusOK, toTransactionResponse(txn))
}

// Refund refunds a done transaction
// Endpoint: POST /api/v1/transactions/{reference}/refund
func (h *APIHandler) Refund(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	var req RefundRequest
	if err := readJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		_ = writeJSONError(w, http.StatusBadRequest, domain.ErrorCodeValidationFailed, err.Error())
		return
	}

	txn, err := h.refunds.Refund(r.Context(), reference, req.Amount)
	if err != nil {
		h.logError("Refund failed", reference, err)
		_ = writeDomainError(w, err)
		return
	}

	_ = jsonResponse(w, http.StatusOK, toTransactionResponse(txn))
}

func (h *APIHandler) logError(msg, reference string, err error) {
	fields := []zap.Field{
		zap.String("reference", reference),
		zap.String("code", string(domain.GetErrorCode(err))),
		zap.Error(err),
	}
	if domain.HTTPStatus(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, fields...)
		return
	}
	h.logger.Warn(msg, fields...)
}
