package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Configuration Errors (CONFIG_*)
	ErrorCodeConfiguration       ErrorCode = "CONFIGURATION_ERROR"
	ErrorCodeProviderNotFound    ErrorCode = "CONFIG_PROVIDER_NOT_FOUND"
	ErrorCodeCurrencyUnsupported ErrorCode = "CONFIG_CURRENCY_UNSUPPORTED"

	// Crypto Errors (CRYPTO_*)
	ErrorCodeCrypto ErrorCode = "CRYPTO_ERROR"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationAmountInvalid ErrorCode = "VALIDATION_AMOUNT_INVALID"
	ErrorCodeSignatureInvalid        ErrorCode = "VALIDATION_SIGNATURE_INVALID"
	ErrorCodeTxnAmountMismatch       ErrorCode = "TXN_AMOUNT_MISMATCH"

	// Network Errors (NETWORK_*)
	ErrorCodeNetwork        ErrorCode = "NETWORK_ERROR"
	ErrorCodeGatewayTimeout ErrorCode = "NETWORK_GATEWAY_TIMEOUT"

	// Reconciliation
	ErrorCodeReconciliationMiss ErrorCode = "RECONCILIATION_MISS"

	// Refund Errors (REFUND_*)
	ErrorCodeRefund           ErrorCode = "REFUND_ERROR"
	ErrorCodeRefundInProgress ErrorCode = "REFUND_IN_PROGRESS"

	// Transaction Errors (TXN_*)
	ErrorCodeTxnNotFound     ErrorCode = "TXN_NOT_FOUND"
	ErrorCodeTxnInvalidState ErrorCode = "TXN_INVALID_STATE"
	ErrorCodeTxnDuplicate    ErrorCode = "TXN_DUPLICATE_REFERENCE"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code so sentinel values work with errors.Is
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if errors.As(target, &other) {
		return other.Code == e.Code && other.Err == nil && len(other.Details) == 0
	}
	return false
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// ErrorMessage returns the human message of a DomainError, or err.Error() otherwise
func ErrorMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

// IsConfigurationError reports an incomplete or missing provider configuration
func IsConfigurationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeConfiguration ||
		code == ErrorCodeProviderNotFound ||
		code == ErrorCodeCurrencyUnsupported
}

// IsCryptoError reports malformed ciphertext, padding or hex input
func IsCryptoError(err error) bool {
	return GetErrorCode(err) == ErrorCodeCrypto
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationFailed ||
		code == ErrorCodeValidationAmountInvalid ||
		code == ErrorCodeSignatureInvalid ||
		code == ErrorCodeTxnAmountMismatch
}

// IsNetworkError checks if an error is a transport failure talking to the gateway
func IsNetworkError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeNetwork || code == ErrorCodeGatewayTimeout
}

// IsReconciliationMiss checks if a callback could not be matched to a transaction
func IsReconciliationMiss(err error) bool {
	return GetErrorCode(err) == ErrorCodeReconciliationMiss
}

// IsRefundError checks if the gateway rejected a refund or one is already running
func IsRefundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeRefund || code == ErrorCodeRefundInProgress
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeTxnNotFound || code == ErrorCodeProviderNotFound
}

// HTTPStatus maps an error onto the status code returned by the JSON API
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsNotFoundError(err):
		return http.StatusNotFound
	case IsValidationError(err):
		return http.StatusUnprocessableEntity
	case IsConfigurationError(err):
		return http.StatusBadRequest
	case GetErrorCode(err) == ErrorCodeTxnInvalidState,
		GetErrorCode(err) == ErrorCodeTxnDuplicate,
		GetErrorCode(err) == ErrorCodeRefundInProgress:
		return http.StatusConflict
	case IsNetworkError(err), IsRefundError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Structured error instances
var (
	ErrConfiguration       = NewDomainError(ErrorCodeConfiguration, "provider configuration incomplete")
	ErrProviderNotFound    = NewDomainError(ErrorCodeProviderNotFound, "payment provider not found")
	ErrCurrencyUnsupported = NewDomainError(ErrorCodeCurrencyUnsupported, "currency not supported by provider")

	ErrCrypto = NewDomainError(ErrorCodeCrypto, "malformed encrypted payload")

	ErrValidationFailed        = NewDomainError(ErrorCodeValidationFailed, "validation failed")
	ErrValidationAmountInvalid = NewDomainError(ErrorCodeValidationAmountInvalid, "invalid amount")
	ErrSignatureInvalid        = NewDomainError(ErrorCodeSignatureInvalid, "signature verification failed")
	ErrAmountMismatch          = NewDomainError(ErrorCodeTxnAmountMismatch, "amount mismatch")

	ErrNetwork        = NewDomainError(ErrorCodeNetwork, "gateway request failed")
	ErrGatewayTimeout = NewDomainError(ErrorCodeGatewayTimeout, "gateway request timed out")

	ErrReconciliationMiss = NewDomainError(ErrorCodeReconciliationMiss, "no matching transaction for callback")

	ErrRefund           = NewDomainError(ErrorCodeRefund, "refund rejected")
	ErrRefundInProgress = NewDomainError(ErrorCodeRefundInProgress, "refund already in progress")

	ErrTxnNotFound     = NewDomainError(ErrorCodeTxnNotFound, "transaction not found")
	ErrTxnInvalidState = NewDomainError(ErrorCodeTxnInvalidState, "transaction is in invalid state for this operation")
	ErrTxnDuplicate    = NewDomainError(ErrorCodeTxnDuplicate, "transaction reference already exists")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)
