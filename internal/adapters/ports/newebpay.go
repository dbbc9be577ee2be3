package ports

import (
	"context"
	"net/http"

	"github.com/kevin07696/newebpay-service/internal/domain"
)

// CallbackURLs are the endpoints NewebPay posts back to
type CallbackURLs struct {
	ReturnURL     string // Browser redirect after checkout
	NotifyURL     string // Server-to-server notification
	ClientBackURL string // Optional "back to shop" link shown on the MPG page
}

// PaymentForm contains the fields the storefront auto-submits to the MPG gateway
type PaymentForm struct {
	APIURL     string `json:"api_url"`     // MPG endpoint (test or live)
	MerchantID string `json:"merchant_id"` // Posted as MerchantID
	TradeInfo  string `json:"trade_info"`  // Lowercase hex AES ciphertext
	TradeSha   string `json:"trade_sha"`   // Uppercase hex SHA-256 signature
	Version    string `json:"version"`     // MPG protocol version (2.0)

	MerchantOrderNo string `json:"merchant_order_no"` // Sanitized reference sent to the gateway
}

// PaymentRequestBuilder builds signed MPG payment payloads
type PaymentRequestBuilder interface {
	BuildPaymentPayload(txn *domain.Transaction, cred *domain.ProviderCredential, urls CallbackURLs) (*PaymentForm, error)
}

// RefundRequest is a CreditCard/Cancel call against a captured trade
type RefundRequest struct {
	TradeNo         string // NewebPay trade number of the original payment
	Amount          int64  // Whole currency units
	MerchantOrderNo string // Optional merchant order number
}

// RefundResult is the verified and decrypted gateway answer
type RefundResult struct {
	Status  string
	Message string
	TradeNo string
	Fields  map[string]string
}

// RefundGateway issues refunds against the NewebPay cancel endpoint.
// It never retries: a timed-out refund may still have happened at the gateway.
type RefundGateway interface {
	Cancel(ctx context.Context, cred *domain.ProviderCredential, req *RefundRequest) (*RefundResult, error)
}

// HTTPClient is what the refund client needs from *http.Client
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
