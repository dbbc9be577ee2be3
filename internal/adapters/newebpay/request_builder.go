package newebpay

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kevin07696/newebpay-service/internal/adapters/ports"
	"github.com/kevin07696/newebpay-service/internal/domain"
)

const (
	// MPGVersion is the MPG payment protocol version
	MPGVersion = "2.0"
	// RefundVersion is the CreditCard/Cancel protocol version
	RefundVersion = "1.5"

	testMPGURL    = "https://ccore.newebpay.com/MPG/mpg_gateway"
	liveMPGURL    = "https://core.newebpay.com/MPG/mpg_gateway"
	testCancelURL = "https://ccore.newebpay.com/API/CreditCard/Cancel"
	liveCancelURL = "https://core.newebpay.com/API/CreditCard/Cancel"

	maxMerchantOrderNoLen = 20
	maxItemDescLen        = 50

	// respondType asks the gateway for key=value callbacks, the format Decrypt parses
	respondType = "String"
)

var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

// MPGURL returns the payment gateway endpoint for the mode
func MPGURL(testMode bool) string {
	if testMode {
		return testMPGURL
	}
	return liveMPGURL
}

// CancelURL returns the refund endpoint for the mode
func CancelURL(testMode bool) string {
	if testMode {
		return testCancelURL
	}
	return liveCancelURL
}

// requestBuilder implements ports.PaymentRequestBuilder
type requestBuilder struct {
	now    func() time.Time
	logger *zap.Logger
}

// NewRequestBuilder creates a payment payload builder
func NewRequestBuilder(logger *zap.Logger) ports.PaymentRequestBuilder {
	return newRequestBuilder(time.Now, logger)
}

func newRequestBuilder(now func() time.Time, logger *zap.Logger) *requestBuilder {
	return &requestBuilder{now: now, logger: logger}
}

// BuildPaymentPayload assembles, encrypts and signs the MPG trade info for txn
func (b *requestBuilder) BuildPaymentPayload(txn *domain.Transaction, cred *domain.ProviderCredential, urls ports.CallbackURLs) (*ports.PaymentForm, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}

	amt, err := WholeAmount(txn.Amount)
	if err != nil {
		return nil, err
	}

	orderNo := txn.MerchantOrderNo
	if orderNo == "" {
		orderNo = MerchantOrderNo(txn.Reference, txn.CreatedAt)
	}
	desc := txn.Description
	if desc == "" {
		desc = txn.Reference
	}

	info := NewTradeInfo().
		Set("MerchantID", cred.MerchantID).
		Set("RespondType", respondType).
		SetInt("TimeStamp", b.now().Unix()).
		Set("Version", MPGVersion).
		Set("MerchantOrderNo", orderNo).
		SetInt("Amt", amt).
		Set("ItemDesc", truncateRunes(desc, maxItemDescLen))

	if txn.CustomerEmail != "" {
		info.Set("Email", txn.CustomerEmail)
	}
	if urls.ReturnURL != "" {
		info.Set("ReturnURL", urls.ReturnURL)
	}
	if urls.NotifyURL != "" {
		info.Set("NotifyURL", urls.NotifyURL)
	}
	if urls.ClientBackURL != "" {
		info.Set("ClientBackURL", urls.ClientBackURL)
	}
	info.Set("LoginType", "0")

	for _, method := range cred.EnabledPaymentTypes() {
		info.Set(string(method), "1")
	}

	env, err := Seal(info, cred)
	if err != nil {
		return nil, err
	}

	b.logger.Info("Built NewebPay payment payload",
		zap.String("reference", txn.Reference),
		zap.String("merchant_order_no", orderNo),
		zap.Int64("amt", amt),
		zap.Bool("test_mode", cred.TestMode),
		zap.Int("fields", info.Len()),
	)

	return &ports.PaymentForm{
		APIURL:          MPGURL(cred.TestMode),
		MerchantID:      cred.MerchantID,
		TradeInfo:       env.TradeInfo,
		TradeSha:        env.TradeSha,
		Version:         MPGVersion,
		MerchantOrderNo: orderNo,
	}, nil
}

// BuildRefundPayload signs a CreditCard/Cancel request
func BuildRefundPayload(tradeNo string, amount int64, orderNo string, cred *domain.ProviderCredential) (*Envelope, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	if tradeNo == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeConfiguration, "transaction has no NewebPay trade number")
	}
	if amount < 0 {
		return nil, domain.ErrValidationAmountInvalid
	}

	info := NewTradeInfo().
		Set("MerchantID", cred.MerchantID).
		Set("TradeNo", tradeNo).
		SetInt("Amt", amount).
		Set("Version", RefundVersion)
	if orderNo != "" {
		info.Set("MerchantOrderNo", orderNo)
	}

	return Seal(info, cred)
}

// MerchantOrderNo strips everything outside [A-Za-z0-9] from the reference.
// An empty result falls back to the creation time in unix seconds. The result
// is at most 20 characters.
func MerchantOrderNo(reference string, createdAt time.Time) string {
	orderNo := nonAlphanumeric.ReplaceAllString(reference, "")
	if orderNo == "" {
		orderNo = strconv.FormatInt(createdAt.Unix(), 10)
	}
	if len(orderNo) > maxMerchantOrderNoLen {
		orderNo = orderNo[:maxMerchantOrderNoLen]
	}
	return orderNo
}

// WholeAmount converts an amount to the gateway's integer Amt.
// Fractional and negative amounts are rejected rather than rounded.
func WholeAmount(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, domain.NewDomainError(domain.ErrorCodeValidationAmountInvalid, "amount must not be negative").
			WithDetail("amount", amount.String())
	}
	if !amount.Equal(amount.Truncate(0)) {
		return 0, domain.NewDomainError(domain.ErrorCodeValidationAmountInvalid, "fractional amounts are not supported").
			WithDetail("amount", amount.String())
	}
	return amount.IntPart(), nil
}

// CallbackURLsFor derives the return and notify URLs from a public base URL.
// NewebPay only delivers to explicit port 80 (http) or 443 (https).
func CallbackURLsFor(base string) (ports.CallbackURLs, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return ports.CallbackURLs{}, domain.WrapError(domain.ErrorCodeConfiguration, "invalid callback base URL", err)
	}

	var port string
	switch strings.ToLower(u.Scheme) {
	case "http":
		port = "80"
	case "https":
		port = "443"
	default:
		return ports.CallbackURLs{}, domain.NewDomainError(domain.ErrorCodeConfiguration,
			fmt.Sprintf("callback base URL must be http or https, got %q", u.Scheme))
	}
	if u.Hostname() == "" {
		return ports.CallbackURLs{}, domain.NewDomainError(domain.ErrorCodeConfiguration, "callback base URL has no host")
	}

	u.Host = net.JoinHostPort(u.Hostname(), port)
	u.RawQuery = ""
	u.RawPath = ""
	u.Fragment = ""
	basePath := strings.TrimRight(u.Path, "/")

	u.Path = basePath + "/return"
	returnURL := u.String()
	u.Path = basePath + "/notify"
	notifyURL := u.String()

	return ports.CallbackURLs{ReturnURL: returnURL, NotifyURL: notifyURL}, nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
