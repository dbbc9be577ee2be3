package newebpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kevin07696/newebpay-service/internal/adapters/ports"
	"github.com/kevin07696/newebpay-service/internal/domain"
	pkghttp "github.com/kevin07696/newebpay-service/pkg/http"
	"github.com/kevin07696/newebpay-service/pkg/observability"
)

// RefundClientConfig contains configuration for the CreditCard/Cancel client
type RefundClientConfig struct {
	// Request timeout. The gateway may still complete a refund after it expires.
	Timeout time.Duration

	// EndpointOverride replaces the test/live cancel URL (sandbox proxies, tests)
	EndpointOverride string

	// MaxResponseBytes bounds the JSON body read from the gateway
	MaxResponseBytes int64

	CircuitBreaker CircuitBreakerConfig
}

// DefaultRefundClientConfig returns default configuration for the refund client
func DefaultRefundClientConfig() *RefundClientConfig {
	return &RefundClientConfig{
		Timeout:          30 * time.Second,
		MaxResponseBytes: 64 << 10,
		CircuitBreaker:   DefaultCircuitBreakerConfig(),
	}
}

// refundResponse is the JSON envelope returned by the cancel endpoint
type refundResponse struct {
	Status    string `json:"Status"`
	Message   string `json:"Message"`
	TradeInfo string `json:"TradeInfo"`
	TradeSha  string `json:"TradeSha"`
}

// refundClient implements ports.RefundGateway
type refundClient struct {
	config         *RefundClientConfig
	httpClient     ports.HTTPClient
	circuitBreaker *CircuitBreaker
	logger         *zap.Logger
}

// NewRefundClient creates a refund client. A nil httpClient gets a pooled
// client tuned for the NewebPay host.
func NewRefundClient(config *RefundClientConfig, httpClient ports.HTTPClient, logger *zap.Logger) ports.RefundGateway {
	if httpClient == nil {
		httpClient = pkghttp.NewHTTPClient(pkghttp.NewebPayClientConfig(), config.Timeout)
	}

	cbConfig := config.CircuitBreaker
	cbConfig.OnStateChange = func(from, to CircuitState) {
		observability.SetRefundCircuitState(int(to))
		logger.Warn("Refund circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	return &refundClient{
		config:         config,
		httpClient:     httpClient,
		circuitBreaker: NewCircuitBreaker(cbConfig),
		logger:         logger,
	}
}

// Cancel posts a signed refund request and verifies the signed answer.
// When the gateway answers with a non-SUCCESS status the decoded result is
// returned together with a REFUND_ERROR.
func (c *refundClient) Cancel(ctx context.Context, cred *domain.ProviderCredential, req *ports.RefundRequest) (*ports.RefundResult, error) {
	env, err := BuildRefundPayload(req.TradeNo, req.Amount, req.MerchantOrderNo, cred)
	if err != nil {
		return nil, err
	}

	endpoint := CancelURL(cred.TestMode)
	if c.config.EndpointOverride != "" {
		endpoint = c.config.EndpointOverride
	}

	formData := getFormData()
	defer putFormData(formData)
	formData.Set("MerchantID", cred.MerchantID)
	formData.Set("TradeInfo", env.TradeInfo)
	formData.Set("TradeSha", env.TradeSha)
	formData.Set("Version", RefundVersion)

	c.logger.Info("Sending NewebPay refund request",
		zap.String("trade_no", req.TradeNo),
		zap.Int64("amt", req.Amount),
		zap.String("merchant_order_no", req.MerchantOrderNo),
		zap.Bool("test_mode", cred.TestMode),
	)

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(formData.Encode()))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeNetwork, "failed to create refund request", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var body []byte
	startTime := time.Now()
	err = c.circuitBreaker.Call(func() error {
		var sendErr error
		body, sendErr = c.send(httpReq)
		return sendErr
	}, domain.IsNetworkError)
	observability.ObserveRefundDuration(time.Since(startTime))

	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
		c.logger.Warn("Circuit breaker is open, rejecting NewebPay refund request",
			zap.String("circuit_state", c.circuitBreaker.State().String()),
		)
		return nil, domain.WrapError(domain.ErrorCodeNetwork, "refund endpoint unavailable", err)
	}
	if err != nil {
		c.logger.Error("NewebPay refund request failed",
			zap.String("trade_no", req.TradeNo),
			zap.Duration("elapsed", time.Since(startTime)),
			zap.Error(err),
		)
		return nil, err
	}

	return c.parseResponse(body, cred, req)
}

func (c *refundClient) send(httpReq *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, domain.WrapError(domain.ErrorCodeGatewayTimeout, "refund request timed out", err)
		}
		return nil, domain.WrapError(domain.ErrorCodeNetwork, "failed to send refund request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, domain.WrapError(domain.ErrorCodeGatewayTimeout, "refund response timed out", err)
		}
		return nil, domain.WrapError(domain.ErrorCodeNetwork, "failed to read refund response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.NewDomainError(domain.ErrorCodeNetwork, fmt.Sprintf("refund request failed: HTTP %d", resp.StatusCode)).
			WithDetail("status_code", resp.StatusCode)
	}

	return body, nil
}

func (c *refundClient) parseResponse(body []byte, cred *domain.ProviderCredential, req *ports.RefundRequest) (*ports.RefundResult, error) {
	var payload refundResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeValidationFailed, "malformed refund response", err)
	}
	if payload.TradeInfo == "" || payload.TradeSha == "" {
		c.logger.Error("NewebPay refund response has no signed payload",
			zap.String("trade_no", req.TradeNo),
			zap.String("status", payload.Status),
			zap.String("message", payload.Message),
		)
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "malformed refund response").
			WithDetail("status", payload.Status).
			WithDetail("message", payload.Message)
	}

	info, err := Open(&Envelope{TradeInfo: payload.TradeInfo, TradeSha: payload.TradeSha}, cred)
	if err != nil {
		c.logger.Error("NewebPay refund response rejected",
			zap.String("trade_no", req.TradeNo),
			zap.Error(err),
		)
		return nil, err
	}

	result := &ports.RefundResult{
		Status:  info.Value("Status"),
		Message: info.Value("Message"),
		TradeNo: info.Value("TradeNo"),
		Fields:  info.Map(),
	}

	c.logger.Info("Received NewebPay refund response",
		zap.String("trade_no", req.TradeNo),
		zap.String("status", result.Status),
		zap.String("message", result.Message),
	)

	if result.Status != domain.RefundStatusSuccess {
		msg := result.Message
		if msg == "" {
			msg = "refund rejected"
		}
		return result, domain.NewDomainError(domain.ErrorCodeRefund, msg).
			WithDetail("status", result.Status)
	}

	return result, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
