// Package newebpay serves the NewebPay callback routes and the checkout, status and refund API.
package newebpay

import (
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/kevin07696/newebpay-service/internal/domain"
	serviceports "github.com/kevin07696/newebpay-service/internal/services/ports"
	"github.com/kevin07696/newebpay-service/pkg/observability"
)

// Notify replies. The gateway parses these byte for byte.
const (
	NotifyOK             = "1|OK"
	NotifyNotFound       = "0|找不到交易記錄"
	notifyProcessPrefix  = "0|處理錯誤: "
	notifySystemPrefix   = "0|系統錯誤: "
	maxCallbackBodyBytes = 64 << 10
)

// CallbackConfig holds the browser redirect targets
type CallbackConfig struct {
	StatusPath  string // Redirect after a located callback, gets ?reference=
	ProcessPath string // Redirect when the callback cannot be matched
}

// DefaultCallbackConfig returns the storefront's default pages
func DefaultCallbackConfig() CallbackConfig {
	return CallbackConfig{
		StatusPath:  "/payment/status",
		ProcessPath: "/payment/process",
	}
}

// CallbackHandler handles the browser return and the server-to-server notify.
// Neither route ever answers with a 5xx.
type CallbackHandler struct {
	config    CallbackConfig
	reconcile serviceports.ReconcileService
	logger    *zap.Logger
}

// NewCallbackHandler creates a callback handler
func NewCallbackHandler(config CallbackConfig, reconcile serviceports.ReconcileService, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{
		config:    config,
		reconcile: reconcile,
		logger:    logger,
	}
}

// HandleReturn processes the browser redirect from the MPG page
// Endpoint: GET|POST /payment/newebpay/return
func (h *CallbackHandler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("Panic while handling NewebPay return", zap.Any("panic", rec))
			observability.RecordCallback("return", "error")
			http.Redirect(w, r, h.config.ProcessPath, http.StatusFound)
		}
	}()

	cb, err := parseCallback(w, r)
	if err != nil {
		h.logger.Warn("Failed to parse NewebPay return", zap.Error(err))
		observability.RecordCallback("return", "error")
		http.Redirect(w, r, h.config.ProcessPath, http.StatusFound)
		return
	}

	h.logger.Info("Received NewebPay return",
		zap.String("method", r.Method),
		zap.String("status", cb.Status),
		zap.Int("trade_info_len", len(cb.TradeInfo)),
	)

	txn, err := h.reconcile.LocateTransaction(r.Context(), cb)
	if err != nil {
		if domain.IsReconciliationMiss(err) {
			observability.RecordCallback("return", "not_found")
		} else {
			h.logger.Error("Failed to locate transaction for NewebPay return", zap.Error(err))
			observability.RecordCallback("return", "error")
		}
		http.Redirect(w, r, h.config.ProcessPath, http.StatusFound)
		return
	}

	// The status page shows whatever state the transaction ended in
	outcome := "ok"
	if _, err := h.reconcile.ApplyNotification(r.Context(), txn, cb); err != nil {
		outcome = "error"
		h.logger.Error("Failed to apply NewebPay return",
			zap.String("reference", txn.Reference),
			zap.Error(err),
		)
	}
	observability.RecordCallback("return", outcome)

	http.Redirect(w, r, h.config.StatusPath+"?reference="+url.QueryEscape(txn.Reference), http.StatusFound)
}

// HandleNotify processes the server-to-server notification
// Endpoint: POST /payment/newebpay/notify
func (h *CallbackHandler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("Panic while handling NewebPay notify", zap.Any("panic", rec))
			observability.RecordCallback("notify", "error")
			writeNotify(w, notifySystemPrefix+fmt.Sprint(rec))
		}
	}()

	cb, err := parseCallback(w, r)
	if err != nil {
		h.logger.Warn("Failed to parse NewebPay notify", zap.Error(err))
		observability.RecordCallback("notify", "error")
		writeNotify(w, notifySystemPrefix+err.Error())
		return
	}

	h.logger.Info("Received NewebPay notify",
		zap.String("status", cb.Status),
		zap.Int("trade_info_len", len(cb.TradeInfo)),
	)

	txn, err := h.reconcile.LocateTransaction(r.Context(), cb)
	if err != nil {
		if domain.IsReconciliationMiss(err) {
			observability.RecordCallback("notify", "not_found")
			writeNotify(w, NotifyNotFound)
			return
		}
		h.logger.Error("Failed to locate transaction for NewebPay notify", zap.Error(err))
		observability.RecordCallback("notify", "error")
		writeNotify(w, notifySystemPrefix+domain.ErrorMessage(err))
		return
	}

	outcome, err := h.reconcile.ApplyNotification(r.Context(), txn, cb)
	if err != nil {
		h.logger.Error("Failed to apply NewebPay notify",
			zap.String("reference", txn.Reference),
			zap.Error(err),
		)
		observability.RecordCallback("notify", "error")
		writeNotify(w, notifyProcessPrefix+domain.ErrorMessage(err))
		return
	}

	h.logger.Info("Processed NewebPay notify",
		zap.String("reference", outcome.Transaction.Reference),
		zap.String("state", string(outcome.Transaction.State)),
		zap.Bool("applied", outcome.Applied),
	)
	observability.RecordCallback("notify", "ok")
	writeNotify(w, NotifyOK)
}

// NotifyRateLimited answers a throttled notify with a failure reply so the gateway retries
func NotifyRateLimited(w http.ResponseWriter, r *http.Request) {
	observability.RecordCallback("notify", "rate_limited")
	writeNotify(w, notifySystemPrefix+"rate limit exceeded")
}

// ReturnRateLimited sends a throttled browser to the processing page
func (h *CallbackHandler) ReturnRateLimited(w http.ResponseWriter, r *http.Request) {
	observability.RecordCallback("return", "rate_limited")
	http.Redirect(w, r, h.config.ProcessPath, http.StatusFound)
}

// parseCallback reads the callback fields from the query string and form body
func parseCallback(w http.ResponseWriter, r *http.Request) (*serviceports.Callback, error) {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBodyBytes)
	}
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid callback form: %w", err)
	}
	return &serviceports.Callback{
		Status:     r.Form.Get("Status"),
		MerchantID: r.Form.Get("MerchantID"),
		TradeInfo:  r.Form.Get("TradeInfo"),
		TradeSha:   r.Form.Get("TradeSha"),
		Version:    r.Form.Get("Version"),
	}, nil
}

func writeNotify(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
