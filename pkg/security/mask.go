package security

import (
	"fmt"

	"go.uber.org/zap"
)

// MaskSecret hides a shared secret completely, keeping only whether it is set
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

// MaskIdentifier keeps a short prefix so log lines stay correlatable
func MaskIdentifier(s string) string {
	if len(s) > 5 {
		return fmt.Sprintf("%s***", s[0:5])
	}
	if s == "" {
		return "?"
	}
	return "***"
}

// Payload logs an encrypted TradeInfo blob by length and prefix only
func Payload(key, hexPayload string) zap.Field {
	return zap.String(key, fmt.Sprintf("%s(len=%d)", MaskIdentifier(hexPayload), len(hexPayload)))
}
