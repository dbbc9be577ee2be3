package newebpay

import (
	"net/url"
	"strconv"
	"strings"
)

// TradeInfo is an ordered string-keyed field set. Encoding order is insertion
// order, which the gateway's signature check depends on.
type TradeInfo struct {
	keys   []string
	values map[string]string
}

// NewTradeInfo creates an empty field set
func NewTradeInfo() *TradeInfo {
	return &TradeInfo{values: make(map[string]string)}
}

// Set stores a value. Re-setting a key keeps its original position.
func (t *TradeInfo) Set(key, value string) *TradeInfo {
	if _, exists := t.values[key]; !exists {
		t.keys = append(t.keys, key)
	}
	t.values[key] = value
	return t
}

// SetInt stores an integer in base 10
func (t *TradeInfo) SetInt(key string, value int64) *TradeInfo {
	return t.Set(key, strconv.FormatInt(value, 10))
}

// Get returns the value for key
func (t *TradeInfo) Get(key string) (string, bool) {
	v, ok := t.values[key]
	return v, ok
}

// Value returns the value for key or the empty string
func (t *TradeInfo) Value(key string) string {
	return t.values[key]
}

// Keys returns the keys in encoding order
func (t *TradeInfo) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Len returns the number of fields
func (t *TradeInfo) Len() int {
	return len(t.keys)
}

// Map copies the fields into a plain map
func (t *TradeInfo) Map() map[string]string {
	out := make(map[string]string, len(t.values))
	for k, v := range t.values {
		out[k] = v
	}
	return out
}

// Encode renders key=value pairs joined by '&'. Keys are written verbatim and
// values are percent-encoded with every reserved character escaped.
func (t *TradeInfo) Encode() string {
	var b strings.Builder
	for i, k := range t.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(escapeValue(t.values[k]))
	}
	return b.String()
}

// parseTradeInfo splits a decrypted query string. The first '=' separates key
// from value, pairs without '=' are skipped and values stay percent-encoded.
func parseTradeInfo(s string) *TradeInfo {
	info := NewTradeInfo()
	for _, pair := range strings.Split(s, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		info.Set(key, value)
	}
	return info
}

// escapeValue percent-encodes everything except A-Z a-z 0-9 - _ . ~
// QueryEscape writes spaces as '+', the gateway expects %20.
func escapeValue(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}
