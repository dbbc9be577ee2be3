package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"go.uber.org/zap"
)

// NotifyIPAllowlist restricts the server-to-server notify route to the
// gateway's published source ranges. An empty list allows every address.
type NotifyIPAllowlist struct {
	prefixes     []netip.Prefix
	allowPrivate bool
	logger       *zap.Logger
}

// NewNotifyIPAllowlist parses entries as single addresses or CIDR ranges.
// allowPrivate admits loopback and RFC 1918 sources for local testing.
func NewNotifyIPAllowlist(entries []string, allowPrivate bool, logger *zap.Logger) (*NotifyIPAllowlist, error) {
	a := &NotifyIPAllowlist{allowPrivate: allowPrivate, logger: logger}

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid notify allowlist range %q: %w", entry, err)
			}
			a.prefixes = append(a.prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid notify allowlist address %q: %w", entry, err)
		}
		a.prefixes = append(a.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}

	logger.Info("Loaded notify IP allowlist",
		zap.Int("count", len(a.prefixes)),
		zap.Bool("allow_private", allowPrivate),
	)
	return a, nil
}

// Enabled reports whether any range is configured
func (a *NotifyIPAllowlist) Enabled() bool {
	return len(a.prefixes) > 0
}

// Middleware rejects requests from outside the allowlist with 403
func (a *NotifyIPAllowlist) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := clientIP(r)
		if !a.Allowed(clientIP) {
			a.logger.Warn("NewebPay notify from unauthorized IP",
				zap.String("ip", clientIP),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Allowed reports whether ip falls inside a configured range
func (a *NotifyIPAllowlist) Allowed(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	if a.allowPrivate && (addr.IsLoopback() || addr.IsPrivate()) {
		return true
	}
	for _, prefix := range a.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// clientIP returns the host part of RemoteAddr. Proxy headers are resolved
// upstream by chi's RealIP middleware.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
