package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// clientIPContextKey is the context key for the resolved client IP.
const clientIPContextKey contextKey = "client_ip"

// ClientIP resolves the real client IP and stores it in the request
// context. X-Forwarded-For is honored only when the directly connected
// peer is one of the configured trusted proxies; the chain is walked
// right to left past trusted hops to the first address we did not
// append ourselves.
func ClientIP(trustedProxies []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolveClientIP(r, trustedProxies)
			ctx := context.WithValue(r.Context(), clientIPContextKey, ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIP retrieves the resolved client IP from context.
// Falls back to empty string if the middleware has not run.
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPContextKey).(string); ok {
		return ip
	}
	return ""
}

// resolveClientIP picks the client address for rate-limit keying and logs.
func resolveClientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := remoteHost(r.RemoteAddr)

	if !isTrusted(peer, trusted) {
		return peer
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return peer
	}

	hops := strings.Split(xff, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !isTrusted(hop, trusted) {
			return hop
		}
	}

	// Every hop was a trusted proxy; the leftmost entry is as close to
	// the client as we can get.
	return strings.TrimSpace(hops[0])
}

// remoteHost strips the port from a host:port remote address.
func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// isTrusted reports whether the address falls in a trusted proxy range.
func isTrusted(addr string, trusted []netip.Prefix) bool {
	parsed, err := netip.ParseAddr(addr)
	if err != nil {
		return false
	}
	for _, prefix := range trusted {
		if prefix.Contains(parsed) {
			return true
		}
	}
	return false
}
