package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
)

func mustPrefixes(t *testing.T, cidrs ...string) []netip.Prefix {
	t.Helper()
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			t.Fatalf("bad prefix %q: %v", cidr, err)
		}
		prefixes = append(prefixes, prefix)
	}
	return prefixes
}

func resolveIP(t *testing.T, trusted []netip.Prefix, remoteAddr, xff string) string {
	t.Helper()

	var got string
	handler := ClientIP(trusted)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = GetClientIP(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	if xff != "" {
		req.Header.Set("X-Forwarded-For", xff)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)

	return got
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	lan := mustPrefixes(t, "10.0.0.0/8")

	tests := []struct {
		name       string
		trusted    []netip.Prefix
		remoteAddr string
		xff        string
		want       string
	}{
		{
			name:       "direct connection, no proxies",
			remoteAddr: "203.0.113.5:41234",
			want:       "203.0.113.5",
		},
		{
			name:       "xff from untrusted peer is ignored",
			remoteAddr: "203.0.113.5:41234",
			xff:        "198.51.100.7",
			want:       "203.0.113.5",
		},
		{
			name:       "xff from trusted proxy is honored",
			trusted:    lan,
			remoteAddr: "10.0.0.1:41234",
			xff:        "198.51.100.7",
			want:       "198.51.100.7",
		},
		{
			name:       "walks past trusted hops right to left",
			trusted:    lan,
			remoteAddr: "10.0.0.1:41234",
			xff:        "198.51.100.7, 10.0.0.2, 10.0.0.3",
			want:       "198.51.100.7",
		},
		{
			name:       "stops at first untrusted hop",
			trusted:    lan,
			remoteAddr: "10.0.0.1:41234",
			xff:        "203.0.113.5, 198.51.100.7, 10.0.0.2",
			want:       "198.51.100.7",
		},
		{
			name:       "all-trusted chain falls back to leftmost",
			trusted:    lan,
			remoteAddr: "10.0.0.1:41234",
			xff:        "10.0.0.9, 10.0.0.2",
			want:       "10.0.0.9",
		},
		{
			name:       "trusted peer without xff",
			trusted:    lan,
			remoteAddr: "10.0.0.1:41234",
			want:       "10.0.0.1",
		},
		{
			name:       "garbage hop is treated as the client",
			trusted:    lan,
			remoteAddr: "10.0.0.1:41234",
			xff:        "not-an-ip",
			want:       "not-an-ip",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := resolveIP(t, tt.trusted, tt.remoteAddr, tt.xff); got != tt.want {
				t.Errorf("resolved %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetClientIP_WithoutMiddleware(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if ip := GetClientIP(req.Context()); ip != "" {
		t.Errorf("Expected empty IP without middleware, got: %s", ip)
	}
}
