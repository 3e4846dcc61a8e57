package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	pkghttp "github.com/cardbase/authcore/pkg/http"
	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP(t *testing.T) {
	private := &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		config     *pkghttp.IPConfig
		want       string
	}{
		{
			name:       "direct connection ignores forwarding headers",
			remoteAddr: "203.0.113.50:4312",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1"},
			config:     private,
			want:       "203.0.113.50",
		},
		{
			name:       "trusted proxy honors forwarded-for",
			remoteAddr: "10.0.0.5:8080",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1"},
			config:     private,
			want:       "198.51.100.1",
		},
		{
			name:       "first parseable entry wins in forwarded chain",
			remoteAddr: "10.0.0.5:8080",
			headers:    map[string]string{"X-Forwarded-For": "garbage, 198.51.100.1, 10.0.0.2"},
			config:     private,
			want:       "198.51.100.1",
		},
		{
			name:       "real-ip used when forwarded-for absent",
			remoteAddr: "10.0.0.5:8080",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			config:     private,
			want:       "198.51.100.7",
		},
		{
			name:       "unparseable headers fall back to peer address",
			remoteAddr: "10.0.0.5:8080",
			headers:    map[string]string{"X-Forwarded-For": "not-an-ip", "X-Real-IP": "also-bad"},
			config:     private,
			want:       "10.0.0.5",
		},
		{
			name:       "nil config never trusts headers",
			remoteAddr: "10.0.0.5:8080",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1"},
			config:     nil,
			want:       "10.0.0.5",
		},
		{
			name:       "empty proxy list never trusts headers",
			remoteAddr: "10.0.0.5:8080",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1"},
			config:     &pkghttp.IPConfig{},
			want:       "10.0.0.5",
		},
		{
			name:       "invalid cidr range is skipped",
			remoteAddr: "10.0.0.5:8080",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1"},
			config:     &pkghttp.IPConfig{TrustedProxies: []string{"not-a-cidr"}},
			want:       "10.0.0.5",
		},
		{
			name:       "localhost spoofing requires explicit trust",
			remoteAddr: "192.0.2.9:1234",
			headers:    map[string]string{"X-Forwarded-For": "127.0.0.1"},
			config:     private,
			want:       "192.0.2.9",
		},
		{
			name:       "ipv6 peer inside trusted range",
			remoteAddr: "[2001:db8::1]:443",
			headers:    map[string]string{"X-Forwarded-For": "2001:db8:ffff::2"},
			config:     &pkghttp.IPConfig{TrustedProxies: []string{"2001:db8::/48"}},
			want:       "2001:db8:ffff::2",
		},
		{
			name:       "missing port is tolerated",
			remoteAddr: "203.0.113.50",
			headers:    nil,
			config:     private,
			want:       "203.0.113.50",
		},
		{
			name:       "empty remote address reports unknown",
			remoteAddr: "",
			headers:    nil,
			config:     private,
			want:       "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, pkghttp.ExtractClientIP(r, tt.config))
		})
	}
}
