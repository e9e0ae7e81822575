package http_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	pkghttp "github.com/BradenHooton/clinicauth/pkg/http"
	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_DirectConnection_IgnoresHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	req.Header.Set("X-Real-IP", "192.168.1.1")

	config := &pkghttp.IPConfig{
		TrustedProxies: pkghttp.ParseTrustedProxies([]string{"10.0.0.0/8", "127.0.0.1/32"}),
	}

	assert.Equal(t, "203.0.113.10", pkghttp.ExtractClientIP(req, config))
}

func TestExtractClientIP_TrustedProxy_UsesForwardedFor(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.1.2.3:443"
	req.Header.Set("X-Forwarded-For", "not-an-ip, 198.51.100.7")

	config := &pkghttp.IPConfig{
		TrustedProxies: pkghttp.ParseTrustedProxies([]string{"10.0.0.0/8", "bogus"}),
	}

	assert.Equal(t, "198.51.100.7", pkghttp.ExtractClientIP(req, config))
}

func TestExtractClientIP_TrustedProxy_FallsBackToRealIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.1.2.3:443"
	req.Header.Set("X-Real-IP", "198.51.100.9")

	config := &pkghttp.IPConfig{TrustedProxies: pkghttp.ParseTrustedProxies([]string{"10.0.0.0/8"})}

	assert.Equal(t, "198.51.100.9", pkghttp.ExtractClientIP(req, config))
}

func TestExtractClientIP_NilConfig(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"

	assert.Equal(t, "192.0.2.1", pkghttp.ExtractClientIP(req, nil))
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Email string `json:"email"`
	}

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid", `{"email":"a@b.com"}`, false},
		{"unknown field", `{"email":"a@b.com","extra":1}`, true},
		{"trailing data", `{"email":"a@b.com"}{"email":"c@d.com"}`, true},
		{"malformed", `{"email":`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", strings.NewReader(tt.payload))
			var b body
			err := pkghttp.DecodeJSON(req, &b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, "a@b.com", b.Email)
		})
	}
}
