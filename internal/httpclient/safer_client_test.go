package httpclient

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	client := New(30*time.Second, Options{})

	assert.Equal(t, 30*time.Second, client.Timeout)
	assert.Equal(t, 10, client.maxRedirects)
	assert.True(t, client.blockPrivateIP)
	assert.Equal(t, []string{"http", "https"}, client.allowedSchemes)
}

func TestValidateURL(t *testing.T) {
	client := New(30*time.Second, Options{})

	tests := []struct {
		name      string
		url       string
		shouldErr bool
	}{
		{"https url", "https://openrouter.ai/api/v1", false},
		{"http url", "http://example.com", false},
		{"file scheme", "file:///etc/passwd", true},
		{"userinfo", "http://evil.com@localhost/", true},
		{"localhost", "http://localhost:11434", true},
		{"sub localhost", "http://api.localhost", true},
		{"loopback ip", "http://127.0.0.1:8080", true},
		{"rfc1918", "http://192.168.1.10", true},
		{"metadata endpoint", "http://169.254.169.254/latest", true},
		{"ipv6 loopback", "http://[::1]/", true},
		{"public ip", "http://8.8.8.8", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, tt.url, nil)
			require.NoError(t, err)
			err = client.validateURL(req.URL)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	assert.True(t, isPrivateIP(net.ParseIP("10.1.2.3")))
	assert.True(t, isPrivateIP(net.ParseIP("172.16.0.1")))
	assert.True(t, isPrivateIP(net.ParseIP("0.1.2.3")))
	assert.True(t, isPrivateIP(net.ParseIP("fd00::1")))
	assert.False(t, isPrivateIP(net.ParseIP("1.1.1.1")))
	assert.False(t, isPrivateIP(net.ParseIP("2606:4700::1111")))
}

func TestAllowPrivateIP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	_, err = New(5*time.Second, Options{}).Do(req)
	assert.Error(t, err)

	resp, err := New(5*time.Second, Options{AllowPrivateIP: true}).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
