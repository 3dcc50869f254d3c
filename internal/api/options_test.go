package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestOptionOrderDoesNotMatter(t *testing.T) {
	custom := &http.Client{}
	orders := map[string][]Option{
		"http client last":  {WithTimeout(5 * time.Second), WithDebugLogging(true), WithHTTPClient(custom)},
		"http client first": {WithHTTPClient(custom), WithTimeout(5 * time.Second), WithDebugLogging(true)},
	}
	for name, opts := range orders {
		t.Run(name, func(t *testing.T) {
			c := New("http://example.test", nil, opts...)
			assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
			assert.IsType(t, &debugTransport{}, c.httpClient.Transport)
		})
	}
	assert.Zero(t, custom.Timeout)
	assert.Nil(t, custom.Transport)
}

func TestNewDefaultsAndTokenTransport(t *testing.T) {
	c := New("http://example.test/", oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}))
	assert.Equal(t, "http://example.test", c.baseURL)
	assert.Equal(t, defaultTimeout, c.httpClient.Timeout)

	tt, ok := c.httpClient.Transport.(*tokenTransport)
	require.True(t, ok)
	assert.Equal(t, http.DefaultTransport, tt.base)
}
