package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	c := NewHTTPClient(30*time.Second, 4)

	assert.Equal(t, 30*time.Second, c.Timeout)
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 4, tr.MaxConnsPerHost)
	assert.Equal(t, 4, tr.MaxIdleConnsPerHost)
}

func TestNewHTTPClient_UnlimitedConns(t *testing.T) {
	t.Parallel()

	tr := NewHTTPClient(time.Second, 0).Transport.(*http.Transport)

	assert.Zero(t, tr.MaxConnsPerHost)
	assert.Equal(t, http.DefaultMaxIdleConnsPerHost, tr.MaxIdleConnsPerHost)
}
