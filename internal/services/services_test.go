package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/amaumene/miaou/internal/config"
	"github.com/amaumene/miaou/pkg/httputil"
)

func fastTransport() *httputil.Transport {
	return httputil.NewTransport(httputil.WithBackoff(time.Millisecond, 2*time.Millisecond, 0))
}

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// testConfig returns a validated per-request configuration with both keys.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		TMDBAPIKey:      "0123456789abcdef0123456789abcdef",
		APIKeyAllDebrid: "alldebridkey123456",
	}
	require.NoError(t, cfg.Validate())
	return cfg
}
