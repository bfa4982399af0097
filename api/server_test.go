package api

import (
	"net/http"
	"testing"

	"github.com/angelmondragon/fulfillment-engine/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestListenAddrPrefersEnvPort(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Port: "8080"}}

	require.Equal(t, ":9090", ListenAddr(cfg, "9090"))
	require.Equal(t, ":8080", ListenAddr(cfg, ""))
}

func TestNewServerSetsTimeouts(t *testing.T) {
	srv := NewServer(":0", http.NotFoundHandler())

	require.Equal(t, ":0", srv.Addr)
	require.NotZero(t, srv.ReadHeaderTimeout)
	require.NotZero(t, srv.WriteTimeout)
	require.NotNil(t, srv.Handler)
}
