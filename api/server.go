package api

import (
	"net/http"
	"time"

	"github.com/angelmondragon/fulfillment-engine/pkg/config"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
)

// NewServer builds the HTTP server cmd/api runs. Uploads share the read
// budget, so the timeouts stay generous.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// ListenAddr resolves the listen address. PORT wins over the configured
// port so platform routers can inject it.
func ListenAddr(cfg *config.Config, envPort string) string {
	port := envPort
	if port == "" {
		port = cfg.App.Port
	}
	return ":" + port
}
