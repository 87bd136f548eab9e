package httpx

import (
	"net/http"
	"time"

	"github.com/rs/cors"

	"codecollab/internal/app"
	"codecollab/pkg/ratelimit"
)

type Middleware struct {
	cors   *cors.Cors
	wsGate *ratelimit.Limiter
}

// NewMiddleware builds the shared middleware stack from config
func NewMiddleware(cfg app.Config) *Middleware {
	return &Middleware{
		cors: cors.New(cors.Options{
			AllowedOrigins: cfg.CORSAllow,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}),
		wsGate: ratelimit.New(cfg.WSConnPerMin, time.Minute),
	}
}

// Wrap applies CORS to a handler
func (m *Middleware) Wrap(h http.Handler) http.Handler {
	return m.cors.Handler(h)
}

// Handshake limits websocket upgrades per client IP
func (m *Middleware) Handshake(next http.Handler) http.Handler {
	return m.wsGate.Middleware(next)
}
