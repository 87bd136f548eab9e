package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"codecollab/internal/app"
	"codecollab/internal/ws"
	"codecollab/pkg/metrics"
)

// Pinger is a dependency checked by /readyz
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the HTTP surface. Runs and Ready may be empty.
type Deps struct {
	Compiler  Compiler
	Suggester Suggester
	Runs      RunLog
	Ready     map[string]Pinger
}

// NewRouter wires up all HTTP routes, middleware, and handlers
func NewRouter(cfg app.Config, logger *slog.Logger, hub *ws.Hub, deps Deps) http.Handler {
	mw := NewMiddleware(cfg)
	proxy := &ProxyAPI{Compiler: deps.Compiler, Suggester: deps.Suggester, Runs: deps.Runs, Log: logger}
	rooms := &RoomsAPI{Hub: hub}

	mux := http.NewServeMux()

	// Health / readiness / metrics
	mux.Handle("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("GET /readyz", readyHandler(logger, deps.Ready))
	mux.Handle("GET /metrics", metrics.Handler())

	// WebSocket endpoint
	mux.Handle("GET /ws", mw.Handshake(http.HandlerFunc(hub.ServeWS)))

	// External service proxies
	mux.Handle("POST /compile", http.HandlerFunc(proxy.Compile))
	mux.Handle("POST /ai-suggestions", http.HandlerFunc(proxy.Suggest))
	mux.Handle("GET /api/languages", http.HandlerFunc(proxy.Languages))

	mux.Handle("GET /api/rooms/{id}", http.HandlerFunc(rooms.Get))
	if deps.Runs != nil {
		runs := &RunsAPI{Runs: deps.Runs}
		mux.Handle("GET /api/runs", http.HandlerFunc(runs.List))
	}

	return mw.Wrap(mux) // CORS applied globally
}

func readyHandler(logger *slog.Logger, deps map[string]Pinger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, p := range deps {
			if err := p.Ping(ctx); err != nil {
				logger.Warn("readyz.failed", "dep", name, "err", err)
				http.Error(w, name+" unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(200)
	})
}
