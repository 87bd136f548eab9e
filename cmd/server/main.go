package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	app "codecollab/internal/app"
	"codecollab/internal/compile"
	httpx "codecollab/internal/http"
	store "codecollab/internal/store"
	"codecollab/internal/suggest"
	ws "codecollab/internal/ws"
)

func main() {
	// Load local .env (dev only)
	_ = godotenv.Load()

	cfg := app.LoadConfig()
	logger := app.NewLogger(cfg.Env, cfg.LogLevel)
	logger.Info("config.loaded", "config", cfg)

	// Cancel on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps := httpx.Deps{Ready: map[string]httpx.Pinger{}}

	// Optional run history in Postgres
	if cfg.PGURL != "" {
		pg, err := store.NewPostgres(ctx, cfg, logger)
		if err != nil {
			logger.Error("postgres connect", "err", err)
			log.Fatal(err)
		}
		defer pg.Close()
		if err := store.RunMigrations(ctx, pg, logger); err != nil {
			logger.Error("migrations", "err", err)
			log.Fatal(err)
		}
		deps.Runs = pg
		deps.Ready["postgres"] = pg
	}

	// Optional critique cache in Redis
	var cache suggest.Cache
	if cfg.RedisAddr != "" {
		rc, err := suggest.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.SuggestTTL)
		if err != nil {
			logger.Error("redis connect", "err", err)
			log.Fatal(err)
		}
		defer rc.Close()
		cache = rc
		deps.Ready["redis"] = rc
	}

	deps.Compiler = compile.New(compile.Config{
		URL:          cfg.JDoodleURL,
		ClientID:     cfg.JDoodleClientID,
		ClientSecret: cfg.JDoodleClientSecret,
		Timeout:      cfg.UpstreamTimeout,
	}, logger)
	deps.Suggester = suggest.New(suggest.Config{
		APIKey:  cfg.GroqAPIKey,
		BaseURL: cfg.GroqBaseURL,
		Model:   cfg.GroqModel,
		Timeout: cfg.UpstreamTimeout,
	}, cache, logger)

	hub := ws.NewHub(logger, cfg.WSOriginPatterns())

	// HTTP + WS router
	router := httpx.NewRouter(cfg, logger, hub, deps)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// websocket handlers outlive Shutdown; tie them to the signal context
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// Start server
	go func() {
		logger.Info("server.listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server.crash", "err", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("server.shutdown.start")

	// shutdown
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)

	logger.Info("server.shutdown.complete")
	_ = os.Stdout.Sync()
}
