package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/avolkov/tidechat/internal/config"
	httpHandler "github.com/avolkov/tidechat/internal/delivery/http"
	"github.com/avolkov/tidechat/internal/delivery/ws"
	"github.com/avolkov/tidechat/internal/middleware"
	"github.com/avolkov/tidechat/internal/storage/sqlite"
)

func main() {
	// Load .env file (ignore error if not exists, e.g. in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	store, err := sqlite.Open(cfg.DatabasePath, sqlite.Options{UniqueReactions: cfg.UniqueReactions})
	if err != nil {
		log.Error("open storage failed", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Wire the real-time core: registry, hub, presence, router.
	registry := ws.NewRegistry()
	hub := ws.NewHub(registry, log)
	presence := ws.NewTracker(store, registry, hub, log)
	hub.SetPresence(presence)
	router := ws.NewRouter(store, registry, presence, log)

	handler := httpHandler.NewHandler(hub, router, store, cfg.AllowedOrigins, log)

	apiLimiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimitAPI), 2*cfg.RateLimitAPI)
	wsLimiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimitWS), 2*cfg.RateLimitWS)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", middleware.RateLimitFunc(wsLimiter, handler.HandleWebSocket))
	mux.HandleFunc("GET /healthz", handler.HandleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/channels", middleware.RateLimitFunc(apiLimiter, handler.HandleListChannels))
	mux.HandleFunc("POST /api/channels", middleware.RateLimitFunc(apiLimiter, handler.HandleCreateChannel))
	mux.HandleFunc("GET /api/channels/{id}/messages", middleware.RateLimitFunc(apiLimiter, handler.HandleChannelMessages))
	mux.HandleFunc("POST /api/users", middleware.RateLimitFunc(apiLimiter, handler.HandleCreateUser))

	securedHandler := middleware.SecurityHeaders(mux)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      securedHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		serverErr <- server.ListenAndServe()
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			store.Close()
			os.Exit(1)
		}
	case <-quit:
		log.Info("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Error("forced shutdown", "error", err)
			store.Close()
			os.Exit(1)
		}
	}

	log.Info("server exited")
}
