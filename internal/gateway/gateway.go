// ABOUTME: Gateway orchestrator that wires the store, presence, chat, and hub
// ABOUTME: Manages the HTTP server and graceful shutdown lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/taskhaven/chat-gateway/internal/auth"
	"github.com/taskhaven/chat-gateway/internal/chat"
	"github.com/taskhaven/chat-gateway/internal/config"
	"github.com/taskhaven/chat-gateway/internal/hub"
	"github.com/taskhaven/chat-gateway/internal/presence"
	"github.com/taskhaven/chat-gateway/internal/store"
)

// Gateway orchestrates the chat-gateway server components. It owns the
// HTTP server for the REST API and websocket hub, and coordinates
// shutdown across the delivery pipeline and the store.
type Gateway struct {
	config     *config.Config
	store      store.Store
	registry   *presence.Registry
	dispatcher *chat.Dispatcher
	chatSvc    *chat.Service
	hub        *hub.Hub
	httpServer *http.Server
	logger     *slog.Logger
}

// initStore creates a store based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("CHAT_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	registry := presence.NewRegistry(logger.With("component", "presence"))
	dispatcher := chat.NewDispatcher(registry, cfg.Chat.DispatchWorkers, cfg.Chat.DispatchQueue,
		logger.With("component", "dispatcher"))
	resolver := chat.NewResolver(s, s, logger.With("component", "resolver"))
	chatSvc := chat.NewService(s, resolver, dispatcher, logger.With("component", "chat"))
	socketHub := hub.New(registry, logger)

	gw := &Gateway{
		config:     cfg,
		store:      s,
		registry:   registry,
		dispatcher: dispatcher,
		chatSvc:    chatSvc,
		hub:        socketHub,
		logger:     logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()

	// Health endpoints and the websocket upgrade carry no auth; socket
	// identity comes from the handshake query parameter.
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)
	mux.Handle("/ws", socketHub)

	gw.registerAPIRoutes(mux, cfg, s, logger)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// registerAPIRoutes mounts the chat API behind the auth middleware.
// With a JWT secret the middleware verifies bearer tokens; without one
// it falls back to trusting the X-User-ID header for development.
func (g *Gateway) registerAPIRoutes(mux *http.ServeMux, cfg *config.Config, directory auth.UserDirectory, logger *slog.Logger) {
	var verifier auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		logger.Info("HTTP auth middleware enabled (JWT)")
	} else {
		logger.Warn("no jwt_secret configured, trusting X-User-ID header")
	}
	authMiddleware := auth.HTTPAuthMiddleware(directory, verifier)

	mux.Handle("/api/chats/send", authMiddleware(http.HandlerFunc(g.handleSend)))
	mux.Handle("/api/chats", authMiddleware(http.HandlerFunc(g.handleInbox)))
	mux.Handle("/api/chats/", authMiddleware(http.HandlerFunc(g.handleHistory)))
}

// startServers starts the HTTP server on the listener, returning an error channel.
func (g *Gateway) startServers(httpLn net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := g.httpServer.Serve(httpLn); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run starts the gateway server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the
// server fails.
func (g *Gateway) Run(ctx context.Context) error {
	httpListener, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := g.startServers(httpListener)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), g.config.Server.ShutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the gateway components in dependency order: the HTTP
// server first so no new sends arrive, then the dispatcher so queued
// deliveries drain, then the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	g.dispatcher.Close()

	errs = appendCloseError(errs, "store close", g.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the store answers queries.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	_, err := g.store.GetUser(r.Context(), "readiness-probe")
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d online)", len(g.registry.Snapshot()))
}
