// ABOUTME: Gateway orchestrator wiring store, sessions, modes, and the HTTP server
// ABOUTME: Manages startup, graceful shutdown, and health endpoint lifecycle

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

	"github.com/astronomox/lightspace/internal/auth"
	"github.com/astronomox/lightspace/internal/completion"
	"github.com/astronomox/lightspace/internal/config"
	"github.com/astronomox/lightspace/internal/conversation"
	"github.com/astronomox/lightspace/internal/modes"
	"github.com/astronomox/lightspace/internal/store"
)

// Gateway orchestrates the lightspace server components. It owns the
// message store, the per-owner session manager, and the HTTP server that
// exposes the conversation API.
type Gateway struct {
	config      *config.Config
	store       store.Store
	sessions    *conversation.Manager
	catalog     *modes.Catalog
	broadcaster *conversation.EventBroadcaster
	verifier    *auth.JWTVerifier
	httpServer  *http.Server
	logger      *slog.Logger
}

// initStore creates the durable message store from config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("LIGHTSPACE_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// buildCatalog returns the mode catalog from config, or the builtin set
// when no modes are configured.
func buildCatalog(cfg *config.Config) (*modes.Catalog, error) {
	if len(cfg.Modes) == 0 {
		return modes.Builtin(), nil
	}

	list := make([]modes.Mode, len(cfg.Modes))
	for i, m := range cfg.Modes {
		list[i] = modes.Mode{
			ID:                m.ID,
			Label:             m.Label,
			SystemInstruction: m.SystemInstruction,
		}
	}
	return modes.NewCatalog(list)
}

// New creates a Gateway with a SQLite store and an OpenAI-backed streamer.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	streamer := completion.NewOpenAIStreamer(cfg.Completion.APIKey, cfg.Completion.Model, cfg.Completion.BaseURL)
	gw, err := NewWithDeps(cfg, s, streamer, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

// NewWithDeps creates a Gateway over caller-provided collaborators. Tests
// use this to inject a mock store and a scripted streamer.
func NewWithDeps(cfg *config.Config, s store.Store, streamer completion.Streamer, logger *slog.Logger) (*Gateway, error) {
	catalog, err := buildCatalog(cfg)
	if err != nil {
		return nil, fmt.Errorf("building mode catalog: %w", err)
	}

	broadcaster := conversation.NewEventBroadcaster(logger.With("component", "broadcaster"))
	sessions := conversation.NewManager(s, streamer, catalog, broadcaster, logger)

	gw := &Gateway{
		config:      cfg,
		store:       s,
		sessions:    sessions,
		catalog:     catalog,
		broadcaster: broadcaster,
		verifier:    auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)),
		logger:      logger.With("component", "gateway"),
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// routes builds the HTTP mux. Health endpoints are open; everything under
// /api/ requires a bearer token naming the owner.
func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)

	authMiddleware := auth.Middleware(g.verifier)
	mux.Handle("/api/send", authMiddleware(http.HandlerFunc(g.handleSend)))
	mux.Handle("/api/edit", authMiddleware(http.HandlerFunc(g.handleEdit)))
	mux.Handle("/api/mode", authMiddleware(http.HandlerFunc(g.handleMode)))
	mux.Handle("/api/modes", authMiddleware(http.HandlerFunc(g.handleListModes)))
	mux.Handle("/api/history", authMiddleware(http.HandlerFunc(g.handleHistory)))
	mux.Handle("/api/signout", authMiddleware(http.HandlerFunc(g.handleSignOut)))

	return mux
}

// Handler exposes the HTTP handler for tests.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled or
// the server fails. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

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
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	g.sessions.CloseAll()
	g.broadcaster.Close()

	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

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

// handleReady returns 200 OK once the store answers a probe read.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := g.store.LoadOrdered(r.Context(), "readiness-probe"); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d sessions)", g.sessions.Count())
}
