// ABOUTME: Per-owner session registry implementing the authentication collaborator boundary
// ABOUTME: First sight of an owner bootstraps a session; sign-out clears memory and cancels generation

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/astronomox/lightspace/internal/completion"
	"github.com/astronomox/lightspace/internal/modes"
	"github.com/astronomox/lightspace/internal/store"
)

// Manager tracks one Controller per signed-in owner.
//
// It is the engine side of the authentication boundary: observing an owner
// identifier for the first time triggers the session bootstrap (Load), and
// sign-out clears the in-memory session without touching durable storage.
// An in-flight generation is cancelled on sign-out and its draft discarded.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Controller

	store    store.Store
	streamer completion.Streamer
	catalog  *modes.Catalog
	events   *EventBroadcaster
	logger   *slog.Logger
}

// NewManager creates a Manager wiring every new controller to the given
// collaborators. Pass nil logger for default.
func NewManager(st store.Store, streamer completion.Streamer, catalog *modes.Catalog, events *EventBroadcaster, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: make(map[string]*Controller),
		store:    st,
		streamer: streamer,
		catalog:  catalog,
		events:   events,
		logger:   logger.With("component", "sessions"),
	}
}

// Session returns the controller for owner, creating and bootstrapping it
// on first sight.
func (m *Manager) Session(ctx context.Context, owner string) (*Controller, error) {
	m.mu.RLock()
	ctrl, ok := m.sessions[owner]
	m.mu.RUnlock()
	if ok {
		return ctrl, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ctrl, ok := m.sessions[owner]; ok {
		return ctrl, nil
	}

	ctrl = NewController(owner, m.store, m.streamer, m.catalog, m.events, m.logger)
	if err := ctrl.Load(ctx); err != nil {
		ctrl.Close()
		return nil, err
	}
	m.sessions[owner] = ctrl
	m.logger.Info("session opened", "owner", owner, "total_sessions", len(m.sessions))
	return ctrl, nil
}

// Peek returns the controller for owner without creating one.
func (m *Manager) Peek(owner string) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctrl, ok := m.sessions[owner]
	return ctrl, ok
}

// SignOut drops owner's in-memory session. Durable storage is untouched;
// any outstanding generation is cancelled and its draft discarded.
func (m *Manager) SignOut(owner string) {
	m.mu.Lock()
	ctrl, ok := m.sessions[owner]
	if ok {
		delete(m.sessions, owner)
	}
	total := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return
	}
	ctrl.Close()
	m.logger.Info("session closed", "owner", owner, "total_sessions", total)
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every open session (server shutdown).
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for owner, ctrl := range m.sessions {
		ctrl.Close()
		delete(m.sessions, owner)
	}
}
