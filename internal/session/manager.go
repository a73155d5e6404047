// Package session manages reader connection sessions.
//
// Each physical reader holds at most one live WebSocket connection.
// The manager authenticates the handshake identifier against the
// reader registry, binds exactly one session per reader, and keeps
// the registry's online state in step with the connection lifecycle.
//
// Authentication is deliberately read-only: a failed handshake must
// not touch reader state, so Authenticate only resolves the reader
// and Bind performs the state change once the upgrade is committed.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calder-systems/punchcore/internal/reader"
)

// Domain errors for the session package.
var (
	// ErrUnknownReader is returned when a handshake identifier does not
	// match any registered reader.
	ErrUnknownReader = errors.New("session: unknown reader")

	// ErrAlreadyConnected is returned when a reader that already holds
	// a live session attempts to connect again.
	ErrAlreadyConnected = errors.New("session: reader already connected")

	// ErrNotConnected is returned when unbinding a reader that holds
	// no session.
	ErrNotConnected = errors.New("session: reader not connected")
)

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ReaderRegistry is the slice of the reader registry the manager needs.
type ReaderRegistry interface {
	GetReader(ctx context.Context, id string) (*reader.Reader, error)
	SetOnline(ctx context.Context, id string, online bool) error
}

// Session is a live reader connection. Sessions are ephemeral and
// never persisted; the id exists for log correlation only.
type Session struct {
	ID          string
	ReaderID    string
	ConnectedAt time.Time
}

// Manager tracks which readers currently hold a connection.
// All methods are safe for concurrent use.
type Manager struct {
	readers ReaderRegistry
	logger  Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager backed by the given registry.
func NewManager(readers ReaderRegistry) *Manager {
	return &Manager{
		readers:  readers,
		logger:   noopLogger{},
		sessions: make(map[string]*Session),
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Authenticate resolves a handshake identifier to a registered reader.
// It performs no state changes; call Bind after the connection upgrade
// succeeds. Returns ErrUnknownReader for unrecognised identifiers.
func (m *Manager) Authenticate(ctx context.Context, readerID string) (*reader.Reader, error) {
	if readerID == "" {
		return nil, ErrUnknownReader
	}

	rdr, err := m.readers.GetReader(ctx, readerID)
	if err != nil {
		if errors.Is(err, reader.ErrReaderNotFound) {
			return nil, ErrUnknownReader
		}
		return nil, fmt.Errorf("resolving reader: %w", err)
	}
	return rdr, nil
}

// Bind claims the session slot for a reader and marks it online.
// Returns ErrAlreadyConnected if the reader already holds a session;
// the existing session is unaffected.
func (m *Manager) Bind(ctx context.Context, readerID string) (*Session, error) {
	m.mu.Lock()
	if _, exists := m.sessions[readerID]; exists {
		m.mu.Unlock()
		m.logger.Warn("duplicate connection refused", "reader_id", readerID)
		return nil, ErrAlreadyConnected
	}

	session := &Session{
		ID:          "sess-" + uuid.NewString(),
		ReaderID:    readerID,
		ConnectedAt: time.Now().UTC(),
	}
	m.sessions[readerID] = session
	m.mu.Unlock()

	if err := m.readers.SetOnline(ctx, readerID, true); err != nil {
		// Roll the slot back so a retry is possible.
		m.mu.Lock()
		delete(m.sessions, readerID)
		m.mu.Unlock()
		return nil, fmt.Errorf("marking reader online: %w", err)
	}

	m.logger.Info("reader connected", "reader_id", readerID, "session_id", session.ID)
	return session, nil
}

// Unbind releases a reader's session slot and marks it offline.
// Returns ErrNotConnected if the reader holds no session.
func (m *Manager) Unbind(ctx context.Context, readerID string) error {
	m.mu.Lock()
	_, exists := m.sessions[readerID]
	if !exists {
		m.mu.Unlock()
		return ErrNotConnected
	}
	delete(m.sessions, readerID)
	m.mu.Unlock()

	if err := m.readers.SetOnline(ctx, readerID, false); err != nil {
		// The slot is already free; log and carry on so a reconnect
		// is not blocked by a transient persistence failure.
		m.logger.Error("marking reader offline", "reader_id", readerID, "error", err)
	}

	m.logger.Info("reader disconnected", "reader_id", readerID)
	return nil
}

// IsConnected reports whether a reader currently holds a session.
func (m *Manager) IsConnected(readerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.sessions[readerID]
	return exists
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
