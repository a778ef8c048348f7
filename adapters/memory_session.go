package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/henrietta/domain/entities"
	"github.com/satriahrh/henrietta/domain/repositories"
)

// MemorySessionRepository keeps session state in process memory.
// Sessions never outlive the process.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*entities.SessionState
	logger   *zap.Logger
}

var _ repositories.SessionRepository = (*MemorySessionRepository)(nil)

// NewMemorySessionRepository creates a new in-memory session repository
func NewMemorySessionRepository(logger *zap.Logger) *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]*entities.SessionState),
		logger:   logger,
	}
}

// Create stores a new session, generating an ID when none is set
func (m *MemorySessionRepository) Create(ctx context.Context, session *entities.SessionState) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}

	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	if err := session.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID]; exists {
		return errors.New("session with this ID already exists")
	}

	stored := session.Snapshot()
	m.sessions[session.ID] = &stored

	m.logger.Debug("Session created", zap.String("session_id", session.ID))
	return nil
}

// Get returns a copy of the session
func (m *MemorySessionRepository) Get(ctx context.Context, id string) (*entities.SessionState, error) {
	if id == "" {
		return nil, errors.New("session ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, repositories.ErrSessionNotFound
	}

	// Return a copy to prevent external modifications
	sessionCopy := session.Snapshot()
	return &sessionCopy, nil
}

// Update replaces the stored session
func (m *MemorySessionRepository) Update(ctx context.Context, session *entities.SessionState) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}

	if err := session.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID]; !exists {
		return repositories.ErrSessionNotFound
	}

	stored := session.Snapshot()
	m.sessions[session.ID] = &stored
	return nil
}

// Delete removes a session
func (m *MemorySessionRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; !exists {
		return repositories.ErrSessionNotFound
	}

	delete(m.sessions, id)
	m.logger.Debug("Session deleted", zap.String("session_id", id))
	return nil
}

// ExpireSessions removes every session idle past its expiry
func (m *MemorySessionRepository) ExpireSessions(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expired := 0
	for id, session := range m.sessions {
		if session.IsExpired(now) {
			delete(m.sessions, id)
			expired++
		}
	}

	if expired > 0 {
		m.logger.Info("Expired sessions", zap.Int("count", expired))
	}

	return expired, nil
}

// Count returns the number of live sessions
func (m *MemorySessionRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
