package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/satriahrh/henrietta/domain/entities"
)

// ErrSessionNotFound is returned when a session does not exist or has ended
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository holds interactive session state between requests
type SessionRepository interface {
	Create(ctx context.Context, session *entities.SessionState) error
	Get(ctx context.Context, id string) (*entities.SessionState, error)
	Update(ctx context.Context, session *entities.SessionState) error
	Delete(ctx context.Context, id string) error
	// ExpireSessions discards every session idle past its expiry and
	// returns how many were removed
	ExpireSessions(ctx context.Context, now time.Time) (int, error)
}
