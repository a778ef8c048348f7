package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/henrietta/domain/entities"
	"github.com/satriahrh/henrietta/domain/repositories"
)

// ErrTurnInProgress is returned when a session already has a turn running
var ErrTurnInProgress = errors.New("a turn is already in progress for this session")

// RenderView is what a rendering surface shows for one redraw
type RenderView struct {
	SessionID  string                      `json:"session_id"`
	Transcript []entities.ConversationTurn `json:"transcript"`
	// AutoPlay is set only on the first render after new audio was committed
	AutoPlay  *entities.AudioClip `json:"-"`
	CanReplay bool                `json:"can_replay"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// SessionService is the boundary between transports and the turn pipeline
type SessionService struct {
	repo     repositories.SessionRepository
	pipeline *TurnPipeline
	ttl      time.Duration
	logger   *zap.Logger

	// locks serializes read-modify-write cycles per session
	locksMu sync.Mutex
	locks   map[string]*sessionLock

	inFlightMu sync.Mutex
	inFlight   map[string]struct{}
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewSessionService creates a new session service
func NewSessionService(repo repositories.SessionRepository, pipeline *TurnPipeline, ttl time.Duration, logger *zap.Logger) *SessionService {
	if ttl <= 0 {
		ttl = entities.DefaultSessionTTL
	}
	return &SessionService{
		repo:     repo,
		pipeline: pipeline,
		ttl:      ttl,
		logger:   logger,
		locks:    make(map[string]*sessionLock),
		inFlight: make(map[string]struct{}),
	}
}

// Start creates a new empty session
func (s *SessionService) Start(ctx context.Context) (*entities.SessionState, error) {
	session := entities.NewSessionState("", s.ttl)
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("Session started", zap.String("session_id", session.ID))
	return session, nil
}

// Submit runs one turn for the session and commits its delta. A rejected
// turn is reported through the outcome's InputError, not the error result.
func (s *SessionService) Submit(ctx context.Context, sessionID string, input TurnInput) (TurnOutcome, error) {
	if input.Source == SourceText {
		text, err := ValidateTextInput(input.Text)
		if err != nil {
			return TurnOutcome{}, err
		}
		input.Text = text
	}

	if !s.acquire(sessionID) {
		s.logger.Warn("Rejected overlapping turn", zap.String("session_id", sessionID))
		return TurnOutcome{}, ErrTurnInProgress
	}
	defer s.release(sessionID)

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return TurnOutcome{}, err
	}

	outcome := s.pipeline.Process(ctx, session.Snapshot(), input)
	if outcome.Delta.IsEmpty() {
		return outcome, nil
	}

	err = s.modify(ctx, sessionID, func(session *entities.SessionState) {
		session.Apply(outcome.Delta)
	})
	if err != nil {
		return TurnOutcome{}, err
	}

	return outcome, nil
}

// Render returns the current view and consumes the auto-play flag
func (s *SessionService) Render(ctx context.Context, sessionID string) (RenderView, error) {
	var view RenderView
	err := s.modify(ctx, sessionID, func(session *entities.SessionState) {
		view = RenderView{
			SessionID:  session.ID,
			Transcript: session.Transcript,
			CanReplay:  !session.PendingAudio.IsEmpty(),
		}
		if session.IsPlaying {
			clip := session.PendingAudio
			view.AutoPlay = &clip
		}
		session.MarkRendered()
		session.UpdateLastActive()
		view.ExpiresAt = session.ExpiresAt
	})
	if err != nil {
		return RenderView{}, err
	}
	return view, nil
}

// Replay returns the most recent reply clip without changing any state
func (s *SessionService) Replay(ctx context.Context, sessionID string) (entities.AudioClip, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return entities.AudioClip{}, err
	}
	return session.PendingAudio, nil
}

// Get returns a copy of the session
func (s *SessionService) Get(ctx context.Context, sessionID string) (*entities.SessionState, error) {
	return s.load(ctx, sessionID)
}

// End discards the session
func (s *SessionService) End(ctx context.Context, sessionID string) error {
	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.logger.Info("Session ended", zap.String("session_id", sessionID))
	return nil
}

func (s *SessionService) load(ctx context.Context, sessionID string) (*entities.SessionState, error) {
	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsExpired(time.Now()) {
		_ = s.repo.Delete(ctx, sessionID)
		return nil, repositories.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionService) modify(ctx context.Context, sessionID string, fn func(*entities.SessionState)) error {
	unlock := s.lockSession(sessionID)
	defer unlock()

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	fn(session)
	return s.repo.Update(ctx, session)
}

// lockSession locks one session and returns its unlock func. Entries are
// dropped once no caller holds or waits on them.
func (s *SessionService) lockSession(sessionID string) func() {
	s.locksMu.Lock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sessionLock{}
		s.locks[sessionID] = lock
	}
	lock.refs++
	s.locksMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()

		s.locksMu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.locksMu.Unlock()
	}
}

func (s *SessionService) acquire(sessionID string) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if _, busy := s.inFlight[sessionID]; busy {
		return false
	}
	s.inFlight[sessionID] = struct{}{}
	return true
}

func (s *SessionService) release(sessionID string) {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	delete(s.inFlight, sessionID)
}
