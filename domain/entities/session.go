package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// DefaultSessionTTL is how long an idle session is kept before it is discarded
const DefaultSessionTTL = 30 * time.Minute

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// ConversationTurn is one entry of the transcript. It is never mutated after creation.
type ConversationTurn struct {
	Role      MessageRole `json:"role"`
	Text      string      `json:"text"`
	Timestamp time.Time   `json:"timestamp"`
}

// AudioClip is a playable audio blob together with its MIME type
type AudioClip struct {
	Data   []byte `json:"-"`
	Format string `json:"format"`
}

// IsEmpty reports whether the clip carries no audio
func (a AudioClip) IsEmpty() bool {
	return len(a.Data) == 0
}

func (a AudioClip) clone() AudioClip {
	if a.Data == nil {
		return AudioClip{Format: a.Format}
	}
	data := make([]byte, len(a.Data))
	copy(data, a.Data)
	return AudioClip{Data: data, Format: a.Format}
}

// Fingerprint identifies an audio blob by its content
type Fingerprint string

// FingerprintAudio derives the fingerprint of an audio blob. Equal bytes
// always produce equal fingerprints.
func FingerprintAudio(data []byte) Fingerprint {
	sum := sha256.Sum256(data)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// StateDelta is the set of changes a turn wants to make to a session
type StateDelta struct {
	Turns       []ConversationTurn
	Audio       *AudioClip
	Fingerprint *Fingerprint
}

// IsEmpty reports whether applying the delta would change nothing
func (d StateDelta) IsEmpty() bool {
	return len(d.Turns) == 0 && d.Audio == nil && d.Fingerprint == nil
}

// SessionState is the conversation state of one interactive session
type SessionState struct {
	ID                   string             `json:"id"`
	Transcript           []ConversationTurn `json:"transcript"`
	PendingAudio         AudioClip          `json:"pending_audio"`
	IsPlaying            bool               `json:"is_playing"`
	LastInputFingerprint Fingerprint        `json:"last_input_fingerprint,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	LastActiveAt         time.Time          `json:"last_active_at"`
	ExpiresAt            time.Time          `json:"expires_at"`

	ttl time.Duration
}

// NewSessionState creates an empty session state
func NewSessionState(id string, ttl time.Duration) *SessionState {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := time.Now()
	return &SessionState{
		ID:           id,
		Transcript:   make([]ConversationTurn, 0),
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(ttl),
		ttl:          ttl,
	}
}

// Snapshot returns a deep copy of the state
func (s *SessionState) Snapshot() SessionState {
	snapshot := *s
	snapshot.Transcript = make([]ConversationTurn, len(s.Transcript))
	copy(snapshot.Transcript, s.Transcript)
	snapshot.PendingAudio = s.PendingAudio.clone()
	return snapshot
}

// Apply commits a delta produced by the turn pipeline
func (s *SessionState) Apply(delta StateDelta) {
	if delta.IsEmpty() {
		return
	}

	s.Transcript = append(s.Transcript, delta.Turns...)

	// Audio and the playing flag always move together
	if delta.Audio != nil && !delta.Audio.IsEmpty() {
		s.PendingAudio = delta.Audio.clone()
		s.IsPlaying = true
	}

	if delta.Fingerprint != nil {
		s.LastInputFingerprint = *delta.Fingerprint
	}

	s.UpdateLastActive()
}

// MarkRendered is called once the pending clip was handed to the rendering
// surface. The clip is kept for replay until a new turn replaces it.
func (s *SessionState) MarkRendered() {
	s.IsPlaying = false
}

// UpdateLastActive updates the last active timestamp and extends expiration
func (s *SessionState) UpdateLastActive() {
	ttl := s.ttl
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s.LastActiveAt = time.Now()
	s.ExpiresAt = s.LastActiveAt.Add(ttl)
}

// IsExpired checks if the session has been idle past its expiry
func (s *SessionState) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Validate validates the session data
func (s *SessionState) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if s.IsPlaying && s.PendingAudio.IsEmpty() {
		return errors.New("session is playing without pending audio")
	}
	for _, turn := range s.Transcript {
		if turn.Role != MessageRoleUser && turn.Role != MessageRoleAssistant {
			return errors.New("invalid turn role")
		}
	}
	return nil
}
