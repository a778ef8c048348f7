package api

import (
	"time"

	"github.com/satriahrh/henrietta/domain/entities"
	"github.com/satriahrh/henrietta/usecase"
)

// StartSessionResponse represents the response payload for a new session
type StartSessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TextTurnRequest represents a typed question
type TextTurnRequest struct {
	Text string `json:"text"`
}

// TurnResponse reports a committed turn
type TurnResponse struct {
	UserText    string          `json:"user_text"`
	ReplyText   string          `json:"reply_text"`
	HasAudio    bool            `json:"has_audio"`
	AudioFormat string          `json:"audio_format,omitempty"`
	Stages      []usecase.Stage `json:"stages"`
	Notices     []string        `json:"notices,omitempty"`

	Token          string    `json:"token,omitempty"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
}

// SessionViewResponse is the render view of a session. Audio is only set on
// the first render after a new reply clip.
type SessionViewResponse struct {
	SessionID   string                      `json:"session_id"`
	Transcript  []entities.ConversationTurn `json:"transcript"`
	CanReplay   bool                        `json:"can_replay"`
	ExpiresAt   time.Time                   `json:"expires_at"`
	Audio       []byte                      `json:"audio,omitempty"`
	AudioFormat string                      `json:"audio_format,omitempty"`

	Token          string    `json:"token,omitempty"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func newTurnResponse(outcome usecase.TurnOutcome) TurnResponse {
	return TurnResponse{
		UserText:    outcome.UserText,
		ReplyText:   outcome.ReplyText,
		HasAudio:    !outcome.Audio.IsEmpty(),
		AudioFormat: outcome.Audio.Format,
		Stages:      outcome.Stages,
		Notices:     outcome.Notices,
	}
}

func newSessionView(view usecase.RenderView) SessionViewResponse {
	resp := SessionViewResponse{
		SessionID:  view.SessionID,
		Transcript: view.Transcript,
		CanReplay:  view.CanReplay,
		ExpiresAt:  view.ExpiresAt,
	}
	if view.AutoPlay != nil {
		resp.Audio = view.AutoPlay.Data
		resp.AudioFormat = view.AutoPlay.Format
	}
	return resp
}
