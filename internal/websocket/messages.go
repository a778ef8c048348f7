package websocket

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/satriahrh/henrietta/domain/repositories"
	"github.com/satriahrh/henrietta/usecase"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeTextTurn      MessageType = "text_turn"
	MessageTypeAudioTurn     MessageType = "audio_turn"
	MessageTypeConfigure     MessageType = "configure"
	MessageTypePing          MessageType = "ping"
	MessageTypePong          MessageType = "pong"
	MessageTypeTurnCommitted MessageType = "turn_committed"
	MessageTypeTurnRejected  MessageType = "turn_rejected"
	MessageTypeTurnBusy      MessageType = "turn_busy"
	MessageTypeError         MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// TextTurnMessage carries a typed question
type TextTurnMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// AudioTurnMessage carries an uploaded or recorded clip as base64
type AudioTurnMessage struct {
	BaseMessage
	AudioData string `json:"audio_data"`
	Format    string `json:"format,omitempty"`
	Source    string `json:"source,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Language  string `json:"language,omitempty"`

	audio []byte
}

// Audio returns the decoded clip
func (m *AudioTurnMessage) Audio() []byte {
	return m.audio
}

// ConfigureMessage sets defaults for binary audio frames on this connection
type ConfigureMessage struct {
	BaseMessage
	Provider string `json:"provider,omitempty"`
	Language string `json:"language,omitempty"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// TurnCommittedMessage reports a turn that reached the transcript. When
// HasAudio is set, one binary frame with the reply clip follows.
type TurnCommittedMessage struct {
	BaseMessage
	SessionID   string          `json:"session_id"`
	UserText    string          `json:"user_text"`
	ReplyText   string          `json:"reply_text"`
	HasAudio    bool            `json:"has_audio"`
	AudioFormat string          `json:"audio_format,omitempty"`
	Stages      []usecase.Stage `json:"stages"`
	Notices     []string        `json:"notices,omitempty"`
}

// TurnRejectedMessage reports a turn that was dropped before the transcript
type TurnRejectedMessage struct {
	BaseMessage
	SessionID string          `json:"session_id"`
	Reason    string          `json:"reason"`
	Message   string          `json:"message"`
	Stages    []usecase.Stage `json:"stages,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	// First parse as base message to get type
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeTextTurn:
		var msg TextTurnMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid text turn message: %w", err)
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, fmt.Errorf("text is required")
		}
		return &msg, nil

	case MessageTypeAudioTurn:
		var msg AudioTurnMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid audio turn message: %w", err)
		}
		if err := v.validateAudioTurn(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeConfigure:
		var msg ConfigureMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid configure message: %w", err)
		}
		if msg.Provider != "" {
			if _, err := repositories.ParseProviderKind(msg.Provider); err != nil {
				return nil, err
			}
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// validateAudioTurn validates audio turn fields and decodes the clip
func (v *MessageValidator) validateAudioTurn(msg *AudioTurnMessage) error {
	if msg.AudioData == "" {
		return fmt.Errorf("audio_data is required")
	}

	audio, err := base64.StdEncoding.DecodeString(msg.AudioData)
	if err != nil {
		return fmt.Errorf("audio_data must be base64: %w", err)
	}
	msg.audio = audio

	if msg.Source == "" {
		msg.Source = string(usecase.SourceUploadedAudio)
	}
	source, err := usecase.ParseInputSource(msg.Source)
	if err != nil || !source.IsAudio() {
		return fmt.Errorf("source must be one of: live_audio, uploaded_audio")
	}

	if msg.Provider != "" {
		if _, err := repositories.ParseProviderKind(msg.Provider); err != nil {
			return err
		}
	}

	return nil
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().Format(time.RFC3339)}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong),
		Data:        data,
	}
}

// CreateTurnMessage converts a turn outcome into its wire message
func CreateTurnMessage(sessionID string, outcome usecase.TurnOutcome) interface{} {
	if outcome.InputError != nil {
		reason := ""
		if outcome.InputError.Reason != nil {
			reason = outcome.InputError.Reason.Error()
		}
		return &TurnRejectedMessage{
			BaseMessage: newBase(MessageTypeTurnRejected),
			SessionID:   sessionID,
			Reason:      reason,
			Message:     outcome.InputError.Message,
			Stages:      outcome.Stages,
		}
	}

	return &TurnCommittedMessage{
		BaseMessage: newBase(MessageTypeTurnCommitted),
		SessionID:   sessionID,
		UserText:    outcome.UserText,
		ReplyText:   outcome.ReplyText,
		HasAudio:    !outcome.Audio.IsEmpty(),
		AudioFormat: outcome.Audio.Format,
		Stages:      outcome.Stages,
		Notices:     outcome.Notices,
	}
}

// CreateBusyMessage tells the client a turn is still running
func CreateBusyMessage(sessionID string) *TurnRejectedMessage {
	return &TurnRejectedMessage{
		BaseMessage: newBase(MessageTypeTurnBusy),
		SessionID:   sessionID,
		Reason:      usecase.ErrTurnInProgress.Error(),
		Message:     "Please wait for the current answer to finish.",
	}
}
