package repositories

import (
	"context"

	"github.com/satriahrh/henrietta/domain/entities"
)

// TextToSpeech abstracts text-to-speech services
type TextToSpeech interface {
	// SynthesizeAudio converts text to a playable clip
	SynthesizeAudio(ctx context.Context, text string, config VoiceConfig) (entities.AudioClip, error)
}

// VoiceConfig represents voice configuration for TTS
type VoiceConfig struct {
	Language string `json:"language"`
	Slow     bool   `json:"slow"`
}

// DefaultVoice is English at normal speed
var DefaultVoice = VoiceConfig{Language: "en"}
