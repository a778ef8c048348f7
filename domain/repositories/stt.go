package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/satriahrh/henrietta/domain/entities"
)

// SpeechToText abstracts speech recognition services. Implementations never
// return an error; every failure is reported as a tagged Transcription.
type SpeechToText interface {
	// TranscribeAudio converts audio data to text
	TranscribeAudio(ctx context.Context, audioData []byte, config AudioConfig) entities.Transcription
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	// Language is an optional hint such as "Korean" or "ko-KR"
	Language string `json:"language"`
	// Format is the MIME type of the clip, empty when unknown
	Format string `json:"format"`
}

// ProviderKind selects a speech recognition provider
type ProviderKind string

const (
	ProviderGoogle  ProviderKind = "google"
	ProviderWhisper ProviderKind = "whisper"
)

// ParseProviderKind maps user facing names to a provider
func ParseProviderKind(name string) (ProviderKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "google", "google speech recognition":
		return ProviderGoogle, nil
	case "whisper", "openai", "openai whisper":
		return ProviderWhisper, nil
	default:
		return "", fmt.Errorf("unknown speech recognition provider: %q", name)
	}
}
