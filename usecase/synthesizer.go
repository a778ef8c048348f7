package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/henrietta/domain/entities"
	"github.com/satriahrh/henrietta/domain/repositories"
)

// Synthesis is the outcome of one text-to-speech call. Clip is empty
// whenever Err is set.
type Synthesis struct {
	Clip entities.AudioClip
	Err  error
}

// OK reports whether a playable clip was produced
func (s Synthesis) OK() bool {
	return s.Err == nil && !s.Clip.IsEmpty()
}

// Notice is the user visible message for a failed synthesis
func (s Synthesis) Notice() string {
	if s.Err == nil {
		return ""
	}
	return fmt.Sprintf("Error in text-to-speech: %v", s.Err)
}

// Synthesizer renders replies as speech with a fixed voice
type Synthesizer struct {
	tts    repositories.TextToSpeech
	voice  repositories.VoiceConfig
	logger *zap.Logger
}

// NewSynthesizer creates a synthesizer with the default voice
func NewSynthesizer(tts repositories.TextToSpeech, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{
		tts:    tts,
		voice:  repositories.DefaultVoice,
		logger: logger,
	}
}

// Synthesize converts text to a clip
func (s *Synthesizer) Synthesize(ctx context.Context, text string) Synthesis {
	if strings.TrimSpace(text) == "" {
		return Synthesis{Err: errors.New("no text to speak")}
	}

	clip, err := s.tts.SynthesizeAudio(ctx, text, s.voice)
	if err == nil && clip.IsEmpty() {
		err = errors.New("no audio produced")
	}
	if err != nil {
		s.logger.Error("Text-to-speech failed", zap.Error(err))
		return Synthesis{Err: err}
	}

	return Synthesis{Clip: clip}
}
