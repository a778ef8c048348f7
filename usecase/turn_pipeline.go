package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/henrietta/domain/entities"
	"github.com/satriahrh/henrietta/domain/repositories"
)

// Stage is a state of the per-turn state machine
type Stage string

const (
	StageIdle         Stage = "IDLE"
	StageTranscribing Stage = "TRANSCRIBING"
	StageResponding   Stage = "RESPONDING"
	StageSynthesizing Stage = "SYNTHESIZING"
	StageCommitted    Stage = "COMMITTED"
)

// InputSource is where a turn's input came from
type InputSource string

const (
	SourceLiveAudio     InputSource = "live_audio"
	SourceUploadedAudio InputSource = "uploaded_audio"
	SourceText          InputSource = "text"
)

// ParseInputSource maps a wire value to an input source
func ParseInputSource(name string) (InputSource, error) {
	switch InputSource(strings.ToLower(strings.TrimSpace(name))) {
	case SourceLiveAudio:
		return SourceLiveAudio, nil
	case SourceUploadedAudio:
		return SourceUploadedAudio, nil
	case SourceText:
		return SourceText, nil
	default:
		return "", fmt.Errorf("unknown input source: %q", name)
	}
}

// IsAudio reports whether the source carries an audio clip
func (s InputSource) IsAudio() bool {
	return s == SourceLiveAudio || s == SourceUploadedAudio
}

var (
	// ErrEmptyInput is returned for blank text or an empty clip
	ErrEmptyInput = errors.New("input is empty")
	// ErrDuplicateAudio is returned when a clip was already processed
	ErrDuplicateAudio = errors.New("audio clip was already processed")
	// ErrUnusableTranscription is returned when speech could not be turned into text
	ErrUnusableTranscription = errors.New("transcription is unusable")
)

// InputError is a user correctable rejection of a turn
type InputError struct {
	Reason  error
	Message string
	Failure entities.TranscriptionFailure
}

func (e *InputError) Error() string {
	return e.Message
}

func (e *InputError) Unwrap() error {
	return e.Reason
}

// TurnInput is one user contribution to the conversation
type TurnInput struct {
	Source       InputSource
	Text         string
	Audio        []byte
	AudioFormat  string
	Provider     repositories.ProviderKind
	LanguageHint string
}

// TurnOutcome describes what a turn did. Delta must be applied by the caller.
type TurnOutcome struct {
	Stages     []Stage
	Final      Stage
	Delta      entities.StateDelta
	UserText   string
	ReplyText  string
	Audio      entities.AudioClip
	InputError *InputError
	Notices    []string
}

// Committed reports whether the turn reached the transcript
func (o TurnOutcome) Committed() bool {
	return o.Final == StageCommitted
}

// ValidateTextInput trims text and rejects blank input
func ValidateTextInput(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyInput
	}
	return trimmed, nil
}

// TurnPipeline runs transcription, response and synthesis for one turn
type TurnPipeline struct {
	transcriber *Transcriber
	responder   *Responder
	synthesizer *Synthesizer
	logger      *zap.Logger
	now         func() time.Time
}

// NewTurnPipeline creates a new turn pipeline
func NewTurnPipeline(transcriber *Transcriber, responder *Responder, synthesizer *Synthesizer, logger *zap.Logger) *TurnPipeline {
	return &TurnPipeline{
		transcriber: transcriber,
		responder:   responder,
		synthesizer: synthesizer,
		logger:      logger,
		now:         time.Now,
	}
}

// Process runs one turn against a snapshot of the session. The snapshot is
// only read; every change is returned in the outcome's delta.
func (p *TurnPipeline) Process(ctx context.Context, snapshot entities.SessionState, input TurnInput) TurnOutcome {
	outcome := TurnOutcome{Stages: []Stage{StageIdle}, Final: StageIdle}

	var userText string
	var fingerprint *entities.Fingerprint

	switch {
	case input.Source == SourceText:
		text, err := ValidateTextInput(input.Text)
		if err != nil {
			return p.reject(outcome, &InputError{Reason: err, Message: "Please enter a question."})
		}
		userText = text

	case input.Source.IsAudio():
		if len(input.Audio) == 0 {
			return p.reject(outcome, &InputError{Reason: ErrEmptyInput, Message: "No audio was received."})
		}

		fp := entities.FingerprintAudio(input.Audio)
		if fp == snapshot.LastInputFingerprint {
			p.logger.Debug("Skipping already processed clip",
				zap.String("session_id", snapshot.ID),
				zap.String("source", string(input.Source)))
			return p.reject(outcome, &InputError{Reason: ErrDuplicateAudio, Message: "This recording was already processed."})
		}
		fingerprint = &fp

		outcome.enter(StageTranscribing)
		result := p.transcriber.Transcribe(ctx, input.Audio, input.AudioFormat, input.Provider, input.LanguageHint)
		if !result.Usable() {
			// The clip is remembered so the same recording is not retried
			outcome.Delta = entities.StateDelta{Fingerprint: fingerprint}
			outcome.enter(StageIdle)
			return p.reject(outcome, &InputError{
				Reason:  ErrUnusableTranscription,
				Message: result.Text,
				Failure: result.Failure,
			})
		}
		userText = strings.TrimSpace(result.Text)

	default:
		return p.reject(outcome, &InputError{
			Reason:  ErrEmptyInput,
			Message: fmt.Sprintf("Unsupported input source %q.", input.Source),
		})
	}

	outcome.UserText = userText

	outcome.enter(StageResponding)
	outcome.ReplyText = p.responder.Respond(ctx, userText)

	outcome.enter(StageSynthesizing)
	synthesis := p.synthesizer.Synthesize(ctx, outcome.ReplyText)
	if notice := synthesis.Notice(); notice != "" {
		outcome.Notices = append(outcome.Notices, notice)
	}

	now := p.now()
	delta := entities.StateDelta{
		Turns: []entities.ConversationTurn{
			{Role: entities.MessageRoleUser, Text: userText, Timestamp: now},
			{Role: entities.MessageRoleAssistant, Text: outcome.ReplyText, Timestamp: now},
		},
		Fingerprint: fingerprint,
	}
	if synthesis.OK() {
		clip := synthesis.Clip
		delta.Audio = &clip
		outcome.Audio = clip
	}
	outcome.Delta = delta

	outcome.enter(StageCommitted)

	p.logger.Info("Turn committed",
		zap.String("session_id", snapshot.ID),
		zap.String("source", string(input.Source)),
		zap.Int("replyLength", len(outcome.ReplyText)),
		zap.Bool("audio", synthesis.OK()))

	return outcome
}

func (p *TurnPipeline) reject(outcome TurnOutcome, inputErr *InputError) TurnOutcome {
	outcome.InputError = inputErr
	outcome.Final = StageIdle
	p.logger.Info("Turn rejected", zap.Error(inputErr.Reason), zap.String("message", inputErr.Message))
	return outcome
}

func (o *TurnOutcome) enter(stage Stage) {
	o.Stages = append(o.Stages, stage)
	o.Final = stage
}
